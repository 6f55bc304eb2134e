package models

import "qsync/internal/lifecycle"

// ProfileStatus is the approval state of an indicator profile.
type ProfileStatus string

const (
	ProfileDraft           ProfileStatus = "draft"
	ProfilePendingApproval ProfileStatus = "pending_approval"
	ProfileApproved        ProfileStatus = "approved"
	ProfileRejected        ProfileStatus = "rejected"
)

// ProfileStatuses is the one code ↔ label table for profiles.
var ProfileStatuses = lifecycle.NewStatusTable(
	lifecycle.StatusEntry[ProfileStatus]{Code: ProfileDraft, Label: "Draft"},
	lifecycle.StatusEntry[ProfileStatus]{Code: ProfilePendingApproval, Label: "Pending Approval"},
	lifecycle.StatusEntry[ProfileStatus]{Code: ProfileApproved, Label: "Approved"},
	lifecycle.StatusEntry[ProfileStatus]{Code: ProfileRejected, Label: "Rejected"},
)

// ProfileMachine: Draft → PendingApproval → {Approved, Rejected}; Rejected → PendingApproval.
var ProfileMachine = lifecycle.NewMachine(ProfileRejected, map[ProfileStatus][]ProfileStatus{
	ProfileDraft:           {ProfilePendingApproval},
	ProfilePendingApproval: {ProfileApproved, ProfileRejected},
	ProfileRejected:        {ProfilePendingApproval},
})

// SubmissionStatus is the verification state of a submission.
type SubmissionStatus string

const (
	SubmissionPendingApproval SubmissionStatus = "pending_approval"
	SubmissionVerified        SubmissionStatus = "verified"
	SubmissionRejected        SubmissionStatus = "rejected"
)

// SubmissionStatuses is the one code ↔ label table for submissions.
var SubmissionStatuses = lifecycle.NewStatusTable(
	lifecycle.StatusEntry[SubmissionStatus]{Code: SubmissionPendingApproval, Label: "Pending Approval"},
	lifecycle.StatusEntry[SubmissionStatus]{Code: SubmissionVerified, Label: "Verified"},
	lifecycle.StatusEntry[SubmissionStatus]{Code: SubmissionRejected, Label: "Rejected"},
)

// SubmissionMachine: PendingApproval → {Verified, Rejected}; Rejected → PendingApproval.
var SubmissionMachine = lifecycle.NewMachine(SubmissionRejected, map[SubmissionStatus][]SubmissionStatus{
	SubmissionPendingApproval: {SubmissionVerified, SubmissionRejected},
	SubmissionRejected:        {SubmissionPendingApproval},
})
