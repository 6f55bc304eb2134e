// Package domain holds primitive types shared by every module: typed record ids and
// user attribution.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "qsync/pkg/domain-errors"
)

// Typed ids keep a profile id from being passed where a submission id is expected.
type (
	ProfileID    uuid.UUID
	SubmissionID uuid.UUID
	RiskID       uuid.UUID
)

// UserID identifies the acting staff member. It is opaque: upstream identity providers
// hand out non-uuid subjects.
type UserID string

// SystemUser is the actor used when a request carries no identity.
const SystemUser UserID = "system"

func (u UserID) String() string { return string(u) }

func NewProfileID() ProfileID       { return ProfileID(uuid.New()) }
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }
func NewRiskID() RiskID             { return RiskID(uuid.New()) }

func (id ProfileID) String() string    { return uuid.UUID(id).String() }
func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id RiskID) String() string       { return uuid.UUID(id).String() }

func (id ProfileID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RiskID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

func (id ProfileID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id SubmissionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RiskID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }

func (id *ProfileID) UnmarshalText(b []byte) error {
	parsed, err := ParseProfileID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SubmissionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubmissionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RiskID) UnmarshalText(b []byte) error {
	parsed, err := ParseRiskID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s, "profile id")
	return ProfileID(u), err
}

func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s, "submission id")
	return SubmissionID(u), err
}

func ParseRiskID(s string) (RiskID, error) {
	u, err := parseUUID(s, "risk id")
	return RiskID(u), err
}

// parseUUID rejects empty, malformed and nil uuids at trust boundaries.
func parseUUID(s, label string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}
