package service

import (
	"context"
	"errors"
	"time"

	"qsync/internal/events"
	"qsync/internal/indicator/models"
	"qsync/internal/lifecycle"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/audit"
	"qsync/pkg/platform/sentinel"
	"qsync/pkg/requestcontext"
)

// SubmissionService manages monthly submissions. Achievement and result are
// recomputed against the owning profile on every write.
type SubmissionService struct {
	profiles     ProfileStore
	submissions  SubmissionStore
	dependents   DependentCounter
	auditEmitter *audit.Emitter
	cfg          *serviceConfig
}

func NewSubmissionService(profiles ProfileStore, submissions SubmissionStore, opts ...Option) *SubmissionService {
	cfg := newConfig(opts)
	return &SubmissionService{
		profiles:     profiles,
		submissions:  submissions,
		dependents:   cfg.dependents,
		auditEmitter: audit.NewEmitter(cfg.logger, cfg.auditPublisher),
		cfg:          cfg,
	}
}

func (s *SubmissionService) Create(ctx context.Context, req *models.CreateSubmissionRequest) (_ *models.SubmissionResponse, err error) {
	ctx, span := startSpan(ctx, "indicator.SubmissionService.Create")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindSubmission, "create", start, err)
		endSpan(span, err)
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	profileID, err := id.ParseProfileID(req.ProfileID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "profileId must be a valid id")
	}

	var (
		created *models.Submission
		owner   models.ProfileResponse
	)
	err = s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Locking the profile row orders this insert against a concurrent profile delete.
		profile, err := s.profiles.FindForUpdate(txCtx, profileID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "profile does not exist")
			}
			return storeErr(err, kindProfile, "load")
		}
		now := lifecycle.NextUpdatedAt(requestcontext.Now(txCtx), time.Time{})
		sub, err := models.NewSubmission(id.NewSubmissionID(), profile, req.Period, requestcontext.Actor(txCtx), now)
		if err != nil {
			return invariantToValidation(err)
		}
		sub.Numerator = req.Numerator
		sub.Denominator = req.Denominator
		sub.Analysis = req.Analysis
		sub.OwnerUnit = req.OwnerUnit
		if sub.OwnerUnit == "" {
			sub.OwnerUnit = profile.OwnerUnit
		}
		sub.ApplyScore(profile)

		if err := s.submissions.Create(txCtx, sub); err != nil {
			return storeErr(err, kindSubmission, "create")
		}
		if err := s.auditEmitter.Record(txCtx, audit.EventRecordCreated, kindSubmission, sub.ID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		owner, err = s.touchProfile(txCtx, profile)
		if err != nil {
			return err
		}
		created = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := models.NewSubmissionResponse(created, 0)
	s.cfg.publish(ctx, events.SubmissionCreated, resp)
	s.cfg.publish(ctx, events.ProfileUpdated, owner)
	return &resp, nil
}

func (s *SubmissionService) Get(ctx context.Context, submissionID id.SubmissionID) (*models.SubmissionResponse, error) {
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return nil, storeErr(err, kindSubmission, "load")
	}
	n, err := s.countDependents(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	resp := models.NewSubmissionResponse(sub, n)
	return &resp, nil
}

// List returns submissions, optionally narrowed to one profile.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionResponse, error) {
	subs, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, storeErr(err, kindSubmission, "list")
	}
	out := make([]models.SubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		n, err := s.countDependents(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.NewSubmissionResponse(sub, n))
	}
	return out, nil
}

func (s *SubmissionService) Update(ctx context.Context, submissionID id.SubmissionID, req *models.UpdateSubmissionRequest) (_ *models.SubmissionResponse, err error) {
	ctx, span := startSpan(ctx, "indicator.SubmissionService.Update")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindSubmission, "update", start, err)
		endSpan(span, err)
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var target *models.SubmissionStatus
	if req.Status != nil {
		st, err := models.SubmissionStatuses.Parse(*req.Status)
		if err != nil {
			return nil, err
		}
		target = &st
	}
	reason := ""
	if req.RejectionReason != nil {
		reason = *req.RejectionReason
	}
	return s.mutate(ctx, submissionID, req.ExpectedUpdatedAt, target, reason, func(sub *models.Submission, lock lifecycle.LockState) error {
		return applySubmissionPatch(sub, req, lock)
	})
}

func (s *SubmissionService) Transition(ctx context.Context, submissionID id.SubmissionID, req *models.TransitionRequest) (_ *models.SubmissionResponse, err error) {
	ctx, span := startSpan(ctx, "indicator.SubmissionService.Transition")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindSubmission, "transition", start, err)
		endSpan(span, err)
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target, err := models.SubmissionStatuses.Parse(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, submissionID, req.ExpectedUpdatedAt, &target, req.RejectionReason, nil)
}

func (s *SubmissionService) mutate(
	ctx context.Context,
	submissionID id.SubmissionID,
	expected *time.Time,
	target *models.SubmissionStatus,
	reason string,
	patch func(sub *models.Submission, lock lifecycle.LockState) error,
) (*models.SubmissionResponse, error) {
	var (
		updated    *models.Submission
		dependents int
		from       models.SubmissionStatus
		changed    bool
	)
	err := s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.submissions.FindForUpdate(txCtx, submissionID)
		if err != nil {
			return storeErr(err, kindSubmission, "load")
		}
		if err := lifecycle.CheckExpected(kindSubmission, expected, sub.UpdatedAt); err != nil {
			return err
		}
		profile, err := s.profiles.FindByID(txCtx, sub.ProfileID)
		if err != nil {
			return storeErr(err, kindProfile, "load")
		}
		dependents, err = s.countDependents(txCtx, submissionID)
		if err != nil {
			return err
		}
		lock := sub.Lock(dependents)

		if patch != nil {
			if err := patch(sub, lock); err != nil {
				return err
			}
		}
		from = sub.Status
		if target != nil {
			t, err := models.SubmissionMachine.Apply(kindSubmission, sub.Status, *target, sub.RejectionReason, reason)
			if err != nil {
				return err
			}
			sub.Status = t.Status
			sub.RejectionReason = t.RejectionReason
			changed = t.Changed
		}

		sub.ApplyScore(profile)
		sub.UpdatedAt = lifecycle.NextUpdatedAt(requestcontext.Now(txCtx), sub.UpdatedAt)
		if err := s.submissions.Update(txCtx, sub); err != nil {
			return storeErr(err, kindSubmission, "update")
		}

		event, auditReason := audit.EventRecordUpdated, ""
		if changed {
			event, auditReason = audit.EventStatusTransitioned, sub.RejectionReason
		}
		if err := s.auditEmitter.Record(txCtx, event, kindSubmission, sub.ID.String(), auditReason); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		updated = sub
		return nil
	})
	if err != nil {
		if isPrecondition(err) {
			s.auditEmitter.RecordBlocked(ctx, audit.EventUpdateBlocked, kindSubmission, submissionID.String(), dErrors.ReasonOf(err))
		}
		return nil, err
	}

	resp := models.NewSubmissionResponse(updated, dependents)
	s.cfg.publish(ctx, events.SubmissionUpdated, resp)
	if changed {
		s.cfg.publish(ctx, events.NotificationNew, events.StatusNotification(
			string(updated.CreatedBy), kindSubmission, updated.ID.String(), "Submission "+updated.Period,
			models.SubmissionStatuses.Label(from), models.SubmissionStatuses.Label(updated.Status),
			updated.RejectionReason, updated.UpdatedAt,
		))
	}
	return &resp, nil
}

// Delete removes an unlocked submission, publishes its tombstone and the
// owning profile with its refreshed lock.
func (s *SubmissionService) Delete(ctx context.Context, submissionID id.SubmissionID) (err error) {
	ctx, span := startSpan(ctx, "indicator.SubmissionService.Delete")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindSubmission, "delete", start, err)
		endSpan(span, err)
	}()

	var owner models.ProfileResponse
	err = s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		sub, err := s.submissions.FindForUpdate(txCtx, submissionID)
		if err != nil {
			return storeErr(err, kindSubmission, "load")
		}
		n, err := s.countDependents(txCtx, submissionID)
		if err != nil {
			return err
		}
		if err := lifecycle.DeleteGuard(kindSubmission, sub.Lock(n)); err != nil {
			return err
		}
		if err := s.submissions.Delete(txCtx, submissionID); err != nil {
			return storeErr(err, kindSubmission, "delete")
		}
		if err := s.auditEmitter.Record(txCtx, audit.EventRecordDeleted, kindSubmission, submissionID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		profile, err := s.profiles.FindForUpdate(txCtx, sub.ProfileID)
		if err != nil {
			return storeErr(err, kindProfile, "load")
		}
		owner, err = s.touchProfile(txCtx, profile)
		return err
	})
	if err != nil {
		if isPrecondition(err) {
			s.auditEmitter.RecordBlocked(ctx, audit.EventDeleteBlocked, kindSubmission, submissionID.String(), dErrors.ReasonOf(err))
		}
		return err
	}

	s.cfg.publish(ctx, events.SubmissionDeleted, events.Tombstone{ID: submissionID.String()})
	s.cfg.publish(ctx, events.ProfileUpdated, owner)
	return nil
}

// touchProfile moves the owning profile to a new version after its
// submission count changed. The lock fields are derived from that count, so
// every change to them must be visible as a newer updatedAt.
func (s *SubmissionService) touchProfile(ctx context.Context, profile *models.Profile) (models.ProfileResponse, error) {
	profile.UpdatedAt = lifecycle.NextUpdatedAt(requestcontext.Now(ctx), profile.UpdatedAt)
	if err := s.profiles.Update(ctx, profile); err != nil {
		return models.ProfileResponse{}, storeErr(err, kindProfile, "update")
	}
	n, err := s.submissions.CountByProfile(ctx, profile.ID)
	if err != nil {
		return models.ProfileResponse{}, storeErr(err, kindSubmission, "count")
	}
	return models.NewProfileResponse(profile, n), nil
}

func (s *SubmissionService) countDependents(ctx context.Context, submissionID id.SubmissionID) (int, error) {
	if s.dependents == nil {
		return 0, nil
	}
	n, err := s.dependents.CountBySubmission(ctx, submissionID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count dependents")
	}
	return n, nil
}

func applySubmissionPatch(sub *models.Submission, req *models.UpdateSubmissionRequest, lock lifecycle.LockState) error {
	if req.Period != nil && *req.Period != sub.Period {
		if err := lifecycle.RequireUnlocked(kindSubmission, lock, "period"); err != nil {
			return err
		}
		sub.Period = *req.Period
	}
	if req.Numerator != nil && *req.Numerator != sub.Numerator {
		if err := lifecycle.RequireUnlocked(kindSubmission, lock, "numerator"); err != nil {
			return err
		}
		sub.Numerator = *req.Numerator
	}
	if req.Denominator != nil && *req.Denominator != sub.Denominator {
		if err := lifecycle.RequireUnlocked(kindSubmission, lock, "denominator"); err != nil {
			return err
		}
		sub.Denominator = *req.Denominator
	}
	if req.Analysis != nil {
		sub.Analysis = *req.Analysis
	}
	if req.OwnerUnit != nil {
		sub.OwnerUnit = *req.OwnerUnit
	}
	if req.Status == nil && req.RejectionReason != nil && *req.RejectionReason != "" && sub.Status == models.SubmissionRejected {
		sub.RejectionReason = *req.RejectionReason
	}
	return nil
}
