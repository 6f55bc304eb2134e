package service

import (
	"context"
	"time"

	"qsync/internal/events"
	"qsync/internal/indicator/models"
	"qsync/internal/lifecycle"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/audit"
	"qsync/pkg/requestcontext"
)

// ProfileService manages indicator profiles. A profile is locked once it has
// submissions or has been approved.
type ProfileService struct {
	profiles     ProfileStore
	submissions  SubmissionStore
	auditEmitter *audit.Emitter
	cfg          *serviceConfig
}

func NewProfileService(profiles ProfileStore, submissions SubmissionStore, opts ...Option) *ProfileService {
	cfg := newConfig(opts)
	return &ProfileService{
		profiles:     profiles,
		submissions:  submissions,
		auditEmitter: audit.NewEmitter(cfg.logger, cfg.auditPublisher),
		cfg:          cfg,
	}
}

func (s *ProfileService) Create(ctx context.Context, req *models.CreateProfileRequest) (_ *models.ProfileResponse, err error) {
	ctx, span := startSpan(ctx, "indicator.ProfileService.Create")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindProfile, "create", start, err)
		endSpan(span, err)
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status := models.ProfileDraft
	if req.Status != "" {
		status, err = models.ProfileStatuses.Parse(req.Status)
		if err != nil {
			return nil, err
		}
	}

	var created *models.Profile
	err = s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := lifecycle.NextUpdatedAt(requestcontext.Now(txCtx), time.Time{})
		p, err := models.NewProfile(id.NewProfileID(), req.Code, req.Title, status, requestcontext.Actor(txCtx), now)
		if err != nil {
			return invariantToValidation(err)
		}
		p.Description = req.Description
		p.Category = req.Category
		p.NumeratorDefinition = req.NumeratorDefinition
		p.DenominatorDefinition = req.DenominatorDefinition
		p.Standard = req.Standard
		p.StandardUnit = scoring.ParseStandardUnit(req.StandardUnit)
		p.Notes = req.Notes
		p.OwnerUnit = req.OwnerUnit
		if p.OwnerUnit == "" {
			p.OwnerUnit = requestcontext.ActorUnit(txCtx)
		}

		if err := s.profiles.Create(txCtx, p); err != nil {
			return storeErr(err, kindProfile, "create")
		}
		if err := s.auditEmitter.Record(txCtx, audit.EventRecordCreated, kindProfile, p.ID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := models.NewProfileResponse(created, 0)
	s.cfg.publish(ctx, events.ProfileCreated, resp)
	return &resp, nil
}

func (s *ProfileService) Get(ctx context.Context, profileID id.ProfileID) (*models.ProfileResponse, error) {
	p, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return nil, storeErr(err, kindProfile, "load")
	}
	n, err := s.submissions.CountByProfile(ctx, profileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count submissions")
	}
	resp := models.NewProfileResponse(p, n)
	return &resp, nil
}

func (s *ProfileService) List(ctx context.Context) ([]models.ProfileResponse, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, storeErr(err, kindProfile, "list")
	}
	ids := make([]id.ProfileID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	counts, err := s.submissions.CountByProfiles(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count submissions")
	}
	out := make([]models.ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, models.NewProfileResponse(p, counts[p.ID]))
	}
	return out, nil
}

// Update applies a patch. Free-text fields are always editable; structural
// fields only while the profile is unlocked. A status in the patch goes
// through the same state machine as Transition.
func (s *ProfileService) Update(ctx context.Context, profileID id.ProfileID, req *models.UpdateProfileRequest) (_ *models.ProfileResponse, err error) {
	ctx, span := startSpan(ctx, "indicator.ProfileService.Update")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindProfile, "update", start, err)
		endSpan(span, err)
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var target *models.ProfileStatus
	if req.Status != nil {
		st, err := models.ProfileStatuses.Parse(*req.Status)
		if err != nil {
			return nil, err
		}
		target = &st
	}
	reason := ""
	if req.RejectionReason != nil {
		reason = *req.RejectionReason
	}

	return s.mutate(ctx, profileID, req.ExpectedUpdatedAt, target, reason, func(p *models.Profile, lock lifecycle.LockState) error {
		return applyProfilePatch(p, req, lock)
	})
}

// Transition moves a profile along its state machine.
func (s *ProfileService) Transition(ctx context.Context, profileID id.ProfileID, req *models.TransitionRequest) (_ *models.ProfileResponse, err error) {
	ctx, span := startSpan(ctx, "indicator.ProfileService.Transition")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindProfile, "transition", start, err)
		endSpan(span, err)
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target, err := models.ProfileStatuses.Parse(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, profileID, req.ExpectedUpdatedAt, &target, req.RejectionReason, nil)
}

func (s *ProfileService) mutate(
	ctx context.Context,
	profileID id.ProfileID,
	expected *time.Time,
	target *models.ProfileStatus,
	reason string,
	patch func(p *models.Profile, lock lifecycle.LockState) error,
) (*models.ProfileResponse, error) {
	var (
		updated     *models.Profile
		submissions int
		from        models.ProfileStatus
		changed     bool
	)
	err := s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.profiles.FindForUpdate(txCtx, profileID)
		if err != nil {
			return storeErr(err, kindProfile, "load")
		}
		if err := lifecycle.CheckExpected(kindProfile, expected, p.UpdatedAt); err != nil {
			return err
		}
		submissions, err = s.submissions.CountByProfile(txCtx, profileID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count submissions")
		}
		lock := p.Lock(submissions)

		if patch != nil {
			if err := patch(p, lock); err != nil {
				return err
			}
		}
		from = p.Status
		if target != nil {
			t, err := models.ProfileMachine.Apply(kindProfile, p.Status, *target, p.RejectionReason, reason)
			if err != nil {
				return err
			}
			p.Status = t.Status
			p.RejectionReason = t.RejectionReason
			changed = t.Changed
		}

		p.UpdatedAt = lifecycle.NextUpdatedAt(requestcontext.Now(txCtx), p.UpdatedAt)
		if err := s.profiles.Update(txCtx, p); err != nil {
			return storeErr(err, kindProfile, "update")
		}

		event, auditReason := audit.EventRecordUpdated, ""
		if changed {
			event, auditReason = audit.EventStatusTransitioned, p.RejectionReason
		}
		if err := s.auditEmitter.Record(txCtx, event, kindProfile, p.ID.String(), auditReason); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		updated = p
		return nil
	})
	if err != nil {
		if isPrecondition(err) {
			s.auditEmitter.RecordBlocked(ctx, audit.EventUpdateBlocked, kindProfile, profileID.String(), dErrors.ReasonOf(err))
		}
		return nil, err
	}

	resp := models.NewProfileResponse(updated, submissions)
	s.cfg.publish(ctx, events.ProfileUpdated, resp)
	if changed {
		s.cfg.publish(ctx, events.NotificationNew, events.StatusNotification(
			string(updated.CreatedBy), kindProfile, updated.ID.String(), updated.Code+" "+updated.Title,
			models.ProfileStatuses.Label(from), models.ProfileStatuses.Label(updated.Status),
			updated.RejectionReason, updated.UpdatedAt,
		))
	}
	return &resp, nil
}

// Delete removes an unlocked profile and publishes its tombstone.
func (s *ProfileService) Delete(ctx context.Context, profileID id.ProfileID) (err error) {
	ctx, span := startSpan(ctx, "indicator.ProfileService.Delete")
	start := time.Now()
	defer func() {
		s.cfg.observe(kindProfile, "delete", start, err)
		endSpan(span, err)
	}()

	err = s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.profiles.FindForUpdate(txCtx, profileID)
		if err != nil {
			return storeErr(err, kindProfile, "load")
		}
		n, err := s.submissions.CountByProfile(txCtx, profileID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count submissions")
		}
		if err := lifecycle.DeleteGuard(kindProfile, p.Lock(n)); err != nil {
			return err
		}
		if err := s.profiles.Delete(txCtx, profileID); err != nil {
			return storeErr(err, kindProfile, "delete")
		}
		if err := s.auditEmitter.Record(txCtx, audit.EventRecordDeleted, kindProfile, profileID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		return nil
	})
	if err != nil {
		if isPrecondition(err) {
			s.auditEmitter.RecordBlocked(ctx, audit.EventDeleteBlocked, kindProfile, profileID.String(), dErrors.ReasonOf(err))
		}
		return err
	}

	s.cfg.publish(ctx, events.ProfileDeleted, events.Tombstone{ID: profileID.String()})
	return nil
}

func applyProfilePatch(p *models.Profile, req *models.UpdateProfileRequest, lock lifecycle.LockState) error {
	if req.Code != nil && *req.Code != p.Code {
		if err := lifecycle.RequireUnlocked(kindProfile, lock, "code"); err != nil {
			return err
		}
		p.Code = *req.Code
	}
	if req.NumeratorDefinition != nil && *req.NumeratorDefinition != p.NumeratorDefinition {
		if err := lifecycle.RequireUnlocked(kindProfile, lock, "numeratorDefinition"); err != nil {
			return err
		}
		p.NumeratorDefinition = *req.NumeratorDefinition
	}
	if req.DenominatorDefinition != nil && *req.DenominatorDefinition != p.DenominatorDefinition {
		if err := lifecycle.RequireUnlocked(kindProfile, lock, "denominatorDefinition"); err != nil {
			return err
		}
		p.DenominatorDefinition = *req.DenominatorDefinition
	}
	if req.Standard != nil && *req.Standard != p.Standard {
		if err := lifecycle.RequireUnlocked(kindProfile, lock, "standard"); err != nil {
			return err
		}
		p.Standard = *req.Standard
	}
	if req.StandardUnit != nil {
		unit := scoring.ParseStandardUnit(*req.StandardUnit)
		if unit != p.StandardUnit {
			if err := lifecycle.RequireUnlocked(kindProfile, lock, "standardUnit"); err != nil {
				return err
			}
			p.StandardUnit = unit
		}
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}
	if req.OwnerUnit != nil {
		p.OwnerUnit = *req.OwnerUnit
	}
	if req.Status == nil && req.RejectionReason != nil && *req.RejectionReason != "" && p.Status == models.ProfileRejected {
		p.RejectionReason = *req.RejectionReason
	}
	return nil
}
