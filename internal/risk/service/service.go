// Package service orchestrates risk assessments. Risks have no dependents and
// never lock, but still pass through the status machine and are rescored on
// every write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"qsync/internal/events"
	"qsync/internal/lifecycle"
	"qsync/internal/platform/metrics"
	"qsync/internal/risk/models"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/audit"
	"qsync/pkg/platform/sentinel"
	"qsync/pkg/platform/tx"
	"qsync/pkg/requestcontext"
)

const kindRisk = "risk"

var tracer = otel.Tracer("qsync/risk")

type Store interface {
	Create(ctx context.Context, r *models.Risk) error
	FindByID(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	FindForUpdate(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	List(ctx context.Context) ([]*models.Risk, error)
	Update(ctx context.Context, r *models.Risk) error
	Delete(ctx context.Context, riskID id.RiskID) error
}

type EventPublisher interface {
	Emit(ctx context.Context, topic events.Topic, payload any) (events.Event, error)
}

type Service struct {
	store          Store
	audit          *audit.Emitter
	auditPublisher audit.Publisher
	events         EventPublisher
	metrics        *metrics.Metrics
	tx             tx.Runner
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.events = publisher
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = audit.NewEmitter(s.logger, s.auditPublisher)
	if s.tx == nil {
		s.tx = tx.NewLockRunner()
	}
	return s
}

func (s *Service) Create(ctx context.Context, req *models.CreateRiskRequest) (_ *models.RiskResponse, err error) {
	ctx, span := tracer.Start(ctx, "risk.Service.Create")
	defer s.finish(span, "create", time.Now(), &err)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status := models.StatusOpen
	if req.Status != "" {
		if status, err = models.Statuses.Parse(req.Status); err != nil {
			return nil, err
		}
	}

	var created *models.Risk
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := lifecycle.NextUpdatedAt(requestcontext.Now(txCtx), time.Time{})
		r, err := models.NewRisk(id.NewRiskID(), req.Title, status, requestcontext.Actor(txCtx), now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return err
		}
		r.Description = req.Description
		r.Category = req.Category
		r.Consequence = req.Consequence
		r.Likelihood = req.Likelihood
		r.Controllability = req.Controllability
		r.ResidualConsequence = req.ResidualConsequence
		r.ResidualLikelihood = req.ResidualLikelihood
		r.Mitigation = req.Mitigation
		r.OwnerUnit = req.OwnerUnit
		if r.OwnerUnit == "" {
			r.OwnerUnit = requestcontext.ActorUnit(txCtx)
		}
		r.Rescore()

		if err := s.store.Create(txCtx, r); err != nil {
			return translate(err, "create")
		}
		if err := s.audit.Record(txCtx, audit.EventRecordCreated, kindRisk, r.ID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("risk.level", string(created.Score.Level)))
	resp := models.NewRiskResponse(created)
	s.publish(ctx, events.RiskCreated, resp)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, riskID id.RiskID) (*models.RiskResponse, error) {
	r, err := s.store.FindByID(ctx, riskID)
	if err != nil {
		return nil, translate(err, "load")
	}
	resp := models.NewRiskResponse(r)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]models.RiskResponse, error) {
	risks, err := s.store.List(ctx)
	if err != nil {
		return nil, translate(err, "list")
	}
	out := make([]models.RiskResponse, 0, len(risks))
	for _, r := range risks {
		out = append(out, models.NewRiskResponse(r))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, riskID id.RiskID, req *models.UpdateRiskRequest) (_ *models.RiskResponse, err error) {
	ctx, span := tracer.Start(ctx, "risk.Service.Update")
	defer s.finish(span, "update", time.Now(), &err)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var target *models.Status
	if req.Status != nil {
		st, err := models.Statuses.Parse(*req.Status)
		if err != nil {
			return nil, err
		}
		target = &st
	}
	return s.mutate(ctx, riskID, req.ExpectedUpdatedAt, target, func(r *models.Risk) {
		applyPatch(r, req)
	})
}

func (s *Service) Transition(ctx context.Context, riskID id.RiskID, req *models.TransitionRequest) (_ *models.RiskResponse, err error) {
	ctx, span := tracer.Start(ctx, "risk.Service.Transition")
	defer s.finish(span, "transition", time.Now(), &err)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target, err := models.Statuses.Parse(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, riskID, req.ExpectedUpdatedAt, &target, nil)
}

func (s *Service) mutate(ctx context.Context, riskID id.RiskID, expected *time.Time, target *models.Status, patch func(*models.Risk)) (*models.RiskResponse, error) {
	var (
		updated *models.Risk
		from    models.Status
		changed bool
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.FindForUpdate(txCtx, riskID)
		if err != nil {
			return translate(err, "load")
		}
		if err := lifecycle.CheckExpected(kindRisk, expected, r.UpdatedAt); err != nil {
			return err
		}
		if patch != nil {
			patch(r)
		}
		from = r.Status
		if target != nil {
			t, err := models.Machine.Apply(kindRisk, r.Status, *target, "", "")
			if err != nil {
				return err
			}
			r.Status = t.Status
			changed = t.Changed
		}
		r.Rescore()
		r.UpdatedAt = lifecycle.NextUpdatedAt(requestcontext.Now(txCtx), r.UpdatedAt)
		if err := s.store.Update(txCtx, r); err != nil {
			return translate(err, "update")
		}
		event := audit.EventRecordUpdated
		if changed {
			event = audit.EventStatusTransitioned
		}
		if err := s.audit.Record(txCtx, event, kindRisk, r.ID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		updated = r
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePreconditionFailed) {
			s.audit.RecordBlocked(ctx, audit.EventUpdateBlocked, kindRisk, riskID.String(), dErrors.ReasonOf(err))
		}
		return nil, err
	}

	resp := models.NewRiskResponse(updated)
	s.publish(ctx, events.RiskUpdated, resp)
	if changed {
		s.publish(ctx, events.NotificationNew, events.StatusNotification(
			string(updated.CreatedBy), kindRisk, updated.ID.String(), updated.Title,
			models.Statuses.Label(from), models.Statuses.Label(updated.Status), "", updated.UpdatedAt,
		))
	}
	return &resp, nil
}

// Delete always passes the guard; risks never lock.
func (s *Service) Delete(ctx context.Context, riskID id.RiskID) (err error) {
	ctx, span := tracer.Start(ctx, "risk.Service.Delete")
	defer s.finish(span, "delete", time.Now(), &err)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.store.FindForUpdate(txCtx, riskID)
		if err != nil {
			return translate(err, "load")
		}
		if err := lifecycle.DeleteGuard(kindRisk, r.Lock()); err != nil {
			return err
		}
		if err := s.store.Delete(txCtx, riskID); err != nil {
			return translate(err, "delete")
		}
		if err := s.audit.Record(txCtx, audit.EventRecordDeleted, kindRisk, riskID.String(), ""); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.RiskDeleted, events.Tombstone{ID: riskID.String()})
	return nil
}

func (s *Service) publish(ctx context.Context, topic events.Topic, payload any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}

func (s *Service) finish(span trace.Span, op string, start time.Time, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		outcome = string(dErrors.CodeInternal)
		if de, ok := dErrors.As(err); ok {
			outcome = string(de.Code)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.ObserveMutation(kindRisk, op, outcome, start)
	span.End()
}

func translate(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "risk not found")
	case errors.Is(err, sentinel.ErrStale):
		return dErrors.New(dErrors.CodeConflict, "risk was modified concurrently")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "risk already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action+" risk")
	}
}

func applyPatch(r *models.Risk, req *models.UpdateRiskRequest) {
	if req.Title != nil {
		r.Title = *req.Title
	}
	if req.Description != nil {
		r.Description = *req.Description
	}
	if req.Category != nil {
		r.Category = *req.Category
	}
	if req.Consequence != nil {
		r.Consequence = *req.Consequence
	}
	if req.Likelihood != nil {
		r.Likelihood = *req.Likelihood
	}
	if req.Controllability != nil {
		r.Controllability = *req.Controllability
	}
	if req.ResidualConsequence != nil {
		r.ResidualConsequence = *req.ResidualConsequence
	}
	if req.ResidualLikelihood != nil {
		r.ResidualLikelihood = *req.ResidualLikelihood
	}
	if req.Mitigation != nil {
		r.Mitigation = *req.Mitigation
	}
	if req.OwnerUnit != nil {
		r.OwnerUnit = *req.OwnerUnit
	}
}
