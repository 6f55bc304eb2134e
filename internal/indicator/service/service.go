// Package service orchestrates indicator profiles and their periodic
// submissions: every mutation loads the record inside a store transaction,
// passes the lifecycle guard, rescores, writes, and only then publishes to the
// event bus.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"qsync/internal/events"
	"qsync/internal/indicator/models"
	"qsync/internal/lifecycle"
	"qsync/internal/platform/metrics"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/audit"
	"qsync/pkg/platform/sentinel"
	"qsync/pkg/platform/tx"
)

const (
	kindProfile    = "profile"
	kindSubmission = "submission"
)

var tracer = otel.Tracer("qsync/indicator")

type ProfileStore interface {
	Create(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	FindForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	List(ctx context.Context) ([]*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
	Delete(ctx context.Context, profileID id.ProfileID) error
}

type SubmissionStore interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	FindForUpdate(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]*models.Submission, error)
	CountByProfile(ctx context.Context, profileID id.ProfileID) (int, error)
	CountByProfiles(ctx context.Context, profileIDs []id.ProfileID) (map[id.ProfileID]int, error)
	Update(ctx context.Context, sub *models.Submission) error
	Delete(ctx context.Context, submissionID id.SubmissionID) error
}

// DependentCounter reports how many downstream records reference a submission.
// No such records exist yet; a nil counter means zero.
type DependentCounter interface {
	CountBySubmission(ctx context.Context, submissionID id.SubmissionID) (int, error)
}

type EventPublisher interface {
	Emit(ctx context.Context, topic events.Topic, payload any) (events.Event, error)
}

type serviceConfig struct {
	logger         *slog.Logger
	auditPublisher audit.Publisher
	metrics        *metrics.Metrics
	tx             tx.Runner
	events         EventPublisher
	dependents     DependentCounter
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(c *serviceConfig) {
		c.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

// WithTxRunner sets the transaction boundary. Defaults to a process-wide lock.
func WithTxRunner(runner tx.Runner) Option {
	return func(c *serviceConfig) {
		c.tx = runner
	}
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(c *serviceConfig) {
		c.events = publisher
	}
}

func WithDependentCounter(counter DependentCounter) Option {
	return func(c *serviceConfig) {
		c.dependents = counter
	}
}

func newConfig(opts []Option) *serviceConfig {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = tx.NewLockRunner()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// publish emits after commit. The write already succeeded, so a failed
// emission is logged and the periodic refetch heals clients.
func (c *serviceConfig) publish(ctx context.Context, topic events.Topic, payload any) {
	if c.events == nil {
		return
	}
	if _, err := c.events.Emit(ctx, topic, payload); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish event", "topic", topic, "error", err)
	}
}

func (c *serviceConfig) observe(kind, op string, start time.Time, err error) {
	c.metrics.ObserveMutation(kind, op, outcome(err), start)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if de, ok := dErrors.As(err); ok {
		return string(de.Code)
	}
	return string(dErrors.CodeInternal)
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
	}
	span.End()
}

// storeErr translates store facts into domain errors.
func storeErr(err error, kind, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, kind+" not found")
	case errors.Is(err, sentinel.ErrStale):
		return dErrors.New(dErrors.CodeConflict, kind+" was modified concurrently")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, kind+" already exists")
	case errors.Is(err, sentinel.ErrHasDependents):
		return lifecycle.DeleteGuard(kind, lifecycle.LockState{Locked: true, Reason: lifecycle.ReasonHasAchievements})
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action+" "+kind)
	}
}

// invariantToValidation surfaces constructor invariants as client errors.
func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func isPrecondition(err error) bool {
	return dErrors.HasCode(err, dErrors.CodePreconditionFailed)
}
