package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qsync/internal/indicator/models"
	"qsync/internal/platform/middleware"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks ProfileService,SubmissionService

type ProfileService interface {
	Create(ctx context.Context, req *models.CreateProfileRequest) (*models.ProfileResponse, error)
	Get(ctx context.Context, profileID id.ProfileID) (*models.ProfileResponse, error)
	List(ctx context.Context) ([]models.ProfileResponse, error)
	Update(ctx context.Context, profileID id.ProfileID, req *models.UpdateProfileRequest) (*models.ProfileResponse, error)
	Transition(ctx context.Context, profileID id.ProfileID, req *models.TransitionRequest) (*models.ProfileResponse, error)
	Delete(ctx context.Context, profileID id.ProfileID) error
}

type SubmissionService interface {
	Create(ctx context.Context, req *models.CreateSubmissionRequest) (*models.SubmissionResponse, error)
	Get(ctx context.Context, submissionID id.SubmissionID) (*models.SubmissionResponse, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionResponse, error)
	Update(ctx context.Context, submissionID id.SubmissionID, req *models.UpdateSubmissionRequest) (*models.SubmissionResponse, error)
	Transition(ctx context.Context, submissionID id.SubmissionID, req *models.TransitionRequest) (*models.SubmissionResponse, error)
	Delete(ctx context.Context, submissionID id.SubmissionID) error
}

// Handler serves the indicator profile and submission endpoints.
type Handler struct {
	profiles    ProfileService
	submissions SubmissionService
	logger      *slog.Logger
}

func New(profiles ProfileService, submissions SubmissionService, logger *slog.Logger) *Handler {
	return &Handler{profiles: profiles, submissions: submissions, logger: logger}
}

// Register mounts the routes on r. Cross-cutting middleware is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/profiles", func(r chi.Router) {
		r.Get("/", h.handleListProfiles)
		r.Post("/", h.handleCreateProfile)
		r.Get("/{id}", h.handleGetProfile)
		r.Put("/{id}", h.handleUpdateProfile)
		r.Delete("/{id}", h.handleDeleteProfile)
		r.Post("/{id}/transition", h.handleTransitionProfile)
	})
	r.Route("/api/submissions", func(r chi.Router) {
		r.Get("/", h.handleListSubmissions)
		r.Post("/", h.handleCreateSubmission)
		r.Get("/{id}", h.handleGetSubmission)
		r.Put("/{id}", h.handleUpdateSubmission)
		r.Delete("/{id}", h.handleDeleteSubmission)
		r.Post("/{id}/transition", h.handleTransitionSubmission)
	})
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

// fail logs unexpected errors before writing the response. Client errors are
// logged at warn.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal {
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err, "code", string(de.Code))
	} else {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
	}
	httputil.WriteError(w, err)
}
