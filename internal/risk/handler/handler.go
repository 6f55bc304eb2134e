package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qsync/internal/platform/middleware"
	"qsync/internal/risk/models"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type Service interface {
	Create(ctx context.Context, req *models.CreateRiskRequest) (*models.RiskResponse, error)
	Get(ctx context.Context, riskID id.RiskID) (*models.RiskResponse, error)
	List(ctx context.Context) ([]models.RiskResponse, error)
	Update(ctx context.Context, riskID id.RiskID, req *models.UpdateRiskRequest) (*models.RiskResponse, error)
	Transition(ctx context.Context, riskID id.RiskID, req *models.TransitionRequest) (*models.RiskResponse, error)
	Delete(ctx context.Context, riskID id.RiskID) error
}

// Handler serves /api/risks.
type Handler struct {
	risks  Service
	logger *slog.Logger
}

func New(risks Service, logger *slog.Logger) *Handler {
	return &Handler{risks: risks, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/risks", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/transition", h.handleTransition)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	risks, err := h.risks.List(r.Context())
	if err != nil {
		h.writeError(w, r, "failed to list risks", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, risks)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "invalid create risk request", dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	resp, err := h.risks.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, "failed to create risk", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	riskID, ok := h.riskID(w, r)
	if !ok {
		return
	}
	resp, err := h.risks.Get(r.Context(), riskID)
	if err != nil {
		h.writeError(w, r, "failed to get risk", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	riskID, ok := h.riskID(w, r)
	if !ok {
		return
	}
	var req models.UpdateRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "invalid update risk request", dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	resp, err := h.risks.Update(r.Context(), riskID, &req)
	if err != nil {
		h.writeError(w, r, "failed to update risk", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	riskID, ok := h.riskID(w, r)
	if !ok {
		return
	}
	var req models.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "invalid transition request", dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	resp, err := h.risks.Transition(r.Context(), riskID, &req)
	if err != nil {
		h.writeError(w, r, "failed to transition risk", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	riskID, ok := h.riskID(w, r)
	if !ok {
		return
	}
	if err := h.risks.Delete(r.Context(), riskID); err != nil {
		h.writeError(w, r, "failed to delete risk", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) riskID(w http.ResponseWriter, r *http.Request) (id.RiskID, bool) {
	riskID, err := id.ParseRiskID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "invalid risk id", err)
		return id.RiskID{}, false
	}
	return riskID, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal {
		h.logger.WarnContext(ctx, msg, "request_id", middleware.GetRequestID(ctx), "error", err, "code", string(de.Code))
		httputil.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, msg, "request_id", middleware.GetRequestID(ctx), "error", err)
	httputil.WriteError(w, err)
}
