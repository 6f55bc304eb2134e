package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"qsync/internal/indicator/models"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/httputil"
)

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	var filter models.SubmissionFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("profileId")); raw != "" {
		profileID, err := id.ParseProfileID(raw)
		if err != nil {
			h.fail(w, r, "invalid profileId filter", err)
			return
		}
		filter.ProfileID = &profileID
	}
	subs, err := h.submissions.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "failed to list submissions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.submissions.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "failed to create submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid submission id", err)
		return
	}
	resp, err := h.submissions.Get(r.Context(), submissionID)
	if err != nil {
		h.fail(w, r, "failed to get submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid submission id", err)
		return
	}
	var req models.UpdateSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.submissions.Update(r.Context(), submissionID, &req)
	if err != nil {
		h.fail(w, r, "failed to update submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTransitionSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid submission id", err)
		return
	}
	var req models.TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.submissions.Transition(r.Context(), submissionID, &req)
	if err != nil {
		h.fail(w, r, "failed to transition submission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid submission id", err)
		return
	}
	if err := h.submissions.Delete(r.Context(), submissionID); err != nil {
		h.fail(w, r, "failed to delete submission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
