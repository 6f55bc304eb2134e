package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"qsync/internal/indicator/models"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/httputil"
)

func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list profiles", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profiles)
}

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.profiles.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "failed to create profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid profile id", err)
		return
	}
	resp, err := h.profiles.Get(r.Context(), profileID)
	if err != nil {
		h.fail(w, r, "failed to get profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid profile id", err)
		return
	}
	var req models.UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.profiles.Update(r.Context(), profileID, &req)
	if err != nil {
		h.fail(w, r, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTransitionProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid profile id", err)
		return
	}
	var req models.TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.profiles.Transition(r.Context(), profileID, &req)
	if err != nil {
		h.fail(w, r, "failed to transition profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "invalid profile id", err)
		return
	}
	if err := h.profiles.Delete(r.Context(), profileID); err != nil {
		h.fail(w, r, "failed to delete profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
