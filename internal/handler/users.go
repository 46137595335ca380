package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vibecodingbible/edge-guard/internal/store"
)

func profileKey(userID string) string {
	return "profile:" + userID
}

func accessKey(userID, resourceType, resourceID string) string {
	return "access:" + userID + ":" + resourceType + ":" + resourceID
}

func progressKey(userID string) string {
	return "progress:" + userID
}

type profileUpdate struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Plan        *string `json:"plan"`
}

type progressUpdate struct {
	CurrentWorkshop  string   `json:"current_workshop"`
	CompletedLessons []string `json:"completed_lessons"`
}

type accessResponse struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Allowed      bool   `json:"allowed"`
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	ctx := context.WithoutCancel(r.Context())

	v, err := h.cache.Fetch(profileKey(userID), h.cfg.ProfileTTL, func() (any, error) {
		return h.repo.Profile(ctx, userID)
	})
	if err != nil {
		h.repositoryError(w, "profile", userID, err)
		return
	}

	profile, ok := v.(store.Profile)
	if !ok {
		h.cache.Delete(profileKey(userID))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeData(w, profile)
}

func (h *Handler) putProfile(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var body profileUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.repo.Profile(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.repositoryError(w, "profile", userID, err)
		return
	}
	profile.ID = userID

	if body.Email != nil {
		profile.Email = strings.TrimSpace(*body.Email)
	}
	if body.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*body.DisplayName)
	}
	if body.Plan != nil {
		profile.Plan = strings.TrimSpace(*body.Plan)
	}

	saved, err := h.repo.UpdateProfile(r.Context(), profile)
	if err != nil {
		h.repositoryError(w, "profile", userID, err)
		return
	}

	h.cache.Delete(profileKey(userID))

	h.writeData(w, saved)
}

func (h *Handler) getAccess(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	resourceType := r.PathValue("resourceType")
	resourceID := r.PathValue("resourceId")
	ctx := context.WithoutCancel(r.Context())

	v, err := h.cache.Fetch(accessKey(userID, resourceType, resourceID), h.cfg.AccessTTL, func() (any, error) {
		return h.repo.HasAccess(ctx, userID, resourceType, resourceID)
	})
	if err != nil {
		h.repositoryError(w, "access", userID, err)
		return
	}

	allowed, _ := v.(bool)

	h.writeData(w, accessResponse{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Allowed:      allowed,
	})
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	ctx := context.WithoutCancel(r.Context())

	v, err := h.cache.Fetch(progressKey(userID), h.cfg.ProgressTTL, func() (any, error) {
		return h.repo.Progress(ctx, userID)
	})
	if err != nil {
		h.repositoryError(w, "progress", userID, err)
		return
	}

	progress, ok := v.(store.Progress)
	if !ok {
		h.cache.Delete(progressKey(userID))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeData(w, progress)
}

func (h *Handler) putProgress(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var body progressUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.repo.SaveProgress(r.Context(), store.Progress{
		UserID:           userID,
		CurrentWorkshop:  strings.TrimSpace(body.CurrentWorkshop),
		CompletedLessons: body.CompletedLessons,
	})
	if err != nil {
		h.repositoryError(w, "progress", userID, err)
		return
	}

	h.cache.Delete(progressKey(userID))

	h.writeData(w, saved)
}

func (h *Handler) repositoryError(w http.ResponseWriter, resource, userID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Not found")
		return
	}

	h.logger.Error("repository call failed", "resource", resource, "user_id", userID, "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal server error")
}
