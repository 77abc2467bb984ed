package api

import (
	"encoding/json"
	"net/http"

	"flowdesk/internal/auth"
	"flowdesk/internal/model"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	q := r.URL.Query()
	notifications, err := d.DB.Queries.ListNotifications(r.Context(), actor.ID,
		q.Get("unread") == "true",
		parseIntParam(q.Get("limit"), 50), parseIntParam(q.Get("offset"), 0))
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"notifications": notifications})
}

func (d Dependencies) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	id := chi.URLParam(r, "id")
	if err := d.DB.Queries.MarkNotificationRead(r.Context(), id, actor.ID); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"isRead": true})
}

func (d Dependencies) getPreferences(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	prefs, err := d.DB.Queries.GetPreferences(r.Context(), actor.ID)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prefs)
}

type UpdatePreferencesRequest struct {
	EmailOnStatusChange bool             `json:"emailOnStatusChange"`
	EmailOnComment      bool             `json:"emailOnComment"`
	EmailOnAssignment   bool             `json:"emailOnAssignment"`
	EmailOnDueDate      bool             `json:"emailOnDueDate"`
	EmailOnSLABreach    bool             `json:"emailOnSlaBreach"`
	EmailOnWorkflow     bool             `json:"emailOnWorkflow"`
	Digest              model.DigestMode `json:"digest" validate:"required,oneof=none daily weekly"`
}

func (d Dependencies) updatePreferences(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	prefs := &model.NotificationPreferences{
		UserID:              actor.ID,
		EmailOnStatusChange: req.EmailOnStatusChange,
		EmailOnComment:      req.EmailOnComment,
		EmailOnAssignment:   req.EmailOnAssignment,
		EmailOnDueDate:      req.EmailOnDueDate,
		EmailOnSLABreach:    req.EmailOnSLABreach,
		EmailOnWorkflow:     req.EmailOnWorkflow,
		Digest:              req.Digest,
	}
	if err := d.DB.Queries.UpsertPreferences(r.Context(), prefs); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prefs)
}
