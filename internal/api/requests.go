package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flowdesk/internal/auth"
	"flowdesk/internal/db"
	"flowdesk/internal/model"
	"flowdesk/internal/service"

	"github.com/go-chi/chi/v5"
)

type CreateRequestRequest struct {
	CompanyID   string          `json:"companyId" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description,omitempty"`
	Priority    *model.Priority `json:"priority,omitempty"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	SLAHours    *int            `json:"slaHours,omitempty" validate:"omitempty,gt=0"`
}

func (d Dependencies) createRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	result, err := d.Lifecycle.CreateRequest(r.Context(), service.CreateRequestInput{
		CompanyID:   req.CompanyID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		SLAHours:    req.SLAHours,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

func (d Dependencies) getRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := d.Lifecycle.GetRequest(r.Context(), id)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

// archiveRequest soft-deletes: archived requests drop out of listings,
// scans and the active count, but their history stays queryable.
func (d Dependencies) archiveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := auth.ActorFrom(r.Context()); !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	if _, err := d.Lifecycle.GetRequest(r.Context(), id); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}
	if err := d.DB.Queries.ArchiveRequest(r.Context(), id); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listRequests supports equality filters plus due-date ranges over
// the allow-listed columns.
func (d Dependencies) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.Filter{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   parseIntParam(q.Get("limit"), 50),
		Offset:  parseIntParam(q.Get("offset"), 0),
	}
	for param, column := range map[string]string{
		"companyId":  "company_id",
		"priority":   "priority",
		"assignedTo": "assigned_to",
		"slaStatus":  "sla_status",
	} {
		if v := q.Get(param); v != "" {
			filter.Predicates = append(filter.Predicates, db.Predicate{Column: column, Op: db.OpEq, Value: v})
		}
	}
	// status accepts a single value or a comma-separated set.
	if v := q.Get("status"); v != "" {
		if statuses := strings.Split(v, ","); len(statuses) > 1 {
			filter.Predicates = append(filter.Predicates, db.Predicate{Column: "status", Op: db.OpIn, Value: statuses})
		} else {
			filter.Predicates = append(filter.Predicates, db.Predicate{Column: "status", Op: db.OpEq, Value: v})
		}
	}
	if v := q.Get("dueBefore"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_failed", "dueBefore must be RFC3339", d.Log)
			return
		}
		filter.Predicates = append(filter.Predicates, db.Predicate{Column: "due_date", Op: db.OpLte, Value: t})
	}
	if v := q.Get("titleLike"); v != "" {
		filter.Predicates = append(filter.Predicates, db.Predicate{Column: "title", Op: db.OpLike, Value: "%" + v + "%"})
	}
	if sort := q.Get("sort"); sort == "due_date" {
		filter.OrderBy = "due_date"
		filter.Desc = false
	}

	requests, err := d.DB.Queries.ListRequests(r.Context(), filter)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"requests": requests})
}

func (d Dependencies) listRequestEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, err := d.DB.Queries.ListRequestEvents(r.Context(), id)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	type eventView struct {
		From       model.RequestStatus `json:"from"`
		To         model.RequestStatus `json:"to"`
		Actor      string              `json:"actor"`
		OccurredAt time.Time           `json:"occurredAt"`
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{From: e.From, To: e.To, Actor: e.Actor, OccurredAt: e.At})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"events": views})
}

type TransitionRequestBody struct {
	To model.RequestStatus `json:"to" validate:"required"`
}

func (d Dependencies) transitionRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body TransitionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(body); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	result, err := d.Lifecycle.Transition(r.Context(), service.TransitionInput{
		RequestID: id,
		To:        body.To,
		Actor:     actor,
	})
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type AssignRequestBody struct {
	AssignTo string `json:"assignTo" validate:"required"`
}

func (d Dependencies) assignRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body AssignRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(body); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	if err := d.Lifecycle.Assign(r.Context(), service.AssignInput{
		RequestID: id,
		AssignTo:  body.AssignTo,
		Actor:     actor,
	}); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"assignedTo": body.AssignTo})
}

type ChangePriorityBody struct {
	Priority model.Priority `json:"priority" validate:"required"`
}

func (d Dependencies) changePriority(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body ChangePriorityBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	if err := d.Lifecycle.ChangePriority(r.Context(), id, body.Priority, actor); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"priority": string(body.Priority)})
}

type AddCommentBody struct {
	Body string `json:"body" validate:"required"`
}

func (d Dependencies) addComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body AddCommentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(body); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", d.Log)
		return
	}

	comment, err := d.Lifecycle.AddComment(r.Context(), id, actor.ID, body.Body)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(comment)
}

func (d Dependencies) listComments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	comments, err := d.DB.Queries.ListComments(r.Context(), id)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"comments": comments})
}

func parseIntParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
