package api

import (
	"encoding/json"
	"net/http"

	"flowdesk/internal/service"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) createRule(w http.ResponseWriter, r *http.Request) {
	var input service.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	rule, err := d.Rules.CreateRule(r.Context(), input)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rule)
}

func (d Dependencies) getRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := d.Rules.GetRule(r.Context(), id)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

func (d Dependencies) listRules(w http.ResponseWriter, r *http.Request) {
	var companyID *string
	if v := r.URL.Query().Get("companyId"); v != "" {
		companyID = &v
	}

	rules, err := d.Rules.ListRules(r.Context(), companyID)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"rules": rules})
}

func (d Dependencies) updateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input service.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	rule, err := d.Rules.UpdateRule(r.Context(), id, input)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

func (d Dependencies) activateRule(w http.ResponseWriter, r *http.Request) {
	d.setRuleActive(w, r, true)
}

func (d Dependencies) deactivateRule(w http.ResponseWriter, r *http.Request) {
	d.setRuleActive(w, r, false)
}

func (d Dependencies) setRuleActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")

	if err := d.Rules.SetActive(r.Context(), id, active); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"isActive": active})
}

func (d Dependencies) deleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := d.Rules.DeleteRule(r.Context(), id); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (d Dependencies) listRuleExecutions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	executions, err := d.Rules.ListExecutions(r.Context(), id,
		parseIntParam(q.Get("limit"), 50), parseIntParam(q.Get("offset"), 0))
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"executions": executions})
}
