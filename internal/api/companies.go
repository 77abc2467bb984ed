package api

import (
	"encoding/json"
	"net/http"

	"flowdesk/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

type CreateCompanyRequest struct {
	Name           string         `json:"name" validate:"required"`
	PlanTier       model.PlanTier `json:"planTier" validate:"required,oneof=standard pro"`
	MaxActiveLimit *int           `json:"maxActiveLimit,omitempty" validate:"omitempty,gte=1"`
}

func (d Dependencies) createCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	company, err := d.DB.Queries.CreateCompany(r.Context(), &model.Company{
		ID:             ulid.Make().String(),
		Name:           req.Name,
		Status:         model.CompanyActive,
		PlanTier:       req.PlanTier,
		MaxActiveLimit: req.MaxActiveLimit,
	})
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(company)
}

func (d Dependencies) getCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	company, err := d.DB.Queries.GetCompany(r.Context(), id)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(company)
}

type UpdatePlanRequest struct {
	PlanTier       model.PlanTier `json:"planTier" validate:"required,oneof=standard pro"`
	MaxActiveLimit *int           `json:"maxActiveLimit,omitempty" validate:"omitempty,gte=1"`
}

// updateCompanyPlan is how plan changes from the external billing
// sync land in this core.
func (d Dependencies) updateCompanyPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	company, err := d.DB.Queries.UpdateCompanyPlan(r.Context(), id, req.PlanTier, req.MaxActiveLimit)
	if err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	_ = d.Bus.PublishCompany(id, map[string]interface{}{
		"type":     "company.plan_changed",
		"planTier": string(req.PlanTier),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(company)
}

type UpdateCompanyStatusRequest struct {
	Status model.CompanyStatus `json:"status" validate:"required,oneof=active paused churned"`
}

func (d Dependencies) updateCompanyStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateCompanyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), d.Log)
		return
	}

	if err := d.DB.Queries.UpdateCompanyStatus(r.Context(), id, req.Status); err != nil {
		WriteDomainError(w, err, d.Log)
		return
	}

	_ = d.Bus.PublishCompany(id, map[string]interface{}{
		"type":   "company.status_changed",
		"status": string(req.Status),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": string(req.Status)})
}
