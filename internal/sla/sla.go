// Package sla derives a request's SLA status from its timing fields.
package sla

import (
	"time"

	"flowdesk/internal/model"
)

// Thresholds are percentages of the SLA window, inclusive.
const (
	atRiskPercent   = 75
	breachedPercent = 100
)

// Input carries everything Compute needs. Compute is deterministic
// and idempotent for the same Input.
type Input struct {
	CreatedAt   time.Time
	SLAHours    *int
	DueDate     *time.Time
	CompletedAt *time.Time
	Now         time.Time
}

// Compute returns the SLA status for a request, or nil when no SLA is
// attached (no due date and not completed against one).
//
// Completed requests are terminal: breached when completed after the
// due date, completed otherwise. Open requests are classified by how
// much of the SLA window has elapsed: >=100% or past due => breached,
// >=75% => at risk, else on track.
func Compute(in Input) *model.SLAStatus {
	if in.CompletedAt != nil {
		if in.DueDate != nil && in.CompletedAt.After(*in.DueDate) {
			return statusPtr(model.SLABreached)
		}
		return statusPtr(model.SLACompleted)
	}

	if in.DueDate == nil {
		return nil
	}

	if in.Now.After(*in.DueDate) {
		return statusPtr(model.SLABreached)
	}

	window := in.DueDate.Sub(in.CreatedAt)
	if in.SLAHours != nil && *in.SLAHours > 0 {
		window = time.Duration(*in.SLAHours) * time.Hour
	}
	if window <= 0 {
		return statusPtr(model.SLABreached)
	}

	elapsed := in.Now.Sub(in.CreatedAt)
	percent := float64(elapsed) / float64(window) * 100

	switch {
	case percent >= breachedPercent:
		return statusPtr(model.SLABreached)
	case percent >= atRiskPercent:
		return statusPtr(model.SLAAtRisk)
	default:
		return statusPtr(model.SLAOnTrack)
	}
}

// ForRequest computes the SLA status from a request's own fields.
func ForRequest(r *model.Request, now time.Time) *model.SLAStatus {
	return Compute(Input{
		CreatedAt:   r.CreatedAt,
		SLAHours:    r.SLAHours,
		DueDate:     r.DueDate,
		CompletedAt: r.CompletedAt,
		Now:         now,
	})
}

func statusPtr(s model.SLAStatus) *model.SLAStatus { return &s }
