// Package plan maps subscription tiers to concurrency limits.
package plan

import "flowdesk/internal/model"

// Default active-request limits per plan tier.
var defaults = map[model.PlanTier]int{
	model.PlanStandard: 1,
	model.PlanPro:      2,
}

// Registry resolves a company's effective active-request limit.
type Registry struct {
	limits map[model.PlanTier]int
}

// NewRegistry returns a registry with the built-in tier defaults.
func NewRegistry() *Registry {
	limits := make(map[model.PlanTier]int, len(defaults))
	for tier, n := range defaults {
		limits[tier] = n
	}
	return &Registry{limits: limits}
}

// DefaultLimit returns the default limit for a tier. Unknown tiers
// fall back to the standard limit.
func (r *Registry) DefaultLimit(tier model.PlanTier) int {
	if n, ok := r.limits[tier]; ok {
		return n
	}
	return r.limits[model.PlanStandard]
}

// EffectiveLimit returns the company's override when set, otherwise
// the plan default. Always >= 1.
func (r *Registry) EffectiveLimit(c *model.Company) int {
	if c.MaxActiveLimit != nil && *c.MaxActiveLimit >= 1 {
		return *c.MaxActiveLimit
	}
	return r.DefaultLimit(c.PlanTier)
}
