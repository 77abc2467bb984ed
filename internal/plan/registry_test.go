package plan

import (
	"testing"

	"flowdesk/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLimit(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 1, r.DefaultLimit(model.PlanStandard))
	assert.Equal(t, 2, r.DefaultLimit(model.PlanPro))
	assert.Equal(t, 1, r.DefaultLimit(model.PlanTier("enterprise")))
}

func TestEffectiveLimit(t *testing.T) {
	r := NewRegistry()

	c := &model.Company{PlanTier: model.PlanPro}
	assert.Equal(t, 2, r.EffectiveLimit(c))

	three := 3
	c.MaxActiveLimit = &three
	assert.Equal(t, 3, r.EffectiveLimit(c))

	// Overrides below one are ignored.
	zero := 0
	c.MaxActiveLimit = &zero
	assert.Equal(t, 2, r.EffectiveLimit(c))
}
