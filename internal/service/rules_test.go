package service

import (
	"context"
	"testing"
	"time"

	"flowdesk/internal/model"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func statusPtr(s model.RequestStatus) *model.RequestStatus { return &s }
func strPtr(s string) *string                              { return &s }
func intPtr(n int) *int                                    { return &n }
func float64Ptr(f float64) *float64                        { return &f }

func seedRule(store *memStore, companyID *string, trigger model.TriggerType, cond model.TriggerConditions) model.WorkflowRule {
	r := model.WorkflowRule{
		ID:          ulid.Make().String(),
		CompanyID:   companyID,
		Name:        "rule-" + string(trigger),
		TriggerType: trigger,
		Conditions:  cond,
		Actions:     []model.Action{{Type: model.ActionNotify, Recipient: "creator"}},
		IsActive:    true,
	}
	store.addRule(r)
	return r
}

func TestMatcherStatusChangeConditions(t *testing.T) {
	store := newMemStore()
	m := NewMatcher(store, zap.NewNop())

	exact := seedRule(store, strPtr("co-1"), model.TriggerStatusChange, model.TriggerConditions{
		FromStatus: statusPtr(model.StatusQueue),
		ToStatus:   statusPtr(model.StatusActive),
	})
	anyMove := seedRule(store, strPtr("co-1"), model.TriggerStatusChange, model.TriggerConditions{})
	toDone := seedRule(store, strPtr("co-1"), model.TriggerStatusChange, model.TriggerConditions{
		ToStatus: statusPtr(model.StatusDone),
	})

	event := model.Event{
		Type:       model.TriggerStatusChange,
		CompanyID:  "co-1",
		RequestID:  "req-1",
		FromStatus: statusPtr(model.StatusQueue),
		ToStatus:   statusPtr(model.StatusActive),
	}
	matched, err := m.Match(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, exact.ID, matched[0].ID)
	assert.Equal(t, anyMove.ID, matched[1].ID)

	event.FromStatus = statusPtr(model.StatusReview)
	event.ToStatus = statusPtr(model.StatusDone)
	matched, err = m.Match(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, anyMove.ID, matched[0].ID)
	assert.Equal(t, toDone.ID, matched[1].ID)
}

func TestMatcherScopesRulesByCompany(t *testing.T) {
	store := newMemStore()
	m := NewMatcher(store, zap.NewNop())

	mine := seedRule(store, strPtr("co-1"), model.TriggerCommentAdded, model.TriggerConditions{})
	seedRule(store, strPtr("co-2"), model.TriggerCommentAdded, model.TriggerConditions{})
	global := seedRule(store, nil, model.TriggerCommentAdded, model.TriggerConditions{})

	matched, err := m.Match(context.Background(), model.Event{
		Type:      model.TriggerCommentAdded,
		CompanyID: "co-1",
		RequestID: "req-1",
	})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, mine.ID, matched[0].ID)
	assert.Equal(t, global.ID, matched[1].ID)
}

func TestMatcherIgnoresInactiveRules(t *testing.T) {
	store := newMemStore()
	m := NewMatcher(store, zap.NewNop())

	rule := seedRule(store, strPtr("co-1"), model.TriggerSLABreach, model.TriggerConditions{})
	store.rules[rule.ID].IsActive = false

	matched, err := m.Match(context.Background(), model.Event{
		Type:      model.TriggerSLABreach,
		CompanyID: "co-1",
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestMatcherDueDateThresholdAndFiringMarker(t *testing.T) {
	store := newMemStore()
	m := NewMatcher(store, zap.NewNop())

	hours := 24
	rule := seedRule(store, strPtr("co-1"), model.TriggerDueDateApproaching, model.TriggerConditions{
		HoursBefore: &hours,
	})

	// Still outside the window.
	matched, err := m.Match(context.Background(), model.Event{
		Type:          model.TriggerDueDateApproaching,
		CompanyID:     "co-1",
		RequestID:     "req-1",
		HoursUntilDue: float64Ptr(30),
	})
	require.NoError(t, err)
	assert.Empty(t, matched)

	// Inside the window.
	inside := model.Event{
		Type:          model.TriggerDueDateApproaching,
		CompanyID:     "co-1",
		RequestID:     "req-1",
		HoursUntilDue: float64Ptr(20),
	}
	matched, err = m.Match(context.Background(), inside)
	require.NoError(t, err)
	require.Len(t, matched, 1)

	// Once fired for this request, later ticks inside the window no
	// longer match.
	require.NoError(t, store.MarkRuleFired(context.Background(), rule.ID, "req-1"))
	matched, err = m.Match(context.Background(), inside)
	require.NoError(t, err)
	assert.Empty(t, matched)

	// A different request still fires.
	other := inside
	other.RequestID = "req-2"
	matched, err = m.Match(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestMatcherCacheInvalidation(t *testing.T) {
	store := newMemStore()
	m := NewMatcher(store, zap.NewNop())

	event := model.Event{
		Type:      model.TriggerCommentAdded,
		CompanyID: "co-1",
		RequestID: "req-1",
	}
	matched, err := m.Match(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, matched)

	// The candidate set is cached, so a direct store write is not
	// visible until the cache is purged.
	seedRule(store, strPtr("co-1"), model.TriggerCommentAdded, model.TriggerConditions{})
	matched, err = m.Match(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, matched)

	m.Invalidate()
	matched, err = m.Match(context.Background(), event)
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestRuleServiceValidation(t *testing.T) {
	store := newMemStore()
	svc := NewRuleService(store, NewMatcher(store, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	cases := []struct {
		name string
		in   RuleInput
	}{
		{"empty name", RuleInput{
			TriggerType: model.TriggerStatusChange,
			Actions:     []model.Action{{Type: model.ActionNotify, Recipient: "creator"}},
		}},
		{"unknown trigger", RuleInput{
			Name:        "r",
			TriggerType: model.TriggerType("on_save"),
			Actions:     []model.Action{{Type: model.ActionNotify, Recipient: "creator"}},
		}},
		{"bad condition status", RuleInput{
			Name:        "r",
			TriggerType: model.TriggerStatusChange,
			Conditions:  model.TriggerConditions{ToStatus: statusPtr(model.RequestStatus("closed"))},
			Actions:     []model.Action{{Type: model.ActionNotify, Recipient: "creator"}},
		}},
		{"non-positive hours", RuleInput{
			Name:        "r",
			TriggerType: model.TriggerDueDateApproaching,
			Conditions:  model.TriggerConditions{HoursBefore: intPtr(0)},
			Actions:     []model.Action{{Type: model.ActionNotify, Recipient: "creator"}},
		}},
		{"empty action chain", RuleInput{
			Name:        "r",
			TriggerType: model.TriggerStatusChange,
		}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRule(ctx, tt.in)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestRuleServiceLifecycle(t *testing.T) {
	store := newMemStore()
	matcher := NewMatcher(store, zap.NewNop())
	svc := NewRuleService(store, matcher, zap.NewNop())
	ctx := context.Background()

	created, err := svc.CreateRule(ctx, RuleInput{
		CompanyID:   strPtr("co-1"),
		Name:        "Notify on completion",
		TriggerType: model.TriggerStatusChange,
		Conditions:  model.TriggerConditions{ToStatus: statusPtr(model.StatusDone)},
		Actions: []model.Action{
			{Type: model.ActionNotify, Recipient: "creator", Message: "{{request.title}} is done"},
		},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	updated, err := svc.UpdateRule(ctx, created.ID, RuleInput{
		CompanyID:   created.CompanyID,
		Name:        "Notify and archive",
		TriggerType: created.TriggerType,
		Conditions:  created.Conditions,
		Actions: []model.Action{
			{Type: model.ActionNotify, Recipient: "creator"},
			{Type: model.ActionChangePriority, Priority: model.PriorityLow},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Notify and archive", updated.Name)
	assert.Len(t, updated.Actions, 2)

	require.NoError(t, svc.SetActive(ctx, created.ID, false))
	got, err := svc.GetRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, svc.DeleteRule(ctx, created.ID))
	_, err = svc.GetRule(ctx, created.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestValidateActions(t *testing.T) {
	valid := []model.Action{
		{Type: model.ActionNotify, Recipient: "assignee", Message: "heads up"},
		{Type: model.ActionSendEmail, Recipient: "creator", Subject: "Update"},
		{Type: model.ActionAssign, AssignTo: "designer-1"},
		{Type: model.ActionChangeStatus, ToStatus: model.StatusReview},
		{Type: model.ActionChangePriority, Priority: model.PriorityHigh},
		{Type: model.ActionWebhook, URL: "https://hooks.example.com/x", Secret: "s"},
	}
	require.NoError(t, ValidateActions(valid))

	invalid := [][]model.Action{
		{{Type: model.ActionNotify}},                           // no recipient
		{{Type: model.ActionSendEmail, Recipient: "creator"}},  // no subject
		{{Type: model.ActionAssign}},                           // no assignee
		{{Type: model.ActionChangeStatus}},                     // no target status
		{{Type: model.ActionWebhook}},                          // no URL
		{{Type: model.ActionType("delete_request")}},           // unknown type
		{},                                                     // empty chain
	}
	for _, actions := range invalid {
		var verr *model.ValidationError
		require.ErrorAs(t, ValidateActions(actions), &verr, "%v", actions)
	}
}

func TestRenderTemplate(t *testing.T) {
	due := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)
	req := &model.Request{
		ID:         "req-9",
		CompanyID:  "co-1",
		Title:      "Homepage banner",
		Status:     model.StatusActive,
		Priority:   model.PriorityHigh,
		AssignedTo: strPtr("designer-1"),
		DueDate:    &due,
	}

	out := RenderTemplate("{{request.title}} ({{request.id}}) is {{request.status}}, assigned to {{request.assignee}}, due {{request.due_date}}", req)
	assert.Equal(t, "Homepage banner (req-9) is active, assigned to designer-1, due 2026-09-01T17:00:00Z", out)

	// Unresolvable fields render empty, not the raw placeholder.
	bare := &model.Request{ID: "req-9", Title: "Homepage banner"}
	assert.Equal(t, "assignee: ", RenderTemplate("assignee: {{request.assignee}}", bare))
}
