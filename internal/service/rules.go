package service

import (
	"context"
	"fmt"
	"strings"

	"flowdesk/internal/model"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Matcher selects the active rules whose trigger conditions agree
// with a domain event. Candidate sets (company + global rules per
// trigger type) are cached; the cache is purged on any rule mutation.
type Matcher struct {
	store Store
	cache *lru.Cache[string, []*model.WorkflowRule]
	log   *zap.Logger
}

func NewMatcher(store Store, log *zap.Logger) *Matcher {
	cache, _ := lru.New[string, []*model.WorkflowRule](256)
	return &Matcher{store: store, cache: cache, log: log}
}

// Invalidate drops all cached candidate sets.
func (m *Matcher) Invalidate() {
	m.cache.Purge()
}

func (m *Matcher) candidates(ctx context.Context, companyID string, trigger model.TriggerType) ([]*model.WorkflowRule, error) {
	key := companyID + "|" + string(trigger)
	if rules, ok := m.cache.Get(key); ok {
		return rules, nil
	}
	rules, err := m.store.ListActiveRules(ctx, companyID, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate rules: %w", err)
	}
	m.cache.Add(key, rules)
	return rules, nil
}

// Match returns every rule the event fires, in creation order. Rules
// match independently; all matches are executed.
func (m *Matcher) Match(ctx context.Context, event model.Event) ([]*model.WorkflowRule, error) {
	rules, err := m.candidates(ctx, event.CompanyID, event.Type)
	if err != nil {
		return nil, err
	}
	matched := make([]*model.WorkflowRule, 0, len(rules))
	for _, rule := range rules {
		ok, err := m.ruleMatches(ctx, rule, event)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

func (m *Matcher) ruleMatches(ctx context.Context, rule *model.WorkflowRule, event model.Event) (bool, error) {
	switch event.Type {
	case model.TriggerStatusChange:
		// An absent condition field means "any"; a present one must
		// equal the event exactly.
		c := rule.Conditions
		if c.FromStatus != nil && (event.FromStatus == nil || *c.FromStatus != *event.FromStatus) {
			return false, nil
		}
		if c.ToStatus != nil && (event.ToStatus == nil || *c.ToStatus != *event.ToStatus) {
			return false, nil
		}
		return true, nil

	case model.TriggerDueDateApproaching:
		if event.HoursUntilDue == nil {
			return false, nil
		}
		if rule.Conditions.HoursBefore != nil && *event.HoursUntilDue > float64(*rule.Conditions.HoursBefore) {
			return false, nil
		}
		// Fire once per (rule, request): the threshold crossing is
		// observed on every tick after it happens.
		fired, err := m.store.HasRuleFired(ctx, rule.ID, event.RequestID)
		if err != nil {
			return false, err
		}
		return !fired, nil

	case model.TriggerCommentAdded, model.TriggerAssignmentChange, model.TriggerSLABreach:
		return true, nil
	}
	return false, nil
}

// RuleService manages workflow rule configuration.
type RuleService struct {
	store   Store
	matcher *Matcher
	log     *zap.Logger
}

func NewRuleService(store Store, matcher *Matcher, log *zap.Logger) *RuleService {
	return &RuleService{store: store, matcher: matcher, log: log}
}

type RuleInput struct {
	CompanyID  *string                 `json:"companyId,omitempty"`
	Name       string                  `json:"name"`
	TriggerType model.TriggerType      `json:"triggerType"`
	Conditions model.TriggerConditions `json:"conditions"`
	Actions    []model.Action          `json:"actions"`
	IsActive   *bool                   `json:"isActive,omitempty"`
}

func validateRuleInput(in RuleInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return model.NewValidationError("name", "required")
	}
	if !model.ValidTrigger(in.TriggerType) {
		return model.NewValidationError("triggerType", fmt.Sprintf("unknown trigger %q", in.TriggerType))
	}
	if in.Conditions.FromStatus != nil && !model.ValidStatus(*in.Conditions.FromStatus) {
		return model.NewValidationError("conditions.fromStatus", "unknown status")
	}
	if in.Conditions.ToStatus != nil && !model.ValidStatus(*in.Conditions.ToStatus) {
		return model.NewValidationError("conditions.toStatus", "unknown status")
	}
	if in.Conditions.HoursBefore != nil && *in.Conditions.HoursBefore <= 0 {
		return model.NewValidationError("conditions.hoursBefore", "must be positive")
	}
	return ValidateActions(in.Actions)
}

func (s *RuleService) CreateRule(ctx context.Context, in RuleInput) (*model.WorkflowRule, error) {
	if err := validateRuleInput(in); err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	rule, err := s.store.CreateRule(ctx, &model.WorkflowRule{
		ID:          ulid.Make().String(),
		CompanyID:   in.CompanyID,
		Name:        in.Name,
		TriggerType: in.TriggerType,
		Conditions:  in.Conditions,
		Actions:     in.Actions,
		IsActive:    active,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	s.matcher.Invalidate()
	return rule, nil
}

func (s *RuleService) GetRule(ctx context.Context, id string) (*model.WorkflowRule, error) {
	return s.store.GetRule(ctx, id)
}

func (s *RuleService) UpdateRule(ctx context.Context, id string, in RuleInput) (*model.WorkflowRule, error) {
	if err := validateRuleInput(in); err != nil {
		return nil, err
	}
	existing, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = in.Name
	existing.TriggerType = in.TriggerType
	existing.Conditions = in.Conditions
	existing.Actions = in.Actions
	if in.IsActive != nil {
		existing.IsActive = *in.IsActive
	}
	updated, err := s.store.UpdateRule(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	s.matcher.Invalidate()
	return updated, nil
}

func (s *RuleService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.store.SetRuleActive(ctx, id, active); err != nil {
		return err
	}
	s.matcher.Invalidate()
	return nil
}

func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	s.matcher.Invalidate()
	return nil
}

func (s *RuleService) ListRules(ctx context.Context, companyID *string) ([]*model.WorkflowRule, error) {
	return s.store.ListRules(ctx, companyID)
}

func (s *RuleService) ListExecutions(ctx context.Context, ruleID string, limit, offset int) ([]model.WorkflowExecution, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListExecutionsByRule(ctx, ruleID, limit, offset)
}
