package service

import (
	"context"

	"flowdesk/internal/model"

	"go.uber.org/zap"
)

// MaxAutomationDepth caps re-entrant automation: a change_status
// action raises a status_change event at Depth+1, and events past the
// cap are not matched, so a rule can never re-trigger itself against
// the same request unboundedly.
const MaxAutomationDepth = 1

// Engine connects the matcher and the executor: one committed domain
// event in, zero or more recorded rule executions out.
type Engine struct {
	matcher  *Matcher
	executor *Executor
	log      *zap.Logger
}

func NewEngine(matcher *Matcher, executor *Executor, log *zap.Logger) *Engine {
	return &Engine{matcher: matcher, executor: executor, log: log}
}

// HandleEvent matches and executes all rules fired by the event.
// Failures are logged per rule; the event's originating transition is
// already committed and is never affected.
func (g *Engine) HandleEvent(ctx context.Context, event model.Event) error {
	if event.Depth > MaxAutomationDepth {
		g.log.Warn("Automation depth cap reached, event not matched",
			zap.String("type", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Int("depth", event.Depth),
		)
		return nil
	}

	matched, err := g.matcher.Match(ctx, event)
	if err != nil {
		return err
	}
	for _, rule := range matched {
		exec := g.executor.ExecuteRule(ctx, rule, event)
		g.log.Info("Workflow rule executed",
			zap.String("rule_id", rule.ID),
			zap.String("request_id", event.RequestID),
			zap.String("status", string(exec.Status)),
		)
	}
	return nil
}

// Dispatch runs automation synchronously, satisfying
// AutomationDispatcher. Production wiring routes through the job
// queue instead so slow actions never block a transition.
func (g *Engine) Dispatch(ctx context.Context, event model.Event) error {
	return g.HandleEvent(ctx, event)
}
