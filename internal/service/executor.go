package service

import (
	"context"
	"fmt"
	"time"

	"flowdesk/internal/model"
	"flowdesk/internal/webhook"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Executor runs a matched rule's action chain. Actions execute in
// declared order and independently: one failure never stops the rest,
// and no failure ever reaches the transition that raised the event.
type Executor struct {
	store     Store
	lifecycle *LifecycleService
	notifier  *Notifier
	webhooks  *webhook.Sender
	log       *zap.Logger
	now       func() time.Time
}

func NewExecutor(store Store, lifecycle *LifecycleService, notifier *Notifier, webhooks *webhook.Sender, log *zap.Logger) *Executor {
	return &Executor{
		store:     store,
		lifecycle: lifecycle,
		notifier:  notifier,
		webhooks:  webhooks,
		log:       log,
		now:       time.Now,
	}
}

// ExecuteRule runs the rule against the event and records one
// WorkflowExecution. The rule's execution count is bumped after every
// attempt regardless of outcome.
func (e *Executor) ExecuteRule(ctx context.Context, rule *model.WorkflowRule, event model.Event) *model.WorkflowExecution {
	now := e.now()
	exec := &model.WorkflowExecution{
		ID:         ulid.Make().String(),
		RuleID:     rule.ID,
		RequestID:  event.RequestID,
		EventType:  event.Type,
		ExecutedAt: now,
	}

	req, err := e.store.GetRequest(ctx, event.RequestID)
	if err != nil {
		exec.Status = model.ExecutionSkipped
		detail := fmt.Sprintf("request unavailable: %v", err)
		exec.ErrorDetail = &detail
	} else {
		attempted := 0
		var firstErr error
		for _, action := range rule.Actions {
			ran, err := e.runAction(ctx, action, req, event)
			if ran {
				attempted++
			}
			if ran && err == nil {
				// Mutating actions change what later alias and
				// template resolution must see.
				if fresh, ferr := e.store.GetRequest(ctx, event.RequestID); ferr == nil {
					req = fresh
				}
			}
			if err != nil {
				actionErr := &model.ActionExecutionError{ActionType: action.Type, Err: err}
				e.log.Warn("Workflow action failed",
					zap.String("rule_id", rule.ID),
					zap.String("request_id", event.RequestID),
					zap.String("action", string(action.Type)),
					zap.Error(err),
				)
				if firstErr == nil {
					firstErr = actionErr
				}
			}
		}
		switch {
		case attempted == 0:
			exec.Status = model.ExecutionSkipped
		case firstErr != nil:
			exec.Status = model.ExecutionFailed
		default:
			exec.Status = model.ExecutionSuccess
		}
		if firstErr != nil {
			detail := firstErr.Error()
			exec.ErrorDetail = &detail
		}
	}

	if err := e.store.InsertExecution(ctx, exec); err != nil {
		e.log.Error("Failed to record workflow execution",
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
	}
	if err := e.store.BumpRuleExecution(ctx, rule.ID, now); err != nil {
		e.log.Error("Failed to bump rule execution count",
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
	}
	if event.Type == model.TriggerDueDateApproaching && exec.Status != model.ExecutionSkipped {
		if err := e.store.MarkRuleFired(ctx, rule.ID, event.RequestID); err != nil {
			e.log.Error("Failed to mark rule fired",
				zap.String("rule_id", rule.ID),
				zap.String("request_id", event.RequestID),
				zap.Error(err),
			)
		}
	}

	return exec
}

// runAction executes one action. The first return value reports
// whether the action was attempted at all; unresolvable parameters
// count as not attempted.
func (e *Executor) runAction(ctx context.Context, action model.Action, req *model.Request, event model.Event) (bool, error) {
	switch action.Type {
	case model.ActionNotify:
		userID, err := resolveRecipient(action.Recipient, req)
		if err != nil {
			return false, err
		}
		title := RenderTemplate(action.Subject, req)
		if title == "" {
			title = fmt.Sprintf("Update on %s", req.Title)
		}
		return true, e.notifier.Dispatch(ctx, NotifyInput{
			UserID:    userID,
			Type:      notificationTypeFor(event.Type),
			Title:     title,
			Body:      RenderTemplate(action.Message, req),
			RequestID: &req.ID,
		})

	case model.ActionSendEmail:
		userID, err := resolveRecipient(action.Recipient, req)
		if err != nil {
			return false, err
		}
		return true, e.notifier.Dispatch(ctx, NotifyInput{
			UserID:    userID,
			Type:      notificationTypeFor(event.Type),
			Title:     RenderTemplate(action.Subject, req),
			Body:      RenderTemplate(action.Message, req),
			RequestID: &req.ID,
			Email:     true,
		})

	case model.ActionAssign:
		if action.AssignTo == "" {
			return false, fmt.Errorf("assign action has no assignee")
		}
		return true, e.lifecycle.Assign(ctx, AssignInput{
			RequestID: req.ID,
			AssignTo:  action.AssignTo,
			Actor:     model.SystemActor,
			Depth:     event.Depth + 1,
		})

	case model.ActionChangeStatus:
		// Re-enters the state machine with full validation, admission
		// control included. Depth+1 bounds re-entrant automation.
		_, err := e.lifecycle.Transition(ctx, TransitionInput{
			RequestID: req.ID,
			To:        action.ToStatus,
			Actor:     model.SystemActor,
			Depth:     event.Depth + 1,
		})
		return true, err

	case model.ActionChangePriority:
		return true, e.lifecycle.ChangePriority(ctx, req.ID, action.Priority, model.SystemActor)

	case model.ActionWebhook:
		if action.URL == "" {
			return false, fmt.Errorf("webhook action has no URL")
		}
		return true, e.webhooks.Send(ctx, action.URL, action.Secret, map[string]interface{}{
			"event":   event,
			"request": req,
		})
	}
	return false, fmt.Errorf("unknown action type %q", action.Type)
}

// notificationTypeFor maps the triggering event onto the notification
// category users opt in or out of, so per-event email preferences
// apply to rule-produced notifications too.
func notificationTypeFor(t model.TriggerType) model.NotificationType {
	switch t {
	case model.TriggerStatusChange:
		return model.NotificationStatusChange
	case model.TriggerCommentAdded:
		return model.NotificationComment
	case model.TriggerAssignmentChange:
		return model.NotificationAssignment
	case model.TriggerDueDateApproaching:
		return model.NotificationDueDate
	case model.TriggerSLABreach:
		return model.NotificationSLABreach
	}
	return model.NotificationWorkflow
}

// resolveRecipient maps the "assignee" and "creator" aliases onto the
// triggering request; anything else is a literal user id.
func resolveRecipient(recipient string, req *model.Request) (string, error) {
	switch recipient {
	case "":
		return "", fmt.Errorf("no recipient configured")
	case "assignee":
		if req.AssignedTo == nil {
			return "", fmt.Errorf("request %s has no assignee", req.ID)
		}
		return *req.AssignedTo, nil
	case "creator":
		return req.CreatedBy, nil
	default:
		return recipient, nil
	}
}
