package service

import (
	"context"
	"time"

	"flowdesk/internal/model"
)

// Store is the persistence collaborator for the lifecycle core,
// implemented by db.Queries. Methods called through a ctx produced by
// WithTx or WithCompanyLock join that transaction.
type Store interface {
	// Requests
	CreateRequest(ctx context.Context, r *model.Request) (*model.Request, error)
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	GetRequestForUpdate(ctx context.Context, id string) (*model.Request, error)
	CountActiveRequests(ctx context.Context, companyID string) (int, error)
	ApplyTransition(ctx context.Context, rec model.TransitionRecord) error
	UpdateRequestAssignee(ctx context.Context, id string, assignee *string) error
	UpdateRequestPriority(ctx context.Context, id string, priority model.Priority) error
	UpdateRequestSLAStatus(ctx context.Context, id string, status *model.SLAStatus) error
	MarkSLABreached(ctx context.Context, id string, at time.Time) (bool, error)
	ListOpenDueRequests(ctx context.Context) ([]*model.Request, error)

	// Companies
	GetCompany(ctx context.Context, id string) (*model.Company, error)

	// Comments
	CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error)

	// Workflow rules
	CreateRule(ctx context.Context, r *model.WorkflowRule) (*model.WorkflowRule, error)
	GetRule(ctx context.Context, id string) (*model.WorkflowRule, error)
	UpdateRule(ctx context.Context, r *model.WorkflowRule) (*model.WorkflowRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error
	DeleteRule(ctx context.Context, id string) error
	ListRules(ctx context.Context, companyID *string) ([]*model.WorkflowRule, error)
	ListActiveRules(ctx context.Context, companyID string, trigger model.TriggerType) ([]*model.WorkflowRule, error)
	HasRuleFired(ctx context.Context, ruleID, requestID string) (bool, error)
	MarkRuleFired(ctx context.Context, ruleID, requestID string) error
	BumpRuleExecution(ctx context.Context, ruleID string, at time.Time) error
	InsertExecution(ctx context.Context, e *model.WorkflowExecution) error
	ListExecutionsByRule(ctx context.Context, ruleID string, limit, offset int) ([]model.WorkflowExecution, error)

	// Notifications
	InsertNotification(ctx context.Context, n *model.Notification) error
	GetPreferences(ctx context.Context, userID string) (*model.NotificationPreferences, error)
	EnqueueDigest(ctx context.Context, e *model.DigestEntry) error
	ListPendingDigests(ctx context.Context, mode model.DigestMode) ([]model.DigestEntry, error)
	MarkDigestsFlushed(ctx context.Context, ids []string, at time.Time) error

	// Transactions
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	WithCompanyLock(ctx context.Context, companyID string, fn func(ctx context.Context) error) error
}

// EventBus publishes domain events for external consumers.
type EventBus interface {
	PublishCompany(companyID string, event map[string]interface{}) error
	PublishRequest(requestID string, event map[string]interface{}) error
	PublishUser(userID string, event map[string]interface{}) error
}

// AutomationDispatcher hands a committed domain event to the workflow
// engine. The production wiring enqueues a background task so slow
// actions never block the transition; the engine itself implements
// this interface for synchronous execution.
type AutomationDispatcher interface {
	Dispatch(ctx context.Context, event model.Event) error
}
