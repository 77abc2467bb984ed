package model

import "time"

// RequestStatus represents a request's position in the pipeline
type RequestStatus string

const (
	StatusQueue  RequestStatus = "queue"
	StatusActive RequestStatus = "active"
	StatusReview RequestStatus = "review"
	StatusDone   RequestStatus = "done"
)

// ValidStatus reports whether s is one of the four pipeline states.
func ValidStatus(s RequestStatus) bool {
	switch s {
	case StatusQueue, StatusActive, StatusReview, StatusDone:
		return true
	}
	return false
}

// Priority represents request priority
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// SLAStatus is the derived traffic-light classification of a request's SLA
type SLAStatus string

const (
	SLAOnTrack   SLAStatus = "on_track"
	SLAAtRisk    SLAStatus = "at_risk"
	SLABreached  SLAStatus = "breached"
	SLACompleted SLAStatus = "completed"
)

// PlanTier represents a subscription plan tier
type PlanTier string

const (
	PlanStandard PlanTier = "standard"
	PlanPro      PlanTier = "pro"
)

// CompanyStatus represents a client company's subscription state
type CompanyStatus string

const (
	CompanyActive  CompanyStatus = "active"
	CompanyPaused  CompanyStatus = "paused"
	CompanyChurned CompanyStatus = "churned"
)

// Company represents a client organization
type Company struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Status         CompanyStatus `json:"status"`
	PlanTier       PlanTier      `json:"planTier"`
	MaxActiveLimit *int          `json:"maxActiveLimit,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Request represents a unit of work moving through the pipeline
type Request struct {
	ID          string        `json:"id"`
	CompanyID   string        `json:"companyId"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      RequestStatus `json:"status"`
	Priority    Priority      `json:"priority"`
	AssignedTo  *string       `json:"assignedTo,omitempty"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	SLAHours    *int          `json:"slaHours,omitempty"`
	SLAStatus   *SLAStatus    `json:"slaStatus,omitempty"`
	// SLABreachedAt marks the first observed breach so the
	// sla_breach event fires once per request.
	SLABreachedAt *time.Time `json:"slaBreachedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedBy     string     `json:"createdBy"`
	ArchivedAt    *time.Time `json:"archivedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Comment represents a note attached to a request
type Comment struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// TriggerType tags the domain event a workflow rule listens to
type TriggerType string

const (
	TriggerStatusChange       TriggerType = "status_change"
	TriggerDueDateApproaching TriggerType = "due_date_approaching"
	TriggerCommentAdded       TriggerType = "comment_added"
	TriggerAssignmentChange   TriggerType = "assignment_change"
	TriggerSLABreach          TriggerType = "sla_breach"
)

func ValidTrigger(t TriggerType) bool {
	switch t {
	case TriggerStatusChange, TriggerDueDateApproaching, TriggerCommentAdded,
		TriggerAssignmentChange, TriggerSLABreach:
		return true
	}
	return false
}

// TriggerConditions is the structured predicate attached to a rule.
// Which fields are meaningful depends on the rule's TriggerType; an
// absent field means "any".
type TriggerConditions struct {
	FromStatus  *RequestStatus `json:"fromStatus,omitempty"`
	ToStatus    *RequestStatus `json:"toStatus,omitempty"`
	HoursBefore *int           `json:"hoursBefore,omitempty"`
}

// ActionType tags one step of a rule's action chain
type ActionType string

const (
	ActionNotify         ActionType = "notify"
	ActionAssign         ActionType = "assign"
	ActionChangeStatus   ActionType = "change_status"
	ActionChangePriority ActionType = "change_priority"
	ActionSendEmail      ActionType = "send_email"
	ActionWebhook        ActionType = "webhook"
)

// Action is one step in a rule's ordered action chain. The parameter
// fields used depend on Type; everything else stays zero.
type Action struct {
	Type ActionType `json:"type"`
	// notify / send_email: recipient is a user id, or one of the
	// aliases "assignee" / "creator" resolved against the request.
	Recipient string `json:"recipient,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message,omitempty"`
	// assign
	AssignTo string `json:"assignTo,omitempty"`
	// change_status
	ToStatus RequestStatus `json:"toStatus,omitempty"`
	// change_priority
	Priority Priority `json:"priority,omitempty"`
	// webhook
	URL    string `json:"url,omitempty"`
	Secret string `json:"secret,omitempty"`
}

// WorkflowRule is a user-defined automation: when a matching event
// occurs, run the action chain in order.
type WorkflowRule struct {
	ID             string            `json:"id"`
	CompanyID      *string           `json:"companyId,omitempty"` // nil = global
	Name           string            `json:"name"`
	TriggerType    TriggerType       `json:"triggerType"`
	Conditions     TriggerConditions `json:"conditions"`
	Actions        []Action          `json:"actions"`
	IsActive       bool              `json:"isActive"`
	ExecutionCount int64             `json:"executionCount"`
	LastExecutedAt *time.Time        `json:"lastExecutedAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ExecutionStatus is the audit outcome of one rule firing
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionSkipped ExecutionStatus = "skipped"
)

// WorkflowExecution is the append-only audit record of one rule firing
type WorkflowExecution struct {
	ID          string          `json:"id"`
	RuleID      string          `json:"ruleId"`
	RequestID   string          `json:"requestId"`
	EventType   TriggerType     `json:"eventType"`
	Status      ExecutionStatus `json:"status"`
	ErrorDetail *string         `json:"errorDetail,omitempty"`
	ExecutedAt  time.Time       `json:"executedAt"`
}

// NotificationType classifies a notification for preference gating
type NotificationType string

const (
	NotificationStatusChange NotificationType = "status_change"
	NotificationComment      NotificationType = "comment"
	NotificationAssignment   NotificationType = "assignment"
	NotificationDueDate      NotificationType = "due_date"
	NotificationSLABreach    NotificationType = "sla_breach"
	NotificationWorkflow     NotificationType = "workflow"
)

// Notification is an in-app notification for one recipient
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	RequestID *string          `json:"requestId,omitempty"`
	IsRead    bool             `json:"isRead"`
	ReadAt    *time.Time       `json:"readAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DigestMode controls how email notifications are delivered
type DigestMode string

const (
	DigestNone   DigestMode = "none" // immediate per-event email
	DigestDaily  DigestMode = "daily"
	DigestWeekly DigestMode = "weekly"
)

// NotificationPreferences gates the email channel per user. In-app
// notifications are always written regardless of these flags.
type NotificationPreferences struct {
	UserID              string     `json:"userId"`
	EmailOnStatusChange bool       `json:"emailOnStatusChange"`
	EmailOnComment      bool       `json:"emailOnComment"`
	EmailOnAssignment   bool       `json:"emailOnAssignment"`
	EmailOnDueDate      bool       `json:"emailOnDueDate"`
	EmailOnSLABreach    bool       `json:"emailOnSlaBreach"`
	EmailOnWorkflow     bool       `json:"emailOnWorkflow"`
	Digest              DigestMode `json:"digest"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// EmailAllowed reports whether the email channel is open for the
// given notification type.
func (p NotificationPreferences) EmailAllowed(t NotificationType) bool {
	switch t {
	case NotificationStatusChange:
		return p.EmailOnStatusChange
	case NotificationComment:
		return p.EmailOnComment
	case NotificationAssignment:
		return p.EmailOnAssignment
	case NotificationDueDate:
		return p.EmailOnDueDate
	case NotificationSLABreach:
		return p.EmailOnSLABreach
	case NotificationWorkflow:
		return p.EmailOnWorkflow
	}
	return false
}

// DigestEntry is one deferred email waiting for a digest flush
type DigestEntry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	RequestID *string    `json:"requestId,omitempty"`
	Mode      DigestMode `json:"mode"`
	CreatedAt time.Time  `json:"createdAt"`
	FlushedAt *time.Time `json:"flushedAt,omitempty"`
}

// TransitionRecord is the audit entry written with every status change
type TransitionRecord struct {
	RequestID   string
	From        RequestStatus
	To          RequestStatus
	Actor       string
	SLAStatus   *SLAStatus
	CompletedAt *time.Time
	At          time.Time
}

// Actor identifies who is invoking a mutation and what they may do.
// CanActivate is the capability required to move work into active.
type Actor struct {
	ID          string
	CompanyID   string
	CanActivate bool
}

// SystemActor is used by automation; rules are admin-configured so
// their actions carry the activation capability, admission control
// still applies.
var SystemActor = Actor{ID: "automation", CanActivate: true}

// Event is a domain event handed to the workflow rule matcher. Depth
// counts re-entrant automation hops; events caused by a rule's own
// change_status action carry Depth+1 of the event that fired the rule.
type Event struct {
	Type          TriggerType    `json:"type"`
	CompanyID     string         `json:"companyId"`
	RequestID     string         `json:"requestId"`
	FromStatus    *RequestStatus `json:"fromStatus,omitempty"`
	ToStatus      *RequestStatus `json:"toStatus,omitempty"`
	HoursUntilDue *float64       `json:"hoursUntilDue,omitempty"`
	Actor         string         `json:"actor,omitempty"`
	Depth         int            `json:"depth"`
	At            time.Time      `json:"at"`
}
