package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flowdesk/internal/model"
	"flowdesk/internal/plan"
	"flowdesk/internal/sla"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// transitionTable is the only set of legal status moves. done loops
// back to queue on reopen; there is no terminal state.
var transitionTable = map[model.RequestStatus][]model.RequestStatus{
	model.StatusQueue:  {model.StatusActive, model.StatusDone},
	model.StatusActive: {model.StatusReview, model.StatusQueue},
	model.StatusReview: {model.StatusDone, model.StatusActive},
	model.StatusDone:   {model.StatusQueue},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to model.RequestStatus) bool {
	for _, next := range transitionTable[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LifecycleService owns request mutations: creation, status
// transitions, assignment and priority. Every transition passes
// admission control, recomputes SLA status and raises a domain event.
type LifecycleService struct {
	store      Store
	plans      *plan.Registry
	bus        EventBus
	dispatcher AutomationDispatcher
	log        *zap.Logger
	now        func() time.Time
}

func NewLifecycleService(store Store, plans *plan.Registry, bus EventBus, log *zap.Logger) *LifecycleService {
	return &LifecycleService{
		store: store,
		plans: plans,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
}

// SetDispatcher wires the automation dispatcher once the engine or
// job client exists.
func (s *LifecycleService) SetDispatcher(d AutomationDispatcher) {
	s.dispatcher = d
}

type CreateRequestInput struct {
	CompanyID   string          `json:"companyId"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    *model.Priority `json:"priority,omitempty"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	SLAHours    *int            `json:"slaHours,omitempty"`
	CreatedBy   string
}

func (s *LifecycleService) CreateRequest(ctx context.Context, input CreateRequestInput) (*model.Request, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, model.NewValidationError("title", "required")
	}
	if input.SLAHours != nil && *input.SLAHours <= 0 {
		return nil, model.NewValidationError("slaHours", "must be positive")
	}
	priority := model.PriorityNormal
	if input.Priority != nil {
		if !model.ValidPriority(*input.Priority) {
			return nil, model.NewValidationError("priority", "unknown value")
		}
		priority = *input.Priority
	}
	if _, err := s.store.GetCompany(ctx, input.CompanyID); err != nil {
		return nil, fmt.Errorf("failed to resolve company: %w", err)
	}

	now := s.now()
	req := &model.Request{
		ID:          ulid.Make().String(),
		CompanyID:   input.CompanyID,
		Title:       input.Title,
		Description: input.Description,
		Status:      model.StatusQueue,
		Priority:    priority,
		DueDate:     input.DueDate,
		SLAHours:    input.SLAHours,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
	}
	req.SLAStatus = sla.ForRequest(req, now)

	created, err := s.store.CreateRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	_ = s.bus.PublishCompany(created.CompanyID, map[string]interface{}{
		"type":      "request.created",
		"requestId": created.ID,
		"companyId": created.CompanyID,
	})

	return created, nil
}

// GetRequest returns the request with its SLA status recomputed at
// read time, so a stale stored value never leaks out.
func (s *LifecycleService) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	req.SLAStatus = sla.ForRequest(req, s.now())
	return req, nil
}

type TransitionInput struct {
	RequestID string
	To        model.RequestStatus
	Actor     model.Actor
	// Depth counts re-entrant automation hops. Direct API calls pass 0;
	// change_status actions pass the depth of the event that fired them
	// plus one.
	Depth int
}

// Transition validates and applies a status change. The admission
// check, status write, SLA recompute and audit entry commit in one
// transaction; the resulting status_change event is raised only after
// the commit, so automation can never roll the transition back.
func (s *LifecycleService) Transition(ctx context.Context, in TransitionInput) (*model.Request, error) {
	if !model.ValidStatus(in.To) {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", in.To))
	}

	req, err := s.store.GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var updated *model.Request
	var from model.RequestStatus

	apply := func(ctx context.Context) error {
		cur, err := s.store.GetRequestForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		from = cur.Status
		if !CanTransition(cur.Status, in.To) {
			return fmt.Errorf("%s -> %s: %w", cur.Status, in.To, model.ErrInvalidTransition)
		}

		if in.To == model.StatusActive {
			if !in.Actor.CanActivate {
				return fmt.Errorf("activating work requires an elevated role: %w", model.ErrPermissionDenied)
			}
			company, err := s.store.GetCompany(ctx, cur.CompanyID)
			if err != nil {
				return err
			}
			limit := s.plans.EffectiveLimit(company)
			active, err := s.store.CountActiveRequests(ctx, cur.CompanyID)
			if err != nil {
				return err
			}
			if active >= limit {
				return fmt.Errorf("company %s has %d of %d active requests: %w",
					cur.CompanyID, active, limit, model.ErrLimitExceeded)
			}
		}

		next := *cur
		next.Status = in.To
		switch {
		case in.To == model.StatusDone:
			next.CompletedAt = &now
		case cur.Status == model.StatusDone:
			// Reopen clears completion so completed_at holds only
			// while the request is done.
			next.CompletedAt = nil
		}
		next.SLAStatus = sla.ForRequest(&next, now)

		if err := s.store.ApplyTransition(ctx, model.TransitionRecord{
			RequestID:   cur.ID,
			From:        cur.Status,
			To:          in.To,
			Actor:       in.Actor.ID,
			SLAStatus:   next.SLAStatus,
			CompletedAt: next.CompletedAt,
			At:          now,
		}); err != nil {
			return err
		}
		updated = &next
		return nil
	}

	// Activation serializes on the company lock so two concurrent
	// attempts cannot both observe a free slot.
	if in.To == model.StatusActive {
		err = s.store.WithCompanyLock(ctx, req.CompanyID, apply)
	} else {
		err = s.store.WithTx(ctx, apply)
	}
	if err != nil {
		return nil, err
	}

	_ = s.bus.PublishRequest(updated.ID, map[string]interface{}{
		"type":      "request.status_changed",
		"requestId": updated.ID,
		"from":      string(from),
		"to":        string(in.To),
	})
	_ = s.bus.PublishCompany(updated.CompanyID, map[string]interface{}{
		"type":      "request.status_changed",
		"requestId": updated.ID,
		"from":      string(from),
		"to":        string(in.To),
	})

	s.raiseEvent(ctx, model.Event{
		Type:       model.TriggerStatusChange,
		CompanyID:  updated.CompanyID,
		RequestID:  updated.ID,
		FromStatus: &from,
		ToStatus:   &in.To,
		Actor:      in.Actor.ID,
		Depth:      in.Depth,
		At:         now,
	})

	return updated, nil
}

type AssignInput struct {
	RequestID string
	AssignTo  string
	Actor     model.Actor
	Depth     int
}

// Assign sets the assignee and raises an assignment_change event.
func (s *LifecycleService) Assign(ctx context.Context, in AssignInput) error {
	if strings.TrimSpace(in.AssignTo) == "" {
		return model.NewValidationError("assignTo", "required")
	}
	req, err := s.store.GetRequest(ctx, in.RequestID)
	if err != nil {
		return err
	}
	if req.AssignedTo != nil && *req.AssignedTo == in.AssignTo {
		return nil
	}
	if err := s.store.UpdateRequestAssignee(ctx, in.RequestID, &in.AssignTo); err != nil {
		return fmt.Errorf("failed to assign request: %w", err)
	}

	_ = s.bus.PublishUser(in.AssignTo, map[string]interface{}{
		"type":      "request.assigned",
		"requestId": in.RequestID,
	})

	s.raiseEvent(ctx, model.Event{
		Type:      model.TriggerAssignmentChange,
		CompanyID: req.CompanyID,
		RequestID: req.ID,
		Actor:     in.Actor.ID,
		Depth:     in.Depth,
		At:        s.now(),
	})
	return nil
}

// ChangePriority sets the priority. Priority changes raise no
// workflow event.
func (s *LifecycleService) ChangePriority(ctx context.Context, requestID string, priority model.Priority, actor model.Actor) error {
	if !model.ValidPriority(priority) {
		return model.NewValidationError("priority", "unknown value")
	}
	if err := s.store.UpdateRequestPriority(ctx, requestID, priority); err != nil {
		return fmt.Errorf("failed to change priority: %w", err)
	}
	_ = s.bus.PublishRequest(requestID, map[string]interface{}{
		"type":      "request.priority_changed",
		"requestId": requestID,
		"priority":  string(priority),
	})
	return nil
}

// AddComment stores the comment and raises a comment_added event.
func (s *LifecycleService) AddComment(ctx context.Context, requestID, author, body string) (*model.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, model.NewValidationError("body", "required")
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	comment, err := s.store.CreateComment(ctx, &model.Comment{
		ID:        ulid.Make().String(),
		RequestID: requestID,
		Author:    author,
		Body:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.raiseEvent(ctx, model.Event{
		Type:      model.TriggerCommentAdded,
		CompanyID: req.CompanyID,
		RequestID: requestID,
		Actor:     author,
		At:        s.now(),
	})
	return comment, nil
}

// raiseEvent hands the committed event to the automation dispatcher.
// Dispatch failures are logged, never propagated: nothing here may
// undo a committed write.
func (s *LifecycleService) raiseEvent(ctx context.Context, event model.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.log.Error("Failed to dispatch automation event",
			zap.String("type", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
	}
}
