package service

import (
	"context"
	"fmt"
	"time"

	"flowdesk/internal/model"
	"flowdesk/internal/sla"

	"go.uber.org/zap"
)

// Scanner is the scheduled tick over open requests with due dates: it
// raises due_date_approaching events, keeps stored SLA status fresh,
// and raises sla_breach exactly once per request.
type Scanner struct {
	store      Store
	dispatcher AutomationDispatcher
	log        *zap.Logger
	now        func() time.Time
}

func NewScanner(store Store, dispatcher AutomationDispatcher, log *zap.Logger) *Scanner {
	return &Scanner{store: store, dispatcher: dispatcher, log: log, now: time.Now}
}

func (s *Scanner) Scan(ctx context.Context) error {
	requests, err := s.store.ListOpenDueRequests(ctx)
	if err != nil {
		return fmt.Errorf("failed to list due requests: %w", err)
	}

	now := s.now()
	for _, req := range requests {
		hoursUntil := req.DueDate.Sub(now).Hours()
		if err := s.dispatcher.Dispatch(ctx, model.Event{
			Type:          model.TriggerDueDateApproaching,
			CompanyID:     req.CompanyID,
			RequestID:     req.ID,
			HoursUntilDue: &hoursUntil,
			At:            now,
		}); err != nil {
			s.log.Error("Failed to dispatch due-date event",
				zap.String("request_id", req.ID),
				zap.Error(err),
			)
		}

		status := sla.ForRequest(req, now)
		if err := s.store.UpdateRequestSLAStatus(ctx, req.ID, status); err != nil {
			s.log.Error("Failed to refresh SLA status",
				zap.String("request_id", req.ID),
				zap.Error(err),
			)
			continue
		}
		if status == nil || *status != model.SLABreached {
			continue
		}
		first, err := s.store.MarkSLABreached(ctx, req.ID, now)
		if err != nil {
			s.log.Error("Failed to mark SLA breach",
				zap.String("request_id", req.ID),
				zap.Error(err),
			)
			continue
		}
		if !first {
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, model.Event{
			Type:      model.TriggerSLABreach,
			CompanyID: req.CompanyID,
			RequestID: req.ID,
			At:        now,
		}); err != nil {
			s.log.Error("Failed to dispatch SLA breach event",
				zap.String("request_id", req.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
