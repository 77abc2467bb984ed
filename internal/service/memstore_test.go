package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowdesk/internal/mailer"
	"flowdesk/internal/model"
)

// memStore is an in-memory Store for tests. WithCompanyLock serializes
// on a per-company mutex, mirroring the row-lock semantics of the
// Postgres implementation.
type memStore struct {
	mu            sync.Mutex
	companyLocks  map[string]*sync.Mutex
	companies     map[string]*model.Company
	requests      map[string]*model.Request
	comments      []model.Comment
	rules         map[string]*model.WorkflowRule
	ruleOrder     []string
	executions    []model.WorkflowExecution
	firings       map[string]bool
	notifications []model.Notification
	prefs         map[string]*model.NotificationPreferences
	digests       []model.DigestEntry
	transitions   []model.TransitionRecord
}

func newMemStore() *memStore {
	return &memStore{
		companyLocks: make(map[string]*sync.Mutex),
		companies:    make(map[string]*model.Company),
		requests:     make(map[string]*model.Request),
		rules:        make(map[string]*model.WorkflowRule),
		firings:      make(map[string]bool),
		prefs:        make(map[string]*model.NotificationPreferences),
	}
}

func (s *memStore) addCompany(c model.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = &c
	s.companyLocks[c.ID] = &sync.Mutex{}
}

func (s *memStore) addRequest(r model.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = &r
}

func (s *memStore) addRule(r model.WorkflowRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = &r
	s.ruleOrder = append(s.ruleOrder, r.ID)
}

func (s *memStore) CreateRequest(ctx context.Context, r *model.Request) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.requests[r.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request: %w", model.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) GetRequestForUpdate(ctx context.Context, id string) (*model.Request, error) {
	return s.GetRequest(ctx, id)
}

func (s *memStore) CountActiveRequests(ctx context.Context, companyID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.CompanyID == companyID && r.Status == model.StatusActive && r.ArchivedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ApplyTransition(ctx context.Context, rec model.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[rec.RequestID]
	if !ok {
		return fmt.Errorf("request: %w", model.ErrNotFound)
	}
	r.Status = rec.To
	r.SLAStatus = rec.SLAStatus
	r.CompletedAt = rec.CompletedAt
	s.transitions = append(s.transitions, rec)
	return nil
}

func (s *memStore) UpdateRequestAssignee(ctx context.Context, id string, assignee *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request: %w", model.ErrNotFound)
	}
	r.AssignedTo = assignee
	return nil
}

func (s *memStore) UpdateRequestPriority(ctx context.Context, id string, priority model.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request: %w", model.ErrNotFound)
	}
	r.Priority = priority
	return nil
}

func (s *memStore) UpdateRequestSLAStatus(ctx context.Context, id string, status *model.SLAStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[id]; ok {
		r.SLAStatus = status
	}
	return nil
}

func (s *memStore) MarkSLABreached(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.SLABreachedAt != nil {
		return false, nil
	}
	r.SLABreachedAt = &at
	return true, nil
}

func (s *memStore) ListOpenDueRequests(ctx context.Context) ([]*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Request
	for _, r := range s.requests {
		if r.Status != model.StatusDone && r.DueDate != nil && r.ArchivedAt == nil {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, fmt.Errorf("company: %w", model.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, *c)
	cp := *c
	return &cp, nil
}

func (s *memStore) CreateRule(ctx context.Context, r *model.WorkflowRule) (*model.WorkflowRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	s.ruleOrder = append(s.ruleOrder, r.ID)
	out := cp
	return &out, nil
}

func (s *memStore) GetRule(ctx context.Context, id string) (*model.WorkflowRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("workflow rule: %w", model.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) UpdateRule(ctx context.Context, r *model.WorkflowRule) (*model.WorkflowRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memStore) SetRuleActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("workflow rule: %w", model.ErrNotFound)
	}
	r.IsActive = active
	return nil
}

func (s *memStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func (s *memStore) ListRules(ctx context.Context, companyID *string) ([]*model.WorkflowRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.WorkflowRule
	for _, id := range s.ruleOrder {
		r, ok := s.rules[id]
		if !ok {
			continue
		}
		if companyID != nil && r.CompanyID != nil && *r.CompanyID != *companyID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) ListActiveRules(ctx context.Context, companyID string, trigger model.TriggerType) ([]*model.WorkflowRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.WorkflowRule
	for _, id := range s.ruleOrder {
		r, ok := s.rules[id]
		if !ok || !r.IsActive || r.TriggerType != trigger {
			continue
		}
		if r.CompanyID != nil && *r.CompanyID != companyID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) HasRuleFired(ctx context.Context, ruleID, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firings[ruleID+"|"+requestID], nil
}

func (s *memStore) MarkRuleFired(ctx context.Context, ruleID, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firings[ruleID+"|"+requestID] = true
	return nil
}

func (s *memStore) BumpRuleExecution(ctx context.Context, ruleID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rules[ruleID]; ok {
		r.ExecutionCount++
		r.LastExecutedAt = &at
	}
	return nil
}

func (s *memStore) InsertExecution(ctx context.Context, e *model.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, *e)
	return nil
}

func (s *memStore) ListExecutionsByRule(ctx context.Context, ruleID string, limit, offset int) ([]model.WorkflowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WorkflowExecution
	for _, e := range s.executions {
		if e.RuleID == ruleID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) InsertNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *memStore) GetPreferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return &model.NotificationPreferences{
		UserID:              userID,
		EmailOnStatusChange: true,
		EmailOnComment:      true,
		EmailOnAssignment:   true,
		EmailOnDueDate:      true,
		EmailOnSLABreach:    true,
		EmailOnWorkflow:     true,
		Digest:              model.DigestNone,
	}, nil
}

func (s *memStore) EnqueueDigest(ctx context.Context, e *model.DigestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digests = append(s.digests, *e)
	return nil
}

func (s *memStore) ListPendingDigests(ctx context.Context, mode model.DigestMode) ([]model.DigestEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DigestEntry
	for _, e := range s.digests {
		if e.Mode == mode && e.FlushedAt == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) MarkDigestsFlushed(ctx context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	for i := range s.digests {
		if idSet[s.digests[i].ID] {
			flushed := at
			s.digests[i].FlushedAt = &flushed
		}
	}
	return nil
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *memStore) WithCompanyLock(ctx context.Context, companyID string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	lock, ok := s.companyLocks[companyID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("company: %w", model.ErrNotFound)
	}
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

var _ Store = (*memStore)(nil)

// noopBus discards published events.
type noopBus struct{}

func (noopBus) PublishCompany(string, map[string]interface{}) error { return nil }
func (noopBus) PublishRequest(string, map[string]interface{}) error { return nil }
func (noopBus) PublishUser(string, map[string]interface{}) error    { return nil }

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return &model.DeliveryError{Channel: "email", Err: fmt.Errorf("smtp unavailable")}
	}
	m.sent = append(m.sent, msg)
	return nil
}
