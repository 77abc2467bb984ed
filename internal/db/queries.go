package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowdesk/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps database queries
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

func wrapNotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return err
}

// Company queries

const companyColumns = "id, name, status, plan_tier, max_active_limit, created_at, updated_at"

func scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.PlanTier, &c.MaxActiveLimit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *Queries) CreateCompany(ctx context.Context, c *model.Company) (*model.Company, error) {
	row := q.conn(ctx).QueryRow(ctx,
		`INSERT INTO companies (id, name, status, plan_tier, max_active_limit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+companyColumns,
		c.ID, c.Name, c.Status, c.PlanTier, c.MaxActiveLimit,
	)
	return scanCompany(row)
}

func (q *Queries) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	row := q.conn(ctx).QueryRow(ctx,
		"SELECT "+companyColumns+" FROM companies WHERE id = $1", id)
	c, err := scanCompany(row)
	return c, wrapNotFound(err, "company")
}

func (q *Queries) UpdateCompanyPlan(ctx context.Context, id string, tier model.PlanTier, maxActiveLimit *int) (*model.Company, error) {
	row := q.conn(ctx).QueryRow(ctx,
		`UPDATE companies SET plan_tier = $2, max_active_limit = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+companyColumns,
		id, tier, maxActiveLimit,
	)
	c, err := scanCompany(row)
	return c, wrapNotFound(err, "company")
}

func (q *Queries) UpdateCompanyStatus(ctx context.Context, id string, status model.CompanyStatus) error {
	tag, err := q.conn(ctx).Exec(ctx,
		"UPDATE companies SET status = $2, updated_at = NOW() WHERE id = $1",
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("company: %w", model.ErrNotFound)
	}
	return nil
}

// Request queries

const requestColumns = `id, company_id, title, description, status, priority,
	assigned_to, due_date, sla_hours, sla_status, sla_breached_at,
	completed_at, created_by, archived_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*model.Request, error) {
	var r model.Request
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.Title, &r.Description, &r.Status, &r.Priority,
		&r.AssignedTo, &r.DueDate, &r.SLAHours, &r.SLAStatus, &r.SLABreachedAt,
		&r.CompletedAt, &r.CreatedBy, &r.ArchivedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *Queries) CreateRequest(ctx context.Context, r *model.Request) (*model.Request, error) {
	row := q.conn(ctx).QueryRow(ctx,
		`INSERT INTO requests (
			id, company_id, title, description, status, priority,
			assigned_to, due_date, sla_hours, sla_status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+requestColumns,
		r.ID, r.CompanyID, r.Title, r.Description, r.Status, r.Priority,
		r.AssignedTo, r.DueDate, r.SLAHours, r.SLAStatus, r.CreatedBy,
	)
	return scanRequest(row)
}

func (q *Queries) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	row := q.conn(ctx).QueryRow(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = $1", id)
	r, err := scanRequest(row)
	return r, wrapNotFound(err, "request")
}

// GetRequestForUpdate locks the request row for the enclosing
// transaction.
func (q *Queries) GetRequestForUpdate(ctx context.Context, id string) (*model.Request, error) {
	row := q.conn(ctx).QueryRow(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = $1 FOR UPDATE", id)
	r, err := scanRequest(row)
	return r, wrapNotFound(err, "request")
}

// requestFilterColumns is the allow-list for ListRequests predicates.
var requestFilterColumns = map[string]bool{
	"company_id": true, "status": true, "priority": true,
	"assigned_to": true, "created_by": true, "sla_status": true,
	"due_date": true, "created_at": true, "title": true,
}

// listRequestsSQL composes the listing query. Archived requests are
// always excluded; the caller's filter narrows within the live set.
func listRequestsSQL(f Filter) (string, []any, error) {
	for _, p := range f.Predicates {
		if !requestFilterColumns[p.Column] {
			return "", nil, model.NewValidationError(p.Column, "unknown filter column")
		}
	}
	if f.OrderBy != "" && !requestFilterColumns[f.OrderBy] {
		return "", nil, model.NewValidationError(f.OrderBy, "unknown sort column")
	}
	clause, args := f.SQL(0)
	query := "SELECT " + requestColumns + " FROM requests WHERE archived_at IS NULL"
	if rest, ok := strings.CutPrefix(clause, " WHERE "); ok {
		query += " AND " + rest
	} else {
		query += clause
	}
	return query, args, nil
}

func (q *Queries) ListRequests(ctx context.Context, f Filter) ([]*model.Request, error) {
	query, args, err := listRequestsSQL(f)
	if err != nil {
		return nil, err
	}
	rows, err := q.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*model.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (q *Queries) CountActiveRequests(ctx context.Context, companyID string) (int, error) {
	var n int
	err := q.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM requests WHERE company_id = $1 AND status = $2 AND archived_at IS NULL",
		companyID, model.StatusActive,
	).Scan(&n)
	return n, err
}

// ApplyTransition writes the new status together with its derived
// fields and the audit entry. Must run inside a transaction carried
// by ctx so the two statements commit atomically.
func (q *Queries) ApplyTransition(ctx context.Context, rec model.TransitionRecord) error {
	tag, err := q.conn(ctx).Exec(ctx,
		`UPDATE requests SET status = $2, sla_status = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $1`,
		rec.RequestID, rec.To, rec.SLAStatus, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("request: %w", model.ErrNotFound)
	}
	_, err = q.conn(ctx).Exec(ctx,
		`INSERT INTO request_events (request_id, from_status, to_status, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.RequestID, rec.From, rec.To, rec.Actor, rec.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

func (q *Queries) ListRequestEvents(ctx context.Context, requestID string) ([]model.TransitionRecord, error) {
	rows, err := q.conn(ctx).Query(ctx,
		`SELECT request_id, from_status, to_status, actor, occurred_at
		FROM request_events WHERE request_id = $1 ORDER BY occurred_at ASC`,
		requestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.TransitionRecord
	for rows.Next() {
		var rec model.TransitionRecord
		if err := rows.Scan(&rec.RequestID, &rec.From, &rec.To, &rec.Actor, &rec.At); err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}

func (q *Queries) UpdateRequestAssignee(ctx context.Context, id string, assignee *string) error {
	tag, err := q.conn(ctx).Exec(ctx,
		"UPDATE requests SET assigned_to = $2, updated_at = NOW() WHERE id = $1",
		id, assignee,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("request: %w", model.ErrNotFound)
	}
	return nil
}

func (q *Queries) UpdateRequestPriority(ctx context.Context, id string, priority model.Priority) error {
	tag, err := q.conn(ctx).Exec(ctx,
		"UPDATE requests SET priority = $2, updated_at = NOW() WHERE id = $1",
		id, priority,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("request: %w", model.ErrNotFound)
	}
	return nil
}

func (q *Queries) UpdateRequestSLAStatus(ctx context.Context, id string, status *model.SLAStatus) error {
	_, err := q.conn(ctx).Exec(ctx,
		"UPDATE requests SET sla_status = $2, updated_at = NOW() WHERE id = $1",
		id, status,
	)
	return err
}

// MarkSLABreached stamps the first observed breach. Returns false
// when the request was already marked, so the sla_breach event fires
// once per request.
func (q *Queries) MarkSLABreached(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := q.conn(ctx).Exec(ctx,
		"UPDATE requests SET sla_breached_at = $2, updated_at = NOW() WHERE id = $1 AND sla_breached_at IS NULL",
		id, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListOpenDueRequests returns unarchived, uncompleted requests that
// carry a due date, for the scheduled due-date scan.
func (q *Queries) ListOpenDueRequests(ctx context.Context) ([]*model.Request, error) {
	rows, err := q.conn(ctx).Query(ctx,
		`SELECT `+requestColumns+` FROM requests
		WHERE status <> $1 AND due_date IS NOT NULL AND archived_at IS NULL
		ORDER BY due_date ASC`,
		model.StatusDone,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (q *Queries) ArchiveRequest(ctx context.Context, id string) error {
	_, err := q.conn(ctx).Exec(ctx,
		"UPDATE requests SET archived_at = NOW(), updated_at = NOW() WHERE id = $1", id)
	return err
}

// Comment queries

func (q *Queries) CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	row := q.conn(ctx).QueryRow(ctx,
		`INSERT INTO comments (id, request_id, author, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, request_id, author, body, created_at`,
		c.ID, c.RequestID, c.Author, c.Body,
	)
	var out model.Comment
	if err := row.Scan(&out.ID, &out.RequestID, &out.Author, &out.Body, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (q *Queries) ListComments(ctx context.Context, requestID string) ([]model.Comment, error) {
	rows, err := q.conn(ctx).Query(ctx,
		`SELECT id, request_id, author, body, created_at
		FROM comments WHERE request_id = $1 ORDER BY created_at ASC`,
		requestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.RequestID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Workflow rule queries

const ruleColumns = `id, company_id, name, trigger_type, conditions, actions,
	is_active, execution_count, last_executed_at, created_at, updated_at`

func scanRule(row pgx.Row) (*model.WorkflowRule, error) {
	var r model.WorkflowRule
	var conditions, actions []byte
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.Name, &r.TriggerType, &conditions, &actions,
		&r.IsActive, &r.ExecutionCount, &r.LastExecutedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode rule conditions: %w", err)
	}
	if err := json.Unmarshal(actions, &r.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode rule actions: %w", err)
	}
	return &r, nil
}

func encodeRule(r *model.WorkflowRule) (conditions, actions []byte, err error) {
	conditions, err = json.Marshal(r.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode rule conditions: %w", err)
	}
	actions, err = json.Marshal(r.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode rule actions: %w", err)
	}
	return conditions, actions, nil
}

func (q *Queries) CreateRule(ctx context.Context, r *model.WorkflowRule) (*model.WorkflowRule, error) {
	conditions, actions, err := encodeRule(r)
	if err != nil {
		return nil, err
	}
	row := q.conn(ctx).QueryRow(ctx,
		`INSERT INTO workflow_rules (id, company_id, name, trigger_type, conditions, actions, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+ruleColumns,
		r.ID, r.CompanyID, r.Name, r.TriggerType, conditions, actions, r.IsActive,
	)
	return scanRule(row)
}

func (q *Queries) GetRule(ctx context.Context, id string) (*model.WorkflowRule, error) {
	row := q.conn(ctx).QueryRow(ctx,
		"SELECT "+ruleColumns+" FROM workflow_rules WHERE id = $1", id)
	r, err := scanRule(row)
	if err != nil {
		return nil, wrapNotFound(err, "workflow rule")
	}
	return r, nil
}

func (q *Queries) UpdateRule(ctx context.Context, r *model.WorkflowRule) (*model.WorkflowRule, error) {
	conditions, actions, err := encodeRule(r)
	if err != nil {
		return nil, err
	}
	row := q.conn(ctx).QueryRow(ctx,
		`UPDATE workflow_rules
		SET name = $2, trigger_type = $3, conditions = $4, actions = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+ruleColumns,
		r.ID, r.Name, r.TriggerType, conditions, actions, r.IsActive,
	)
	out, err := scanRule(row)
	if err != nil {
		return nil, wrapNotFound(err, "workflow rule")
	}
	return out, nil
}

func (q *Queries) SetRuleActive(ctx context.Context, id string, active bool) error {
	tag, err := q.conn(ctx).Exec(ctx,
		"UPDATE workflow_rules SET is_active = $2, updated_at = NOW() WHERE id = $1",
		id, active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow rule: %w", model.ErrNotFound)
	}
	return nil
}

func (q *Queries) DeleteRule(ctx context.Context, id string) error {
	_, err := q.conn(ctx).Exec(ctx, "DELETE FROM workflow_rules WHERE id = $1", id)
	return err
}

func (q *Queries) ListRules(ctx context.Context, companyID *string) ([]*model.WorkflowRule, error) {
	var rows pgx.Rows
	var err error
	if companyID != nil {
		rows, err = q.conn(ctx).Query(ctx,
			"SELECT "+ruleColumns+" FROM workflow_rules WHERE company_id = $1 OR company_id IS NULL ORDER BY created_at ASC",
			*companyID,
		)
	} else {
		rows, err = q.conn(ctx).Query(ctx,
			"SELECT "+ruleColumns+" FROM workflow_rules ORDER BY created_at ASC")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*model.WorkflowRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListActiveRules returns active rules scoped to the company plus
// global rules, filtered by trigger type. Candidate set for the
// matcher.
func (q *Queries) ListActiveRules(ctx context.Context, companyID string, trigger model.TriggerType) ([]*model.WorkflowRule, error) {
	rows, err := q.conn(ctx).Query(ctx,
		`SELECT `+ruleColumns+` FROM workflow_rules
		WHERE is_active = TRUE AND trigger_type = $2
		AND (company_id = $1 OR company_id IS NULL)
		ORDER BY created_at ASC`,
		companyID, trigger,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*model.WorkflowRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// BumpRuleExecution increments execution_count and stamps
// last_executed_at. Called after every attempt regardless of outcome.
func (q *Queries) BumpRuleExecution(ctx context.Context, id string, at time.Time) error {
	_, err := q.conn(ctx).Exec(ctx,
		"UPDATE workflow_rules SET execution_count = execution_count + 1, last_executed_at = $2 WHERE id = $1",
		id, at,
	)
	return err
}

// Workflow execution queries

func (q *Queries) InsertExecution(ctx context.Context, e *model.WorkflowExecution) error {
	_, err := q.conn(ctx).Exec(ctx,
		`INSERT INTO workflow_executions (id, rule_id, request_id, event_type, status, error_detail, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.RuleID, e.RequestID, e.EventType, e.Status, e.ErrorDetail, e.ExecutedAt,
	)
	return err
}

func (q *Queries) ListExecutionsByRule(ctx context.Context, ruleID string, limit, offset int) ([]model.WorkflowExecution, error) {
	rows, err := q.conn(ctx).Query(ctx,
		`SELECT id, rule_id, request_id, event_type, status, error_detail, executed_at
		FROM workflow_executions WHERE rule_id = $1
		ORDER BY executed_at DESC LIMIT $2 OFFSET $3`,
		ruleID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := make([]model.WorkflowExecution, 0)
	for rows.Next() {
		var e model.WorkflowExecution
		err := rows.Scan(&e.ID, &e.RuleID, &e.RequestID, &e.EventType, &e.Status, &e.ErrorDetail, &e.ExecutedAt)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// Rule firing markers: one row per (rule, request) pair, written the
// first time a due_date_approaching rule fires so a tick never
// re-fires the same rule for the same request.

func (q *Queries) HasRuleFired(ctx context.Context, ruleID, requestID string) (bool, error) {
	var exists bool
	err := q.conn(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM rule_firings WHERE rule_id = $1 AND request_id = $2)",
		ruleID, requestID,
	).Scan(&exists)
	return exists, err
}

func (q *Queries) MarkRuleFired(ctx context.Context, ruleID, requestID string) error {
	_, err := q.conn(ctx).Exec(ctx,
		`INSERT INTO rule_firings (rule_id, request_id, fired_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (rule_id, request_id) DO NOTHING`,
		ruleID, requestID,
	)
	return err
}

// Notification queries

func (q *Queries) InsertNotification(ctx context.Context, n *model.Notification) error {
	_, err := q.conn(ctx).Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, body, request_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.RequestID,
	)
	return err
}

func (q *Queries) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	query := `SELECT id, user_id, type, title, body, request_id, is_read, read_at, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT $2 OFFSET $3"

	rows, err := q.conn(ctx).Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.RequestID, &n.IsRead, &n.ReadAt, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (q *Queries) MarkNotificationRead(ctx context.Context, id, userID string) error {
	tag, err := q.conn(ctx).Exec(ctx,
		"UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE id = $1 AND user_id = $2",
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification: %w", model.ErrNotFound)
	}
	return nil
}

// Notification preference queries

const prefColumns = `user_id, email_on_status_change, email_on_comment, email_on_assignment,
	email_on_due_date, email_on_sla_breach, email_on_workflow, digest, updated_at`

// GetPreferences returns the stored preferences, or the defaults
// (every email channel open, no digest) when none exist.
func (q *Queries) GetPreferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	var p model.NotificationPreferences
	err := q.conn(ctx).QueryRow(ctx,
		"SELECT "+prefColumns+" FROM notification_preferences WHERE user_id = $1", userID,
	).Scan(
		&p.UserID, &p.EmailOnStatusChange, &p.EmailOnComment, &p.EmailOnAssignment,
		&p.EmailOnDueDate, &p.EmailOnSLABreach, &p.EmailOnWorkflow, &p.Digest, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultPreferences is what a user gets before saving anything.
func DefaultPreferences(userID string) *model.NotificationPreferences {
	return &model.NotificationPreferences{
		UserID:              userID,
		EmailOnStatusChange: true,
		EmailOnComment:      true,
		EmailOnAssignment:   true,
		EmailOnDueDate:      true,
		EmailOnSLABreach:    true,
		EmailOnWorkflow:     true,
		Digest:              model.DigestNone,
	}
}

func (q *Queries) UpsertPreferences(ctx context.Context, p *model.NotificationPreferences) error {
	_, err := q.conn(ctx).Exec(ctx,
		`INSERT INTO notification_preferences (
			user_id, email_on_status_change, email_on_comment, email_on_assignment,
			email_on_due_date, email_on_sla_breach, email_on_workflow, digest
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			email_on_status_change = EXCLUDED.email_on_status_change,
			email_on_comment = EXCLUDED.email_on_comment,
			email_on_assignment = EXCLUDED.email_on_assignment,
			email_on_due_date = EXCLUDED.email_on_due_date,
			email_on_sla_breach = EXCLUDED.email_on_sla_breach,
			email_on_workflow = EXCLUDED.email_on_workflow,
			digest = EXCLUDED.digest,
			updated_at = NOW()`,
		p.UserID, p.EmailOnStatusChange, p.EmailOnComment, p.EmailOnAssignment,
		p.EmailOnDueDate, p.EmailOnSLABreach, p.EmailOnWorkflow, p.Digest,
	)
	return err
}

// Digest queue queries

func (q *Queries) EnqueueDigest(ctx context.Context, e *model.DigestEntry) error {
	_, err := q.conn(ctx).Exec(ctx,
		`INSERT INTO digest_queue (id, user_id, subject, body, request_id, mode)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.Subject, e.Body, e.RequestID, e.Mode,
	)
	return err
}

func (q *Queries) ListPendingDigests(ctx context.Context, mode model.DigestMode) ([]model.DigestEntry, error) {
	rows, err := q.conn(ctx).Query(ctx,
		`SELECT id, user_id, subject, body, request_id, mode, created_at, flushed_at
		FROM digest_queue
		WHERE mode = $1 AND flushed_at IS NULL
		ORDER BY user_id, created_at ASC`,
		mode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.DigestEntry, 0)
	for rows.Next() {
		var e model.DigestEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.Subject, &e.Body, &e.RequestID, &e.Mode, &e.CreatedAt, &e.FlushedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) MarkDigestsFlushed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.conn(ctx).Exec(ctx,
		"UPDATE digest_queue SET flushed_at = $2 WHERE id = ANY($1)",
		ids, at,
	)
	return err
}
