package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterSQLEmpty(t *testing.T) {
	clause, args := Filter{}.SQL(0)
	assert.Empty(t, clause)
	assert.Empty(t, args)
}

func TestFilterSQLPredicates(t *testing.T) {
	f := Filter{
		Predicates: []Predicate{
			{Column: "company_id", Op: OpEq, Value: "co-1"},
			{Column: "status", Op: OpNeq, Value: "done"},
			{Column: "due_date", Op: OpLte, Value: "2026-09-01"},
			{Column: "title", Op: OpLike, Value: "%banner%"},
		},
	}
	clause, args := f.SQL(0)
	assert.Equal(t, " WHERE company_id = $1 AND status <> $2 AND due_date <= $3 AND title ILIKE $4", clause)
	assert.Equal(t, []any{"co-1", "done", "2026-09-01", "%banner%"}, args)
}

func TestFilterSQLInUsesAny(t *testing.T) {
	f := Filter{
		Predicates: []Predicate{
			{Column: "status", Op: OpIn, Value: []string{"queue", "active"}},
		},
	}
	clause, args := f.SQL(0)
	assert.Equal(t, " WHERE status = ANY($1)", clause)
	assert.Equal(t, []any{[]string{"queue", "active"}}, args)
}

func TestFilterSQLOrderLimitOffset(t *testing.T) {
	f := Filter{
		Predicates: []Predicate{{Column: "company_id", Op: OpEq, Value: "co-1"}},
		OrderBy:    "due_date",
		Desc:       true,
		Limit:      20,
		Offset:     40,
	}
	clause, args := f.SQL(0)
	assert.Equal(t, " WHERE company_id = $1 ORDER BY due_date DESC LIMIT $2 OFFSET $3", clause)
	assert.Equal(t, []any{"co-1", 20, 40}, args)
}

func TestFilterSQLArgOffset(t *testing.T) {
	// Listing queries with fixed leading parameters start the filter
	// placeholders after them.
	f := Filter{
		Predicates: []Predicate{{Column: "status", Op: OpEq, Value: "queue"}},
		Limit:      10,
	}
	clause, args := f.SQL(2)
	assert.Equal(t, " WHERE status = $3 LIMIT $4", clause)
	assert.Equal(t, []any{"queue", 10}, args)
}
