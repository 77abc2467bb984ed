package db

import (
	"testing"

	"flowdesk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRequestsSQLExcludesArchived(t *testing.T) {
	query, args, err := listRequestsSQL(Filter{})
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE archived_at IS NULL")
	assert.Empty(t, args)
}

func TestListRequestsSQLAppendsPredicatesToBase(t *testing.T) {
	query, args, err := listRequestsSQL(Filter{
		Predicates: []Predicate{
			{Column: "company_id", Op: OpEq, Value: "co-1"},
			{Column: "status", Op: OpEq, Value: "active"},
		},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   20,
	})
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE archived_at IS NULL AND company_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3")
	assert.Equal(t, []any{"co-1", "active", 20}, args)
}

func TestListRequestsSQLRejectsUnknownColumns(t *testing.T) {
	_, _, err := listRequestsSQL(Filter{
		Predicates: []Predicate{{Column: "archived_at", Op: OpEq, Value: nil}},
	})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	_, _, err = listRequestsSQL(Filter{OrderBy: "secret"})
	require.ErrorAs(t, err, &verr)
}
