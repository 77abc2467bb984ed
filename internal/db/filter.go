package db

import (
	"fmt"
	"strings"
)

// Op is a filter predicate operator.
type Op string

const (
	OpEq   Op = "eq"
	OpNeq  Op = "neq"
	OpGt   Op = "gt"
	OpGte  Op = "gte"
	OpLt   Op = "lt"
	OpLte  Op = "lte"
	OpLike Op = "like"
	OpIn   Op = "in"
)

var opSQL = map[Op]string{
	OpEq:   "=",
	OpNeq:  "<>",
	OpGt:   ">",
	OpGte:  ">=",
	OpLt:   "<",
	OpLte:  "<=",
	OpLike: "ILIKE",
}

// Predicate is one column condition. For OpIn, Value must be a slice;
// it is passed to ANY($n).
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// Filter builds the WHERE/ORDER/LIMIT tail of a listing query.
// Columns are checked against an allow-list by the caller before SQL
// is generated; Filter itself never interpolates values.
type Filter struct {
	Predicates []Predicate
	OrderBy    string
	Desc       bool
	Limit      int
	Offset     int
}

// SQL renders the filter starting placeholders at $<argOffset+1> and
// returns the clause and its arguments. An empty filter renders an
// empty clause.
func (f Filter) SQL(argOffset int) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(f.Predicates)+2)

	for i, p := range f.Predicates {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		argOffset++
		if p.Op == OpIn {
			fmt.Fprintf(&sb, "%s = ANY($%d)", p.Column, argOffset)
		} else {
			fmt.Fprintf(&sb, "%s %s $%d", p.Column, opSQL[p.Op], argOffset)
		}
		args = append(args, p.Value)
	}

	if f.OrderBy != "" {
		fmt.Fprintf(&sb, " ORDER BY %s", f.OrderBy)
		if f.Desc {
			sb.WriteString(" DESC")
		}
	}
	if f.Limit > 0 {
		argOffset++
		fmt.Fprintf(&sb, " LIMIT $%d", argOffset)
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		argOffset++
		fmt.Fprintf(&sb, " OFFSET $%d", argOffset)
		args = append(args, f.Offset)
	}

	return sb.String(), args
}
