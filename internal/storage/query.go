package storage

import (
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// predicate is one WHERE condition with its bound values.
type predicate struct {
	clause string
	args   []any
}

// selectQuery composes a SELECT from typed parts. Only clause templates
// written in this package end up in the SQL text; every value is bound.
type selectQuery struct {
	columns string
	from    string
	where   []predicate
	groupBy string
	orderBy string
}

func (q *selectQuery) and(clause string, args ...any) *selectQuery {
	q.where = append(q.where, predicate{clause: clause, args: args})
	return q
}

func (q *selectQuery) build() (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	sb.WriteString(q.columns)
	sb.WriteString(" FROM ")
	sb.WriteString(q.from)
	for i, p := range q.where {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(p.clause)
		args = append(args, p.args...)
	}
	if q.groupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(q.groupBy)
	}
	if q.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.orderBy)
	}
	return sb.String(), args
}

const transactionFrom = `transactions t
	JOIN users u ON u.id = t.user_id
	JOIN categories c ON c.id = t.category_id`

// transactionQuery applies a filter to the joined transaction view. Every
// aggregate and listing goes through here so they always agree on the row set.
func transactionQuery(columns string, f core.TransactionFilter) *selectQuery {
	q := &selectQuery{columns: columns, from: transactionFrom}
	if f.OwnerID != 0 {
		q.and("t.user_id = ?", f.OwnerID)
	}
	if f.Type != "" {
		q.and("t.type = ?", string(f.Type))
	}
	if f.Category != "" {
		if id, err := strconv.ParseInt(f.Category, 10, 64); err == nil {
			q.and("(t.category_id = ? OR c.name = ?)", id, f.Category)
		} else {
			q.and("c.name = ?", f.Category)
		}
	}
	if !f.StartDate.IsZero() {
		q.and("t.date >= ?", f.StartDate.String())
	}
	if !f.EndDate.IsZero() {
		q.and("t.date <= ?", f.EndDate.String())
	}
	return q
}
