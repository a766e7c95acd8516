package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

// TransactionTotals sums income and expense over the filtered rows.
func (r *SQLiteRepository) TransactionTotals(ctx context.Context, f core.TransactionFilter) (income, expense core.Money, err error) {
	q := transactionQuery(`
		COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount_cents ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount_cents ELSE 0 END), 0)`, f)
	query, args := q.build()

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&income.Cents, &expense.Cents); err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("query totals: %w", err)
	}
	return income, expense, nil
}

// CategoryTotals groups the filtered rows by category and type.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, f core.TransactionFilter) ([]core.CategoryTotal, error) {
	q := transactionQuery(`c.name, c.icon, t.type, SUM(t.amount_cents), COUNT(*)`, f)
	q.groupBy = "t.category_id, t.type"
	q.orderBy = "SUM(t.amount_cents) DESC, c.name"
	query, args := q.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var (
			ct  core.CategoryTotal
			typ string
		)
		if err := rows.Scan(&ct.Category, &ct.Icon, &typ, &ct.Total.Cents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Type = core.TxType(typ)
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

var periodExpr = map[core.Granularity]string{
	core.GranularityDay:   "t.date",
	core.GranularityMonth: "strftime('%Y-%m', t.date)",
}

// PeriodTotals buckets the filtered rows by day or month.
func (r *SQLiteRepository) PeriodTotals(ctx context.Context, f core.TransactionFilter, g core.Granularity) ([]core.PeriodTotal, error) {
	expr, ok := periodExpr[g]
	if !ok {
		return nil, fmt.Errorf("unsupported granularity %q", g)
	}
	q := transactionQuery(expr+` AS period,
		COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount_cents ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount_cents ELSE 0 END), 0)`, f)
	q.groupBy = "period"
	q.orderBy = "period"
	query, args := q.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query period totals: %w", err)
	}
	defer rows.Close()

	var totals []core.PeriodTotal
	for rows.Next() {
		var pt core.PeriodTotal
		if err := rows.Scan(&pt.Period, &pt.Income.Cents, &pt.Expense.Cents); err != nil {
			return nil, fmt.Errorf("scan period total: %w", err)
		}
		totals = append(totals, pt)
	}
	return totals, rows.Err()
}
