package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

const transactionColumns = `t.id, t.user_id, u.username, t.amount_cents, t.type, t.category_id,
	c.name, c.icon, t.description, t.date, t.attachment_filename, t.attachment_path,
	t.created_at, t.updated_at`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		typ, date            string
		createdAt, updatedAt string
		attName, attPath     sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Username, &t.Amount.Cents, &typ, &t.CategoryID,
		&t.Category, &t.CategoryIcon, &t.Description, &date, &attName, &attPath,
		&createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TxType(typ)
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d has invalid date %q: %w", t.ID, date, err)
	}
	t.AttachmentFilename = attName.String
	t.AttachmentPath = attPath.String
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// ListTransactions returns the transactions matching f, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	q := transactionQuery(transactionColumns, f)
	q.orderBy = "t.date DESC, t.id DESC"
	query, args := q.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	q := transactionQuery(transactionColumns, core.TransactionFilter{}).and("t.id = ?", id)
	query, args := q.build()
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return t, nil
}

// GetTransactionByAttachment finds the transaction owning a stored file.
func (r *SQLiteRepository) GetTransactionByAttachment(ctx context.Context, storageKey string) (core.Transaction, error) {
	q := transactionQuery(transactionColumns, core.TransactionFilter{}).and("t.attachment_path = ?", storageKey)
	query, args := q.build()
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.Transaction{}, notFound(err, "attachment")
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	now := formatTime(time.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions
		   (user_id, amount_cents, type, category_id, description, date,
		    attachment_filename, attachment_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Amount.Cents, string(t.Type), t.CategoryID, t.Description, t.Date.String(),
		nullString(t.AttachmentFilename), nullString(t.AttachmentPath), now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, core.ErrUnknownCategory
		}
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved",
		"id", id,
		"user_id", t.UserID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)

	return id, nil
}

// UpdateTransaction overwrites every mutable column. Owner and creation time
// never change.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET amount_cents = ?, type = ?, category_id = ?, description = ?, date = ?,
		     attachment_filename = ?, attachment_path = ?, updated_at = ?
		 WHERE id = ?`,
		t.Amount.Cents, string(t.Type), t.CategoryID, t.Description, t.Date.String(),
		nullString(t.AttachmentFilename), nullString(t.AttachmentPath), formatTime(time.Now()),
		t.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.ErrUnknownCategory
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}
