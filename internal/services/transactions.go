package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"fintrack/internal/amqp"
	"fintrack/internal/attachments"
	"fintrack/internal/core"
	"fintrack/internal/export/sheets"
	"fintrack/internal/storage"

	"golang.org/x/sync/errgroup"
)

// EventPublisher receives a notification after every committed change.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// SheetsExporter pushes a transaction set to an external spreadsheet.
type SheetsExporter interface {
	Export(ctx context.Context, txs []core.Transaction) (sheets.Result, error)
}

// Upload is a file received with a transaction.
type Upload struct {
	Filename string
	Body     io.Reader
}

// TransactionInput holds raw create parameters as received from the client.
type TransactionInput struct {
	Amount      string
	Type        string
	Category    string
	Date        string
	Description string
}

// TransactionPatch lists the fields a partial update changes. Nil means keep.
type TransactionPatch struct {
	Amount      *string
	Type        *string
	Category    *string
	Date        *string
	Description *string
}

// TransactionService orchestrates transactions across SQLite, the attachment
// directory and the optional event publisher.
type TransactionService struct {
	storage   *storage.SQLiteRepository
	files     *attachments.Store
	publisher EventPublisher
	exporter  SheetsExporter
}

func NewTransactionService(storage *storage.SQLiteRepository, files *attachments.Store, publisher EventPublisher, exporter SheetsExporter) *TransactionService {
	return &TransactionService{
		storage:   storage,
		files:     files,
		publisher: publisher,
		exporter:  exporter,
	}
}

// List returns the transactions matching f that the actor may see.
func (s *TransactionService) List(ctx context.Context, actor core.Actor, f core.TransactionFilter) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, f.ScopedTo(actor))
}

func (s *TransactionService) Get(ctx context.Context, actor core.Actor, id int64) (core.Transaction, error) {
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if !actor.CanAccess(t.UserID) {
		return core.Transaction{}, core.ErrForbidden
	}
	return t, nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", core.ErrMissingField, field)
	}
	return nil
}

// resolveCategory looks a category up by id or name and checks it fits typ.
func (s *TransactionService) resolveCategory(ctx context.Context, ref string, typ core.TxType) (core.Category, error) {
	c, err := s.storage.FindCategory(ctx, ref)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Category{}, fmt.Errorf("%w: %s", core.ErrUnknownCategory, ref)
		}
		return core.Category{}, err
	}
	if c.Type != typ {
		return core.Category{}, fmt.Errorf("%w: %s is an %s category", core.ErrCategoryMismatch, c.Name, c.Type)
	}
	return c, nil
}

// Add validates in and records a new transaction owned by the actor. When
// upload is set the file is stored first and removed again if the insert fails.
func (s *TransactionService) Add(ctx context.Context, actor core.Actor, in TransactionInput, upload *Upload) (core.Transaction, error) {
	for _, f := range []struct{ name, value string }{
		{"amount", in.Amount}, {"type", in.Type}, {"category", in.Category}, {"date", in.Date},
	} {
		if err := required(f.name, f.value); err != nil {
			return core.Transaction{}, err
		}
	}

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTxType(in.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	if typ == core.Income && !actor.IsAdmin() {
		return core.Transaction{}, core.ErrIncomeNotAllowed
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	cat, err := s.resolveCategory(ctx, in.Category, typ)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		UserID:      actor.UserID,
		Amount:      amount,
		Type:        typ,
		CategoryID:  cat.ID,
		Description: strings.TrimSpace(in.Description),
		Date:        date,
	}

	if upload != nil {
		att, err := s.files.Save(upload.Filename, upload.Body)
		if err != nil {
			return core.Transaction{}, err
		}
		t.AttachmentFilename = att.DisplayName
		t.AttachmentPath = att.StorageKey
	}

	id, err := s.storage.CreateTransaction(ctx, t)
	if err != nil {
		if t.HasAttachment() {
			s.discard(ctx, t.AttachmentPath)
		}
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	created, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", id,
		"user_id", actor.UserID,
		"type", typ,
		"amount_cents", amount.Cents,
		"attachment", created.HasAttachment())

	s.publish(ctx, amqp.TransactionCreated, created)
	return created, nil
}

// Update applies patch to a transaction the actor can access. A new upload
// replaces the previous attachment; the old file is removed best-effort.
func (s *TransactionService) Update(ctx context.Context, actor core.Actor, id int64, patch TransactionPatch, upload *Upload) (core.Transaction, []core.Warning, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return core.Transaction{}, nil, err
	}

	if patch.Amount != nil {
		if t.Amount, err = core.ParseAmount(*patch.Amount); err != nil {
			return core.Transaction{}, nil, err
		}
	}
	if patch.Type != nil {
		typ, err := core.ParseTxType(*patch.Type)
		if err != nil {
			return core.Transaction{}, nil, err
		}
		if typ == core.Income && t.Type != core.Income && !actor.IsAdmin() {
			return core.Transaction{}, nil, core.ErrIncomeNotAllowed
		}
		t.Type = typ
	}
	if patch.Date != nil {
		if t.Date, err = core.ParseDate(*patch.Date); err != nil {
			return core.Transaction{}, nil, err
		}
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}

	ref := strconv.FormatInt(t.CategoryID, 10)
	if patch.Category != nil {
		if err := required("category", *patch.Category); err != nil {
			return core.Transaction{}, nil, err
		}
		ref = *patch.Category
	}
	cat, err := s.resolveCategory(ctx, ref, t.Type)
	if err != nil {
		return core.Transaction{}, nil, err
	}
	t.CategoryID = cat.ID

	oldKey := t.AttachmentPath
	if upload != nil {
		att, err := s.files.Save(upload.Filename, upload.Body)
		if err != nil {
			return core.Transaction{}, nil, err
		}
		t.AttachmentFilename = att.DisplayName
		t.AttachmentPath = att.StorageKey
	}

	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		if upload != nil {
			s.discard(ctx, t.AttachmentPath)
		}
		return core.Transaction{}, nil, fmt.Errorf("update transaction: %w", err)
	}

	var warnings []core.Warning
	if upload != nil && oldKey != "" {
		warnings = s.removeFile(ctx, oldKey, warnings)
	}

	updated, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, nil, err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", id,
		"user_id", actor.UserID,
		"replaced_attachment", upload != nil)

	s.publish(ctx, amqp.TransactionUpdated, updated)
	return updated, warnings, nil
}

// Delete removes the row first and then its attachment. A file that cannot be
// removed is reported as a warning, the delete itself still succeeds.
func (s *TransactionService) Delete(ctx context.Context, actor core.Actor, id int64) ([]core.Warning, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return nil, err
	}

	var warnings []core.Warning
	if t.HasAttachment() {
		warnings = s.removeFile(ctx, t.AttachmentPath, warnings)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"transaction_id", id,
		"user_id", actor.UserID)

	s.publish(ctx, amqp.TransactionDeleted, t)
	return warnings, nil
}

// DeleteAttachment detaches the file from the transaction and removes it.
func (s *TransactionService) DeleteAttachment(ctx context.Context, actor core.Actor, id int64) ([]core.Warning, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !t.HasAttachment() {
		return nil, fmt.Errorf("%w: transaction %d has no attachment", core.ErrNotFound, id)
	}

	key := t.AttachmentPath
	t.AttachmentFilename = ""
	t.AttachmentPath = ""
	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("clear attachment: %w", err)
	}

	warnings := s.removeFile(ctx, key, nil)
	s.publish(ctx, amqp.TransactionUpdated, t)
	return warnings, nil
}

// OpenAttachment opens a stored file if it belongs to a transaction the actor
// can access. Every other case reads as not found.
func (s *TransactionService) OpenAttachment(ctx context.Context, actor core.Actor, key string) (*os.File, core.Transaction, error) {
	if !attachments.ValidKey(key) {
		return nil, core.Transaction{}, core.ErrNotFound
	}
	t, err := s.storage.GetTransactionByAttachment(ctx, key)
	if err != nil {
		return nil, core.Transaction{}, err
	}
	if !actor.CanAccess(t.UserID) {
		return nil, core.Transaction{}, core.ErrNotFound
	}
	f, err := s.files.Open(key)
	if err != nil {
		return nil, core.Transaction{}, err
	}
	return f, t, nil
}

// Summary aggregates the filtered set. Totals, per category and per period
// sums run concurrently against the same filter.
func (s *TransactionService) Summary(ctx context.Context, actor core.Actor, f core.TransactionFilter, opts core.SummaryOptions) (core.Summary, error) {
	if !actor.IsAdmin() {
		return core.Summary{}, core.ErrAdminRequired
	}
	f = f.ScopedTo(actor)

	var (
		income, expense core.Money
		categories      []core.CategoryTotal
		periods         []core.PeriodTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, expense, err = s.storage.TransactionTotals(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.storage.CategoryTotals(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		periods, err = s.storage.PeriodTotals(gctx, f, opts.Granularity)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, fmt.Errorf("compute summary: %w", err)
	}

	return core.NewSummary(income, expense, categories, periods, opts), nil
}

// ExportToSheets appends the filtered set to the configured spreadsheet.
func (s *TransactionService) ExportToSheets(ctx context.Context, actor core.Actor, f core.TransactionFilter) (sheets.Result, error) {
	if !actor.IsAdmin() {
		return sheets.Result{}, core.ErrAdminRequired
	}
	if s.exporter == nil {
		return sheets.Result{}, core.ErrExportDisabled
	}
	txs, err := s.List(ctx, actor, f)
	if err != nil {
		return sheets.Result{}, err
	}
	return s.exporter.Export(ctx, txs)
}

func (s *TransactionService) removeFile(ctx context.Context, key string, warnings []core.Warning) []core.Warning {
	if err := s.files.Delete(key); err != nil {
		slog.WarnContext(ctx, "Failed to remove attachment", "storage_key", key, "error", err)
		return append(warnings, core.Warning{
			Code:    core.WarningAttachmentCleanup,
			Message: fmt.Sprintf("attachment %s could not be removed", key),
		})
	}
	return warnings
}

// discard removes a file stored for a write that did not commit.
func (s *TransactionService) discard(ctx context.Context, key string) {
	if err := s.files.Delete(key); err != nil {
		slog.ErrorContext(ctx, "Failed to discard orphaned attachment", "storage_key", key, "error", err)
	}
}

func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	// Don't fail the request, the change is already committed.
	if err := s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(kind, t)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", kind,
			"transaction_id", t.ID,
			"error", err)
	}
}
