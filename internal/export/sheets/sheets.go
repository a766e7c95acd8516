// Package sheets appends exported transactions to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the target sheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// valuesAPI is the subset of the Sheets values API the exporter uses.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) (string, error)
}

// Result describes a finished export.
type Result struct {
	Rows         int    `json:"rows"`
	UpdatedRange string `json:"updated_range"`
}

type Exporter struct {
	values        valuesAPI
	spreadsheetID string
	sheet         string
}

// New connects to the Sheets API with service account credentials.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	sheet := cfg.SheetName
	if sheet == "" {
		sheet = "Transactions"
	}
	return &Exporter{
		values:        serviceValues{svc: svc},
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         sheet,
	}, nil
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// Export appends txs below the existing rows, writing the header first when
// the sheet is empty.
func (e *Exporter) Export(ctx context.Context, txs []core.Transaction) (Result, error) {
	existing, err := e.values.Get(ctx, e.spreadsheetID, fmt.Sprintf("%s!A1:F1", e.sheet))
	if err != nil {
		return Result{}, fmt.Errorf("read header of %s: %w", e.sheet, err)
	}

	rows := make([][]any, 0, len(txs)+1)
	if len(existing) == 0 {
		rows = append(rows, toValues(export.Header))
	}
	for _, t := range txs {
		rows = append(rows, toValues(export.Row(t)))
	}
	if len(rows) == 0 {
		return Result{}, nil
	}

	updated, err := e.values.Append(ctx, e.spreadsheetID, fmt.Sprintf("%s!A:F", e.sheet), rows)
	if err != nil {
		return Result{}, fmt.Errorf("append to %s: %w", e.sheet, err)
	}

	slog.InfoContext(ctx, "Transactions exported to Google Sheets",
		"rows", len(txs),
		"range", updated)

	return Result{Rows: len(txs), UpdatedRange: updated}, nil
}

func toValues(record []string) []any {
	out := make([]any, len(record))
	for i, v := range record {
		out[i] = v
	}
	return out
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) (string, error) {
	resp, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}
