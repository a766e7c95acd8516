// Package export renders filtered transaction sets for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"fintrack/internal/core"
)

// Header is the first CSV record.
var Header = []string{"Date", "User", "Type", "Category", "Description", "Amount"}

// Row is the export record of one transaction, in Header order.
func Row(t core.Transaction) []string {
	return []string{
		t.Date.String(),
		t.Username,
		string(t.Type),
		t.Category,
		t.Description,
		t.Amount.String(),
	}
}

// WriteCSV writes the header and one record per transaction. Fields containing
// the delimiter, quotes or newlines are quoted with embedded quotes doubled.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range txs {
		if err := cw.Write(Row(t)); err != nil {
			return fmt.Errorf("write csv row %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Filename is the download name for an export taken at now.
func Filename(now time.Time) string {
	return "transactions_" + now.Format("20060102_150405") + ".csv"
}
