package http

import (
	"io"
	"net/http"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/export"
	applog "fintrack/internal/log"
	"fintrack/internal/services"

	"github.com/gorilla/mux"
)

const attachmentField = "attachment"

// upload returns the attachment part of a multipart body, or nil.
func upload(p *RequestBodyParser) (*services.Upload, io.Closer, error) {
	f, header, err := p.File(attachmentField)
	if err != nil || f == nil {
		return nil, nil, err
	}
	return &services.Upload{Filename: header.Filename, Body: f}, f, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.transactions.List(r.Context(), currentActor(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Data(txs).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.transactions.Get(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	up, closer, err := upload(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	in := services.TransactionInput{
		Amount:      p.Get("amount"),
		Type:        p.Get("type"),
		Category:    p.Get("category"),
		Date:        p.Get("date"),
		Description: p.Get("description"),
	}
	t, err := s.transactions.Add(r.Context(), currentActor(r), in, up)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Message("Transaction added successfully").
		Field("id", t.ID).
		Field("transaction", t).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	up, closer, err := upload(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	patch := services.TransactionPatch{
		Amount:      p.Optional("amount"),
		Type:        p.Optional("type"),
		Category:    p.Optional("category"),
		Date:        p.Optional("date"),
		Description: p.Optional("description"),
	}
	t, warnings, err := s.transactions.Update(r.Context(), currentActor(r), id, patch, up)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Message("Transaction updated successfully").
		Field("transaction", t).
		Warnings(warnings).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	warnings, err := s.transactions.Delete(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message("Transaction deleted successfully").
		Warnings(warnings).
		Write(w)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	warnings, err := s.transactions.DeleteAttachment(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message("Attachment removed").
		Warnings(warnings).
		Write(w)
}

// handleGetAttachment streams a stored file. Unknown keys and files of
// transactions the actor cannot see are both answered with 404.
func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	f, t, err := s.transactions.OpenAttachment(r.Context(), currentActor(r), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := t.AttachmentFilename
	if name == "" {
		name = key
	}
	w.Header().Set("Content-Disposition", `inline; filename="`+sanitizeHeaderValue(filepath.Base(name))+`"`)
	http.ServeContent(w, r, key, info.ModTime(), f)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filterFromQuery(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := summaryOptionsFromQuery(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.transactions.Summary(r.Context(), currentActor(r), f, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(statsResponse{
		Summary:           summary,
		IncomeByCategory:  summary.ByType(core.Income),
		ExpenseByCategory: summary.ByType(core.Expense),
	}).Write(w)
}

// statsResponse adds the per-direction category breakdowns dashboards read.
type statsResponse struct {
	core.Summary
	IncomeByCategory  []core.CategoryTotal `json:"income_by_category"`
	ExpenseByCategory []core.CategoryTotal `json:"expense_by_category"`
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.transactions.List(r.Context(), currentActor(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename(time.Now()))
	if err := export.WriteCSV(w, txs); err != nil {
		// Headers are gone already, all that is left is to log.
		applog.LogError(r.Context(), "CSV export failed", err, applog.ComponentExport, applog.OpExport, nil)
	}
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.transactions.ExportToSheets(r.Context(), currentActor(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message("Export completed").
		Field("rows", res.Rows).
		Field("updated_range", res.UpdatedRange).
		Write(w)
}
