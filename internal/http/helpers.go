package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/gorilla/mux"
)

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// pathID reads the numeric {id} route variable.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", core.ErrValidation)
	}
	return id, nil
}

// filterFromQuery builds the transaction filter shared by list, stats and exports.
func filterFromQuery(q url.Values) (core.TransactionFilter, error) {
	return core.ParseFilter(core.FilterParams{
		Type:      q.Get("type"),
		Category:  sanitizeInput(q.Get("category")),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	})
}

func summaryOptionsFromQuery(q url.Values) (core.SummaryOptions, error) {
	g, err := core.ParseGranularity(q.Get("period"))
	if err != nil {
		return core.SummaryOptions{}, err
	}
	opts := core.SummaryOptions{Granularity: g}
	if v := strings.TrimSpace(q.Get("top")); v != "" {
		top, err := strconv.Atoi(v)
		if err != nil || top < 0 {
			return core.SummaryOptions{}, fmt.Errorf("%w: top must be a non-negative integer", core.ErrValidation)
		}
		opts.Top = top
	}
	return opts, nil
}

// windowFromQuery reads the optional calendar bounds. A plain date as end
// includes that whole day.
func windowFromQuery(q url.Values) (core.Window, error) {
	var w core.Window
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		t, err := core.ParseTimestamp(v)
		if err != nil {
			return core.Window{}, err
		}
		w.Start = t
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		t, err := core.ParseTimestamp(v)
		if err != nil {
			return core.Window{}, err
		}
		if len(v) == len(core.DateLayout) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		w.End = t
	}
	return w, nil
}

// sanitizeHeaderValue drops characters that would break a quoted header parameter.
func sanitizeHeaderValue(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == '"' || r == '\\' || r == 127 {
			return -1
		}
		return r
	}, s)
}
