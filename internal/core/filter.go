package core

import "strings"

// TransactionFilter narrows a transaction query. Zero values mean "no
// restriction". OwnerID is never taken from client input; services set it
// from the actor.
type TransactionFilter struct {
	OwnerID   int64
	Type      TxType
	Category  string
	StartDate Date
	EndDate   Date
}

// FilterParams are the raw query parameters accepted by list, stats and export.
type FilterParams struct {
	Type      string
	Category  string
	StartDate string
	EndDate   string
}

func unset(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "all")
}

// ParseFilter validates raw parameters. "all" and empty values leave a
// dimension unrestricted; both date bounds are inclusive.
func ParseFilter(p FilterParams) (TransactionFilter, error) {
	var f TransactionFilter
	if !unset(p.Type) {
		t, err := ParseTxType(p.Type)
		if err != nil {
			return TransactionFilter{}, err
		}
		f.Type = t
	}
	if !unset(p.Category) {
		f.Category = strings.TrimSpace(p.Category)
	}
	if !unset(p.StartDate) {
		d, err := ParseDate(p.StartDate)
		if err != nil {
			return TransactionFilter{}, err
		}
		f.StartDate = d
	}
	if !unset(p.EndDate) {
		d, err := ParseDate(p.EndDate)
		if err != nil {
			return TransactionFilter{}, err
		}
		f.EndDate = d
	}
	return f, nil
}

// ScopedTo restricts the filter to what the actor may see.
func (f TransactionFilter) ScopedTo(a Actor) TransactionFilter {
	if !a.IsAdmin() {
		f.OwnerID = a.UserID
	}
	return f
}
