package core

import "testing"

func TestNewSummary(t *testing.T) {
	cats := []CategoryTotal{
		{Category: "Food", Type: Expense, Total: Money{Cents: 3000}},
		{Category: "Salary", Type: Income, Total: Money{Cents: 10000}},
		{Category: "Rent", Type: Expense, Total: Money{Cents: 9000}},
		{Category: "Bills", Type: Expense, Total: Money{Cents: 3000}},
		{Category: "Gift", Type: Income, Total: Money{Cents: 500}},
	}
	periods := []PeriodTotal{
		{Period: "2024-02", Income: Money{Cents: 500}},
		{Period: "2024-01", Income: Money{Cents: 10000}, Expense: Money{Cents: 15000}},
	}

	s := NewSummary(Money{Cents: 10500}, Money{Cents: 15000}, cats, periods, SummaryOptions{Granularity: GranularityMonth})

	if s.Balance.Cents != -4500 {
		t.Errorf("Balance = %d, want -4500", s.Balance.Cents)
	}
	wantOrder := []string{"Salary", "Rent", "Bills", "Food", "Gift"}
	for i, name := range wantOrder {
		if s.ByCategory[i].Category != name {
			t.Fatalf("ByCategory[%d] = %s, want %s", i, s.ByCategory[i].Category, name)
		}
	}
	if s.ByPeriod[0].Period != "2024-01" || s.ByPeriod[0].Balance.Cents != -5000 {
		t.Errorf("ByPeriod not sorted ascending: %+v", s.ByPeriod)
	}
	if got := s.ByType(Income); len(got) != 2 || got[0].Category != "Salary" {
		t.Errorf("ByType(Income) = %+v", got)
	}
}

func TestNewSummaryTop(t *testing.T) {
	cats := []CategoryTotal{
		{Category: "A", Type: Expense, Total: Money{Cents: 1}},
		{Category: "B", Type: Expense, Total: Money{Cents: 2}},
		{Category: "C", Type: Expense, Total: Money{Cents: 3}},
		{Category: "D", Type: Income, Total: Money{Cents: 4}},
	}
	s := NewSummary(Money{}, Money{}, cats, nil, SummaryOptions{Top: 2})
	if len(s.ByType(Expense)) != 2 || len(s.ByType(Income)) != 1 {
		t.Errorf("Top truncation wrong: %+v", s.ByCategory)
	}
	if s.ByType(Expense)[0].Category != "C" {
		t.Errorf("largest expense should come first: %+v", s.ByType(Expense))
	}
	if s.ByPeriod == nil {
		t.Error("ByPeriod should be an empty slice, not nil")
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity(""); err != nil || g != GranularityMonth {
		t.Errorf("default granularity = %v, %v", g, err)
	}
	if g, err := ParseGranularity("DAY"); err != nil || g != GranularityDay {
		t.Errorf("day granularity = %v, %v", g, err)
	}
	if _, err := ParseGranularity("week"); err == nil {
		t.Error("expected error for unsupported period")
	}
}
