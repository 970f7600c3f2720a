package recurrence

import (
	"testing"

	"finledger/internal/core"
)

func schedule(freq core.Frequency, txType core.TxType, cents int64, start core.Date) core.Schedule {
	return core.Schedule{
		ID:          "s-1",
		Description: "template",
		Amount:      core.Money{Cents: cents},
		Date:        start,
		Type:        txType,
		AccountID:   "acc-1",
		CategoryID:  "cat-1",
		Frequency:   freq,
	}
}

func TestOccurrencesMonthly(t *testing.T) {
	s := schedule(core.Monthly, core.Expense, 1000, core.NewDate(2024, 1, 15))

	tests := []struct {
		year, month, want int
	}{
		{2023, 12, 0},
		{2024, 1, 1},
		{2024, 6, 1},
		{2025, 3, 1},
	}
	for _, tt := range tests {
		if got := Occurrences(s, tt.year, tt.month); got != tt.want {
			t.Errorf("Occurrences(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestOccurrencesWeekly(t *testing.T) {
	// Monday 2024-03-04; Mondays in March 2024 fall on 4, 11, 18, 25.
	s := schedule(core.Weekly, core.Expense, 1000, core.NewDate(2024, 3, 4))

	tests := []struct {
		name              string
		year, month, want int
	}{
		{"start month counts from start date", 2024, 3, 4},
		{"later month counts all matching weekdays", 2024, 4, 5},
		{"month before start", 2024, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Occurrences(s, tt.year, tt.month); got != tt.want {
				t.Errorf("Occurrences(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
			}
		})
	}
}

func TestOccurrencesWeeklyMidMonthStart(t *testing.T) {
	// Monday 2024-03-18 leaves only the 18th and 25th in March.
	s := schedule(core.Weekly, core.Expense, 1000, core.NewDate(2024, 3, 18))
	if got := Occurrences(s, 2024, 3); got != 2 {
		t.Errorf("Occurrences = %d, want 2", got)
	}
}

func TestOccurrencesOnceAndYearly(t *testing.T) {
	once := schedule(core.Once, core.Income, 1000, core.NewDate(2024, 7, 1))
	if got := Occurrences(once, 2024, 7); got != 1 {
		t.Errorf("once in its month = %d, want 1", got)
	}
	if got := Occurrences(once, 2024, 8); got != 0 {
		t.Errorf("once in another month = %d, want 0", got)
	}

	yearly := schedule(core.Yearly, core.Expense, 1000, core.NewDate(2022, 11, 5))
	if got := Occurrences(yearly, 2024, 11); got != 1 {
		t.Errorf("yearly matching month = %d, want 1", got)
	}
	if got := Occurrences(yearly, 2024, 10); got != 0 {
		t.Errorf("yearly other month = %d, want 0", got)
	}
	if got := Occurrences(yearly, 2021, 11); got != 0 {
		t.Errorf("yearly before start year = %d, want 0", got)
	}
}

func TestProjectWindowShape(t *testing.T) {
	now := core.NewDate(2024, 6, 15)

	txs := []core.Transaction{
		{ID: "t1", Description: "salary", Amount: core.Money{Cents: 200000}, Date: core.NewDate(2024, 4, 1), Type: core.Income, AccountID: "a", CategoryID: "c-sal"},
		{ID: "t2", Description: "rent", Amount: core.Money{Cents: 90000}, Date: core.NewDate(2024, 4, 3), Type: core.Expense, AccountID: "a", CategoryID: "c-rent"},
		{ID: "t3", Description: "groceries", Amount: core.Money{Cents: 5000}, Date: core.NewDate(2024, 6, 2), Type: core.Expense, AccountID: "a", CategoryID: "c-food"},
		// Transfers never move the series.
		{ID: "t4", Description: "to savings", Amount: core.Money{Cents: 10000}, Date: core.NewDate(2024, 6, 5), Type: core.Transfer, AccountID: "a", ToAccountID: "b"},
	}
	schedules := []core.Schedule{
		schedule(core.Monthly, core.Expense, 90000, core.NewDate(2024, 1, 3)),
	}

	flows := Project(now, txs, schedules)
	if len(flows) != 6 {
		t.Fatalf("window length = %d, want 6", len(flows))
	}
	if flows[0].Year != 2024 || flows[0].Month != 3 {
		t.Errorf("window starts at %d-%d, want 2024-3", flows[0].Year, flows[0].Month)
	}
	if flows[5].Year != 2024 || flows[5].Month != 8 {
		t.Errorf("window ends at %d-%d, want 2024-8", flows[5].Year, flows[5].Month)
	}

	// April is in the past: realized only, no predictions.
	april := flows[1]
	if april.RealizedIncome.Cents != 200000 || april.RealizedExpense.Cents != 90000 {
		t.Errorf("april realized = %+v", april)
	}
	if april.PredictedExpense.Cents != 0 {
		t.Errorf("april predicted expense = %d, want 0", april.PredictedExpense.Cents)
	}
	if april.Net.Cents != 110000 {
		t.Errorf("april net = %d, want 110000", april.Net.Cents)
	}

	// June is current: realized plus schedule-derived prediction.
	june := flows[3]
	if june.RealizedExpense.Cents != 5000 {
		t.Errorf("june realized expense = %d, want 5000", june.RealizedExpense.Cents)
	}
	if june.PredictedExpense.Cents != 90000 {
		t.Errorf("june predicted expense = %d, want 90000", june.PredictedExpense.Cents)
	}
	if june.Net.Cents != -95000 {
		t.Errorf("june net = %d, want -95000", june.Net.Cents)
	}

	// Future months carry predictions only.
	august := flows[5]
	if august.PredictedExpense.Cents != 90000 || august.RealizedExpense.Cents != 0 {
		t.Errorf("august = %+v", august)
	}
}

func TestProjectYearBoundary(t *testing.T) {
	now := core.NewDate(2024, 1, 10)
	flows := Project(now, nil, nil)
	if flows[0].Year != 2023 || flows[0].Month != 10 {
		t.Errorf("window starts at %d-%d, want 2023-10", flows[0].Year, flows[0].Month)
	}
	if flows[5].Year != 2024 || flows[5].Month != 3 {
		t.Errorf("window ends at %d-%d, want 2024-3", flows[5].Year, flows[5].Month)
	}
}
