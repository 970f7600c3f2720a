// Package recurrence answers how often a schedule occurs in a calendar month
// and projects realized plus predicted cash flow over a rolling window.
package recurrence

import (
	"time"

	"finledger/internal/core"
)

// Window shape: three months back, the current month, two months ahead.
const (
	monthsBack  = 3
	monthsAhead = 2
	windowSize  = monthsBack + 1 + monthsAhead
)

// Occurrences returns how many times schedule s occurs within the calendar
// month (year, month).
//
// A schedule whose start date falls after the end of the queried month
// contributes zero regardless of frequency.
func Occurrences(s core.Schedule, year, month int) int {
	start := s.Date
	switch s.Frequency {
	case core.Once:
		if start.Year() == year && start.Month() == month {
			return 1
		}
		return 0
	case core.Monthly:
		// Once started, a monthly schedule recurs every month.
		if year > start.Year() || (year == start.Year() && month >= start.Month()) {
			return 1
		}
		return 0
	case core.Yearly:
		if month == start.Month() && year >= start.Year() {
			return 1
		}
		return 0
	case core.Weekly:
		return weeklyOccurrences(start, year, month)
	default:
		return 0
	}
}

// weeklyOccurrences counts days in (year, month) that share the start date's
// weekday and are not before the start date. A weekly schedule starting
// mid-month only contributes from its start date onward.
func weeklyOccurrences(start core.Date, year, month int) int {
	weekday := start.Weekday()
	days := daysInMonth(year, month)
	count := 0
	for day := 1; day <= days; day++ {
		d := core.NewDate(year, month, day)
		if d.Weekday() != weekday {
			continue
		}
		if d.Before(start) {
			continue
		}
		count++
	}
	return count
}

func daysInMonth(year, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthFlow is one bucket of the projection window. Past months carry only
// realized figures; the current and future months also carry predictions
// derived from schedules.
type MonthFlow struct {
	Year  int `json:"year"`
	Month int `json:"month"`

	RealizedIncome   core.Money `json:"realizedIncome"`
	RealizedExpense  core.Money `json:"realizedExpense"`
	PredictedIncome  core.Money `json:"predictedIncome"`
	PredictedExpense core.Money `json:"predictedExpense"`

	Net core.Money `json:"net"`
}

// Project builds the fixed six-month series centered on now: three months in
// the past, the current month and two ahead. Only income and expense entries
// move the series; transfers and adjustments are internal to the ledger and
// net to zero across accounts.
func Project(now core.Date, txs []core.Transaction, schedules []core.Schedule) []MonthFlow {
	flows := make([]MonthFlow, 0, windowSize)
	anchor := core.NewDate(now.Year(), now.Month(), 1)

	for offset := -monthsBack; offset <= monthsAhead; offset++ {
		m := anchor.AddMonths(offset)
		flow := MonthFlow{Year: m.Year(), Month: m.Month()}

		for _, tx := range txs {
			if tx.Date.Year() != flow.Year || tx.Date.Month() != flow.Month {
				continue
			}
			switch tx.Type {
			case core.Income:
				flow.RealizedIncome = flow.RealizedIncome.Add(tx.Amount)
			case core.Expense:
				flow.RealizedExpense = flow.RealizedExpense.Add(tx.Amount)
			}
		}

		// Predictions apply to the current month and onward only.
		if offset >= 0 {
			for _, s := range schedules {
				n := Occurrences(s, flow.Year, flow.Month)
				if n == 0 {
					continue
				}
				total := core.Money{Cents: int64(n) * s.Amount.Cents}
				switch s.Type {
				case core.Income:
					flow.PredictedIncome = flow.PredictedIncome.Add(total)
				case core.Expense:
					flow.PredictedExpense = flow.PredictedExpense.Add(total)
				}
			}
		}

		income := flow.RealizedIncome.Add(flow.PredictedIncome)
		expense := flow.RealizedExpense.Add(flow.PredictedExpense)
		flow.Net = income.Add(expense.Neg())
		flows = append(flows, flow)
	}

	return flows
}
