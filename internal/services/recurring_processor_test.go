package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"finledger/internal/core"
)

func TestProcessDuePaysAllDueSchedules(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.addAccount(core.Account{ID: "checking", Name: "Checking", Currency: "EUR", Type: core.Checking, Balance: core.Money{Cents: 100000}})
	repo.categories = []core.Category{{ID: "cat-bills", Name: "Bills", Type: core.ExpenseCategory}}

	repo.schedules["s-due"] = core.Schedule{
		ID: "s-due", UserID: "u1", Description: "Rent",
		Amount: core.Money{Cents: 80000}, Date: core.NewDate(2024, 6, 1),
		Type: core.Expense, AccountID: "checking", CategoryID: "cat-bills",
		Frequency: core.Monthly,
	}
	repo.schedules["s-future"] = core.Schedule{
		ID: "s-future", UserID: "u1", Description: "Gym",
		Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 7, 1),
		Type: core.Expense, AccountID: "checking", CategoryID: "cat-bills",
		Frequency: core.Monthly,
	}

	svc := NewScheduleService(repo)
	processor := NewRecurringProcessor(svc, repo, RecurringProcessorConfig{UserID: "u1"})

	paid, err := processor.ProcessDue(ctx, core.NewDate(2024, 6, 10))
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if paid != 1 {
		t.Errorf("paid = %d, want 1 (only the due schedule)", paid)
	}
	if len(repo.txs) != 1 {
		t.Errorf("realized transactions = %d, want 1", len(repo.txs))
	}
	if got := repo.schedules["s-due"].Date; got != core.NewDate(2024, 7, 1) {
		t.Errorf("due schedule advanced to %v, want 2024-07-01", got)
	}
	if got := repo.schedules["s-future"].Date; got != core.NewDate(2024, 7, 1) {
		t.Errorf("future schedule moved to %v, should be untouched", got)
	}
}

func TestProcessDueContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.addAccount(core.Account{ID: "checking", Name: "Checking", Currency: "EUR", Type: core.Checking, Balance: core.Money{Cents: 100000}})
	repo.categories = []core.Category{{ID: "cat-bills", Name: "Bills", Type: core.ExpenseCategory}}

	// Points at an account that no longer exists.
	repo.schedules["s-broken"] = core.Schedule{
		ID: "s-broken", UserID: "u1", Description: "Orphan",
		Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 6, 1),
		Type: core.Expense, AccountID: "gone", CategoryID: "cat-bills",
		Frequency: core.Monthly,
	}
	repo.schedules["s-good"] = core.Schedule{
		ID: "s-good", UserID: "u1", Description: "Rent",
		Amount: core.Money{Cents: 80000}, Date: core.NewDate(2024, 6, 1),
		Type: core.Expense, AccountID: "checking", CategoryID: "cat-bills",
		Frequency: core.Monthly,
	}

	svc := NewScheduleService(repo)
	processor := NewRecurringProcessor(svc, repo, RecurringProcessorConfig{UserID: "u1"})

	paid, err := processor.ProcessDue(ctx, core.NewDate(2024, 6, 10))
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if paid != 1 {
		t.Errorf("paid = %d, want 1 despite the broken schedule", paid)
	}
}

func TestStopIsSafeToCallConcurrently(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()

	svc := NewScheduleService(repo)
	processor := NewRecurringProcessor(svc, repo, RecurringProcessorConfig{
		PollInterval: time.Hour,
		UserID:       "u1",
	})

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := processor.Stop(ctx); err != nil {
				t.Errorf("Stop: %v", err)
			}
		}()
	}
	wg.Wait()

	// A stopped processor can be started again.
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := processor.Stop(ctx); err != nil {
		t.Fatalf("Stop after restart: %v", err)
	}
}
