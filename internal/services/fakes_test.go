package services

import (
	"context"
	"sync"

	"finledger/internal/core"
	"finledger/internal/ledger"
)

// fakeRepo is an in-memory stand-in for the SQLite repository. It honors the
// same atomicity contract: each composite call either fully applies or
// leaves no trace.
type fakeRepo struct {
	mu          sync.Mutex
	accounts    map[string]*core.Account
	txs         map[string]core.Transaction
	schedules   map[string]core.Schedule
	categories  []core.Category
	budgets     []core.Budget
	failCreates error // when set, CreateTransaction fails with it
	failFrom    int   // first create attempt (1-based) that fails; 0 means all
	createCount int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts:  make(map[string]*core.Account),
		txs:       make(map[string]core.Transaction),
		schedules: make(map[string]core.Schedule),
	}
}

func (f *fakeRepo) failAfter(succeed int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreates = err
	f.failFrom = succeed + 1
}

func (f *fakeRepo) addAccount(a core.Account) {
	acc := a
	f.accounts[a.ID] = &acc
}

func (f *fakeRepo) GetAccount(_ context.Context, id string) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return core.Account{}, &core.ReferenceError{Entity: "account", ID: id}
	}
	return *a, nil
}

func (f *fakeRepo) applyDeltas(deltas []ledger.Delta) ([]core.Account, error) {
	for _, d := range deltas {
		if _, ok := f.accounts[d.AccountID]; !ok {
			return nil, &core.ReferenceError{Entity: "account", ID: d.AccountID}
		}
	}
	updated := make([]core.Account, 0, len(deltas))
	for _, d := range deltas {
		a := f.accounts[d.AccountID]
		a.Balance.Cents += d.Cents
		updated = append(updated, *a)
	}
	return updated, nil
}

func (f *fakeRepo) CreateTransaction(_ context.Context, tx core.Transaction, deltas []ledger.Delta) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCount++
	if f.failCreates != nil && f.createCount >= f.failFrom {
		return nil, f.failCreates
	}
	if tx.ExternalID != "" {
		for _, existing := range f.txs {
			if existing.UserID == tx.UserID && existing.ExternalID == tx.ExternalID {
				return nil, &core.ConflictError{ExternalID: tx.ExternalID}
			}
		}
	}
	f.txs[tx.ID] = tx
	return f.applyDeltas(deltas)
}

func (f *fakeRepo) UpdateTransaction(_ context.Context, tx core.Transaction, deltas []ledger.Delta) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.txs[tx.ID]; !ok {
		return nil, &core.ReferenceError{Entity: "transaction", ID: tx.ID}
	}
	f.txs[tx.ID] = tx
	return f.applyDeltas(deltas)
}

func (f *fakeRepo) DeleteTransaction(_ context.Context, id string, deltas []ledger.Delta) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.txs[id]; !ok {
		return nil, &core.ReferenceError{Entity: "transaction", ID: id}
	}
	delete(f.txs, id)
	return f.applyDeltas(deltas)
}

func (f *fakeRepo) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return core.Transaction{}, &core.ReferenceError{Entity: "transaction", ID: id}
	}
	return tx, nil
}

func (f *fakeRepo) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListExternalIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, tx := range f.txs {
		if tx.UserID == userID && tx.ExternalID != "" {
			ids = append(ids, tx.ExternalID)
		}
	}
	return ids, nil
}

func (f *fakeRepo) GetCategory(_ context.Context, id string) (core.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, &core.ReferenceError{Entity: "category", ID: id}
}

func (f *fakeRepo) ListCategories(context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeRepo) GetSchedule(_ context.Context, id string) (core.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return core.Schedule{}, &core.ReferenceError{Entity: "schedule", ID: id}
	}
	return s, nil
}

func (f *fakeRepo) CreateSchedule(_ context.Context, s core.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeRepo) UpdateSchedule(_ context.Context, s core.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[s.ID]; !ok {
		return &core.ReferenceError{Entity: "schedule", ID: s.ID}
	}
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeRepo) DeleteSchedule(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[id]; !ok {
		return &core.ReferenceError{Entity: "schedule", ID: id}
	}
	delete(f.schedules, id)
	return nil
}

func (f *fakeRepo) ListSchedules(_ context.Context, userID string) ([]core.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Schedule
	for _, s := range f.schedules {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListDueSchedules(_ context.Context, userID string, due core.Date) ([]core.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Schedule
	for _, s := range f.schedules {
		if s.UserID == userID && !s.Date.After(due) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) PaySchedule(_ context.Context, realized core.Transaction, deltas []ledger.Delta, scheduleID string, next core.Date, retire bool) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sched, ok := f.schedules[scheduleID]
	if !ok {
		return nil, &core.ReferenceError{Entity: "schedule", ID: scheduleID}
	}
	f.txs[realized.ID] = realized
	updated, err := f.applyDeltas(deltas)
	if err != nil {
		delete(f.txs, realized.ID)
		return nil, err
	}
	if retire {
		delete(f.schedules, scheduleID)
	} else {
		sched.Date = next
		f.schedules[scheduleID] = sched
	}
	return updated, nil
}

func (f *fakeRepo) ListBudgets(context.Context) ([]core.Budget, error) {
	return f.budgets, nil
}

// recordingObserver captures progress updates for assertions.
type recordingObserver struct {
	updates []progressUpdate
}

type progressUpdate struct {
	completed, total int
	done             bool
}

func (o *recordingObserver) Progress(_ context.Context, completed, total int, done bool) {
	o.updates = append(o.updates, progressUpdate{completed, total, done})
}
