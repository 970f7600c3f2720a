package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"finledger/internal/core"
	"finledger/internal/ledger"
)

// ScheduleStore is the persistence surface the schedule lifecycle needs.
// PaySchedule must realize the transaction, apply its deltas and
// advance-or-retire the schedule in a single storage transaction.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, id string) (core.Schedule, error)
	CreateSchedule(ctx context.Context, s core.Schedule) error
	UpdateSchedule(ctx context.Context, s core.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, userID string) ([]core.Schedule, error)
	GetAccount(ctx context.Context, id string) (core.Account, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	PaySchedule(ctx context.Context, realized core.Transaction, deltas []ledger.Delta, scheduleID string, next core.Date, retire bool) ([]core.Account, error)
}

// ScheduleService manages schedule templates and the Scheduled -> Paid
// transition.
type ScheduleService struct {
	store ScheduleStore

	// mu guards inFlight: a schedule being paid must not be payable again
	// until the first pay completes.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewScheduleService(store ScheduleStore) *ScheduleService {
	return &ScheduleService{
		store:    store,
		inFlight: make(map[string]struct{}),
	}
}

// Create validates and persists a new schedule template.
func (s *ScheduleService) Create(ctx context.Context, sched core.Schedule) (core.Schedule, error) {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if err := s.validate(ctx, sched); err != nil {
		return core.Schedule{}, err
	}
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return core.Schedule{}, err
	}
	return sched, nil
}

// Update replaces a schedule template.
func (s *ScheduleService) Update(ctx context.Context, sched core.Schedule) error {
	if err := s.validate(ctx, sched); err != nil {
		return err
	}
	return s.store.UpdateSchedule(ctx, sched)
}

// Delete removes a schedule template without realizing anything.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteSchedule(ctx, id)
}

// List returns the user's schedule templates.
func (s *ScheduleService) List(ctx context.Context, userID string) ([]core.Schedule, error) {
	return s.store.ListSchedules(ctx, userID)
}

// Pay realizes the schedule as a transaction dated today and advances or
// retires the template. Both steps run inside one storage transaction.
// Reentrant pays on the same schedule are rejected while one is in flight.
func (s *ScheduleService) Pay(ctx context.Context, scheduleID string) (core.Transaction, error) {
	return s.PayOn(ctx, scheduleID, core.Today())
}

// PayOn is Pay with an explicit realization date.
func (s *ScheduleService) PayOn(ctx context.Context, scheduleID string, today core.Date) (core.Transaction, error) {
	if !s.acquire(scheduleID) {
		return core.Transaction{}, &core.ConflictError{ExternalID: scheduleID}
	}
	defer s.release(scheduleID)

	sched, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return core.Transaction{}, err
	}

	realized := sched.Template()
	realized.ID = uuid.NewString()
	realized.Date = today
	deltas, err := ledger.Deltas(realized)
	if err != nil {
		return core.Transaction{}, err
	}

	retire := sched.Frequency == core.Once
	next := NextOccurrence(sched.Date, sched.Frequency)
	if _, err := s.store.PaySchedule(ctx, realized, deltas, sched.ID, next, retire); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Schedule realized",
		"schedule_id", sched.ID,
		"transaction_id", realized.ID,
		"frequency", sched.Frequency,
		"retired", retire)
	return realized, nil
}

// NextOccurrence advances a schedule date by exactly one period. A one-shot
// schedule has no next occurrence; its date is returned unchanged.
func NextOccurrence(d core.Date, f core.Frequency) core.Date {
	switch f {
	case core.Weekly:
		return d.AddDays(7)
	case core.Monthly:
		return d.AddMonths(1)
	case core.Yearly:
		return d.AddYears(1)
	default:
		return d
	}
}

func (s *ScheduleService) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *ScheduleService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *ScheduleService) validate(ctx context.Context, sched core.Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	if _, err := s.store.GetAccount(ctx, sched.AccountID); err != nil {
		return err
	}
	if sched.ToAccountID != "" {
		if _, err := s.store.GetAccount(ctx, sched.ToAccountID); err != nil {
			return err
		}
	}
	if sched.CategoryID != "" {
		cat, err := s.store.GetCategory(ctx, sched.CategoryID)
		if err != nil {
			return err
		}
		if err := matchCategorySide(sched.Type, cat); err != nil {
			return err
		}
	}
	return nil
}
