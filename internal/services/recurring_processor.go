package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finledger/internal/core"
)

// RecurringProcessorConfig holds configuration for the auto-pay loop.
type RecurringProcessorConfig struct {
	// PollInterval is how often overdue schedules are checked (default: 1h).
	PollInterval time.Duration

	// UserID scopes which schedules the processor pays.
	UserID string
}

// DefaultRecurringProcessorConfig returns sensible defaults.
func DefaultRecurringProcessorConfig() RecurringProcessorConfig {
	return RecurringProcessorConfig{
		PollInterval: time.Hour,
	}
}

// DueScheduleLister finds schedules dated on or before a given day.
type DueScheduleLister interface {
	ListDueSchedules(ctx context.Context, userID string, due core.Date) ([]core.Schedule, error)
}

// RecurringProcessor automatically pays schedules whose date has arrived.
// It is an opt-in convenience on top of the user-driven pay flow and goes
// through exactly the same lifecycle path.
type RecurringProcessor struct {
	schedules *ScheduleService
	lister    DueScheduleLister
	config    RecurringProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRecurringProcessor(schedules *ScheduleService, lister DueScheduleLister, config RecurringProcessorConfig) *RecurringProcessor {
	return &RecurringProcessor{
		schedules: schedules,
		lister:    lister,
		config:    config,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *RecurringProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("recurring processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Recurring processor started",
		"poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for the loop to exit.
// Safe to call more than once; only the first call closes the stop channel.
func (p *RecurringProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring processor stopped")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring processor stop timed out")
		return ctx.Err()
	}
	return nil
}

func (p *RecurringProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process once on startup, then on every tick.
	p.processDue(ctx, core.Today())

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processDue(ctx, core.Today())
		}
	}
}

// ProcessDue pays every schedule dated on or before today and returns how
// many were realized.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (int, error) {
	due, err := p.lister.ListDueSchedules(ctx, p.config.UserID, today)
	if err != nil {
		return 0, fmt.Errorf("list due schedules: %w", err)
	}

	paid := 0
	for _, sched := range due {
		if _, err := p.schedules.PayOn(ctx, sched.ID, today); err != nil {
			slog.ErrorContext(ctx, "Failed to auto-pay schedule",
				"schedule_id", sched.ID,
				"description", sched.Description,
				"error", err)
			continue
		}
		paid++
	}

	if paid > 0 {
		slog.InfoContext(ctx, "Auto-paid due schedules",
			"paid", paid,
			"checked", len(due))
	}
	return paid, nil
}

func (p *RecurringProcessor) processDue(ctx context.Context, today core.Date) {
	if _, err := p.ProcessDue(ctx, today); err != nil {
		slog.ErrorContext(ctx, "Recurring processing failed", "error", err)
	}
}
