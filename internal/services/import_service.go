package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"finledger/internal/core"
	"finledger/internal/importer"
	"finledger/internal/ledger"
)

// ProgressObserver receives monotonic (completed, total) updates while an
// import commits. Implementations must tolerate being called once per row.
type ProgressObserver interface {
	Progress(ctx context.Context, completed, total int, done bool)
}

// NopObserver discards progress updates.
type NopObserver struct{}

func (NopObserver) Progress(context.Context, int, int, bool) {}

// ImportStore is the persistence surface the import pipeline needs beyond
// the ledger engine.
type ImportStore interface {
	ListExternalIDs(ctx context.Context, userID string) ([]string, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// ImportRequest is one batch of raw rows plus the caller's column mapping
// and any explicit per-line category assignments (user-reviewed, possibly
// AI-suggested).
type ImportRequest struct {
	UserID     string
	Rows       [][]string
	Mapping    importer.ColumnMapping
	AccountID  string
	Categories map[int]string // input line number -> category id
}

// ImportResult reports what happened to every row of a batch. Duplicates
// are an aggregate warning, not errors; row errors list the rows that could
// never commit.
type ImportResult struct {
	Total               int                 `json:"total"`     // rows in the input
	Committed           int                 `json:"committed"` // rows written to the ledger
	BatchDuplicates     int                 `json:"batchDuplicates"`
	PersistedDuplicates int                 `json:"persistedDuplicates"`
	RowErrors           []importer.RowError `json:"rowErrors,omitempty"`
}

// ImportService drives the reconciliation pipeline: extract, dedup twice,
// categorize, then commit sequentially through the ledger engine.
type ImportService struct {
	engine   *ledger.Engine
	store    ImportStore
	observer ProgressObserver
}

func NewImportService(engine *ledger.Engine, store ImportStore, observer ProgressObserver) *ImportService {
	if observer == nil {
		observer = NopObserver{}
	}
	return &ImportService{engine: engine, store: store, observer: observer}
}

// Run executes the pipeline for one batch.
//
// Commits are not transactional across rows: a row failing with a
// persistence error stops the batch immediately, rows already committed stay
// committed, and the result reports how many succeeded. Validation and
// reference failures only exclude the affected row; conflicts (a duplicate
// external id that survived dedup) are counted as persisted duplicates and
// skipped.
func (s *ImportService) Run(ctx context.Context, req ImportRequest) (ImportResult, error) {
	result := ImportResult{Total: len(req.Rows)}

	if req.AccountID == "" {
		return result, core.Validationf("import requires a target account")
	}

	// Stage 1: field extraction.
	candidates, rowErrs := importer.Extract(req.Rows, req.Mapping)
	result.RowErrors = rowErrs

	// Stage 2: intra-batch dedup.
	candidates, batchDups := importer.DedupBatch(candidates)
	result.BatchDuplicates = batchDups

	// Stage 3: cross-session dedup, one lookup for the whole batch.
	if importer.HasExternalIDs(candidates) {
		ids, err := s.store.ListExternalIDs(ctx, req.UserID)
		if err != nil {
			return result, err
		}
		existing := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			existing[id] = struct{}{}
		}
		var persistedDups int
		candidates, persistedDups = importer.DedupPersisted(candidates, existing)
		result.PersistedDuplicates = persistedDups
	}

	// Stage 4: categorization. Explicit assignments win; the fallback
	// (first available category of the matching side) is resolved here, at
	// commit time, never earlier.
	fallback, err := s.fallbackCategories(ctx)
	if err != nil {
		return result, err
	}

	// Stage 5: sequential commit in input order.
	total := len(candidates)
	s.observer.Progress(ctx, 0, total, total == 0)

	slog.InfoContext(ctx, "Import commit starting",
		"rows", result.Total,
		"to_commit", total,
		"batch_duplicates", result.BatchDuplicates,
		"persisted_duplicates", result.PersistedDuplicates)

	for i, c := range candidates {
		tx := core.Transaction{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			Description: c.Description,
			Amount:      c.Amount,
			Date:        c.Date,
			Type:        c.Type,
			AccountID:   req.AccountID,
			ExternalID:  c.ExternalID,
		}
		if id, ok := req.Categories[c.Line]; ok && id != "" {
			tx.CategoryID = id
		} else {
			tx.CategoryID = fallback[c.Type]
		}

		_, err := s.engine.Apply(ctx, tx)
		switch {
		case err == nil:
			result.Committed++
		case core.IsConflict(err):
			// Raced past dedup; skip, not a failure.
			result.PersistedDuplicates++
			slog.WarnContext(ctx, "Duplicate external id at commit time, skipping",
				"external_id", c.ExternalID, "line", c.Line)
		case core.IsValidation(err) || core.IsReference(err):
			result.RowErrors = append(result.RowErrors, importer.RowError{Line: c.Line, Err: err})
			slog.WarnContext(ctx, "Import row rejected",
				"line", c.Line, "error", err)
		default:
			// Persistence failure: stop here. Committed rows stay committed,
			// remaining rows are never attempted.
			s.observer.Progress(ctx, result.Committed, total, true)
			slog.ErrorContext(ctx, "Import aborted mid-batch",
				"committed", result.Committed,
				"remaining", total-i-1,
				"error", err)
			return result, err
		}

		s.observer.Progress(ctx, result.Committed, total, i == len(candidates)-1)
	}

	slog.InfoContext(ctx, "Import complete",
		"committed", result.Committed,
		"row_errors", len(result.RowErrors))
	return result, nil
}

// fallbackCategories picks the first available category per side, used for
// rows left uncategorized.
func (s *ImportService) fallbackCategories(ctx context.Context) (map[core.TxType]string, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	fallback := make(map[core.TxType]string, 2)
	for _, c := range cats {
		switch {
		case c.Type == core.IncomeCategory && fallback[core.Income] == "":
			fallback[core.Income] = c.ID
		case c.Type == core.ExpenseCategory && fallback[core.Expense] == "":
			fallback[core.Expense] = c.ID
		}
	}
	return fallback, nil
}
