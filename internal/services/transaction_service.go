// Package services orchestrates the core flows: single-transaction
// mutations, the schedule pay lifecycle, the import reconciliation pipeline
// and budget rollups. Services validate, then drive the ledger engine and
// the persistence collaborator; they never duplicate balance math.
package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"finledger/internal/core"
	"finledger/internal/ledger"
)

// TransactionReader provides the lookups transaction mutations need beyond
// the ledger store itself.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
}

// TransactionExporter mirrors sheets.TransactionWriter so the service does
// not depend on the sheets package directly.
type TransactionExporter interface {
	Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
}

// TransactionService handles user-driven create/update/delete of single
// transactions. Every balance effect flows through the ledger engine.
type TransactionService struct {
	engine   *ledger.Engine
	reader   TransactionReader
	exporter TransactionExporter
}

func NewTransactionService(engine *ledger.Engine, reader TransactionReader) *TransactionService {
	return &TransactionService{engine: engine, reader: reader}
}

// SetExporter enables best-effort export of newly created transactions.
func (s *TransactionService) SetExporter(e TransactionExporter) {
	s.exporter = e
}

// Create validates and applies a new transaction, returning it with its
// assigned id alongside the updated accounts.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, []core.Account, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := s.checkCategory(ctx, tx); err != nil {
		return core.Transaction{}, nil, err
	}
	accounts, err := s.engine.Apply(ctx, tx)
	if err != nil {
		return core.Transaction{}, nil, err
	}
	if s.exporter != nil {
		if ref, err := s.exporter.Append(ctx, tx); err != nil {
			slog.WarnContext(ctx, "Transaction export failed", "id", tx.ID, "error", err)
		} else {
			slog.InfoContext(ctx, "Transaction exported", "id", tx.ID, "ref", ref)
		}
	}
	return tx, accounts, nil
}

// Update replaces an existing transaction with revert-then-apply semantics:
// the old effect is reversed and the new one applied as one atomic step.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) ([]core.Account, error) {
	oldTx, err := s.reader.GetTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.UserID = oldTx.UserID
	if err := s.checkCategory(ctx, tx); err != nil {
		return nil, err
	}
	accounts, err := s.engine.Replace(ctx, oldTx, tx)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transaction replaced", "id", tx.ID)
	return accounts, nil
}

// Delete reverses and removes a transaction.
func (s *TransactionService) Delete(ctx context.Context, id string) ([]core.Account, error) {
	tx, err := s.reader.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Reverse(ctx, tx)
}

// checkCategory verifies the referenced category exists and sits on the
// transaction's income/expense side.
func (s *TransactionService) checkCategory(ctx context.Context, tx core.Transaction) error {
	if tx.CategoryID == "" {
		return nil
	}
	cat, err := s.reader.GetCategory(ctx, tx.CategoryID)
	if err != nil {
		return err
	}
	if err := matchCategorySide(tx.Type, cat); err != nil {
		return err
	}
	return nil
}

func matchCategorySide(txType core.TxType, cat core.Category) error {
	var want core.CategoryType
	switch txType {
	case core.Income:
		want = core.IncomeCategory
	case core.Expense:
		want = core.ExpenseCategory
	default:
		return nil
	}
	if cat.Type != want {
		return core.Validationf("category %q is %s, not valid for %s", cat.ID, cat.Type, txType)
	}
	return nil
}
