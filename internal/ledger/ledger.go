// Package ledger is the single place where a transaction's balance effect is
// computed and applied. Callers never touch account balances directly; they
// go through Apply, Reverse or Replace so that the same math runs for create,
// update and delete.
package ledger

import (
	"context"
	"fmt"

	"finledger/internal/core"
)

// Delta is a signed balance change for one account, in cents.
type Delta struct {
	AccountID string
	Cents     int64
}

// Deltas computes the balance effect of applying tx.
//
// Adjustment semantics: a signed delta added to the balance. The amount of an
// adjustment is the only transaction amount permitted to be negative, which
// keeps every kind reversible from the record alone.
func Deltas(tx core.Transaction) ([]Delta, error) {
	a := tx.Amount.Cents
	switch tx.Type {
	case core.Income:
		return []Delta{{AccountID: tx.AccountID, Cents: a}}, nil
	case core.Expense:
		return []Delta{{AccountID: tx.AccountID, Cents: -a}}, nil
	case core.Transfer:
		if tx.ToAccountID == tx.AccountID {
			return nil, core.Validationf("transfer source and destination must differ")
		}
		return []Delta{
			{AccountID: tx.AccountID, Cents: -a},
			{AccountID: tx.ToAccountID, Cents: a},
		}, nil
	case core.Adjustment:
		return []Delta{{AccountID: tx.AccountID, Cents: a}}, nil
	default:
		return nil, core.Validationf("invalid transaction type %q", tx.Type)
	}
}

// ReverseDeltas computes the exact inverse of Deltas(tx).
func ReverseDeltas(tx core.Transaction) ([]Delta, error) {
	deltas, err := Deltas(tx)
	if err != nil {
		return nil, err
	}
	for i := range deltas {
		deltas[i].Cents = -deltas[i].Cents
	}
	return deltas, nil
}

// Merge sums deltas per account, preserving first-seen order. Zero-sum
// entries are kept so every touched account still gets written and read back.
func Merge(deltas ...[]Delta) []Delta {
	index := make(map[string]int)
	var merged []Delta
	for _, ds := range deltas {
		for _, d := range ds {
			if i, ok := index[d.AccountID]; ok {
				merged[i].Cents += d.Cents
				continue
			}
			index[d.AccountID] = len(merged)
			merged = append(merged, d)
		}
	}
	return merged
}

// Store is the persistence collaborator the engine drives. Each method must
// apply the row change and the balance deltas atomically: all affected
// accounts update together or none do.
type Store interface {
	GetAccount(ctx context.Context, id string) (core.Account, error)
	CreateTransaction(ctx context.Context, tx core.Transaction, deltas []Delta) ([]core.Account, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction, deltas []Delta) ([]core.Account, error)
	DeleteTransaction(ctx context.Context, id string, deltas []Delta) ([]core.Account, error)
}

// Engine applies and reverses transaction balance effects through a Store.
type Engine struct {
	store Store
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Apply validates tx, persists it and applies its balance effect in one
// atomic storage operation. It returns the updated account state(s).
func (e *Engine) Apply(ctx context.Context, tx core.Transaction) ([]core.Account, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkReferences(ctx, tx); err != nil {
		return nil, err
	}
	deltas, err := Deltas(tx)
	if err != nil {
		return nil, err
	}
	accounts, err := e.store.CreateTransaction(ctx, tx, deltas)
	if err != nil {
		return nil, fmt.Errorf("apply transaction %s: %w", tx.ID, err)
	}
	return accounts, nil
}

// Reverse removes tx and applies the exact inverse of its balance effect.
func (e *Engine) Reverse(ctx context.Context, tx core.Transaction) ([]core.Account, error) {
	deltas, err := ReverseDeltas(tx)
	if err != nil {
		return nil, err
	}
	accounts, err := e.store.DeleteTransaction(ctx, tx.ID, deltas)
	if err != nil {
		return nil, fmt.Errorf("reverse transaction %s: %w", tx.ID, err)
	}
	return accounts, nil
}

// Replace swaps oldTx for newTx as one logical step: the reverse deltas of
// the old record and the deltas of the new one are merged and applied in a
// single atomic storage operation, so no observer ever sees the
// reverted-but-not-reapplied balance.
func (e *Engine) Replace(ctx context.Context, oldTx, newTx core.Transaction) ([]core.Account, error) {
	if err := newTx.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkReferences(ctx, newTx); err != nil {
		return nil, err
	}
	reverse, err := ReverseDeltas(oldTx)
	if err != nil {
		return nil, err
	}
	apply, err := Deltas(newTx)
	if err != nil {
		return nil, err
	}
	accounts, err := e.store.UpdateTransaction(ctx, newTx, Merge(reverse, apply))
	if err != nil {
		return nil, fmt.Errorf("replace transaction %s: %w", oldTx.ID, err)
	}
	return accounts, nil
}

func (e *Engine) checkReferences(ctx context.Context, tx core.Transaction) error {
	if _, err := e.store.GetAccount(ctx, tx.AccountID); err != nil {
		return err
	}
	if tx.ToAccountID != "" {
		to, err := e.store.GetAccount(ctx, tx.ToAccountID)
		if err != nil {
			return err
		}
		if tx.AssetID != "" && to.Type != core.Investment {
			return core.Validationf("asset transfers require an investment destination account")
		}
	}
	return nil
}
