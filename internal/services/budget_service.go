package services

import (
	"context"

	"finledger/internal/core"
)

// RollupCategoryIDs returns the category ids whose transactions count
// toward a budget on categoryID. A top-level category rolls up its direct
// children; a child category counts only itself. The hierarchy is exactly
// two levels deep.
func RollupCategoryIDs(categoryID string, categories []core.Category) []string {
	ids := []string{categoryID}
	var budgeted core.Category
	for _, c := range categories {
		if c.ID == categoryID {
			budgeted = c
			break
		}
	}
	if budgeted.ParentID != "" {
		return ids
	}
	for _, c := range categories {
		if c.ParentID == categoryID {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Spent computes a budget's derived total: the sum of amounts over
// transactions whose type matches the budgeted category's side and whose
// category falls inside the rollup set.
func Spent(b core.Budget, categories []core.Category, txs []core.Transaction) core.Money {
	var catType core.CategoryType
	for _, c := range categories {
		if c.ID == b.CategoryID {
			catType = c.Type
			break
		}
	}
	var want core.TxType
	switch catType {
	case core.IncomeCategory:
		want = core.Income
	case core.ExpenseCategory:
		want = core.Expense
	default:
		return core.Money{}
	}

	in := make(map[string]struct{})
	for _, id := range RollupCategoryIDs(b.CategoryID, categories) {
		in[id] = struct{}{}
	}

	var total core.Money
	for _, tx := range txs {
		if tx.Type != want {
			continue
		}
		if _, ok := in[tx.CategoryID]; !ok {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total
}

// BudgetStore is the persistence surface budget rollups read from.
type BudgetStore interface {
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
}

// BudgetService computes budgets with their derived spent totals. Spent is
// always recomputed from transactions, never stored.
type BudgetService struct {
	store BudgetStore
}

func NewBudgetService(store BudgetStore) *BudgetService {
	return &BudgetService{store: store}
}

// List returns all budgets with Spent filled in.
func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return budgets, nil
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range budgets {
		budgets[i].Spent = Spent(budgets[i], categories, txs)
	}
	return budgets, nil
}
