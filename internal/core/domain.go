// Package core holds the domain model shared by every other package:
// accounts, transactions, schedules, categories, budgets, calendar dates,
// money amounts and the error taxonomy.
package core

import (
	"strings"
)

// TxType is the closed set of transaction kinds. Balance math switches
// exhaustively over it; adding a kind is a compile-time exercise.
type TxType string

const (
	Income     TxType = "income"
	Expense    TxType = "expense"
	Transfer   TxType = "transfer"
	Adjustment TxType = "adjustment"
)

// Valid reports whether t is one of the known transaction kinds.
func (t TxType) Valid() bool {
	switch t {
	case Income, Expense, Transfer, Adjustment:
		return true
	default:
		return false
	}
}

// Frequency is the recurrence period of a schedule.
type Frequency string

const (
	Once    Frequency = "once"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case Once, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// AccountType tags an account for presentation and asset handling.
type AccountType string

const (
	Checking   AccountType = "checking"
	Credit     AccountType = "credit"
	Investment AccountType = "investment"
	Cash       AccountType = "cash"
	OtherAsset AccountType = "other"
)

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Credit, Investment, Cash, OtherAsset:
		return true
	default:
		return false
	}
}

// CategoryType is the income/expense side of a category.
type CategoryType string

const (
	IncomeCategory  CategoryType = "income"
	ExpenseCategory CategoryType = "expense"
)

func (t CategoryType) Valid() bool {
	return t == IncomeCategory || t == ExpenseCategory
}

// Money is an amount in integer cents, avoiding float rounding drift.
type Money struct {
	Cents int64 `json:"cents"`
}

// Add returns m + x.
func (m Money) Add(x Money) Money { return Money{Cents: m.Cents + x.Cents} }

// Neg returns -m.
func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

// Account is a balance-bearing ledger account. Balance is mutated only by
// the ledger engine, never written directly by callers.
type Account struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Currency string      `json:"currency"`
	Type     AccountType `json:"type"`
	Balance  Money       `json:"balance"`
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return Validationf("account name cannot be empty")
	}
	if !a.Type.Valid() {
		return Validationf("invalid account type %q", a.Type)
	}
	return nil
}

// Transaction is a realized ledger entry. Amount is stored non-negative and
// the sign is implied by Type, with one exception: an adjustment carries a
// signed delta and is the only kind whose amount may be negative.
type Transaction struct {
	ID          string `json:"id"`
	UserID      string `json:"userId,omitempty"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Date        Date   `json:"date"`
	Type        TxType `json:"type"`
	AccountID   string `json:"accountId"`
	ToAccountID string `json:"toAccountId,omitempty"` // required iff Type == Transfer
	CategoryID  string `json:"categoryId,omitempty"`  // required iff Type is income or expense
	AssetID     string `json:"assetId,omitempty"`     // only meaningful on a transfer into an investment account
	ExternalID  string `json:"externalId,omitempty"`  // opaque dedup key, unique per user when present
}

const maxDescriptionLen = 200

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return Validationf("description cannot be empty")
	}
	if len(t.Description) > maxDescriptionLen {
		return Validationf("description too long (max %d characters)", maxDescriptionLen)
	}
	if !t.Type.Valid() {
		return Validationf("invalid transaction type %q", t.Type)
	}
	if t.Amount.Cents < 0 && t.Type != Adjustment {
		return Validationf("%s amount cannot be negative", t.Type)
	}
	if t.AccountID == "" {
		return Validationf("account is required")
	}
	switch t.Type {
	case Income, Expense:
		if t.CategoryID == "" {
			return Validationf("category is required for %s transactions", t.Type)
		}
		if t.ToAccountID != "" {
			return Validationf("%s transactions cannot have a destination account", t.Type)
		}
	case Transfer:
		if t.ToAccountID == "" {
			return Validationf("transfer requires a destination account")
		}
		if t.ToAccountID == t.AccountID {
			return Validationf("transfer source and destination must differ")
		}
		if t.CategoryID != "" {
			return Validationf("transfers cannot have a category")
		}
	case Adjustment:
		if t.ToAccountID != "" || t.CategoryID != "" {
			return Validationf("adjustments cannot have a destination account or category")
		}
	}
	if t.AssetID != "" && t.Type != Transfer {
		return Validationf("asset is only valid on a transfer")
	}
	return nil
}

// Schedule is a template for a future or recurring transaction. It shares
// the Transaction shape minus the import-specific fields.
type Schedule struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	Description string    `json:"description"`
	Amount      Money     `json:"amount"`
	Date        Date      `json:"date"`
	Type        TxType    `json:"type"`
	AccountID   string    `json:"accountId"`
	ToAccountID string    `json:"toAccountId,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Frequency   Frequency `json:"frequency"`
}

func (s Schedule) Validate() error {
	if !s.Frequency.Valid() {
		return Validationf("invalid frequency %q", s.Frequency)
	}
	if s.Amount.Cents < 0 {
		return Validationf("schedule amount cannot be negative")
	}
	// The rest of the shape follows transaction rules.
	return s.Template().Validate()
}

// Template returns the schedule's fields as an unrealized transaction.
func (s Schedule) Template() Transaction {
	return Transaction{
		UserID:      s.UserID,
		Description: s.Description,
		Amount:      s.Amount,
		Date:        s.Date,
		Type:        s.Type,
		AccountID:   s.AccountID,
		ToAccountID: s.ToAccountID,
		CategoryID:  s.CategoryID,
	}
}

// Category is a two-level income/expense taxonomy node. A child's type must
// match its parent's type; nesting never exceeds depth two.
type Category struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     CategoryType `json:"type"`
	ParentID string       `json:"parentId,omitempty"`
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Validationf("category name cannot be empty")
	}
	if !c.Type.Valid() {
		return Validationf("invalid category type %q", c.Type)
	}
	if c.ParentID == c.ID && c.ID != "" {
		return Validationf("category cannot be its own parent")
	}
	return nil
}

// Budget caps monthly spending for a category. Spent is always derived from
// transactions, never stored independently.
type Budget struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
	Limit      Money  `json:"limit"`
	Spent      Money  `json:"spent"`
}

func (b Budget) Validate() error {
	if b.CategoryID == "" {
		return Validationf("budget requires a category")
	}
	if b.Limit.Cents < 0 {
		return Validationf("budget limit cannot be negative")
	}
	return nil
}
