// Package storage is the SQLite persistence collaborator. It owns every
// read and write, applies ledger deltas atomically inside SQL transactions,
// and fronts account reads with a cache that is refreshed after each
// mutation.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/ledger"
)

const (
	accountCacheSize = 256
	accountCacheTTL  = 5 * time.Minute
)

type SQLiteRepository struct {
	db       *sql.DB
	accounts *cache.LRU[core.Account]
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:       db,
		accounts: cache.NewLRU[core.Account](accountCacheSize, accountCacheTTL),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// isUniqueViolation matches the driver's message for unique index breaches.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// ---- accounts ----

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, currency, type, balance_cents) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Currency, string(a.Type), a.Balance.Cents)
	if err != nil {
		return core.Persistencef("create account", err)
	}
	r.accounts.Set(a.ID, a)

	slog.InfoContext(ctx, "Account created",
		"id", a.ID,
		"name", a.Name,
		"type", a.Type,
		"balance_cents", a.Balance.Cents)
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	if a, ok := r.accounts.Get(id); ok {
		return a, nil
	}

	var a core.Account
	var accType string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, currency, type, balance_cents FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Currency, &accType, &a.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, &core.ReferenceError{Entity: "account", ID: id}
	}
	if err != nil {
		return core.Account{}, core.Persistencef("get account", err)
	}
	a.Type = core.AccountType(accType)
	r.accounts.Set(a.ID, a)
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, currency, type, balance_cents FROM accounts ORDER BY name`)
	if err != nil {
		return nil, core.Persistencef("list accounts", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var accType string
		if err := rows.Scan(&a.ID, &a.Name, &a.Currency, &accType, &a.Balance.Cents); err != nil {
			return nil, core.Persistencef("scan account", err)
		}
		a.Type = core.AccountType(accType)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccount changes the descriptive fields only. The balance is never
// written here; it moves exclusively through ledger deltas.
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, currency = ?, type = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		a.Name, a.Currency, string(a.Type), a.ID)
	if err != nil {
		return core.Persistencef("update account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.ReferenceError{Entity: "account", ID: a.ID}
	}
	r.accounts.Delete(a.ID)
	return nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return core.Persistencef("delete account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.ReferenceError{Entity: "account", ID: id}
	}
	r.accounts.Delete(id)
	return nil
}

// applyDeltas adjusts balances inside an open SQL transaction and reads the
// updated accounts back. A delta against a missing account aborts the whole
// transaction.
func (r *SQLiteRepository) applyDeltas(ctx context.Context, tx *sql.Tx, deltas []ledger.Delta) ([]core.Account, error) {
	updated := make([]core.Account, 0, len(deltas))
	for _, d := range deltas {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			d.Cents, d.AccountID)
		if err != nil {
			return nil, core.Persistencef("apply balance delta", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, &core.ReferenceError{Entity: "account", ID: d.AccountID}
		}

		var a core.Account
		var accType string
		err = tx.QueryRowContext(ctx,
			`SELECT id, name, currency, type, balance_cents FROM accounts WHERE id = ?`, d.AccountID).
			Scan(&a.ID, &a.Name, &a.Currency, &accType, &a.Balance.Cents)
		if err != nil {
			return nil, core.Persistencef("read back account", err)
		}
		a.Type = core.AccountType(accType)
		updated = append(updated, a)
	}
	return updated, nil
}

// refreshAccounts updates the cache after a committed mutation.
func (r *SQLiteRepository) refreshAccounts(accounts []core.Account) {
	for _, a := range accounts {
		r.accounts.Set(a.ID, a)
	}
}

// ---- transactions (ledger.Store) ----

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, description, amount_cents, date, type, account_id, to_account_id, category_id, asset_id, external_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Description, t.Amount.Cents, t.Date.String(), string(t.Type),
		t.AccountID, nullStr(t.ToAccountID), nullStr(t.CategoryID), nullStr(t.AssetID), nullStr(t.ExternalID))
	return err
}

// CreateTransaction inserts the record and applies its balance deltas in one
// SQL transaction. A duplicate external id surfaces as a ConflictError.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction, deltas []ledger.Delta) ([]core.Account, error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Persistencef("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := insertTransaction(ctx, sqlTx, t); err != nil {
		if isUniqueViolation(err) {
			return nil, &core.ConflictError{ExternalID: t.ExternalID}
		}
		return nil, core.Persistencef("insert transaction", err)
	}
	updated, err := r.applyDeltas(ctx, sqlTx, deltas)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, core.Persistencef("commit transaction", err)
	}
	r.refreshAccounts(updated)

	slog.InfoContext(ctx, "Transaction committed",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"account_id", t.AccountID)
	return updated, nil
}

// UpdateTransaction replaces the stored record and applies the merged
// reverse+apply deltas atomically, so the intermediate reverted balance is
// never observable.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction, deltas []ledger.Delta) ([]core.Account, error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Persistencef("begin transaction", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx,
		`UPDATE transactions
		 SET description = ?, amount_cents = ?, date = ?, type = ?, account_id = ?, to_account_id = ?, category_id = ?, asset_id = ?, external_id = ?
		 WHERE id = ?`,
		t.Description, t.Amount.Cents, t.Date.String(), string(t.Type),
		t.AccountID, nullStr(t.ToAccountID), nullStr(t.CategoryID), nullStr(t.AssetID), nullStr(t.ExternalID), t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &core.ConflictError{ExternalID: t.ExternalID}
		}
		return nil, core.Persistencef("update transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.ReferenceError{Entity: "transaction", ID: t.ID}
	}
	updated, err := r.applyDeltas(ctx, sqlTx, deltas)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, core.Persistencef("commit transaction", err)
	}
	r.refreshAccounts(updated)
	return updated, nil
}

// DeleteTransaction removes the record and applies the reversal deltas
// atomically.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string, deltas []ledger.Delta) ([]core.Account, error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Persistencef("begin transaction", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return nil, core.Persistencef("delete transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.ReferenceError{Entity: "transaction", ID: id}
	}
	updated, err := r.applyDeltas(ctx, sqlTx, deltas)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, core.Persistencef("commit transaction", err)
	}
	r.refreshAccounts(updated)
	return updated, nil
}

const txColumns = `id, user_id, description, amount_cents, date, type, account_id, to_account_id, category_id, asset_id, external_id`

func scanTransaction(scan func(...any) error) (core.Transaction, error) {
	var t core.Transaction
	var date, txType string
	var toAccount, category, asset, external sql.NullString
	err := scan(&t.ID, &t.UserID, &t.Description, &t.Amount.Cents, &date, &txType,
		&t.AccountID, &toAccount, &category, &asset, &external)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TxType(txType)
	t.ToAccountID = strOrEmpty(toAccount)
	t.CategoryID = strOrEmpty(category)
	t.AssetID = strOrEmpty(asset)
	t.ExternalID = strOrEmpty(external)
	t.Date, err = core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("corrupt stored date: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, &core.ReferenceError{Entity: "transaction", ID: id}
	}
	if err != nil {
		return core.Transaction{}, core.Persistencef("get transaction", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, core.Persistencef("list transactions", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, core.Persistencef("scan transaction", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListExternalIDs returns every persisted external id for the user. The
// import pipeline calls this once per batch, never per row.
func (r *SQLiteRepository) ListExternalIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT external_id FROM transactions WHERE user_id = ? AND external_id IS NOT NULL AND external_id != ''`,
		userID)
	if err != nil {
		return nil, core.Persistencef("list external ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.Persistencef("scan external id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- categories ----

// CreateCategory enforces the two-level hierarchy: a parent must itself be a
// top-level category of the same income/expense side.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	if c.ParentID != "" {
		parent, err := r.GetCategory(ctx, c.ParentID)
		if err != nil {
			return err
		}
		if parent.ParentID != "" {
			return core.Validationf("category nesting deeper than two levels")
		}
		if parent.Type != c.Type {
			return core.Validationf("category type %q does not match parent type %q", c.Type, parent.Type)
		}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, type, parent_id) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), nullStr(c.ParentID))
	if err != nil {
		return core.Persistencef("create category", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	var catType string
	var parent sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, parent_id FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &catType, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, &core.ReferenceError{Entity: "category", ID: id}
	}
	if err != nil {
		return core.Category{}, core.Persistencef("get category", err)
	}
	c.Type = core.CategoryType(catType)
	c.ParentID = strOrEmpty(parent)
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, parent_id FROM categories ORDER BY type, name`)
	if err != nil {
		return nil, core.Persistencef("list categories", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		var catType string
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &catType, &parent); err != nil {
			return nil, core.Persistencef("scan category", err)
		}
		c.Type = core.CategoryType(catType)
		c.ParentID = strOrEmpty(parent)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return core.Persistencef("delete category", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.ReferenceError{Entity: "category", ID: id}
	}
	return nil
}

// ---- schedules ----

func (r *SQLiteRepository) CreateSchedule(ctx context.Context, s core.Schedule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (id, user_id, description, amount_cents, date, type, account_id, to_account_id, category_id, frequency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Description, s.Amount.Cents, s.Date.String(), string(s.Type),
		s.AccountID, nullStr(s.ToAccountID), nullStr(s.CategoryID), string(s.Frequency))
	if err != nil {
		return core.Persistencef("create schedule", err)
	}
	return nil
}

func scanSchedule(scan func(...any) error) (core.Schedule, error) {
	var s core.Schedule
	var date, txType, freq string
	var toAccount, category sql.NullString
	err := scan(&s.ID, &s.UserID, &s.Description, &s.Amount.Cents, &date, &txType,
		&s.AccountID, &toAccount, &category, &freq)
	if err != nil {
		return core.Schedule{}, err
	}
	s.Type = core.TxType(txType)
	s.Frequency = core.Frequency(freq)
	s.ToAccountID = strOrEmpty(toAccount)
	s.CategoryID = strOrEmpty(category)
	s.Date, err = core.ParseDate(date)
	if err != nil {
		return core.Schedule{}, fmt.Errorf("corrupt stored date: %w", err)
	}
	return s, nil
}

const scheduleColumns = `id, user_id, description, amount_cents, date, type, account_id, to_account_id, category_id, frequency`

func (r *SQLiteRepository) GetSchedule(ctx context.Context, id string) (core.Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Schedule{}, &core.ReferenceError{Entity: "schedule", ID: id}
	}
	if err != nil {
		return core.Schedule{}, core.Persistencef("get schedule", err)
	}
	return s, nil
}

func (r *SQLiteRepository) listSchedules(ctx context.Context, query string, args ...any) ([]core.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Persistencef("list schedules", err)
	}
	defer rows.Close()

	var schedules []core.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, core.Persistencef("scan schedule", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *SQLiteRepository) ListSchedules(ctx context.Context, userID string) ([]core.Schedule, error) {
	return r.listSchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE user_id = ? ORDER BY date`, userID)
}

// ListDueSchedules returns schedules dated on or before the given date.
func (r *SQLiteRepository) ListDueSchedules(ctx context.Context, userID string, due core.Date) ([]core.Schedule, error) {
	return r.listSchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE user_id = ? AND date <= ? ORDER BY date`,
		userID, due.String())
}

func (r *SQLiteRepository) UpdateSchedule(ctx context.Context, s core.Schedule) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE schedules
		 SET description = ?, amount_cents = ?, date = ?, type = ?, account_id = ?, to_account_id = ?, category_id = ?, frequency = ?
		 WHERE id = ?`,
		s.Description, s.Amount.Cents, s.Date.String(), string(s.Type),
		s.AccountID, nullStr(s.ToAccountID), nullStr(s.CategoryID), string(s.Frequency), s.ID)
	if err != nil {
		return core.Persistencef("update schedule", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.ReferenceError{Entity: "schedule", ID: s.ID}
	}
	return nil
}

func (r *SQLiteRepository) DeleteSchedule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return core.Persistencef("delete schedule", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.ReferenceError{Entity: "schedule", ID: id}
	}
	return nil
}

// PaySchedule realizes a schedule in one SQL transaction: insert the
// realized record, apply its balance deltas, then either retire a one-shot
// schedule or advance its date. Collapsing the two phases server-side closes
// the consistency window a client-driven pay sequence would leave open.
func (r *SQLiteRepository) PaySchedule(ctx context.Context, realized core.Transaction, deltas []ledger.Delta, scheduleID string, next core.Date, retire bool) ([]core.Account, error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Persistencef("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := insertTransaction(ctx, sqlTx, realized); err != nil {
		if isUniqueViolation(err) {
			return nil, &core.ConflictError{ExternalID: realized.ExternalID}
		}
		return nil, core.Persistencef("insert realized transaction", err)
	}
	updated, err := r.applyDeltas(ctx, sqlTx, deltas)
	if err != nil {
		return nil, err
	}

	if retire {
		_, err = sqlTx.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, scheduleID)
	} else {
		_, err = sqlTx.ExecContext(ctx, `UPDATE schedules SET date = ? WHERE id = ?`, next.String(), scheduleID)
	}
	if err != nil {
		return nil, core.Persistencef("advance schedule", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, core.Persistencef("commit transaction", err)
	}
	r.refreshAccounts(updated)

	slog.InfoContext(ctx, "Schedule paid",
		"schedule_id", scheduleID,
		"transaction_id", realized.ID,
		"retired", retire)
	return updated, nil
}

// ---- budgets ----

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, category_id, limit_cents) VALUES (?, ?, ?)
		 ON CONFLICT(category_id) DO UPDATE SET limit_cents = excluded.limit_cents`,
		b.ID, b.CategoryID, b.Limit.Cents)
	if err != nil {
		return core.Persistencef("upsert budget", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, category_id, limit_cents FROM budgets`)
	if err != nil {
		return nil, core.Persistencef("list budgets", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Limit.Cents); err != nil {
			return nil, core.Persistencef("scan budget", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return core.Persistencef("delete budget", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.ReferenceError{Entity: "budget", ID: id}
	}
	return nil
}
