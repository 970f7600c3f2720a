// Package http exposes the ledger over a JSON API: account, category,
// transaction, schedule and budget resources plus the cash-flow projection
// and the statement import pipeline.
package http

import (
	"context"
	"net/http"
	"sync"

	"finledger/internal/core"
	"finledger/internal/importer"
	"finledger/internal/services"
)

// Store is the direct persistence surface the handlers use for plain reads
// and for resources without balance effects. Mutations with balance effects
// go through the services instead.
type Store interface {
	CreateAccount(ctx context.Context, a core.Account) error
	GetAccount(ctx context.Context, id string) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) error
	DeleteAccount(ctx context.Context, id string) error

	ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)

	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context) ([]core.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	UpsertBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, id string) error
}

// Suggester mirrors suggest.Client; nil disables the suggestion endpoints.
type Suggester interface {
	SuggestColumnMapping(ctx context.Context, headers []string, sampleRows [][]string) (importer.ColumnMapping, error)
	SuggestCategories(ctx context.Context, rows map[int]string, catalog []core.Category) (map[int]string, error)
}

type Deps struct {
	Store        Store
	Transactions *services.TransactionService
	Schedules    *services.ScheduleService
	Imports      *services.ImportService
	Budgets      *services.BudgetService
	Suggester    Suggester
	UserID       string
}

type Server struct {
	http.Server

	store        Store
	transactions *services.TransactionService
	schedules    *services.ScheduleService
	imports      *services.ImportService
	budgets      *services.BudgetService
	suggester    Suggester
	userID       string

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:        deps.Store,
		transactions: deps.Transactions,
		schedules:    deps.Schedules,
		imports:      deps.Imports,
		budgets:      deps.Budgets,
		suggester:    deps.Suggester,
		userID:       deps.UserID,
		rateLimiter:  newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/accounts", s.guard(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.guard(s.handleCreateAccount))
	mux.HandleFunc("GET /api/accounts/{id}", s.guard(s.handleGetAccount))
	mux.HandleFunc("PUT /api/accounts/{id}", s.guard(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.guard(s.handleDeleteAccount))

	mux.HandleFunc("GET /api/categories", s.guard(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.guard(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.guard(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/transactions", s.guard(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.guard(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.guard(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.guard(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/schedules", s.guard(s.handleListSchedules))
	mux.HandleFunc("POST /api/schedules", s.guard(s.handleCreateSchedule))
	mux.HandleFunc("PUT /api/schedules/{id}", s.guard(s.handleUpdateSchedule))
	mux.HandleFunc("DELETE /api/schedules/{id}", s.guard(s.handleDeleteSchedule))
	mux.HandleFunc("POST /api/schedules/{id}/pay", s.guard(s.handlePaySchedule))

	mux.HandleFunc("GET /api/budgets", s.guard(s.handleListBudgets))
	mux.HandleFunc("PUT /api/budgets", s.guard(s.handleUpsertBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.guard(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/cashflow", s.guard(s.handleCashflow))

	mux.HandleFunc("POST /api/import", s.guard(s.handleImport))
	mux.HandleFunc("POST /api/import/suggest-mapping", s.guard(s.handleSuggestMapping))
	mux.HandleFunc("POST /api/import/suggest-categories", s.guard(s.handleSuggestCategories))

	return s
}

// Shutdown stops the server and its cleanup goroutines once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
