package http

import (
	"net/http"

	"github.com/google/uuid"

	"finledger/internal/core"
	"finledger/internal/recurrence"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.budgets.List(r.Context(), s.requestUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

// handleUpsertBudget creates or replaces the budget for a category. One
// budget per category; a second upsert for the same category overwrites the
// limit.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var b core.Budget
	if err := readJSON(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := b.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.UpsertBudget(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteBudget(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleCashflow returns the six-month window of realized and predicted
// flows centered on the current month.
func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	userID := s.requestUser(r)

	txs, err := s.store.ListTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	schedules, err := s.schedules.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	flows := recurrence.Project(core.Today(), txs, schedules)
	writeJSON(w, http.StatusOK, flows)
}
