package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finledger/internal/core"
)

type fakeStore struct {
	accounts   map[string]core.Account
	categories []core.Category
	budgets    map[string]core.Budget
	txs        []core.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]core.Account),
		budgets:  make(map[string]core.Budget),
	}
}

func (f *fakeStore) CreateAccount(_ context.Context, a core.Account) error {
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (core.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return core.Account{}, &core.ReferenceError{Entity: "account", ID: id}
	}
	return a, nil
}

func (f *fakeStore) ListAccounts(context.Context) ([]core.Account, error) {
	out := make([]core.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, a core.Account) error {
	if _, ok := f.accounts[a.ID]; !ok {
		return &core.ReferenceError{Entity: "account", ID: a.ID}
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeStore) DeleteAccount(_ context.Context, id string) error {
	if _, ok := f.accounts[id]; !ok {
		return &core.ReferenceError{Entity: "account", ID: id}
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) ListTransactions(context.Context, string) ([]core.Transaction, error) {
	return f.txs, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c core.Category) error {
	f.categories = append(f.categories, c)
	return nil
}

func (f *fakeStore) ListCategories(context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) DeleteCategory(context.Context, string) error { return nil }

func (f *fakeStore) UpsertBudget(_ context.Context, b core.Budget) error {
	f.budgets[b.ID] = b
	return nil
}

func (f *fakeStore) DeleteBudget(context.Context, string) error { return nil }

func testServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	s := NewServer(":0", Deps{Store: store, UserID: "default"})
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s, store
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := testServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestAccountLifecycle(t *testing.T) {
	s, store := testServer(t)

	body := `{"name":"Checking","currency":"EUR","type":"checking"}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account = %d, body %s", rec.Code, rec.Body.String())
	}

	var created core.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Error("no id assigned")
	}
	if _, ok := store.accounts[created.ID]; !ok {
		t.Error("account not stored")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/accounts/"+created.ID, nil)
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("get account = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/accounts/missing", nil)
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing account = %d, want 404", rec.Code)
	}
}

func TestCreateAccountRejectsInvalid(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(`{"name":"","type":"checking"}`))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("create invalid account = %d, want 422", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("create with bad body = %d, want 422", rec.Code)
	}
}

func TestSuggestEndpointsWithoutSuggester(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import/suggest-mapping", strings.NewReader(`{"headers":["a"]}`))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("suggest without suggester = %d, want 501", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{core.Validationf("bad"), http.StatusUnprocessableEntity},
		{&core.ReferenceError{Entity: "account", ID: "x"}, http.StatusNotFound},
		{&core.ConflictError{ExternalID: "X1"}, http.StatusConflict},
		{core.Persistencef("op", errors.New("down")), http.StatusBadGateway},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.status {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < requestsPerMinute; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d rejected under the budget", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Error("request above the budget allowed")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other clients should be unaffected")
	}
}
