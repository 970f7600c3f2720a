package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"finledger/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"path", r.URL.Path, "status_code", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Validationf("invalid request body: %v", err)
	}
	return nil
}

// requestUser resolves the ledger owner: the user query parameter wins,
// then the configured default.
func (s *Server) requestUser(r *http.Request) string {
	if u := r.URL.Query().Get("user"); u != "" {
		return u
	}
	return s.userID
}

func pathID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if id == "" {
		return "", core.Validationf("missing id in path")
	}
	return id, nil
}
