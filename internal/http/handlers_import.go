package http

import (
	"net/http"

	"finledger/internal/core"
	"finledger/internal/importer"
	"finledger/internal/services"
)

type importRequest struct {
	Rows       [][]string             `json:"rows"`
	Mapping    importer.ColumnMapping `json:"mapping"`
	AccountID  string                 `json:"accountId"`
	Categories map[int]string         `json:"categories,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.imports.Run(r.Context(), services.ImportRequest{
		UserID:     s.requestUser(r),
		Rows:       req.Rows,
		Mapping:    req.Mapping,
		AccountID:  req.AccountID,
		Categories: req.Categories,
	})
	if err != nil {
		// Partial state is real: report it alongside the failure.
		writeJSON(w, errorStatus(err), map[string]any{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func errorStatus(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case core.IsReference(err):
		return http.StatusNotFound
	case core.IsConflict(err):
		return http.StatusConflict
	case core.IsPersistence(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type suggestMappingRequest struct {
	Headers    []string   `json:"headers"`
	SampleRows [][]string `json:"sampleRows"`
}

func (s *Server) handleSuggestMapping(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "suggestions are not configured"})
		return
	}
	var req suggestMappingRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	mapping, err := s.suggester.SuggestColumnMapping(r.Context(), req.Headers, req.SampleRows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

type suggestCategoriesRequest struct {
	Rows map[int]string `json:"rows"` // line number -> description
}

func (s *Server) handleSuggestCategories(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "suggestions are not configured"})
		return
	}
	var req suggestCategoriesRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	catalog, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	suggestions, err := s.suggester.SuggestCategories(r.Context(), req.Rows, catalog)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}
