package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"argus/hunt"
	"argus/storage"
)

// RunQueryRequest is the body of POST /api/v1/hunt/query.
type RunQueryRequest struct {
	Query    string `json:"query" validate:"required"`
	Language string `json:"language"`
}

// RunQueryResponse is the success shape of a hunt query.
type RunQueryResponse struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int64                    `json:"row_count"`
	ElapsedMs float64                  `json:"elapsed_ms"`
}

// QueryErrorResponse carries the raw failure plus the advisor's hint.
type QueryErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// SaveQueryRequest is the body of POST /api/v1/hunt/saved.
type SaveQueryRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=128"`
	Query    string `json:"query" validate:"required"`
	Language string `json:"language"`
}

// runQuery handles POST /api/v1/hunt/query.
func (a *API) runQuery(w http.ResponseWriter, r *http.Request) {
	principalID, _ := GetPrincipalID(r.Context())

	var req RunQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "query is required", err, a.logger)
		return
	}

	result, err := a.engine.RunQuery(r.Context(), principalID, req.Query, req.Language)
	if err != nil {
		a.respondQueryError(w, err)
		return
	}

	a.respondJSON(w, RunQueryResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		ElapsedMs: result.ElapsedMs,
	}, http.StatusOK)
}

// saveQuery handles POST /api/v1/hunt/saved. The query text is persisted
// verbatim and not executed.
func (a *API) saveQuery(w http.ResponseWriter, r *http.Request) {
	principalID, _ := GetPrincipalID(r.Context())

	var req SaveQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "name and query are required", err, a.logger)
		return
	}

	id, err := a.engine.SaveQuery(r.Context(), principalID, req.Name, req.Query, req.Language)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save query", err, a.logger)
		return
	}

	a.respondJSON(w, map[string]string{"id": id}, http.StatusCreated)
}

// listSaved handles GET /api/v1/hunt/saved.
func (a *API) listSaved(w http.ResponseWriter, r *http.Request) {
	principalID, _ := GetPrincipalID(r.Context())

	saved, err := a.engine.Saved(r.Context(), principalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list saved queries", err, a.logger)
		return
	}
	a.respondJSON(w, saved, http.StatusOK)
}

// runSaved handles POST /api/v1/hunt/saved/{id}/run. The saved text goes
// through the full translate/isolate/execute pipeline, so the ownership
// predicate reflects the current caller.
func (a *API) runSaved(w http.ResponseWriter, r *http.Request) {
	principalID, _ := GetPrincipalID(r.Context())
	id := mux.Vars(r)["id"]

	result, err := a.engine.RunSaved(r.Context(), principalID, id)
	if err != nil {
		if errors.Is(err, storage.ErrSavedQueryNotFound) {
			writeError(w, http.StatusNotFound, "Saved query not found", nil, a.logger)
			return
		}
		a.respondQueryError(w, err)
		return
	}

	a.respondJSON(w, RunQueryResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		ElapsedMs: result.ElapsedMs,
	}, http.StatusOK)
}

// deleteSaved handles DELETE /api/v1/hunt/saved/{id}.
func (a *API) deleteSaved(w http.ResponseWriter, r *http.Request) {
	principalID, _ := GetPrincipalID(r.Context())
	id := mux.Vars(r)["id"]

	if err := a.engine.DeleteSaved(r.Context(), principalID, id); err != nil {
		if errors.Is(err, storage.ErrSavedQueryNotFound) {
			writeError(w, http.StatusNotFound, "Saved query not found", nil, a.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete saved query", err, a.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listHistory handles GET /api/v1/hunt/history.
func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	principalID, _ := GetPrincipalID(r.Context())

	limit := a.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := a.engine.History(r.Context(), principalID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list query history", err, a.logger)
		return
	}
	a.respondJSON(w, entries, http.StatusOK)
}

// getSchema handles GET /api/v1/hunt/schema: the data dictionary surfaced to
// the query editor for autocompletion and docs.
func (a *API) getSchema(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, a.engine.Catalog().Entities(), http.StatusOK)
}

// respondQueryError maps engine failures to HTTP status codes, always
// attaching the advisor hint when one exists.
func (a *API) respondQueryError(w http.ResponseWriter, err error) {
	var queryErr *hunt.QueryError
	if !errors.As(err, &queryErr) {
		writeError(w, http.StatusInternalServerError, "Query failed", err, a.logger)
		return
	}

	status := http.StatusInternalServerError
	var translationErr *hunt.TranslationError
	var execErr *hunt.ExecutionError
	switch {
	case errors.As(queryErr.Err, &translationErr):
		status = http.StatusBadRequest
	case errors.As(queryErr.Err, &execErr):
		switch execErr.Kind {
		case hunt.KindSyntax, hunt.KindMissingColumn:
			status = http.StatusBadRequest
		case hunt.KindPermissionDenied:
			status = http.StatusForbidden
		case hunt.KindTimeout:
			status = http.StatusServiceUnavailable
		}
	}

	a.logger.Warnw("Hunt query rejected", "status", status, "error", queryErr.Err)
	a.respondJSON(w, QueryErrorResponse{
		Error: queryErr.Err.Error(),
		Hint:  queryErr.Hint,
	}, status)
}
