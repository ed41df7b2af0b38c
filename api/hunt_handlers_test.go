package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/config"
	"argus/hunt"
	"argus/storage"
)

const testJWTSecret = "test-secret"

// stubBackend returns canned rows or a canned error and records the SQL it
// receives.
type stubBackend struct {
	mu    sync.Mutex
	calls []string
	rows  int
	err   error
}

func (b *stubBackend) Query(ctx context.Context, sql string) (*hunt.Recordset, error) {
	b.mu.Lock()
	b.calls = append(b.calls, sql)
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	rows := make([]map[string]interface{}, b.rows)
	for i := range rows {
		rows[i] = map[string]interface{}{"id": fmt.Sprintf("inc-%d", i), "severity": "critical"}
	}
	return &hunt.Recordset{Columns: []string{"id", "severity"}, Rows: rows}, nil
}

func (b *stubBackend) lastSQL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		return ""
	}
	return b.calls[len(b.calls)-1]
}

func newTestAPI(t *testing.T, backend hunt.Backend) *API {
	t.Helper()
	logger := zap.NewNop().Sugar()

	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "argus.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	history, err := storage.NewSQLiteHuntQueryStorage(db, logger)
	require.NoError(t, err)

	engine := hunt.NewEngine(hunt.DefaultCatalog(), backend, history, logger)

	cfg := &config.Config{}
	cfg.API.Port = 8081
	cfg.API.JWTSecret = testJWTSecret
	cfg.API.RateLimitRPS = 100
	cfg.API.RateLimitBurst = 100
	cfg.Query.HistoryLimit = 50

	return NewAPI(engine, cfg, logger)
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, a *API, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAPI_Authentication(t *testing.T) {
	a := newTestAPI(t, &stubBackend{})

	tests := []struct {
		name     string
		token    string
		expected int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", signToken(t, "other-secret", "U1"), http.StatusUnauthorized},
		{"no subject", signToken(t, testJWTSecret, ""), http.StatusUnauthorized},
		{"valid token", signToken(t, testJWTSecret, "U1"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, a, http.MethodGet, "/api/v1/hunt/history", tt.token, nil)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestAPI_HealthNeedsNoAuth(t *testing.T) {
	a := newTestAPI(t, &stubBackend{})
	rec := doRequest(t, a, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RunQuery(t *testing.T) {
	backend := &stubBackend{rows: 2}
	a := newTestAPI(t, backend)
	token := signToken(t, testJWTSecret, "U1")

	rec := doRequest(t, a, http.MethodPost, "/api/v1/hunt/query", token, RunQueryRequest{
		Query: `incidents | where severity == "critical" | take 10`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RunQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.RowCount)
	assert.Len(t, resp.Rows, 2)
	assert.Equal(t, []string{"id", "severity"}, resp.Columns)

	assert.Equal(t,
		"SELECT * FROM incidents WHERE owner = 'U1' AND severity = 'critical' LIMIT 10",
		backend.lastSQL())
}

func TestAPI_RunQueryValidation(t *testing.T) {
	a := newTestAPI(t, &stubBackend{})
	token := signToken(t, testJWTSecret, "U1")

	rec := doRequest(t, a, http.MethodPost, "/api/v1/hunt/query", token, RunQueryRequest{Query: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestAPI_RunQueryBlank tests that whitespace-only input returns 400 with a
// usable hint.
func TestAPI_RunQueryBlank(t *testing.T) {
	backend := &stubBackend{}
	a := newTestAPI(t, backend)
	token := signToken(t, testJWTSecret, "U1")

	rec := doRequest(t, a, http.MethodPost, "/api/v1/hunt/query", token, RunQueryRequest{Query: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp QueryErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
	assert.NotEmpty(t, resp.Hint)
	assert.Empty(t, backend.calls, "blank input must not reach the backend")
}

func TestAPI_QueryErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected int
	}{
		{"syntax", "syntax error near LIMIT", http.StatusBadRequest},
		{"missing column", "unknown identifier: sevrity", http.StatusBadRequest},
		{"permission", "permission denied for table incidents", http.StatusForbidden},
		{"timeout", "query timed out", http.StatusServiceUnavailable},
		{"unknown", "disk quota exhausted", http.StatusInternalServerError},
	}

	token := signToken(t, testJWTSecret, "U1")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, &stubBackend{err: fmt.Errorf("%s", tt.message)})

			rec := doRequest(t, a, http.MethodPost, "/api/v1/hunt/query", token, RunQueryRequest{
				Query: `incidents | take 5`,
			})
			assert.Equal(t, tt.expected, rec.Code, rec.Body.String())

			var resp QueryErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Hint)
		})
	}
}

func TestAPI_SavedQueryLifecycle(t *testing.T) {
	backend := &stubBackend{rows: 1}
	a := newTestAPI(t, backend)
	token := signToken(t, testJWTSecret, "U1")

	// Save.
	rec := doRequest(t, a, http.MethodPost, "/api/v1/hunt/saved", token, SaveQueryRequest{
		Name:  "critical incidents",
		Query: `incidents | where severity == "critical"`,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	require.NotEmpty(t, id)

	// List.
	rec = doRequest(t, a, http.MethodGet, "/api/v1/hunt/saved", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var saved []hunt.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "critical incidents", saved[0].SavedName)

	// Run: the predicate comes from the caller's token.
	rec = doRequest(t, a, http.MethodPost, "/api/v1/hunt/saved/"+id+"/run", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, backend.lastSQL(), "owner = 'U1'")

	// Invisible to another principal.
	otherToken := signToken(t, testJWTSecret, "U2")
	rec = doRequest(t, a, http.MethodPost, "/api/v1/hunt/saved/"+id+"/run", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(t, a, http.MethodDelete, "/api/v1/hunt/saved/"+id, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Delete.
	rec = doRequest(t, a, http.MethodDelete, "/api/v1/hunt/saved/"+id, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, a, http.MethodPost, "/api/v1/hunt/saved/"+id+"/run", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SaveQueryValidation(t *testing.T) {
	a := newTestAPI(t, &stubBackend{})
	token := signToken(t, testJWTSecret, "U1")

	rec := doRequest(t, a, http.MethodPost, "/api/v1/hunt/saved", token, SaveQueryRequest{
		Name: "no query text",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_History(t *testing.T) {
	a := newTestAPI(t, &stubBackend{rows: 1})
	token := signToken(t, testJWTSecret, "U1")

	rec := doRequest(t, a, http.MethodPost, "/api/v1/hunt/query", token, RunQueryRequest{
		Query: `incidents | take 1`,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, a, http.MethodGet, "/api/v1/hunt/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []hunt.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "U1", entries[0].PrincipalID)
	assert.Equal(t, `incidents | take 1`, entries[0].RawText)

	// Another principal sees nothing.
	otherToken := signToken(t, testJWTSecret, "U2")
	rec = doRequest(t, a, http.MethodGet, "/api/v1/hunt/history", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Empty(t, entries)
}

func TestAPI_Schema(t *testing.T) {
	a := newTestAPI(t, &stubBackend{})
	token := signToken(t, testJWTSecret, "U1")

	rec := doRequest(t, a, http.MethodGet, "/api/v1/hunt/schema", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entities []hunt.Entity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, "incidents", entities[0].Name)
	assert.NotEmpty(t, entities[0].Columns)
}

func TestAPI_RateLimit(t *testing.T) {
	logger := zap.NewNop().Sugar()

	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "argus.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	history, err := storage.NewSQLiteHuntQueryStorage(db, logger)
	require.NoError(t, err)
	engine := hunt.NewEngine(hunt.DefaultCatalog(), &stubBackend{}, history, logger)

	cfg := &config.Config{}
	cfg.API.Port = 8081
	cfg.API.JWTSecret = testJWTSecret
	cfg.API.RateLimitRPS = 1
	cfg.API.RateLimitBurst = 2
	cfg.Query.HistoryLimit = 50
	a := NewAPI(engine, cfg, logger)

	token := signToken(t, testJWTSecret, "U1")
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := doRequest(t, a, http.MethodGet, "/api/v1/hunt/history", token, nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Limits are per principal: another identity is unaffected.
	otherToken := signToken(t, testJWTSecret, "U2")
	rec := doRequest(t, a, http.MethodGet, "/api/v1/hunt/history", otherToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
