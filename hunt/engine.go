package hunt

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"argus/metrics"
)

// Engine is the invocation surface of the threat-hunting feature: it wires
// translation, isolation enforcement, execution, diagnostics and history
// recording into one pipeline. Each request is handled independently and
// statelessly; the engine holds no mutable state.
type Engine struct {
	translator *Translator
	enforcer   Enforcer
	executor   *Executor
	advisor    *Advisor
	history    HistoryStore
	logger     *zap.SugaredLogger
}

// NewEngine creates the engine. All dependencies are required.
func NewEngine(
	catalog *Catalog,
	backend Backend,
	history HistoryStore,
	logger *zap.SugaredLogger,
) *Engine {
	if backend == nil {
		panic("backend is required")
	}
	if history == nil {
		panic("history store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	return &Engine{
		translator: NewTranslator(catalog),
		executor:   NewExecutor(backend, logger),
		advisor:    NewAdvisor(catalog),
		history:    history,
		logger:     logger,
	}
}

// SetQueryTimeout overrides the executor's per-request time budget.
func (e *Engine) SetQueryTimeout(d time.Duration) {
	e.executor.SetQueryTimeout(d)
}

// RunQuery translates, isolates and executes rawText on behalf of
// principalID. Every attempt is recorded in history before the call
// returns, whatever the outcome. On failure the returned error is a
// *QueryError carrying the advisor's hint alongside the raw cause.
func (e *Engine) RunQuery(ctx context.Context, principalID, rawText, language string) (*ExecutionResult, error) {
	start := time.Now()

	translated, err := e.translator.Translate(rawText)
	if err != nil {
		// Translation failures never reach the backend but still count as
		// an auditable attempt.
		e.recordAttempt(ctx, principalID, rawText, language, nil)
		metrics.HuntQueriesTotal.WithLabelValues("translation_error").Inc()
		return nil, &QueryError{
			Err:  err,
			Hint: "The query is empty. Start with an entity name, e.g. incidents | where severity == \"critical\".",
		}
	}

	isolated := e.enforcer.Enforce(translated, principalID)

	result, err := e.executor.Execute(ctx, isolated)
	if err != nil {
		e.recordAttempt(ctx, principalID, rawText, language, nil)
		metrics.HuntQueriesTotal.WithLabelValues("execution_error").Inc()
		return nil, &QueryError{
			Err:  err,
			Hint: e.advisor.Hint(err.Error()),
		}
	}

	e.recordAttempt(ctx, principalID, rawText, language, result)
	metrics.HuntQueriesTotal.WithLabelValues("ok").Inc()
	metrics.HuntQueryDuration.Observe(time.Since(start).Seconds())
	metrics.HuntRowsReturned.Observe(float64(len(result.Rows)))
	return result, nil
}

// SaveQuery persists a named query for later reuse. The text is stored
// verbatim; nothing is executed.
func (e *Engine) SaveQuery(ctx context.Context, principalID, name, rawText, language string) (string, error) {
	id, err := e.history.SaveQuery(ctx, principalID, name, rawText, language)
	if err != nil {
		return "", fmt.Errorf("failed to save query: %w", err)
	}
	return id, nil
}

// RunSaved re-runs a saved query through the full pipeline. The isolation
// predicate is derived from the current caller, not from whoever saved the
// query or when.
func (e *Engine) RunSaved(ctx context.Context, principalID, savedID string) (*ExecutionResult, error) {
	saved, err := e.history.GetSaved(ctx, principalID, savedID)
	if err != nil {
		return nil, err
	}
	return e.RunQuery(ctx, principalID, saved.RawText, saved.Language)
}

// History returns the principal's recent attempts.
func (e *Engine) History(ctx context.Context, principalID string, limit int) ([]HistoryEntry, error) {
	return e.history.ListHistory(ctx, principalID, limit)
}

// Saved returns the principal's saved queries.
func (e *Engine) Saved(ctx context.Context, principalID string) ([]HistoryEntry, error) {
	return e.history.ListSaved(ctx, principalID)
}

// DeleteSaved removes one of the principal's saved queries.
func (e *Engine) DeleteSaved(ctx context.Context, principalID, id string) error {
	return e.history.DeleteSaved(ctx, principalID, id)
}

// Catalog exposes the data dictionary for documentation endpoints.
func (e *Engine) Catalog() *Catalog {
	return e.translator.catalog
}

// recordAttempt writes the history entry synchronously so no attempt is
// lost, even under timeout. Recording failures are logged, not surfaced:
// the query outcome is already decided.
func (e *Engine) recordAttempt(ctx context.Context, principalID, rawText, language string, result *ExecutionResult) {
	entry := &HistoryEntry{
		PrincipalID: principalID,
		RawText:     rawText,
		Language:    language,
		CreatedAt:   time.Now().UTC(),
	}
	if result != nil {
		rowCount := result.RowCount
		elapsed := result.ElapsedMs
		entry.RowCount = &rowCount
		entry.ElapsedMs = &elapsed
	}

	// The request context may already be expired (timeout path); the
	// attempt must still be recorded before the request closes.
	if err := e.history.RecordAttempt(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Errorw("Failed to record hunt query attempt",
			"principal_id", principalID,
			"error", err)
	}
}
