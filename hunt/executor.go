package hunt

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// MaxResultRows is the hard cap on returned rows. The backend may match
// more; the excess is truncated and RowCount reports the matched total when
// the backend knows it.
const MaxResultRows = 100

// DefaultQueryTimeout bounds backend execution per request.
const DefaultQueryTimeout = 30 * time.Second

// Recordset is what the Backend returns: ordered columns, rows keyed by
// column name, and the matched total when the backend can report it
// (0 means unknown).
type Recordset struct {
	Columns []string
	Rows    []map[string]interface{}
	Matched int64
}

// Backend executes relational query text. The engine treats it as opaque
// beyond text-in/records-out.
type Backend interface {
	Query(ctx context.Context, sql string) (*Recordset, error)
}

// ExecutionResult is the capped, shaped outcome of a query run. The column
// set is whatever the backend reported, not statically declared.
type ExecutionResult struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int64                    `json:"row_count"`
	ElapsedMs float64                  `json:"elapsed_ms"`
}

// Executor runs isolated queries against the backend with a row cap and a
// time budget.
type Executor struct {
	backend      Backend
	logger       *zap.SugaredLogger
	maxRows      int
	queryTimeout time.Duration
}

// NewExecutor creates an executor. The backend may be nil only in tests that
// never call Execute.
func NewExecutor(backend Backend, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		backend:      backend,
		logger:       logger,
		maxRows:      MaxResultRows,
		queryTimeout: DefaultQueryTimeout,
	}
}

// SetQueryTimeout overrides the per-request time budget.
func (e *Executor) SetQueryTimeout(d time.Duration) {
	if d > 0 {
		e.queryTimeout = d
	}
}

// Execute runs the query and shapes the result. On timeout the backend call
// is abandoned via context cancellation and the failure is reported, never
// retried. Only an IsolatedQuery is accepted; see Enforcer.
func (e *Executor) Execute(ctx context.Context, q IsolatedQuery) (*ExecutionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	rs, err := e.backend.Query(ctx, q.SQL())
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		execErr := e.wrapBackendError(err)
		e.logger.Warnw("Hunt query failed",
			"principal_id", q.PrincipalID(),
			"kind", execErr.Kind,
			"elapsed_ms", elapsed,
			"error", err)
		return nil, execErr
	}

	matched := rs.Matched
	if matched == 0 {
		matched = int64(len(rs.Rows))
	}
	rows := rs.Rows
	if len(rows) > e.maxRows {
		rows = rows[:e.maxRows]
	}

	e.logger.Debugw("Hunt query executed",
		"principal_id", q.PrincipalID(),
		"row_count", matched,
		"returned", len(rows),
		"elapsed_ms", elapsed)

	return &ExecutionResult{
		Columns:   rs.Columns,
		Rows:      rows,
		RowCount:  matched,
		ElapsedMs: elapsed,
	}, nil
}

// wrapBackendError categorizes a backend failure. Context expiry maps to the
// timeout kind regardless of the backend's message.
func (e *Executor) wrapBackendError(err error) *ExecutionError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ExecutionError{
			Kind:    KindTimeout,
			Message: "query exceeded the execution time budget",
			Err:     err,
		}
	}
	return &ExecutionError{
		Kind:    classifyFailure(err.Error()),
		Message: err.Error(),
		Err:     err,
	}
}
