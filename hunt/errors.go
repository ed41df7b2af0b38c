package hunt

import (
	"fmt"
	"strings"
)

// ReasonEmptyInput is the only translation failure reason. Every non-blank
// input translates to something; validation of the result is deferred to the
// backend.
const ReasonEmptyInput = "empty-input"

// TranslationError reports a query that could not be translated.
type TranslationError struct {
	Reason string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed: %s", e.Reason)
}

// ErrorKind categorizes a backend execution failure.
type ErrorKind string

const (
	KindSyntax           ErrorKind = "syntax"
	KindMissingColumn    ErrorKind = "missing_column"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindTimeout          ErrorKind = "timeout"
	KindUnknown          ErrorKind = "unknown"
)

// ExecutionError wraps a backend failure with its category.
type ExecutionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed (%s): %s", e.Kind, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// classifyFailure maps a backend error message to an ErrorKind.
// Matching is by substring on the lowered message, in a fixed priority
// order; the first matching category wins. Syntax is checked first because
// it is the most actionable category when a message is ambiguous.
func classifyFailure(message string) ErrorKind {
	lowered := strings.ToLower(message)

	switch {
	case strings.Contains(lowered, "syntax"):
		return KindSyntax
	case strings.Contains(lowered, "column") || strings.Contains(lowered, "field") ||
		strings.Contains(lowered, "unknown identifier"):
		return KindMissingColumn
	case strings.Contains(lowered, "permission") || strings.Contains(lowered, "denied") ||
		strings.Contains(lowered, "not allowed"):
		return KindPermissionDenied
	case strings.Contains(lowered, "timeout") || strings.Contains(lowered, "timed out") ||
		strings.Contains(lowered, "deadline"):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// QueryError is what RunQuery returns on failure: the underlying error plus
// the advisor's remediation hint. The raw message and the hint are both
// surfaced to the caller.
type QueryError struct {
	Err  error
	Hint string
}

func (e *QueryError) Error() string {
	return e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
