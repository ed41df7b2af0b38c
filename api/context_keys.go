package api

import "context"

// contextKey is a private type to prevent context key collisions across
// packages. Only this package can create keys, so nothing outside it can
// inject a principal and bypass tenant scoping.
type contextKey string

const (
	// ContextKeyPrincipalID stores the authenticated principal (string).
	// Every hunt operation is scoped to this value; it is never read from
	// the request body or the query text.
	ContextKeyPrincipalID contextKey = "principal_id"
)

// GetPrincipalID extracts the authenticated principal from the context.
func GetPrincipalID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyPrincipalID).(string)
	return id, ok && id != ""
}
