package storage

import "errors"

// ErrSavedQueryNotFound is returned when a saved query does not exist
// or belongs to a different principal. The two cases are deliberately
// indistinguishable to callers.
var ErrSavedQueryNotFound = errors.New("saved query not found")
