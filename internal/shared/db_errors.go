// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes that indicate a transaction may succeed on retry.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// IsSQLiteConflictError reports whether err is a SQLITE_BUSY or "database is
// locked" error.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// IsPostgresConflictError reports whether err is a serialization failure or
// deadlock raised by Postgres.
func IsPostgresConflictError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	return code == pqSerializationFailure || code == pqDeadlockDetected
}

// IsRetryableDBError reports whether a failed statement should be retried.
func IsRetryableDBError(err error) bool {
	return IsSQLiteConflictError(err) || IsPostgresConflictError(err)
}
