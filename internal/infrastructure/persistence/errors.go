package persistence

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether an error is a Postgres unique constraint
// violation, optionally on a specific constraint name
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != pgUniqueViolation {
			return false
		}
		return constraint == "" || pqErr.Constraint == constraint
	}
	// gorm may wrap the driver error as plain text in some paths
	return strings.Contains(err.Error(), "duplicate key value")
}
