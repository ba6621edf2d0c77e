package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist, or exists but is
// not visible to the caller under the ownership rules.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a write would violate the unique
// email constraint.
var ErrDuplicateEmail = errors.New("email already in use")

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
