package database

import (
	"errors"

	"github.com/lib/pq"
)

// ErrConflict marks a uniqueness violation raised by the storage engine,
// the authoritative guard against concurrent crawls racing on the same
// show. Callers treat it as a benign race: re-read the snapshot and
// reconcile again.
var ErrConflict = errors.New("uniqueness conflict")

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
