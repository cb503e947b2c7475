package database

import (
	"errors"

	"github.com/lib/pq"
)

// Unique constraint names from the schema, used to translate
// unique-violation errors into the right conflict.
const (
	ConstraintUniqueMembership = "memberships_account_id_room_id_key"
	ConstraintUniqueDmPair     = "dm_rooms_account_low_account_high_key"
	ConstraintUniqueUsername   = "accounts_username_key"
	ConstraintUniqueEmail      = "accounts_email_key"
)

var (
	// ErrMessageNotInRoom is returned by UpdateLastSeenMessage when the
	// message exists but belongs to a different room than the membership.
	ErrMessageNotInRoom = errors.New("message belongs to a different room")
	// ErrMessageNotFound is returned by UpdateLastSeenMessage when the
	// message does not exist.
	ErrMessageNotFound = errors.New("message does not exist")
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique violation
// on the given constraint. An empty constraint matches any.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	if pqErr.Code != uniqueViolationCode {
		return false
	}

	return constraint == "" || pqErr.Constraint == constraint
}
