package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrForbidden indicates the record exists but belongs to someone else.
	ErrForbidden = errors.New("record owned by another user")
	// ErrDuplicate indicates the value is already a member of the collection.
	ErrDuplicate = errors.New("already exists")
)
