package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors.
//
//   - ErrNotFound: the aggregate does not exist
//   - ErrAlreadyExists: a create collided with an existing aggregate
//   - ErrConflict: a concurrent transaction won; the unit of work may be re-run
//   - ErrUnavailable: the store cannot be reached or refused the operation
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	ErrUnavailable   = errors.New("unavailable")
)
