package cases

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound marks lookups of case ids that do not resolve.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks rejected input. The marked error's message is
	// safe to show to admins.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks writes that collide with an existing unique value.
	ErrConflict = errors.New("conflict")
)

// Invalid builds a user-facing validation error.
func Invalid(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func notFound(id string) error {
	return errors.Mark(errors.Newf("case %s not found", id), ErrNotFound)
}
