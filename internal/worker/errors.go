package worker

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/jdholdren/myjournal/internal/gnews"
)

// Error types
//
// These are error types in the temporal sense, not the general "go" error types sense.
// They are used since between activities error types are marshaled and type information is lost.
const (
	errTypeInternal     = "internal"
	errTypeInvalidQuery = "invalidQuery"
)

// Converts an activity failure into an application error, marking the ones
// a retry can't fix as non-retryable.
func appError(msg string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gnews.ErrInvalidQuery) {
		return temporal.NewNonRetryableApplicationError(msg, errTypeInvalidQuery, err)
	}

	return temporal.NewApplicationError(msg, errTypeInternal, err)
}

// Whether err, as it comes back from an activity, is of the given type.
func isErrType(err error, errType string) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == errType
}
