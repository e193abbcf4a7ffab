package classifier

import (
	"chat-guard/errors"
	goerrors "errors"
	"fmt"
)

// StatusError is a non-2xx answer from the classification service.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier status %d: %s", e.StatusCode, truncate(string(e.Body), 120))
}

// IsRetryable returns true for server-side and throttling statuses.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

func (e *StatusError) Unwrap() error {
	if e.IsRetryable() {
		return errors.ErrClassifierUnavailable
	}
	return errors.ErrClassifierRejected
}

// IsTransient tells whether another attempt may succeed.
func IsTransient(err error) bool {
	return goerrors.Is(err, errors.ErrClassifierTimeout) ||
		goerrors.Is(err, errors.ErrClassifierUnavailable)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
