package scheduler

import "errors"

type retryLaterError struct {
	err error
}

func (e *retryLaterError) Error() string {
	if e.err == nil {
		return "retry later"
	}
	return "retry later: " + e.err.Error()
}

func (e *retryLaterError) Unwrap() error { return e.err }

// RetryLater marks a job failure as transient. The scheduler backs off and
// runs the job again instead of waiting for the next interval.
func RetryLater(err error) error {
	return &retryLaterError{err: err}
}

// IsRetryLater reports whether err asks for a backoff retry.
func IsRetryLater(err error) bool {
	var target *retryLaterError
	return errors.As(err, &target)
}
