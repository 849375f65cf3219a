package backend

import (
	"context"
	"errors"
	"net"

	"github.com/cenkalti/backoff/v5"
)

// transientStatus is the set of HTTP status codes the Backend Adapter
// retries on (§5 Retry policy).
var transientStatus = map[int]bool{
	408: true,
	429: true,
	502: true,
	503: true,
	504: true,
}

const maxRetryAttempts = 5

// retryableError marks an error observed from a backend round-trip as
// worth retrying; everything else is returned to the caller immediately.
type retryableError struct{ err error }

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// withRetry runs op up to maxRetryAttempts times, retrying only on the
// transient status codes in §5 or on network timeouts, with the
// backoff package's internal exponential backoff. op reports the HTTP
// status code it observed (0 if the round-trip itself failed) so the
// retry policy can be applied uniformly across call sites.
func withRetry(ctx context.Context, op func() (int, error)) error {
	attempt := func() (struct{}, error) {
		status, err := op()
		if err == nil {
			return struct{}{}, nil
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return struct{}{}, &retryableError{err}
		}
		if transientStatus[status] {
			return struct{}{}, &retryableError{err}
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithMaxTries(maxRetryAttempts),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		var re *retryableError
		if errors.As(err, &re) {
			return re.err
		}
		return err
	}
	return nil
}
