package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrEmpty indicates the response parsed but contained zero listing markers.
// It ends a sweep's page loop rather than failing it.
var ErrEmpty = errors.New("fetch: page contains no listings")

// BlockedError indicates the response looks like bot detection or carries a
// non-success status.
type BlockedError struct {
	StatusCode int
	Block      BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("fetch: blocked (status %d, kind %q)", e.StatusCode, e.Block)
}

// TimeoutError indicates the upstream did not respond within the deadline.
type TimeoutError struct {
	Target string
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch: timeout on %s: %v", e.Target, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsBlocked reports whether the error chain contains a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// IsTimeout reports whether the error chain contains a TimeoutError or a
// network timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsEmpty reports whether the error chain contains ErrEmpty.
func IsEmpty(err error) bool { return errors.Is(err, ErrEmpty) }

// IsRetryable reports whether the fetch failure is worth another attempt.
// Empty pages are a terminal condition, not a fault.
func IsRetryable(err error) bool {
	return (IsBlocked(err) || IsTimeout(err)) && !IsEmpty(err)
}
