package steem

import (
	"errors"
	"fmt"
)

// ErrBlockNotAvailable is returned by GetBlock when the chain head has not
// yet reached the requested height. The listener treats it as "wait", not
// as a failure.
var ErrBlockNotAvailable = errors.New("block not yet available")

// ErrAccountNotFound is returned when the requested account does not exist
// on chain. It is terminal and must not be retried.
var ErrAccountNotFound = errors.New("account not found")

// FetchError is a transient failure talking to the chain node: network
// errors, malformed responses, or JSON-RPC level errors. Callers retry
// with backoff.
type FetchError struct {
	Method string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("steem: %s failed: %v", e.Method, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
