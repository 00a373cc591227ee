package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrUnavailable means the model service could not be reached.
	ErrUnavailable = errors.New("model service unavailable")
	// ErrTimeout means the call exceeded its configured deadline.
	ErrTimeout = errors.New("model call timed out")
	// ErrInvalidResponse means the service answered with something we
	// cannot use, e.g. an embedding of the wrong dimension.
	ErrInvalidResponse = errors.New("invalid model response")
)

// classifyCallError folds transport-level failures into the package
// taxonomy so callers can match with errors.Is.
func classifyCallError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrInvalidResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
