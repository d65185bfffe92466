// Package httpx holds helpers shared by the HTTP model adapters.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"rfprag/internal/port"
)

// Transient reports whether an HTTP status is worth retrying.
func Transient(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}

// ClassifyDoErr wraps a failure from http.Client.Do. Timeouts and network
// errors are transient; a cancelled caller context is returned unchanged.
func ClassifyDoErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &port.TransientError{Op: op, Err: err}
	}
	return &port.TransientError{Op: op, Err: fmt.Errorf("send request: %w", err)}
}

// StatusErr builds the error for a non-200 response.
func StatusErr(op string, status int, body []byte, permanent error) error {
	preview := string(body)
	if len(preview) > 300 {
		preview = preview[:300]
	}
	err := fmt.Errorf("API returned status %d: %s", status, preview)
	if Transient(status) {
		return &port.TransientError{Op: op, StatusCode: status, Err: err}
	}
	if permanent != nil {
		return fmt.Errorf("%s: %w: %w", op, permanent, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
