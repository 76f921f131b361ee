package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const maxResponseBody = 4 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// DoWithRetry sends the request built by newRequest, retrying network errors,
// 429 and 5xx responses with exponential backoff. Other 4xx responses fail at
// once. The response body of the last attempt is returned.
func DoWithRetry(ctx context.Context, httpClient *http.Client, attempts uint, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if attempts == 0 {
		attempts = 1
	}

	var body []byte
	err := retry.Do(
		func() error {
			req, err := newRequest(ctx)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create HTTP request: %w", err))
			}

			res, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("HTTP request failed: %w", err)
			}
			defer res.Body.Close()

			data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
			if err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}

			if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
				return &StatusError{StatusCode: res.StatusCode, Body: string(data)}
			}

			body = data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(300*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func isTransient(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}
