package bulktasks

import (
	"context"
	"errors"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/ma-collective/orchestrator/dashboard"
)

// defaultRetryablePatterns are matched case-insensitively against a bulk
// response's errors array (spec.md §4.4.5 step 3).
var defaultRetryablePatterns = []string{
	"timeout", "etimedout", "econnreset", "econnrefused", "network", "rate limit", "429", "5xx",
}

func isRetryable(errs []string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = defaultRetryablePatterns
	}
	for _, e := range errs {
		lower := strings.ToLower(e)
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}
	return false
}

// BulkCreate submits tasks to the dashboard, retrying with exponential
// backoff up to maxAttempts when the response reports a retryable error
// (spec.md §4.4.5 step 3). A non-retryable error stops immediately.
func BulkCreate(ctx context.Context, client *dashboard.Client, projectID string, tasks []dashboard.Task, maxAttempts uint64, retryablePatterns []string) (dashboard.BulkTasksResponse, error) {
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	var resp dashboard.BulkTasksResponse
	operation := func() error {
		r, err := client.BulkCreateTasks(ctx, projectID, tasks)
		if err != nil {
			var derr *dashboard.Error
			if errors.As(err, &derr) && derr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		if len(r.Errors) > 0 && isRetryable(r.Errors, retryablePatterns) {
			return errRetryableBulkResult
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil && err != errRetryableBulkResult {
		return resp, err
	}
	return resp, nil
}

var errRetryableBulkResult = retryableBulkResultError{}

type retryableBulkResultError struct{}

func (retryableBulkResultError) Error() string { return "bulk task creation returned retryable errors" }
