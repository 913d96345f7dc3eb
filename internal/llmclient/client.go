// Package llmclient provides the concrete CompletionProvider
// implementations. All providers speak plain REST over net/http with
// exponential-backoff retries; the differences are confined to payload
// shapes and auth headers.
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	retryMaxInterval = 30 * time.Second
	retryMaxElapsed  = 2 * time.Minute
)

// postJSON sends one JSON request and returns the response body, retrying
// transient failures (network errors, 429/500/503). Any other non-2xx status
// is permanent: retrying a bad request or a rejected key only burns quota.
func postJSON(ctx context.Context, client *http.Client, logger *zap.Logger, endpoint string, headers map[string]string, body []byte) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsed

	var respBody []byte

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("request aborted: %w", ctx.Err()))
			}
			logger.Warn("Network error during completion request, retrying.", zap.Error(err))
			return fmt.Errorf("executing HTTP request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return handleAPIError(logger, resp.StatusCode, data)
		}

		logger.Debug("Completion request succeeded.",
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)))
		respBody = data
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return respBody, nil
}

// handleAPIError classifies an HTTP error status for the retry policy.
func handleAPIError(logger *zap.Logger, status int, body []byte) error {
	logger.Error("Completion API returned error status.",
		zap.Int("status", status),
		zap.ByteString("response", body))
	err := fmt.Errorf("api error: status %d, body: %s", status, string(body))

	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}
