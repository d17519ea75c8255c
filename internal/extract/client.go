package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"custetl/internal/config"
	"custetl/internal/logger"
	"custetl/internal/models"
	"custetl/pkg/utils"
)

// Extract errors.
var (
	ErrUpstreamUnavailable  = errors.New("purchase history provider unavailable")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
)

// maxResponseBytes bounds the purchase-history response body.
const maxResponseBytes = 64 << 20

// PurchaseSource returns the purchase history of a set of customers.
type PurchaseSource interface {
	Fetch(ctx context.Context, mobiles []string) ([]models.Purchase, error)
}

type historyRequest struct {
	Mobiles []string `json:"mobiles"`
}

type historyResponse struct {
	Purchases []models.Purchase `json:"purchases"`
}

// PurchaseClient calls the purchase-history HTTP endpoint with config-driven
// retry.
type PurchaseClient struct {
	client      *http.Client
	url         string
	retryPolicy *config.RetryPolicy
	log         *logger.Logger
}

// NewPurchaseClient creates a client for url.
func NewPurchaseClient(url string, retryPolicy *config.RetryPolicy, log *logger.Logger) *PurchaseClient {
	if log == nil {
		log = logger.Discard()
	}

	return &PurchaseClient{
		client:      &http.Client{Timeout: retryPolicy.GetTimeout()},
		url:         url,
		retryPolicy: retryPolicy,
		log:         log,
	}
}

// Fetch posts the mobiles and decodes the returned purchases. Transport
// failures, non-200 responses and undecodable bodies are reported as
// ErrUpstreamUnavailable once the retry policy is exhausted.
func (c *PurchaseClient) Fetch(ctx context.Context, mobiles []string) ([]models.Purchase, error) {
	if mobiles == nil {
		mobiles = []string{}
	}

	payload, err := json.Marshal(historyRequest{Mobiles: mobiles})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= c.retryPolicy.MaxAttempts; attempt++ {
		purchases, retry, err := c.do(ctx, payload)
		if err == nil {
			return purchases, nil
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, c.retryPolicy.MaxAttempts, err)

		if !retry || attempt == c.retryPolicy.MaxAttempts {
			break
		}

		delay := c.retryPolicy.GetRetryDelay(attempt + 1)
		c.log.Warn("purchase history request failed, retrying", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, lastErr)
}

// do performs one request. The bool reports whether the failure is worth
// retrying.
func (c *PurchaseClient) do(ctx context.Context, payload []byte) ([]models.Purchase, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = utils.NewHTTPHelper().BuildHeaders(nil)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := utils.NewStringHelper().TruncateString(string(body), 200)
		return nil, isRetryableStatus(resp.StatusCode), fmt.Errorf("%w: %d %s", ErrUnexpectedStatusCode, resp.StatusCode, snippet)
	}

	var decoded historyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}

	return decoded.Purchases, false, nil
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusBadGateway,
		http.StatusTooManyRequests,
		http.StatusRequestTimeout:
		return true
	}

	return false
}
