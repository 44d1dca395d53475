package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// transport is the HTTP layer shared by every connector: per-request timeout,
// exponential backoff on rate limits / 5xx / timeouts, and mapping of HTTP
// outcomes onto the connector error taxonomy.
type transport struct {
	httpClient  *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	logg        *logger.Logger
}

func newTransport(cfg config.SuppliersConfig, logg *logger.Logger) *transport {
	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	return &transport{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		maxAttempts: attempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		logg:        logg,
	}
}

// doJSON executes the request produced by build and decodes a JSON object
// response. build runs once per attempt because request bodies are
// single-use. Retryable failures are re-attempted up to maxAttempts; the
// final classified error is returned unchanged to the caller.
func (t *transport) doJSON(ctx context.Context, supplier enums.SupplierType, build func() (*http.Request, error)) (map[string]any, error) {
	backoff := retry.WithCappedDuration(t.backoffCap, retry.NewExponential(t.backoffBase))
	backoff = retry.WithMaxRetries(uint64(t.maxAttempts-1), backoff)

	var result map[string]any
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := build()
		if err != nil {
			return err
		}

		resp, err := t.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			if isTimeout(err) {
				t.warn(ctx, supplier, "supplier request timed out")
				return retry.RetryableError(&TimeoutError{Supplier: supplier})
			}
			return retry.RetryableError(&UpstreamError{
				Supplier: supplier,
				CanRetry: true,
				Message:  "transport error: " + err.Error(),
			})
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return &AuthError{Supplier: supplier}
		case resp.StatusCode == http.StatusTooManyRequests:
			t.warn(ctx, supplier, "supplier rate limited")
			return retry.RetryableError(&RateLimitError{Supplier: supplier})
		case resp.StatusCode >= 500:
			t.warn(ctx, supplier, "supplier upstream error")
			return retry.RetryableError(&UpstreamError{Supplier: supplier, Status: resp.StatusCode, CanRetry: true})
		case resp.StatusCode >= 400:
			return &UpstreamError{Supplier: supplier, Status: resp.StatusCode}
		}

		var decoded map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return &MalformedResponseError{Supplier: supplier, Reason: "body is not a JSON object"}
		}
		result = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *transport) warn(ctx context.Context, supplier enums.SupplierType, msg string) {
	if t.logg == nil {
		return
	}
	t.logg.Warn(t.logg.WithSupplier(ctx, supplier.String()), msg)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
