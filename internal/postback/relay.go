// Package postback delivers normalized payment-confirmation events to the
// Klose platform.
//
// Delivery is at-least-once: duplicate webhook deliveries for the same
// reference id are not deduplicated here. The Klose postback receiver is
// idempotent by contract and absorbs duplicates.
package postback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"klose3xpay/internal/config"
	"klose3xpay/internal/types"
)

// secretHeader identifies this service to the Klose postback endpoint.
const secretHeader = "X-3xPay-Service-Secret"

// maxResponseBodyRead limits how much of a failed response body is read for
// error diagnostics.
const maxResponseBodyRead = 4096

// backoffStep is the unit of the linear backoff between failed attempts:
// the wait after attempt N is N*backoffStep.
const backoffStep = 500 * time.Millisecond

// defaultAttemptTimeout caps a single delivery attempt when the config does
// not specify one.
const defaultAttemptTimeout = 10 * time.Second

// ErrDeliveryFailed is the generic delivery error carried when retries are
// exhausted without a more specific cause.
var ErrDeliveryFailed = errors.New("klose postback failed")

// Relay delivers PostbackPayloads to the Klose postback endpoint with a
// bounded retry budget. Retry state (attempt counter, last error) is local to
// one Deliver call; the Relay itself is stateless and safe for concurrent use.
type Relay struct {
	cfg        config.PostbackConfig
	httpClient *http.Client
	logger     *slog.Logger
	sleepFn    func(time.Duration)
}

// Option is a functional option for configuring a Relay.
type Option func(*Relay)

// WithHTTPClient overrides the HTTP client used for delivery.
// Intended for tests injecting an httptest server client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) {
		r.httpClient = c
	}
}

// WithSleepFunc overrides the sleep function used between attempts.
// Intended for tests to avoid real backoff delays.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(r *Relay) {
		r.sleepFn = fn
	}
}

// NewRelay creates a Relay for the given postback configuration.
func NewRelay(cfg config.PostbackConfig, logger *slog.Logger, opts ...Option) *Relay {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Relay{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger,
		sleepFn:    time.Sleep,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Deliver POSTs the payload to the Klose postback endpoint.
//
// Policy: the shared secret is resolved first; if neither configured source
// is set, Deliver fails before any network call. Otherwise it makes up to
// MaxAttempts attempts, each under the per-attempt timeout; a non-2xx
// response counts as a failure. A failed attempt is followed by a wait of
// attempt*500ms, with no wait after the final attempt. The first 2xx returns
// immediately. Exhaustion returns an AppError carrying the last attempt error.
func (r *Relay) Deliver(ctx context.Context, payload types.PostbackPayload) error {
	secret, err := r.cfg.ResolveSecret()
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to encode postback payload",
			err,
		)
	}

	log := r.logger.With(
		"delivery_id", uuid.New().String(),
		"reference_id", payload.ReferenceID,
		"destination", r.cfg.URL,
	)

	maxAttempts := r.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := r.attempt(ctx, body, secret)
		if err == nil {
			log.Info("postback delivered", "attempt", attempt)
			return nil
		}

		lastErr = err
		log.Warn("postback attempt failed",
			"attempt", attempt,
			"error", err.Error(),
		)

		if attempt < maxAttempts {
			r.sleepFn(time.Duration(attempt) * backoffStep)
		}
	}

	if lastErr == nil {
		lastErr = ErrDeliveryFailed
	}

	return types.NewAppError(
		types.ErrCodePostbackDeliveryFailed,
		fmt.Sprintf("postback delivery failed after %d attempts", maxAttempts),
		lastErr,
	)
}

// attempt executes a single POST under the per-attempt timeout. A non-2xx
// response is an error, with a bounded slice of the body captured for
// diagnostics.
func (r *Relay) attempt(ctx context.Context, body []byte, secret config.SecretString) error {
	timeout := r.cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building postback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, secret.Unmask())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("postback request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
		return fmt.Errorf("%w (%d): %s", ErrDeliveryFailed, resp.StatusCode, diag)
	}

	return nil
}
