package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"klose3xpay/internal/config"
	"klose3xpay/internal/types"
)

// defaultUserAgent identifies this service on outbound gateway calls.
const defaultUserAgent = "Klose-3xPay-Service/1.0"

// UpstreamResponse carries the upstream status code and raw body so handlers
// can pass gateway responses (including error responses) through to callers
// unchanged.
type UpstreamResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// OK reports whether the upstream response is a 2xx.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is the 3xpay API surface used by the PIX handlers. Both API-shape
// adapters implement it; handlers never know which shape is configured.
type Client interface {
	// CreatePix submits a PIX payment creation request.
	CreatePix(ctx context.Context, params types.CreatePixParams) (*UpstreamResponse, error)

	// PixStatus fetches the current state of a payment by its gateway id.
	PixStatus(ctx context.Context, id string) (*UpstreamResponse, error)
}

// New builds the Client selected by cfg.AuthMode, backed by a resilient
// BaseClient with the default retry policy.
func New(cfg config.GatewayConfig, logger *slog.Logger) Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	base := NewBaseClient(httpClient, "3xpay", DefaultRetryPolicy(), defaultUserAgent)

	switch cfg.AuthMode {
	case config.AuthModeKeypair:
		return NewCashInClient(base, cfg, logger)
	default:
		return NewBearerClient(base, cfg, logger)
	}
}
