package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"klose3xpay/internal/config"
	"klose3xpay/internal/types"
)

// BearerClient talks to the bearer-token 3xpay API shape:
// POST {base}/pix and GET {base}/pix/{id}, authenticated with
// Authorization: Bearer <THREEXPAY_API_KEY>.
type BearerClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

var _ Client = (*BearerClient)(nil)

// NewBearerClient creates a BearerClient on top of the given BaseClient.
func NewBearerClient(base *BaseClient, cfg config.GatewayConfig, logger *slog.Logger) *BearerClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &BearerClient{
		base:    base,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// CreatePix submits a PIX payment creation request.
// The wire body renames referenceId to the gateway's snake_case reference_id.
func (c *BearerClient) CreatePix(ctx context.Context, params types.CreatePixParams) (*UpstreamResponse, error) {
	reqBody := map[string]any{
		"amount":       params.Amount,
		"reference_id": params.ReferenceID,
	}
	if params.Metadata != nil {
		reqBody["metadata"] = params.Metadata
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to encode create-pix request",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pix", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building create-pix request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	c.logger.Info("creating pix payment",
		"reference_id", params.ReferenceID,
	)

	return c.base.roundTrip(req)
}

// PixStatus fetches the current state of a payment.
func (c *BearerClient) PixStatus(ctx context.Context, id string) (*UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pix/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("building pix-status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	return c.base.roundTrip(req)
}
