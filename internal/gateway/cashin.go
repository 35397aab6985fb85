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

// CashInClient talks to the api-key/secret 3xpay API shape:
// POST {base}/transaction/cash-in and GET {base}/transaction/{id},
// authenticated with the X-Api-Key / X-Api-Secret header pair. This shape
// names the caller correlation field external_id instead of reference_id.
type CashInClient struct {
	base      *BaseClient
	baseURL   string
	apiKey    types.SecretString
	apiSecret types.SecretString
	logger    *slog.Logger
}

var _ Client = (*CashInClient)(nil)

// NewCashInClient creates a CashInClient on top of the given BaseClient.
func NewCashInClient(base *BaseClient, cfg config.GatewayConfig, logger *slog.Logger) *CashInClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CashInClient{
		base:      base,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		logger:    logger,
	}
}

// setAuth sets the key/secret header pair on an outbound request.
func (c *CashInClient) setAuth(req *http.Request) {
	req.Header.Set("X-Api-Key", c.apiKey.Unmask())
	req.Header.Set("X-Api-Secret", c.apiSecret.Unmask())
}

// CreatePix submits a cash-in creation request.
func (c *CashInClient) CreatePix(ctx context.Context, params types.CreatePixParams) (*UpstreamResponse, error) {
	reqBody := map[string]any{
		"amount":      params.Amount,
		"external_id": params.ReferenceID,
	}
	if params.Metadata != nil {
		reqBody["metadata"] = params.Metadata
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to encode cash-in request",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/cash-in", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building cash-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	c.logger.Info("creating cash-in transaction",
		"external_id", params.ReferenceID,
	)

	return c.base.roundTrip(req)
}

// PixStatus fetches the current state of a transaction.
func (c *CashInClient) PixStatus(ctx context.Context, id string) (*UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("building transaction-status request: %w", err)
	}
	c.setAuth(req)

	return c.base.roundTrip(req)
}
