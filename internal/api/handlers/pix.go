// Package handlers contains the HTTP handler implementations for the
// klose-3xpay relay API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"klose3xpay/internal/core"
	"klose3xpay/internal/gateway"
	"klose3xpay/internal/types"
)

// PixHandler exposes PIX payment creation and status lookup. Both are thin
// wrappers over the configured 3xpay gateway adapter: the upstream response
// body is passed through to the caller rather than re-modelled here.
type PixHandler struct {
	gateway   gateway.Client
	validator *core.Validator
	logger    *slog.Logger
}

// NewPixHandler creates a PixHandler with the provided dependencies.
func NewPixHandler(gw gateway.Client, validator *core.Validator, logger *slog.Logger) *PixHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PixHandler{
		gateway:   gw,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the PIX endpoints.
func (h *PixHandler) RegisterRoutes(r chi.Router) {
	r.Post("/pix/create", h.HandleCreate)
	r.Get("/pix/status", h.HandleStatus)
}

// createPixResponse is the success envelope for /pix/create. Pix carries the
// upstream gateway body verbatim.
type createPixResponse struct {
	Success bool            `json:"success"`
	Pix     json.RawMessage `json:"pix"`
}

// pixStatusResponse is the success envelope for /pix/status.
type pixStatusResponse struct {
	Success bool            `json:"success"`
	Status  json.RawMessage `json:"status"`
}

// HandleCreate validates the request and submits a PIX creation to the
// gateway. Upstream non-2xx responses are passed through with their original
// status code and body so callers see the gateway's own error contract.
func (h *PixHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var params types.CreatePixParams
	if err := core.DecodeJSON(w, r, &params); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.Struct(params); err != nil {
		core.Error(w, r, err)
		return
	}

	// The required tag only rejects an absent amount; a literal 0 (or 0.00)
	// must also be refused before it reaches the gateway.
	if f, err := params.Amount.Float64(); err != nil || f == 0 {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"amount must be a non-zero number",
			err,
			map[string]any{"fields": map[string]any{"amount": "nonzero"}},
		))
		return
	}

	resp, err := h.gateway.CreatePix(r.Context(), params)
	if err != nil {
		h.logger.Error("pix create failed",
			"reference_id", params.ReferenceID,
			"error", err.Error(),
		)
		core.Error(w, r, err)
		return
	}

	if !resp.OK() {
		h.logger.Warn("pix create rejected upstream",
			"reference_id", params.ReferenceID,
			"status", resp.StatusCode,
		)
		core.Raw(w, resp.StatusCode, resp.Body)
		return
	}

	core.JSON(w, r, http.StatusOK, createPixResponse{
		Success: true,
		Pix:     resp.Body,
	})
}

// HandleStatus looks up a payment by the gateway id passed in the "id" query
// parameter.
func (h *PixHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"payment id is required",
			nil,
			map[string]any{"fields": map[string]any{"id": "required"}},
		))
		return
	}

	resp, err := h.gateway.PixStatus(r.Context(), id)
	if err != nil {
		h.logger.Error("pix status lookup failed",
			"payment_id", id,
			"error", err.Error(),
		)
		core.Error(w, r, err)
		return
	}

	if !resp.OK() {
		h.logger.Warn("pix status rejected upstream",
			"payment_id", id,
			"status", resp.StatusCode,
		)
		core.Raw(w, resp.StatusCode, resp.Body)
		return
	}

	core.JSON(w, r, http.StatusOK, pixStatusResponse{
		Success: true,
		Status:  resp.Body,
	})
}
