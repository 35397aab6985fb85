package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"klose3xpay/internal/core"
	"klose3xpay/internal/events"
	"klose3xpay/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a 3xpay webhook payload
// (256 KB). Provider events are small; this limit protects against abuse.
const maxWebhookBodySize = 256 * 1024

// PostbackDeliverer is the subset of the postback Relay the webhook handler
// depends on; injected for testability.
type PostbackDeliverer interface {
	Deliver(ctx context.Context, payload types.PostbackPayload) error
}

// ThreexPayWebhookHandler handles asynchronous payment events from 3xpay.
// It is NOT behind auth middleware -- it is called directly by the provider.
//
// Response contract: the provider only ever sees 200 (suppress its retries)
// or 500 (invite them). Malformed or irrelevant events are acknowledged with
// 200 and an ignored marker, because a non-2xx would make the provider retry
// an event this service will never act on.
type ThreexPayWebhookHandler struct {
	relay  PostbackDeliverer
	logger *slog.Logger
}

// NewThreexPayWebhookHandler creates the webhook handler.
func NewThreexPayWebhookHandler(relay PostbackDeliverer, logger *slog.Logger) *ThreexPayWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreexPayWebhookHandler{
		relay:  relay,
		logger: logger,
	}
}

// RegisterRoutes mounts the 3xpay webhook endpoint.
func (h *ThreexPayWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/3xpay", h.Handle)
}

// webhookAck is the provider-facing acknowledgement body.
type webhookAck struct {
	Received bool   `json:"received"`
	Ignored  bool   `json:"ignored,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Status   string `json:"status,omitempty"`
}

// webhookError is the provider-facing failure body. Detail carries a
// string-rendered cause for the provider's delivery logs.
type webhookError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Handle processes an inbound 3xpay payment event:
//  1. Decode the body as an untyped event tree. An unusable body is not an
//     error; it simply yields no extractable fields.
//  2. Normalize (reference id, transaction id, status). Missing reference id
//     or status acknowledges and drops the event.
//  3. Classify the status. Non-paid lifecycle events (PIX_EXPIRED, pending,
//     unknown codes) are acknowledged and dropped.
//  4. Paid events are relayed to Klose. Relay exhaustion returns 500 so the
//     provider redelivers the webhook later -- internal retries are bounded,
//     and responsibility shifts outward once they are spent.
func (h *ThreexPayWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		// Unreadable body follows the same path as undecodable JSON.
		body = nil
	}

	event := events.Decode(body)

	h.logger.Info("3xpay webhook received",
		"request_id", types.GetRequestID(r.Context()),
		"size", len(body),
	)

	n := events.Normalize(event)

	if n.ReferenceID == "" {
		h.logger.Warn("webhook missing referenceId/external_id")
		core.JSON(w, r, http.StatusOK, webhookAck{
			Received: true,
			Ignored:  true,
			Reason:   "missing_referenceId",
		})
		return
	}

	if n.Status == "" {
		h.logger.Warn("webhook missing status",
			"reference_id", n.ReferenceID,
		)
		core.JSON(w, r, http.StatusOK, webhookAck{
			Received: true,
			Ignored:  true,
			Reason:   "missing_status",
		})
		return
	}

	if !events.IsPaid(n.Status) {
		core.JSON(w, r, http.StatusOK, webhookAck{
			Received: true,
			Ignored:  true,
			Status:   n.Status,
		})
		return
	}

	payload := types.PostbackPayload{
		ReferenceID:   n.ReferenceID,
		TransactionID: n.TransactionID,
		Status:        n.Status,
		Raw:           event,
	}

	if err := h.relay.Deliver(r.Context(), payload); err != nil {
		h.logger.Error("postback relay failed",
			"reference_id", n.ReferenceID,
			"error", err.Error(),
		)
		core.JSON(w, r, http.StatusInternalServerError, webhookError{
			Error:  "Internal server error",
			Detail: err.Error(),
		})
		return
	}

	core.JSON(w, r, http.StatusOK, webhookAck{Received: true})
}
