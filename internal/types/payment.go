package types

import "encoding/json"

// CreatePixParams is the request body for POST /pix/create. Amount and
// ReferenceID are required; Metadata is forwarded to the gateway untouched.
type CreatePixParams struct {
	Amount      json.Number    `json:"amount" validate:"required"`
	ReferenceID string         `json:"referenceId" validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PostbackPayload is the body delivered to the Klose postback endpoint for a
// confirmed payment. The field names are the downstream wire contract. Raw
// carries the original provider event for troubleshooting (Klose stores it
// into payments.metadata.postback_payload).
type PostbackPayload struct {
	ReferenceID   string `json:"referenceId"`
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status"`
	Raw           any    `json:"raw"`
}
