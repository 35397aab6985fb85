package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klose3xpay/internal/config"
	"klose3xpay/internal/core"
	"klose3xpay/internal/types"
)

// relayMock records Deliver calls and returns a configurable error.
type relayMock struct {
	calls []types.PostbackPayload
	err   error
}

func (m *relayMock) Deliver(_ context.Context, payload types.PostbackPayload) error {
	m.calls = append(m.calls, payload)
	return m.err
}

func newWebhookServer(t *testing.T, relay *relayMock) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := core.NewServer(&config.Config{Service: "klose-3xpay-service"}, logger)
	require.NoError(t, err)

	handler := NewThreexPayWebhookHandler(relay, logger)
	srv.RouteRegistrars = []func(chi.Router){handler.RegisterRoutes}
	srv.MountRoutes()
	return srv.Handler()
}

func postWebhook(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/3xpay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var ack map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	return ack
}

func TestWebhook_PaidEventIsRelayed(t *testing.T) {
	relay := &relayMock{}
	h := newWebhookServer(t, relay)

	rec := postWebhook(t, h, `{
		"referenceId": "order-123",
		"transactionId": "tx-9",
		"status": "PAID",
		"amount": 100.5
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	assert.Equal(t, true, ack["received"])
	assert.NotContains(t, ack, "ignored")

	require.Len(t, relay.calls, 1)
	payload := relay.calls[0]
	assert.Equal(t, "order-123", payload.ReferenceID)
	assert.Equal(t, "tx-9", payload.TransactionID)
	assert.Equal(t, "PAID", payload.Status)

	// Raw must carry the full original event for downstream auditing.
	raw, ok := payload.Raw.(map[string]any)
	require.True(t, ok, "raw payload should be the decoded event tree")
	assert.Equal(t, "order-123", raw["referenceId"])
	assert.Contains(t, raw, "amount")
}

func TestWebhook_NestedEventShapesAreNormalized(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		reference string
		txID      string
	}{
		{
			name: "transaction envelope",
			body: `{"transaction": {"external_id": "order-7", "id": 4815162342, "status": "pix_paid"}}`,

			reference: "order-7",
			txID:      "4815162342",
		},
		{
			name:      "data envelope",
			body:      `{"data": {"external_id": "order-8", "transactionId": "tx-8", "status": "CONFIRMED"}}`,
			reference: "order-8",
			txID:      "tx-8",
		},
		{
			name:      "data.payment envelope",
			body:      `{"data": {"payment": {"external_id": "order-9", "status": "COMPLETED"}}, "id": "evt-1"}`,
			reference: "order-9",
			txID:      "evt-1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			relay := &relayMock{}
			h := newWebhookServer(t, relay)

			rec := postWebhook(t, h, tc.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, relay.calls, 1)
			assert.Equal(t, tc.reference, relay.calls[0].ReferenceID)
			assert.Equal(t, tc.txID, relay.calls[0].TransactionID)
		})
	}
}

func TestWebhook_NonPaidEventIsAcknowledgedAndDropped(t *testing.T) {
	relay := &relayMock{}
	h := newWebhookServer(t, relay)

	rec := postWebhook(t, h, `{"referenceId": "order-123", "status": "PIX_EXPIRED"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	assert.Equal(t, true, ack["received"])
	assert.Equal(t, true, ack["ignored"])
	assert.Equal(t, "PIX_EXPIRED", ack["status"])
	assert.Empty(t, relay.calls, "non-paid events must not be relayed")
}

func TestWebhook_MissingReferenceID(t *testing.T) {
	relay := &relayMock{}
	h := newWebhookServer(t, relay)

	rec := postWebhook(t, h, `{"status": "PAID", "amount": 50}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	assert.Equal(t, true, ack["ignored"])
	assert.Equal(t, "missing_referenceId", ack["reason"])
	assert.Empty(t, relay.calls)
}

func TestWebhook_MissingStatus(t *testing.T) {
	relay := &relayMock{}
	h := newWebhookServer(t, relay)

	rec := postWebhook(t, h, `{"referenceId": "order-123"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	assert.Equal(t, true, ack["ignored"])
	assert.Equal(t, "missing_status", ack["reason"])
	assert.Empty(t, relay.calls)
}

func TestWebhook_MalformedBodyIsAcknowledged(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"empty body", ``},
		{"json array", `[1, 2, 3]`},
		{"json scalar", `"PAID"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			relay := &relayMock{}
			h := newWebhookServer(t, relay)

			rec := postWebhook(t, h, tc.body)

			assert.Equal(t, http.StatusOK, rec.Code,
				"unusable bodies must be acknowledged, not retried by the provider")
			ack := decodeAck(t, rec)
			assert.Equal(t, "missing_referenceId", ack["reason"])
			assert.Empty(t, relay.calls)
		})
	}
}

func TestWebhook_PaidStatusIsCaseInsensitive(t *testing.T) {
	relay := &relayMock{}
	h := newWebhookServer(t, relay)

	rec := postWebhook(t, h, `{"referenceId": "order-1", "status": "paid"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, relay.calls, 1)
	assert.Equal(t, "paid", relay.calls[0].Status, "original casing is preserved in the postback")
}

func TestWebhook_RelayExhaustionReturns500(t *testing.T) {
	relay := &relayMock{
		err: types.NewAppError(
			types.ErrCodePostbackDeliveryFailed,
			"postback delivery failed after 3 attempts",
			nil,
		),
	}
	h := newWebhookServer(t, relay)

	rec := postWebhook(t, h, `{"referenceId": "order-123", "status": "PAID"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code,
		"a 500 tells the provider to redeliver the webhook")

	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Contains(t, body.Detail, "postback delivery failed")
}

func TestWebhook_RejectsNonPostMethods(t *testing.T) {
	relay := &relayMock{}
	h := newWebhookServer(t, relay)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/3xpay", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, relay.calls)
}
