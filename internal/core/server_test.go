package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"klose3xpay/internal/config"
	"klose3xpay/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Service:     "klose-3xpay-service",
		LogLevel:    "info",
	}
}

func newTestServer(t *testing.T, logger *slog.Logger, registrars ...func(chi.Router)) *Server {
	t.Helper()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv, err := NewServer(testConfig(), logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.RouteRegistrars = registrars
	srv.MountRoutes()
	return srv
}

func decodeErrorResponse(t *testing.T, body *bytes.Buffer) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not a JSON error envelope: %v (body: %s)", err, body.String())
	}
	return resp
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewServer(nil, logger); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(testConfig(), nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		Status    string `json:"status"`
		Service   string `json:"service"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q, want ok", body.Status)
	}
	if body.Service != "klose-3xpay-service" {
		t.Errorf("service field = %q", body.Service)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", body.Timestamp, err)
	}
}

func TestMethodNotAllowedIsJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	resp := decodeErrorResponse(t, rec.Body)
	if resp.Error.Code != string(types.ErrCodeMethodNotAllowed) {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seenInHandler string
	srv := newTestServer(t, nil, func(r chi.Router) {
		r.Get("/echo", func(w http.ResponseWriter, req *http.Request) {
			seenInHandler = types.GetRequestID(req.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	t.Run("propagates inbound header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/echo", nil)
		req.Header.Set("X-Request-Id", "inbound-42")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if seenInHandler != "inbound-42" {
			t.Errorf("handler saw request id %q", seenInHandler)
		}
		if got := rec.Header().Get("X-Request-Id"); got != "inbound-42" {
			t.Errorf("response X-Request-Id = %q", got)
		}
	})

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo", nil))

		if got := rec.Header().Get("X-Request-Id"); got == "" {
			t.Error("expected a generated X-Request-Id header")
		}
		if seenInHandler == "" {
			t.Error("expected a request id in the handler context")
		}
	})
}

func TestRecovererWrites500Envelope(t *testing.T) {
	srv := newTestServer(t, nil, func(r chi.Router) {
		r.Get("/boom", func(w http.ResponseWriter, req *http.Request) {
			panic("handler exploded")
		})
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeErrorResponse(t, rec.Body)
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if strings.Contains(rec.Body.String(), "handler exploded") {
		t.Error("panic value must not leak to the client")
	}
}

func TestRequestLoggerRedactsSecrets(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	srv := newTestServer(t, logger, func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer super-secret-token")
	req.Header.Set("X-3xPay-Service-Secret", "shared-secret")
	req.Header.Set("X-Custom", "visible-value")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	out := logs.String()
	if strings.Contains(out, "super-secret-token") || strings.Contains(out, "shared-secret") {
		t.Errorf("secret header values leaked into logs: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected redaction markers in the request log")
	}
	if !strings.Contains(out, "visible-value") {
		t.Error("non-secret headers should still be logged")
	}
}

func TestError_AppErrorMapping(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "rid-1"))
	rec := httptest.NewRecorder()

	appErr := types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"missing required fields",
		nil,
		map[string]any{"fields": map[string]any{"amount": "required"}},
	)
	Error(rec, req, appErr)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	resp := decodeErrorResponse(t, rec.Body)
	if resp.Error.Code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if resp.Error.RequestID != "rid-1" {
		t.Errorf("request_id = %q", resp.Error.RequestID)
	}
	if resp.Error.Details == nil {
		t.Error("details should survive the envelope")
	}
}

func TestError_WrappedAppError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	inner := types.NewAppError(types.ErrCodeUpstreamUnavailable, "gateway down", nil)
	Error(rec, req, errors.Join(errors.New("layer"), inner))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestError_GenericErrorIs500(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, errors.New("database on fire"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "database on fire") {
		t.Error("internal error details must not leak to the client")
	}
	resp := decodeErrorResponse(t, rec.Body)
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestRaw_PassesBodyThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Raw(rec, http.StatusConflict, []byte(`{"error":"duplicate"}`))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if rec.Body.String() != `{"error":"duplicate"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dst payload
		return DecodeJSON(httptest.NewRecorder(), req, &dst)
	}

	if err := decode(`{"name":"ok"}`); err != nil {
		t.Errorf("valid body: unexpected error %v", err)
	}

	cases := []struct {
		name string
		body string
	}{
		{"malformed", `{"name":`},
		{"unknown field", `{"name":"x","extra":1}`},
		{"empty body", ``},
		{"multiple values", `{"name":"a"}{"name":"b"}`},
		{"wrong type", `{"name":123}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := decode(tc.body)
			if err == nil {
				t.Fatal("expected an error")
			}
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %T", err)
			}
			if appErr.Code != types.ErrCodeValidationInvalidJSON {
				t.Errorf("code = %q", appErr.Code)
			}
			if appErr.HTTPStatus() != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", appErr.HTTPStatus())
			}
		})
	}
}
