package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/authscreen/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("unexpected EOF"))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
	if !strings.Contains(body.Message, "unexpected EOF") {
		t.Errorf("message = %q, should contain the reason", body.Message)
	}
	if body.Category != "validation" {
		t.Errorf("category = %q, want %q", body.Category, "validation")
	}
	if body.RequestID != "" {
		t.Errorf("request_id = %q, want empty without the middleware", body.RequestID)
	}
}

// TestWriteErrorResponse_IncludesRequestID はRequestIDミドルウェア配下でリクエストIDが含まれることを検証する。
func TestWriteErrorResponse_IncludesRequestID(t *testing.T) {
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/actions/sign-in", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.RequestID != "req-42" {
		t.Errorf("request_id = %q, want %q", body.RequestID, "req-42")
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

// TestInternalServerError_ReturnsSystemError は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsSystemError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Action == "" {
		t.Error("action should not be empty")
	}
}

// TestWriteError_ChoosesFormatByPath はJSON APIと画面でエラー形式が切り替わることを検証する。
func TestWriteError_ChoosesFormatByPath(t *testing.T) {
	tests := []struct {
		path     string
		wantJSON bool
	}{
		{"/api/actions/sign-in", true},
		{"/api/session", true},
		{"/auth-server-action/sign-in", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodPost, tt.path, nil), http.StatusForbidden, model.NewCSRFError())

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
			}
			isJSON := w.Header().Get("Content-Type") == "application/json"
			if isJSON != tt.wantJSON {
				t.Errorf("json = %v, want %v (body %q)", isJSON, tt.wantJSON, w.Body.String())
			}
			if !tt.wantJSON && strings.Contains(w.Body.String(), "X-CSRF-Token") {
				t.Error("page errors should not expose API instructions")
			}
		})
	}
}
