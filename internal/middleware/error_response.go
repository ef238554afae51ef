package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hitoshi/authscreen/internal/model"
)

// apiPathPrefix はJSONでエラーを返すルートのプレフィックス。
const apiPathPrefix = "/api/"

// ErrorResponseBody はJSON APIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// RequestIDミドルウェアを通過していれば、問い合わせ用にリクエストIDを含める。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		RequestID: w.Header().Get(requestIDHeader),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// writeError はJSON APIにはJSONで、画面にはプレーンテキストでエラーを返す。
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	if strings.HasPrefix(r.URL.Path, apiPathPrefix) {
		WriteErrorResponse(w, statusCode, apiErr)
		return
	}
	http.Error(w, http.StatusText(statusCode), statusCode)
}
