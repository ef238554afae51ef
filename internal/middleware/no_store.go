package middleware

import "net/http"

// NewNoStoreMiddleware はレスポンスのキャッシュを禁止するミドルウェアを返す。
// セッションを読み取るルートに適用する。
func NewNoStoreMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Pragma", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}
