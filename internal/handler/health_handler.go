package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout は認証サービスのヘルスチェックのタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker は依存サービスの疎通を確認する。
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// GET /health はプロセスの生存のみを返し、?deep=1 の場合は認証サービスの疎通も確認する。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("deep") != "1" || checker == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			slog.Warn("auth service health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "unavailable",
				"auth_service": "unreachable",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":       "ok",
			"auth_service": "ok",
		})
	}
}
