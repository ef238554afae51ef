package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/authscreen/internal/auth"
	"github.com/hitoshi/authscreen/internal/metrics"
	"github.com/hitoshi/authscreen/internal/middleware"
	"github.com/hitoshi/authscreen/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionReader     middleware.SessionReader
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TrustProxy        bool // X-Forwarded-For等からクライアントIPを判定する

	// 画面とフォーム
	SignInForm   SignInSubmitter
	RegisterForm RegisterSubmitter
	OAuth        OAuthService
	Actions      interface {
		AuthActions
		SignOuter
	}
	Store      SessionStore
	Flasher    ToastFlasher
	AuthConfig AuthHandlerConfig

	// 運用
	HealthChecker   HealthChecker
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → (RealIP) → RateLimit(General)
//
// 画面とJSON APIには更に CSRF → NoStore → Session を適用し、
// フォーム送信には認証専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.NopCollector{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, mc))
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
		HSTS: deps.CSRFConfig.CookieSecure,
	}))
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(
		deps.SignInForm, deps.RegisterForm, deps.OAuth, deps.Actions,
		deps.Store, deps.Flasher, deps.AuthConfig,
	)
	apiHandler := NewAPIHandler(deps.Actions, deps.Store)
	authLimit := deps.RateLimiter.AuthMiddleware()
	sessionMW := middleware.NewSessionMiddleware(deps.SessionReader)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}

	// --- 画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewNoStoreMiddleware())

		// セッションを読むルート
		r.Group(func(r chi.Router) {
			r.Use(sessionMW)
			r.With(middleware.NewRequireSessionMiddleware(view.PathAuth)).Get(view.PathHome, authHandler.Home)
			r.Get(view.PathAuth, authHandler.AuthPage)
			r.Post(view.PathSignOut, authHandler.SignOut)
		})

		// フォーム送信（認証専用のレート制限）
		r.Group(func(r chi.Router) {
			r.Use(authLimit)
			r.Post(view.PathSignIn, authHandler.SignIn)
			r.Post(view.PathSignUp, authHandler.Register)
			r.Post(view.PathOAuth, authHandler.OAuth)
		})

		r.Get(auth.CallbackPath, authHandler.Callback)
	})

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewNoStoreMiddleware())

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
		r.With(sessionMW).Get("/session", apiHandler.Session)

		r.Route("/actions", func(r chi.Router) {
			r.Use(authLimit)
			r.Post("/sign-in", apiHandler.SignIn)
			r.Post("/sign-up", apiHandler.SignUp)
		})
	})

	return r
}
