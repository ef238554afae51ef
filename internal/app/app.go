package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/authscreen/internal/auth"
	"github.com/hitoshi/authscreen/internal/config"
	"github.com/hitoshi/authscreen/internal/form"
	"github.com/hitoshi/authscreen/internal/handler"
	"github.com/hitoshi/authscreen/internal/logger"
	"github.com/hitoshi/authscreen/internal/metrics"
	"github.com/hitoshi/authscreen/internal/middleware"
	"github.com/hitoshi/authscreen/internal/security"
	"github.com/hitoshi/authscreen/internal/sessionstore"
	"github.com/hitoshi/authscreen/internal/supabase"
	"github.com/hitoshi/authscreen/internal/toast"
	"github.com/hitoshi/authscreen/internal/validation"
)

// toastCookieName はトーストのフラッシュを保持するCookie名。
const toastCookieName = "authscreen_toast"

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	if cmd == CommandVersion {
		if w == nil {
			w = os.Stdout
		}
		_, err := fmt.Fprintf(w, "authscreen %s\n", Version())
		return err
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("version", Version()),
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg)
}

// NewHandler は設定から全依存関係をワイヤリングし、ルーターを返す。
// 返すcleanupはバックグラウンド処理を停止する。
func NewHandler(cfg *config.Config, reg *prometheus.Registry) (http.Handler, func(), error) {
	// 1. 認証サービスクライアント
	client, err := supabase.NewClient(supabase.ClientConfig{
		URL:     cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
		Timeout: cfg.AuthTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	// 2. メトリクス
	mc := metrics.NewCollector(reg)

	// 3. Cookieストア
	store := sessionstore.New(sessionstore.Config{
		Secret: cfg.SessionSecret,
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	})
	flasher := toast.NewFlasher(store.Transient(), toastCookieName)

	// 4. 認証アクションとセッション
	claims := auth.NewClaimsParser(cfg.SupabaseJWTSecret)
	if !claims.Verifying() {
		slog.Warn("SUPABASE_JWT_SECRET is not set; access token signatures are not verified")
	}
	actions := auth.NewActions(client, security.NewMessageSanitizer(0), mc)
	reader := auth.NewSessionReader(store, client, claims, auth.SessionReaderConfig{
		RefreshMargin: cfg.SessionRefreshMargin,
	}, mc)
	oauth := auth.NewOAuthInitiator(client, client, mc)

	// 5. フォーム
	v := validation.New(cfg.PasswordMinLength)
	signInForm := form.NewSignInForm(v, actions, mc)
	registerForm := form.NewRegisterForm(v, actions, mc)

	// 6. ルーター
	rl := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:        slog.Default(),
		SessionReader: reader,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		TrustProxy:        cfg.TrustForwardedProto,

		SignInForm:   signInForm,
		RegisterForm: registerForm,
		OAuth:        oauth,
		Actions:      actions,
		Store:        store,
		Flasher:      flasher,
		AuthConfig: handler.AuthHandlerConfig{
			OAuthProvider:       cfg.OAuthProvider,
			TrustForwardedProto: cfg.TrustForwardedProto,
		},

		HealthChecker:   client,
		Metrics:         mc,
		MetricsGatherer: reg,
	})

	return router, rl.Stop, nil
}

// runServe はHTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, cleanup, err := NewHandler(cfg, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("auth screen server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down auth screen server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("auth screen server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
