package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Supabase（ブラウザにも公開される値）
	SupabaseURL     string `env:"SUPABASE_URL,notEmpty"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY,notEmpty"`
	// 設定されている場合のみアクセストークンの署名を検証する
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`

	// Auth
	AuthTimeout       time.Duration `env:"AUTH_TIMEOUT" envDefault:"10s"`
	PasswordMinLength int           `env:"PASSWORD_MIN_LENGTH" envDefault:"6"`
	OAuthProvider     string        `env:"OAUTH_PROVIDER" envDefault:"github"`

	// Session
	SessionSecret        string        `env:"SESSION_SECRET,notEmpty"`
	SessionMaxAge        int           `env:"SESSION_MAX_AGE" envDefault:"604800"`
	SessionRefreshMargin time.Duration `env:"SESSION_REFRESH_MARGIN" envDefault:"60s"`

	// Rate Limit（req/min/IP）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitAuth    int `env:"RATE_LIMIT_AUTH" envDefault:"10"`

	// Server
	ServerPort          string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL             string `env:"BASE_URL,notEmpty"`
	TrustForwardedProto bool   `env:"TRUST_FORWARDED_PROTO" envDefault:"false"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		if missing := missingKeys(err); len(missing) > 0 {
			return nil, fmt.Errorf("required environment variables are not set: %v", missing)
		}
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if cfg.PasswordMinLength < 1 {
		return nil, fmt.Errorf("PASSWORD_MIN_LENGTH must be positive: %d", cfg.PasswordMinLength)
	}

	return cfg, nil
}

// LoadDotEnv は.envファイルが存在すれば環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが無い場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// missingKeys は未設定の必須環境変数名を取り出す。
func missingKeys(err error) []string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return nil
	}
	var keys []string
	for _, e := range agg.Errors {
		var empty env.EmptyVarError
		var notSet env.VarIsNotSetError
		switch {
		case errors.As(e, &empty):
			keys = append(keys, empty.Key)
		case errors.As(e, &notSet):
			keys = append(keys, notSet.Key)
		}
	}
	return keys
}
