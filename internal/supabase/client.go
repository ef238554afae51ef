// Package supabase は外部認証サービス（Supabase Auth）へのアクセスを提供する。
package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	supa "github.com/supabase-community/supabase-go"

	"github.com/hitoshi/authscreen/internal/model"
)

const (
	authPath      = "/auth/v1"
	authorizePath = authPath + "/authorize"

	defaultTimeout = 10 * time.Second
)

// ClientConfig は認証サービスクライアントの設定。
type ClientConfig struct {
	URL     string        // プロジェクトURL（例: https://xyz.supabase.co）
	AnonKey string        // 公開anonキー
	Timeout time.Duration // 1リクエストあたりのタイムアウト

	// テスト用にオーバーライド可能なTransport
	Transport http.RoundTripper
}

// Client は認証サービスへの呼び出しをcontext付きで提供する。
// 内部のgotrueクライアントは呼び出しごとにコピーして使うため、
// 共有状態を変更せず複数goroutineから安全に利用できる。
type Client struct {
	auth      gotrue.Client
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	now       func() time.Time
}

// NewClient はClientを生成する。
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	sc, err := supa.NewClient(base, cfg.AnonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		auth:      sc.Auth,
		baseURL:   base,
		timeout:   timeout,
		transport: transport,
		now:       time.Now,
	}, nil
}

// SignUp はメールアドレスとパスワードでアカウントを作成する。
// 自動確認が有効な場合のみセッションを返し、それ以外はnilを返す。
func (c *Client) SignUp(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	res, err := c.with(ctx, "").Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, nil, ParseServiceError(err)
	}

	user := toUser(res.User)
	if res.Session.AccessToken == "" {
		return &user, nil, nil
	}
	session := c.toSession(res.Session)
	return &user, session, nil
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.with(ctx, "").SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, ParseServiceError(err)
	}
	return c.toSession(res.Session), nil
}

// RefreshSession はリフレッシュトークンで新しいセッションを取得する。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.with(ctx, "").RefreshToken(refreshToken)
	if err != nil {
		return nil, ParseServiceError(err)
	}
	return c.toSession(res.Session), nil
}

// ExchangeCodeForSession はOAuthの認可コードをPKCEでセッションに交換する。
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.with(ctx, "").Token(types.TokenRequest{
		GrantType:    "pkce",
		Code:         code,
		CodeVerifier: codeVerifier,
	})
	if err != nil {
		return nil, ParseServiceError(err)
	}
	return c.toSession(res.Session), nil
}

// SignOut はアクセストークンに紐づくリフレッシュトークンを失効させる。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.with(ctx, accessToken).Logout(); err != nil {
		return ParseServiceError(err)
	}
	return nil
}

// HealthCheck は認証サービスのヘルスエンドポイントを呼び出す。
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.with(ctx, "").HealthCheck(); err != nil {
		return ParseServiceError(err)
	}
	return nil
}

// AuthorizeURL はブラウザをリダイレクトさせるOAuth認可URLを生成する。
// PKCEのcode_challengeはS256で計算済みの値を渡す。
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	params := url.Values{
		"provider":    {provider},
		"redirect_to": {redirectTo},
	}
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "s256")
	}
	return c.baseURL + authorizePath + "?" + params.Encode()
}

// with はリクエストのcontextに従うHTTPクライアントを持つコピーを返す。
func (c *Client) with(ctx context.Context, token string) gotrue.Client {
	cl := c.auth.WithClient(http.Client{
		Timeout:   c.timeout,
		Transport: &contextTransport{ctx: ctx, base: c.transport},
	})
	if token != "" {
		cl = cl.WithToken(token)
	}
	return cl
}

func (c *Client) toSession(s types.Session) *model.Session {
	expiresAt := time.Unix(s.ExpiresAt, 0)
	if s.ExpiresAt == 0 {
		expiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return &model.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         toUser(s.User),
	}
}

func toUser(u types.User) model.User {
	var id string
	if u.ID != uuid.Nil {
		id = u.ID.String()
	}
	return model.User{
		ID:    id,
		Email: u.Email,
		Role:  u.Role,
	}
}

// contextTransport はgotrueクライアントが発行するリクエストにcontextを付与する。
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
