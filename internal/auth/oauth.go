package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/hitoshi/authscreen/internal/metrics"
	"github.com/hitoshi/authscreen/internal/model"
)

// CallbackPath はOAuthプロバイダーから戻るコールバックのパス。
const CallbackPath = "/auth-server-action/callback"

// AuthorizeURLBuilder は認証サービスのOAuth認可URLを生成する。
type AuthorizeURLBuilder interface {
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
}

// CodeExchanger は認可コードをセッションに交換する。
type CodeExchanger interface {
	ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*model.Session, error)
}

// OAuthRedirect はブラウザを送るリダイレクト先と、コールバックで使うPKCE verifier。
type OAuthRedirect struct {
	URL          string
	CodeVerifier string
}

// OAuthInitiator はOAuthリダイレクトフローの開始とコード交換を行う。
type OAuthInitiator struct {
	urls             AuthorizeURLBuilder
	exchanger        CodeExchanger
	metrics          metrics.MetricsCollector
	generateVerifier func() string
}

// NewOAuthInitiator はOAuthInitiatorを生成する。
func NewOAuthInitiator(urls AuthorizeURLBuilder, exchanger CodeExchanger, mc metrics.MetricsCollector) *OAuthInitiator {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &OAuthInitiator{
		urls:             urls,
		exchanger:        exchanger,
		metrics:          mc,
		generateVerifier: oauth2.GenerateVerifier,
	}
}

// CallbackURL はオリジンからコールバックURLを組み立てる。
func CallbackURL(origin string) string {
	return strings.TrimRight(origin, "/") + CallbackPath
}

// SignInWithOAuth はプロバイダーへのリダイレクトURLを生成する。
// redirectToは絶対URL（http/https）でなければならない。
func (o *OAuthInitiator) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (*OAuthRedirect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if provider == "" {
		o.metrics.RecordOAuthInitiation("unknown", metrics.OutcomeFailure)
		return nil, errors.New("oauth provider is required")
	}
	if err := validateRedirect(redirectTo); err != nil {
		o.metrics.RecordOAuthInitiation(provider, metrics.OutcomeFailure)
		return nil, err
	}

	verifier := o.generateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)

	o.metrics.RecordOAuthInitiation(provider, metrics.OutcomeSuccess)
	return &OAuthRedirect{
		URL:          o.urls.AuthorizeURL(provider, redirectTo, challenge),
		CodeVerifier: verifier,
	}, nil
}

// ExchangeCode はコールバックで受け取った認可コードをセッションに交換する。
func (o *OAuthInitiator) ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.Session, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	if codeVerifier == "" {
		return nil, errors.New("code verifier is required")
	}

	session, err := o.exchanger.ExchangeCodeForSession(ctx, code, codeVerifier)
	if err != nil {
		o.metrics.RecordAuthAction(metrics.ActionCodeExchange, metrics.OutcomeFailure)
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	o.metrics.RecordAuthAction(metrics.ActionCodeExchange, metrics.OutcomeSuccess)
	return session, nil
}

func validateRedirect(redirectTo string) error {
	u, err := url.Parse(redirectTo)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("redirect URL must be absolute http(s): %q", redirectTo)
	}
	return nil
}
