package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/authscreen/internal/model"
	"github.com/hitoshi/authscreen/internal/sessionstore"
)

// --- モック定義 ---

type mockAuthenticator struct {
	signUpFn  func(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	signInFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFn func(ctx context.Context, accessToken string) error
}

func (m *mockAuthenticator) SignUp(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return &model.User{}, nil, nil
}

func (m *mockAuthenticator) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &model.Session{}, nil
}

func (m *mockAuthenticator) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

type mockTokenStore struct {
	tokens  *sessionstore.Tokens
	saved   *model.Session
	cleared bool
	saveErr error
}

func (m *mockTokenStore) Load(_ *http.Request) *sessionstore.Tokens {
	return m.tokens
}

func (m *mockTokenStore) Save(_ http.ResponseWriter, _ *http.Request, s *model.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = s
	return nil
}

func (m *mockTokenStore) Clear(_ http.ResponseWriter, _ *http.Request) error {
	m.cleared = true
	return nil
}

type mockRefresher struct {
	refreshFn func(ctx context.Context, refreshToken string) (*model.Session, error)
	calls     int
}

func (m *mockRefresher) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	m.calls++
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, nil
}

type mockURLBuilder struct {
	provider   string
	redirectTo string
	challenge  string
}

func (m *mockURLBuilder) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	m.provider = provider
	m.redirectTo = redirectTo
	m.challenge = codeChallenge
	return "https://auth.example.com/auth/v1/authorize?provider=" + provider
}

type mockExchanger struct {
	exchangeFn func(ctx context.Context, code, verifier string) (*model.Session, error)
}

func (m *mockExchanger) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*model.Session, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, verifier)
	}
	return &model.Session{AccessToken: "at"}, nil
}

// --- ヘルパー ---

const testJWTSecret = "test-jwt-secret"

// signToken はテスト用のアクセストークンを生成する。
func signToken(t *testing.T, secret, sub, email string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  "authenticated",
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}
