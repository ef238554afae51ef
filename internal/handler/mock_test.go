package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/authscreen/internal/auth"
	"github.com/hitoshi/authscreen/internal/form"
	"github.com/hitoshi/authscreen/internal/model"
	"github.com/hitoshi/authscreen/internal/sessionstore"
	"github.com/hitoshi/authscreen/internal/toast"
	"github.com/hitoshi/authscreen/internal/validation"
)

// --- モック定義 ---

type mockActions struct {
	signInFn    func(ctx context.Context, creds model.Credentials) *model.ActionResult
	signUpFn    func(ctx context.Context, creds model.Credentials) *model.ActionResult
	signOutFn   func(ctx context.Context, accessToken string) error
	signInCalls int
	signUpCalls int
	signOutWith []string
}

func (m *mockActions) SignInWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult {
	m.signInCalls++
	if m.signInFn != nil {
		return m.signInFn(ctx, creds)
	}
	return model.NewActionSuccess(&model.User{ID: "user-1", Email: creds.Email}, testSession(creds.Email))
}

func (m *mockActions) SignUpWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult {
	m.signUpCalls++
	if m.signUpFn != nil {
		return m.signUpFn(ctx, creds)
	}
	return model.NewActionSuccess(&model.User{ID: "user-1", Email: creds.Email}, nil)
}

func (m *mockActions) SignOut(ctx context.Context, accessToken string) error {
	m.signOutWith = append(m.signOutWith, accessToken)
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

type mockOAuth struct {
	signInFn   func(ctx context.Context, provider, redirectTo string) (*auth.OAuthRedirect, error)
	exchangeFn func(ctx context.Context, code, codeVerifier string) (*model.Session, error)
}

func (m *mockOAuth) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (*auth.OAuthRedirect, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, provider, redirectTo)
	}
	return &auth.OAuthRedirect{
		URL:          "https://project.supabase.co/auth/v1/authorize?provider=" + provider,
		CodeVerifier: "verifier-123",
	}, nil
}

func (m *mockOAuth) ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.Session, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, codeVerifier)
	}
	return testSession("oauth@example.com"), nil
}

// --- ヘルパー ---

const testToastCookie = "authscreen_toast"

func testSession(email string) *model.Session {
	return &model.Session{
		AccessToken:  "access-token-for-" + email,
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(1 * time.Hour),
		User:         model.User{ID: "user-1", Email: email},
	}
}

type testEnv struct {
	actions *mockActions
	oauth   *mockOAuth
	store   *sessionstore.Store
	flasher *toast.Flasher
	handler *AuthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := sessionstore.New(sessionstore.Config{Secret: "test-session-secret", MaxAge: 3600})
	env := &testEnv{
		actions: &mockActions{},
		oauth:   &mockOAuth{},
		store:   store,
		flasher: toast.NewFlasher(store.Transient(), testToastCookie),
	}
	v := validation.New(validation.DefaultPasswordMinLength)
	env.handler = NewAuthHandler(
		form.NewSignInForm(v, env.actions, nil),
		form.NewRegisterForm(v, env.actions, nil),
		env.oauth,
		env.actions,
		env.store,
		env.flasher,
		AuthHandlerConfig{OAuthProvider: "github"},
	)
	return env
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// findCookie はレスポンスから指定名のCookieを取り出す。
func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// withCookies は前のレスポンスが設定したCookieを次のリクエストに付ける。
func withCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

// followToAuthPage はリダイレクト後の認証画面を描画して本文を返す。
func (env *testEnv) followToAuthPage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	next := withCookies(httptest.NewRequest(http.MethodGet, "/auth-server-action", nil), rec)
	w := httptest.NewRecorder()
	env.handler.AuthPage(w, next)
	if w.Code != http.StatusOK {
		t.Fatalf("auth page status = %d, want %d", w.Code, http.StatusOK)
	}
	return w.Body.String()
}
