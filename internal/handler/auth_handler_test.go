package handler

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/authscreen/internal/auth"
	"github.com/hitoshi/authscreen/internal/middleware"
	"github.com/hitoshi/authscreen/internal/model"
	"github.com/hitoshi/authscreen/internal/sessionstore"
)

// --- サインイン ---

func TestAuthHandler_SignIn_InvalidEmail_Returns422WithoutAction(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.handler.SignIn(w, postForm("/auth-server-action/sign-in", url.Values{
		"email":    {"not-an-email"},
		"password": {"secret1"},
	}))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(w.Body.String(), "Invalid email") {
		t.Error("body should contain the email field error")
	}
	if env.actions.signInCalls != 0 {
		t.Errorf("sign-in action calls = %d, want 0", env.actions.signInCalls)
	}
	if findCookie(w, testToastCookie) != nil {
		t.Error("validation failure should not flash a toast")
	}
}

func TestAuthHandler_SignIn_ShortPassword_Returns422(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.handler.SignIn(w, postForm("/auth-server-action/sign-in", url.Values{
		"email":    {"user@example.com"},
		"password": {"12345"},
	}))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Password Minimum length is 6") {
		t.Error("body should contain the password field error")
	}
	if !strings.Contains(body, `value="user@example.com"`) {
		t.Error("email should be kept on re-render")
	}
}

func TestAuthHandler_SignIn_Success_StoresSessionAndFlashesSubmittedValues(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.handler.SignIn(w, postForm("/auth-server-action/sign-in", url.Values{
		"email":      {"user@example.com"},
		"password":   {"secret1"},
		"csrf_token": {"ignored"},
	}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
	if env.actions.signInCalls != 1 {
		t.Errorf("sign-in action calls = %d, want 1", env.actions.signInCalls)
	}

	authCookie := findCookie(w, sessionstore.AuthCookieName)
	if authCookie == nil || authCookie.Value == "" {
		t.Fatal("auth cookie should be set")
	}
	if !authCookie.HttpOnly {
		t.Error("auth cookie should be HttpOnly")
	}

	body := env.followToAuthPage(t, w)
	if !strings.Contains(body, "You submitted the following values:") {
		t.Error("success toast title missing")
	}
	if !strings.Contains(body, "{\n  &#34;email&#34;: &#34;user@example.com&#34;,\n  &#34;password&#34;: &#34;secret1&#34;\n}") {
		t.Errorf("toast should contain the pretty-printed submitted values, got %q", body)
	}
}

func TestAuthHandler_SignIn_ServiceError_FlashesDestructiveToast(t *testing.T) {
	env := newTestEnv(t)
	env.actions.signInFn = func(ctx context.Context, creds model.Credentials) *model.ActionResult {
		return model.NewActionFailure("Invalid login credentials")
	}

	w := httptest.NewRecorder()
	env.handler.SignIn(w, postForm("/auth-server-action/sign-in", url.Values{
		"email":    {"user@example.com"},
		"password": {"wrong-password"},
	}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/auth-server-action?tab=sign-in" {
		t.Errorf("Location = %q", loc)
	}
	if findCookie(w, sessionstore.AuthCookieName) != nil {
		t.Error("auth cookie should not be set on failure")
	}

	body := env.followToAuthPage(t, w)
	if !strings.Contains(body, `data-variant="destructive"`) {
		t.Error("toast should be destructive")
	}
	if !strings.Contains(body, "Invalid login credentials") {
		t.Error("toast should contain the service message")
	}
}

func TestAuthHandler_SignIn_ToastShownOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	env.actions.signInFn = func(ctx context.Context, creds model.Credentials) *model.ActionResult {
		return model.NewActionFailure("Invalid login credentials")
	}

	w := httptest.NewRecorder()
	env.handler.SignIn(w, postForm("/auth-server-action/sign-in", url.Values{
		"email":    {"user@example.com"},
		"password": {"wrong-password"},
	}))

	first := withCookies(httptest.NewRequest(http.MethodGet, "/auth-server-action", nil), w)
	w1 := httptest.NewRecorder()
	env.handler.AuthPage(w1, first)
	if !strings.Contains(w1.Body.String(), "Invalid login credentials") {
		t.Fatal("first render should show the toast")
	}

	second := withCookies(httptest.NewRequest(http.MethodGet, "/auth-server-action", nil), w1)
	w2 := httptest.NewRecorder()
	env.handler.AuthPage(w2, second)
	if strings.Contains(w2.Body.String(), "Invalid login credentials") {
		t.Error("toast should not be shown twice")
	}
}

// --- 登録 ---

func TestAuthHandler_Register_PasswordMismatch_Returns422OnConfirm(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.handler.Register(w, postForm("/auth-server-action/register", url.Values{
		"email":    {"new@example.com"},
		"password": {"secret1"},
		"confirm":  {"secret2"},
	}))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	body := w.Body.String()
	if !strings.Contains(body, `id="register-confirm-error">Password did not match</p>`) {
		t.Errorf("confirm field should carry the mismatch error, got %q", body)
	}
	if env.actions.signUpCalls != 0 {
		t.Errorf("sign-up action calls = %d, want 0", env.actions.signUpCalls)
	}
}

func TestAuthHandler_Register_ConfirmationRequired_FlashesAllFields(t *testing.T) {
	env := newTestEnv(t)
	var got model.Credentials
	env.actions.signUpFn = func(ctx context.Context, creds model.Credentials) *model.ActionResult {
		got = creds
		return model.NewActionSuccess(&model.User{ID: "user-2", Email: creds.Email}, nil)
	}

	w := httptest.NewRecorder()
	env.handler.Register(w, postForm("/auth-server-action/register", url.Values{
		"email":    {"new@example.com"},
		"password": {"secret1"},
		"confirm":  {"secret1"},
	}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/auth-server-action?tab=register" {
		t.Errorf("Location = %q", loc)
	}
	if got.Email != "new@example.com" || got.Password != "secret1" {
		t.Errorf("forwarded credentials = %+v", got)
	}
	if findCookie(w, sessionstore.AuthCookieName) != nil {
		t.Error("auth cookie should not be set without a session")
	}

	body := env.followToAuthPage(t, w)
	if !strings.Contains(body, "&#34;confirm&#34;: &#34;secret1&#34;") {
		t.Errorf("toast should echo the confirm field, got %q", body)
	}
}

func TestAuthHandler_Register_AutoConfirm_StoresSession(t *testing.T) {
	env := newTestEnv(t)
	env.actions.signUpFn = func(ctx context.Context, creds model.Credentials) *model.ActionResult {
		return model.NewActionSuccess(&model.User{ID: "user-3", Email: creds.Email}, testSession(creds.Email))
	}

	w := httptest.NewRecorder()
	env.handler.Register(w, postForm("/auth-server-action/register", url.Values{
		"email":    {"auto@example.com"},
		"password": {"secret1"},
		"confirm":  {"secret1"},
	}))

	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
	if findCookie(w, sessionstore.AuthCookieName) == nil {
		t.Error("auth cookie should be set when the service issues a session")
	}
}

// --- OAuth ---

func TestAuthHandler_OAuth_RedirectsWithCallbackFromRequestOrigin(t *testing.T) {
	env := newTestEnv(t)
	var gotProvider, gotRedirect string
	env.oauth.signInFn = func(ctx context.Context, provider, redirectTo string) (*auth.OAuthRedirect, error) {
		gotProvider, gotRedirect = provider, redirectTo
		return &auth.OAuthRedirect{URL: "https://project.supabase.co/auth/v1/authorize?provider=github", CodeVerifier: "v-1"}, nil
	}

	req := postForm("/auth-server-action/oauth", url.Values{"provider": {"github"}})
	req.Host = "app.example.com"
	w := httptest.NewRecorder()
	env.handler.OAuth(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "https://project.supabase.co/auth/v1/authorize?provider=github" {
		t.Errorf("Location = %q", loc)
	}
	if gotProvider != "github" {
		t.Errorf("provider = %q, want github", gotProvider)
	}
	if gotRedirect != "http://app.example.com/auth-server-action/callback" {
		t.Errorf("redirectTo = %q", gotRedirect)
	}
	if findCookie(w, sessionstore.TransientCookieName) == nil {
		t.Error("code verifier cookie should be set")
	}
}

func TestAuthHandler_OAuth_Failure_SilentlyReturnsToAuthPage(t *testing.T) {
	env := newTestEnv(t)
	env.oauth.signInFn = func(ctx context.Context, provider, redirectTo string) (*auth.OAuthRedirect, error) {
		return nil, errors.New("boom")
	}

	w := httptest.NewRecorder()
	env.handler.OAuth(w, postForm("/auth-server-action/oauth", url.Values{}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/auth-server-action" {
		t.Errorf("Location = %q", loc)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("failure to start oauth should not set any cookie or toast")
	}
}

func TestAuthHandler_Callback_ExchangesCodeWithStoredVerifier(t *testing.T) {
	env := newTestEnv(t)
	var gotCode, gotVerifier string
	env.oauth.exchangeFn = func(ctx context.Context, code, codeVerifier string) (*model.Session, error) {
		gotCode, gotVerifier = code, codeVerifier
		return testSession("oauth@example.com"), nil
	}

	start := httptest.NewRecorder()
	env.handler.OAuth(start, postForm("/auth-server-action/oauth", url.Values{}))

	req := withCookies(httptest.NewRequest(http.MethodGet, "/auth-server-action/callback?code=auth-code&next=/welcome", nil), start)
	w := httptest.NewRecorder()
	env.handler.Callback(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/welcome" {
		t.Errorf("Location = %q, want %q", loc, "/welcome")
	}
	if gotCode != "auth-code" || gotVerifier != "verifier-123" {
		t.Errorf("exchange got code=%q verifier=%q", gotCode, gotVerifier)
	}
	if findCookie(w, sessionstore.AuthCookieName) == nil {
		t.Error("auth cookie should be set after the exchange")
	}
}

func TestAuthHandler_Callback_WithoutVerifier_FlashesError(t *testing.T) {
	env := newTestEnv(t)
	env.oauth.exchangeFn = func(ctx context.Context, code, codeVerifier string) (*model.Session, error) {
		t.Error("exchange should not be called without a verifier")
		return nil, nil
	}

	w := httptest.NewRecorder()
	env.handler.Callback(w, httptest.NewRequest(http.MethodGet, "/auth-server-action/callback?code=auth-code", nil))

	if loc := w.Header().Get("Location"); loc != "/auth-server-action" {
		t.Errorf("Location = %q", loc)
	}
	body := env.followToAuthPage(t, w)
	if !strings.Contains(body, msgOAuthFailed) {
		t.Error("failure toast should be shown")
	}
}

func TestAuthHandler_Callback_ProviderError_FlashesError(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.handler.Callback(w, httptest.NewRequest(http.MethodGet,
		"/auth-server-action/callback?error=access_denied&error_description=denied", nil))

	if findCookie(w, sessionstore.AuthCookieName) != nil {
		t.Error("auth cookie should not be set")
	}
	if findCookie(w, testToastCookie) == nil {
		t.Error("failure toast should be flashed")
	}
}

// --- サインアウト ---

func TestAuthHandler_SignOut_RevokesAndClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	req := postForm("/auth-server-action/sign-out", url.Values{})
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession("user@example.com")))
	w := httptest.NewRecorder()
	env.handler.SignOut(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if len(env.actions.signOutWith) != 1 || env.actions.signOutWith[0] != "access-token-for-user@example.com" {
		t.Errorf("sign out tokens = %v", env.actions.signOutWith)
	}
	c := findCookie(w, sessionstore.AuthCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("auth cookie should be expired, got %+v", c)
	}
}

func TestAuthHandler_SignOut_ServiceFailure_StillClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	env.actions.signOutFn = func(ctx context.Context, accessToken string) error {
		return errors.New("service down")
	}

	req := postForm("/auth-server-action/sign-out", url.Values{})
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession("user@example.com")))
	w := httptest.NewRecorder()
	env.handler.SignOut(w, req)

	c := findCookie(w, sessionstore.AuthCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("auth cookie should be expired, got %+v", c)
	}
}

// --- 画面 ---

func TestAuthHandler_AuthPage_SignedIn_RedirectsHome(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth-server-action", nil)
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession("user@example.com")))
	w := httptest.NewRecorder()
	env.handler.AuthPage(w, req)

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
}

func TestAuthHandler_AuthPage_RendersFormsWithCSRFToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth-server-action?tab=register", nil)
	req = req.WithContext(middleware.ContextWithCSRFToken(req.Context(), "csrf-123"))
	w := httptest.NewRecorder()
	env.handler.AuthPage(w, req)

	body := w.Body.String()
	if strings.Count(body, `name="csrf_token" value="csrf-123"`) != 3 {
		t.Error("every form should carry the CSRF token")
	}
	if !strings.Contains(body, "Continue With Github") {
		t.Error("oauth button missing")
	}
	if !strings.Contains(body, `<section id="panel-sign-in" role="tabpanel" hidden>`) {
		t.Error("register tab should be active")
	}
}

func TestAuthHandler_Home_ShowsEmail(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession("user@example.com")))
	w := httptest.NewRecorder()
	env.handler.Home(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "user@example.com") {
		t.Error("home should show the signed-in email")
	}
}

// --- ヘルパー関数 ---

func TestRequestOrigin(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		origin   string
		proto    string
		tls      bool
		trust    bool
		expected string
	}{
		{"plain http", "app.example.com", "", "", false, false, "http://app.example.com"},
		{"tls", "app.example.com", "", "", true, false, "https://app.example.com"},
		{"forwarded proto trusted", "app.example.com", "", "https", false, true, "https://app.example.com"},
		{"forwarded proto ignored", "app.example.com", "", "https", false, false, "http://app.example.com"},
		{"origin header matches host", "app.example.com", "https://app.example.com", "", false, false, "https://app.example.com"},
		{"origin header other host", "app.example.com", "https://evil.example.net", "", false, false, "http://app.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth-server-action/oauth", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			} else {
				req.TLS = nil
			}

			if got := requestOrigin(req, tt.trust); got != tt.expected {
				t.Errorf("requestOrigin() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                  "/",
		"/welcome":          "/welcome",
		"//evil.com":        "/",
		"/\\evil.com":       "/",
		"https://evil.com/": "/",
		"relative":          "/",
	}
	for in, want := range tests {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
