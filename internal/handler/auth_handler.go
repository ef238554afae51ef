// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/authscreen/internal/auth"
	"github.com/hitoshi/authscreen/internal/form"
	"github.com/hitoshi/authscreen/internal/middleware"
	"github.com/hitoshi/authscreen/internal/model"
	"github.com/hitoshi/authscreen/internal/sessionstore"
	"github.com/hitoshi/authscreen/internal/toast"
	"github.com/hitoshi/authscreen/internal/validation"
	"github.com/hitoshi/authscreen/internal/view"
)

// msgOAuthFailed はOAuthコールバックでセッションを取得できなかった場合のメッセージ。
const msgOAuthFailed = "Could not complete sign in with the provider. Please try again."

const pageTitle = "Authentication"

// SignInSubmitter はサインインフォームの送信を処理する。
type SignInSubmitter interface {
	Submit(ctx context.Context, creds model.Credentials) (*form.Submission, error)
}

// RegisterSubmitter は登録フォームの送信を処理する。
type RegisterSubmitter interface {
	Submit(ctx context.Context, creds model.RegistrationCredentials) (*form.Submission, error)
}

// OAuthService はOAuthフローの開始とコード交換を行う。
type OAuthService interface {
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (*auth.OAuthRedirect, error)
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.Session, error)
}

// SignOuter はサービス側のセッションを失効させる。
type SignOuter interface {
	SignOut(ctx context.Context, accessToken string) error
}

// SessionStore は認証CookieとPKCE verifierを保存する。
type SessionStore interface {
	Save(w http.ResponseWriter, r *http.Request, session *model.Session) error
	Clear(w http.ResponseWriter, r *http.Request) error
	SetCodeVerifier(w http.ResponseWriter, r *http.Request, verifier string) error
	PopCodeVerifier(w http.ResponseWriter, r *http.Request) (string, error)
}

// ToastFlasher はトーストを次の画面に引き渡す。
type ToastFlasher interface {
	Add(w http.ResponseWriter, r *http.Request, t toast.Toast) error
	Pop(w http.ResponseWriter, r *http.Request) []toast.Toast
}

// AuthHandlerConfig は認証画面ハンドラーの設定。
type AuthHandlerConfig struct {
	OAuthProvider       string
	TrustForwardedProto bool // X-Forwarded-Protoからスキームを判定する
}

// AuthHandler は認証画面とフォーム送信のHTTPハンドラー。
type AuthHandler struct {
	signIn   SignInSubmitter
	register RegisterSubmitter
	oauth    OAuthService
	signOut  SignOuter
	store    SessionStore
	flasher  ToastFlasher
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	signIn SignInSubmitter,
	register RegisterSubmitter,
	oauth OAuthService,
	signOut SignOuter,
	store SessionStore,
	flasher ToastFlasher,
	config AuthHandlerConfig,
) *AuthHandler {
	if config.OAuthProvider == "" {
		config.OAuthProvider = "github"
	}
	return &AuthHandler{
		signIn:   signIn,
		register: register,
		oauth:    oauth,
		signOut:  signOut,
		store:    store,
		flasher:  flasher,
		config:   config,
	}
}

// AuthPage は認証画面を表示する。サインイン済みの場合はトップへ転送する。
// GET /auth-server-action?tab=sign-in|register
func (h *AuthHandler) AuthPage(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, view.PathHome, http.StatusSeeOther)
		return
	}

	h.renderAuthPage(w, r, http.StatusOK, view.AuthPageData{
		Tab: view.ParseTab(r.URL.Query().Get("tab")),
	})
}

// SignIn はサインインフォームの送信を処理する。
// POST /auth-server-action/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := form.Decode(r, &creds); err != nil {
		slog.Warn("invalid sign-in form", slog.String("error", err.Error()))
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	sub, err := h.signIn.Submit(r.Context(), creds)
	if err != nil {
		slog.Error("sign-in submission failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !sub.Valid() {
		h.renderAuthPage(w, r, http.StatusUnprocessableEntity, view.AuthPageData{
			Tab:          view.TabSignIn,
			SignInEmail:  creds.Email,
			SignInErrors: sub.FieldErrors,
		})
		return
	}

	h.finishSubmission(w, r, sub, view.TabSignIn)
}

// Register は登録フォームの送信を処理する。
// POST /auth-server-action/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var creds model.RegistrationCredentials
	if err := form.Decode(r, &creds); err != nil {
		slog.Warn("invalid register form", slog.String("error", err.Error()))
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	sub, err := h.register.Submit(r.Context(), creds)
	if err != nil {
		slog.Error("register submission failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !sub.Valid() {
		h.renderAuthPage(w, r, http.StatusUnprocessableEntity, view.AuthPageData{
			Tab:            view.TabRegister,
			RegisterEmail:  creds.Email,
			RegisterErrors: sub.FieldErrors,
		})
		return
	}

	h.finishSubmission(w, r, sub, view.TabRegister)
}

// finishSubmission は発行されたセッションを保存し、トーストを設定して画面へ戻す。
func (h *AuthHandler) finishSubmission(w http.ResponseWriter, r *http.Request, sub *form.Submission, tab view.Tab) {
	redirectTo := view.PathAuth + "?tab=" + string(tab)

	if sub.Result.OK() && sub.Result.Session != nil {
		if err := h.store.Save(w, r, sub.Result.Session); err != nil {
			slog.Error("failed to store session", slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		redirectTo = view.PathHome
	}

	if sub.Toast != nil {
		if err := h.flasher.Add(w, r, *sub.Toast); err != nil {
			slog.Error("failed to flash toast", slog.String("error", err.Error()))
		}
	}

	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}

// OAuth はOAuthプロバイダでのサインインを開始し、プロバイダへ転送する。
// 開始に失敗した場合はログのみ残して認証画面へ戻す。
// POST /auth-server-action/oauth
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	origin := requestOrigin(r, h.config.TrustForwardedProto)

	redirect, err := h.oauth.SignInWithOAuth(r.Context(), h.config.OAuthProvider, auth.CallbackURL(origin))
	if err != nil {
		slog.Error("failed to start oauth sign in",
			slog.String("provider", h.config.OAuthProvider),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, view.PathAuth, http.StatusSeeOther)
		return
	}

	if err := h.store.SetCodeVerifier(w, r, redirect.CodeVerifier); err != nil {
		slog.Error("failed to store code verifier", slog.String("error", err.Error()))
		http.Redirect(w, r, view.PathAuth, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, redirect.URL, http.StatusSeeOther)
}

// Callback はプロバイダからのコールバックで認可コードをセッションに交換する。
// GET /auth-server-action/callback?code=xxx&next=/path
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// プロバイダ側での拒否はerror_descriptionで返る
	if desc := q.Get("error_description"); desc != "" || q.Get("error") != "" {
		slog.Warn("oauth provider returned error",
			slog.String("error", q.Get("error")),
			slog.String("error_description", desc),
		)
		h.failCallback(w, r)
		return
	}

	verifier, err := h.store.PopCodeVerifier(w, r)
	if err != nil {
		if !errors.Is(err, sessionstore.ErrNoVerifier) {
			slog.Error("failed to read code verifier", slog.String("error", err.Error()))
		} else {
			slog.Warn("oauth callback without code verifier")
		}
		h.failCallback(w, r)
		return
	}

	session, err := h.oauth.ExchangeCode(r.Context(), q.Get("code"), verifier)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.failCallback(w, r)
		return
	}

	if err := h.store.Save(w, r, session); err != nil {
		slog.Error("failed to store session", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	slog.Info("user signed in with oauth",
		slog.String("provider", h.config.OAuthProvider),
		slog.String("user_id", session.User.ID),
	)
	http.Redirect(w, r, safeNext(q.Get("next")), http.StatusSeeOther)
}

func (h *AuthHandler) failCallback(w http.ResponseWriter, r *http.Request) {
	if err := h.flasher.Add(w, r, toast.Error(msgOAuthFailed)); err != nil {
		slog.Error("failed to flash toast", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, view.PathAuth, http.StatusSeeOther)
}

// SignOut はサービス側のセッションを失効させ、認証Cookieを削除する。
// サービスへの失効に失敗してもCookieは削除する。
// POST /auth-server-action/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		if err := h.signOut.SignOut(r.Context(), session.AccessToken); err != nil {
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	if err := h.store.Clear(w, r); err != nil {
		slog.Error("failed to clear session cookie", slog.String("error", err.Error()))
	}

	http.Redirect(w, r, view.PathAuth, http.StatusSeeOther)
}

// Home はサインイン済みユーザーのトップ画面を表示する。
// GET /
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, view.PathAuth, http.StatusSeeOther)
		return
	}

	toasts := h.flasher.Pop(w, r)
	body := view.HomePage(session.User.Email, middleware.CSRFTokenFromContext(r.Context()))
	if err := view.Render(w, r, http.StatusOK, view.Layout("Home", toasts), body); err != nil {
		slog.Error("failed to render home page", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *AuthHandler) renderAuthPage(w http.ResponseWriter, r *http.Request, status int, data view.AuthPageData) {
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	data.OAuthProvider = h.config.OAuthProvider
	if data.SignInErrors == nil {
		data.SignInErrors = validation.FieldErrors{}
	}
	if data.RegisterErrors == nil {
		data.RegisterErrors = validation.FieldErrors{}
	}

	// 検証エラーの再表示ではトーストを出さない
	var toasts []toast.Toast
	if status == http.StatusOK {
		toasts = h.flasher.Pop(w, r)
	}

	if err := view.Render(w, r, status, view.Layout(pageTitle, toasts), view.AuthPage(data)); err != nil {
		slog.Error("failed to render auth page", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// requestOrigin はコールバックURLの基準となるオリジンを求める。
// ブラウザが送ったOriginヘッダーがHostと一致すればそれを使い、
// 無ければTLSの有無（信頼する場合はX-Forwarded-Proto）とHostから組み立てる。
func requestOrigin(r *http.Request, trustForwardedProto bool) string {
	if o := r.Header.Get("Origin"); o != "" {
		if u, err := url.Parse(o); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host == r.Host {
			return u.Scheme + "://" + u.Host
		}
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if trustForwardedProto {
		switch p := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); p {
		case "http", "https":
			scheme = p
		}
	}
	return scheme + "://" + r.Host
}

// safeNext はコールバック後の遷移先を同一オリジンの相対パスに限定する。
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return view.PathHome
	}
	return next
}
