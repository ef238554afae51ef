// Package sessionstore は認証トークンとOAuthの一時情報をCookieに保存する。
// 値はgorilla/sessionsで署名・暗号化され、サーバー側には何も保持しない。
package sessionstore

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/hitoshi/authscreen/internal/model"
)

// Cookie名
const (
	AuthCookieName      = "authscreen_session"
	TransientCookieName = "authscreen_flow"
)

// 一時Cookie（PKCE verifier・フラッシュ）の有効期間（秒）
const transientMaxAge = 600

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "expires_at"
	keyCodeVerifier = "code_verifier"
)

// ErrNoVerifier はPKCE verifierが保存されていない場合に返される。
var ErrNoVerifier = errors.New("pkce verifier not found")

// Config はCookieストアの設定。
type Config struct {
	Secret string // 署名・暗号化キーの導出元
	MaxAge int    // 認証Cookieの有効期間（秒）
	Secure bool
	Domain string
}

// Tokens はCookieに保存された認証トークン。
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Store は認証Cookieと一時Cookieを管理する。
type Store struct {
	auth      *sessions.CookieStore
	transient *sessions.CookieStore
}

// New はStoreを生成する。
func New(cfg Config) *Store {
	hashKey := deriveKey(cfg.Secret, "authscreen/hash")
	blockKey := deriveKey(cfg.Secret, "authscreen/block")

	auth := sessions.NewCookieStore(hashKey, blockKey)
	auth.Options = cookieOptions(cfg, cfg.MaxAge)
	auth.MaxAge(cfg.MaxAge)

	transient := sessions.NewCookieStore(hashKey, blockKey)
	transient.Options = cookieOptions(cfg, transientMaxAge)
	transient.MaxAge(transientMaxAge)

	return &Store{auth: auth, transient: transient}
}

// Transient はフラッシュ等の一時データ用のストアを返す。
func (s *Store) Transient() sessions.Store {
	return s.transient
}

// Load は認証Cookieからトークンを読み出す。
// Cookieが無い、または復号できない場合はnilを返す。
func (s *Store) Load(r *http.Request) *Tokens {
	sess, err := s.auth.Get(r, AuthCookieName)
	if err != nil {
		// 鍵の変更や改ざん。ログインし直してもらう
		slog.Debug("failed to decode auth cookie", slog.String("error", err.Error()))
		return nil
	}

	at, _ := sess.Values[keyAccessToken].(string)
	rt, _ := sess.Values[keyRefreshToken].(string)
	if at == "" {
		return nil
	}
	exp, _ := sess.Values[keyExpiresAt].(int64)

	t := &Tokens{AccessToken: at, RefreshToken: rt}
	if exp > 0 {
		t.ExpiresAt = time.Unix(exp, 0)
	}
	return t
}

// Save はセッションのトークンを認証Cookieに書き込む。
func (s *Store) Save(w http.ResponseWriter, r *http.Request, session *model.Session) error {
	if session == nil || session.AccessToken == "" {
		return fmt.Errorf("session has no access token")
	}

	sess, _ := s.auth.Get(r, AuthCookieName)
	sess.Values[keyAccessToken] = session.AccessToken
	sess.Values[keyRefreshToken] = session.RefreshToken
	if !session.ExpiresAt.IsZero() {
		sess.Values[keyExpiresAt] = session.ExpiresAt.Unix()
	} else {
		delete(sess.Values, keyExpiresAt)
	}
	sess.Options.MaxAge = s.auth.Options.MaxAge

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save auth cookie: %w", err)
	}
	return nil
}

// Clear は認証Cookieを削除する。
func (s *Store) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.auth.Get(r, AuthCookieName)
	sess.Values = make(map[interface{}]interface{})
	sess.Options.MaxAge = -1

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear auth cookie: %w", err)
	}
	return nil
}

// SetCodeVerifier はOAuth開始時のPKCE verifierを一時Cookieに保存する。
func (s *Store) SetCodeVerifier(w http.ResponseWriter, r *http.Request, verifier string) error {
	sess, _ := s.transient.Get(r, TransientCookieName)
	sess.Values[keyCodeVerifier] = verifier

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save code verifier: %w", err)
	}
	return nil
}

// PopCodeVerifier はPKCE verifierを取り出して一時Cookieから削除する。
// 1つのverifierは1回のコード交換にのみ使う。
func (s *Store) PopCodeVerifier(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := s.transient.Get(r, TransientCookieName)
	if err != nil {
		return "", ErrNoVerifier
	}
	v, _ := sess.Values[keyCodeVerifier].(string)
	if v == "" {
		return "", ErrNoVerifier
	}

	delete(sess.Values, keyCodeVerifier)
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to consume code verifier: %w", err)
	}
	return v, nil
}

func cookieOptions(cfg Config, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// deriveKey はシークレットから用途別の32バイト鍵を導出する。
func deriveKey(secret, purpose string) []byte {
	sum := sha256.Sum256([]byte(purpose + "\x00" + secret))
	return sum[:]
}
