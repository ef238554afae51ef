package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/authscreen/internal/metrics"
	"github.com/hitoshi/authscreen/internal/model"
	"github.com/hitoshi/authscreen/internal/sessionstore"
)

// TokenStore は認証トークンをリクエスト間で保持するストア。
type TokenStore interface {
	Load(r *http.Request) *sessionstore.Tokens
	Save(w http.ResponseWriter, r *http.Request, session *model.Session) error
	Clear(w http.ResponseWriter, r *http.Request) error
}

// TokenRefresher はリフレッシュトークンで新しいセッションを取得する。
type TokenRefresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
}

// SessionReaderConfig はSessionReaderの設定。
type SessionReaderConfig struct {
	RefreshMargin time.Duration // 失効までの残り時間がこれ以下ならリフレッシュする
}

// SessionReader は現在のリクエストのセッションを取得する。
// 結果は保持せず、呼び出しごとにCookieと認証サービスから求め直す。
type SessionReader struct {
	store     TokenStore
	refresher TokenRefresher
	claims    *ClaimsParser
	config    SessionReaderConfig
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewSessionReader はSessionReaderを生成する。
func NewSessionReader(
	store TokenStore,
	refresher TokenRefresher,
	claims *ClaimsParser,
	config SessionReaderConfig,
	mc metrics.MetricsCollector,
) *SessionReader {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &SessionReader{
		store:     store,
		refresher: refresher,
		claims:    claims,
		config:    config,
		metrics:   mc,
		now:       time.Now,
	}
}

// ReadSession は現在のセッションを返す。セッションが無い場合は nil, nil を返す。
// レスポンスのキャッシュを無効化し、アクセストークンが失効間近であれば
// 認証サービスでリフレッシュしてCookieを書き換える。
// リフレッシュの失敗はそのままエラーとして返す（リトライしない）。
func (sr *SessionReader) ReadSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*model.Session, error) {
	w.Header().Set("Cache-Control", "no-store")

	tokens := sr.store.Load(r)
	if tokens == nil {
		sr.metrics.RecordSessionRead("absent")
		return nil, nil
	}

	claims, err := sr.claims.Parse(tokens.AccessToken)
	if err != nil {
		slog.Warn("discarding invalid access token", slog.String("error", err.Error()))
		sr.clear(w, r)
		sr.metrics.RecordSessionRead("absent")
		return nil, nil
	}

	session := sessionFromClaims(tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt, claims)
	if !session.Expired(sr.now(), sr.config.RefreshMargin) {
		sr.metrics.RecordSessionRead("present")
		return session, nil
	}

	if tokens.RefreshToken == "" {
		sr.clear(w, r)
		sr.metrics.RecordSessionRead("absent")
		return nil, nil
	}

	refreshed, err := sr.refresh(ctx, tokens.RefreshToken)
	if err != nil {
		var se *model.ServiceError
		if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 {
			// 失効・再利用済みのリフレッシュトークンは二度と使えない
			sr.clear(w, r)
		}
		sr.metrics.RecordSessionRead("error")
		return nil, err
	}

	if err := sr.store.Save(w, r, refreshed); err != nil {
		sr.metrics.RecordSessionRead("error")
		return nil, fmt.Errorf("failed to store refreshed session: %w", err)
	}

	sr.metrics.RecordSessionRead("refreshed")
	slog.Info("session refreshed", slog.String("user_id", refreshed.User.ID))
	return refreshed, nil
}

func (sr *SessionReader) refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	start := sr.now()
	s, err := sr.refresher.RefreshSession(ctx, refreshToken)
	sr.metrics.RecordAuthLatency(metrics.ActionRefresh, sr.now().Sub(start))
	if err != nil {
		sr.metrics.RecordAuthAction(metrics.ActionRefresh, metrics.OutcomeFailure)
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	sr.metrics.RecordAuthAction(metrics.ActionRefresh, metrics.OutcomeSuccess)

	// ユーザー情報はトークンのクレームを正とする
	if claims, err := sr.claims.Parse(s.AccessToken); err == nil {
		s = sessionFromClaims(s.AccessToken, s.RefreshToken, s.ExpiresAt, claims)
	}
	return s, nil
}

func (sr *SessionReader) clear(w http.ResponseWriter, r *http.Request) {
	if err := sr.store.Clear(w, r); err != nil {
		slog.Error("failed to clear auth cookie", slog.String("error", err.Error()))
	}
}

// sessionFromClaims はトークンとクレームからセッションを組み立てる。
// expクレームがあればCookieの値より優先する。
func sessionFromClaims(accessToken, refreshToken string, expiresAt time.Time, c *Claims) *model.Session {
	if exp := c.ExpiresAtTime(); !exp.IsZero() {
		expiresAt = exp
	}
	return &model.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User: model.User{
			ID:    c.Subject,
			Email: c.Email,
			Role:  c.Role,
		},
	}
}
