// Package auth は外部認証サービスへの委譲（サインアップ・サインイン・OAuth）と
// セッションの読み取りを提供する。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/authscreen/internal/metrics"
	"github.com/hitoshi/authscreen/internal/model"
	"github.com/hitoshi/authscreen/internal/security"
)

// MsgServiceUnavailable は認証サービスに到達できない場合に表示するメッセージ。
const MsgServiceUnavailable = "Unable to reach the authentication service. Please try again later."

// PasswordAuthenticator はメールアドレスとパスワードによる認証を提供する外部サービス。
type PasswordAuthenticator interface {
	SignUp(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Actions はフォームから呼ばれる認証アクション。
// 入力の検証は呼び出し側の責務で、ここではサービスにそのまま委譲する。
type Actions struct {
	svc       PasswordAuthenticator
	sanitizer security.MessageSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewActions はActionsを生成する。
func NewActions(svc PasswordAuthenticator, sanitizer security.MessageSanitizer, mc metrics.MetricsCollector) *Actions {
	if sanitizer == nil {
		sanitizer = security.NewMessageSanitizer(0)
	}
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Actions{
		svc:       svc,
		sanitizer: sanitizer,
		metrics:   mc,
		now:       time.Now,
	}
}

// SignUpWithEmailAndPassword はアカウントを作成する。
// サービスが自動確認でセッションを発行した場合は結果のSessionに設定する。
func (a *Actions) SignUpWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult {
	start := a.now()
	user, session, err := a.svc.SignUp(ctx, creds.Email, creds.Password)
	a.metrics.RecordAuthLatency(metrics.ActionSignUp, a.now().Sub(start))
	if err != nil {
		return a.failure(metrics.ActionSignUp, err)
	}

	a.metrics.RecordAuthAction(metrics.ActionSignUp, metrics.OutcomeSuccess)
	slog.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.Bool("session_issued", session != nil),
	)
	return model.NewActionSuccess(user, session)
}

// SignInWithEmailAndPassword はサインインしてセッションを取得する。
func (a *Actions) SignInWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult {
	start := a.now()
	session, err := a.svc.SignInWithPassword(ctx, creds.Email, creds.Password)
	a.metrics.RecordAuthLatency(metrics.ActionSignIn, a.now().Sub(start))
	if err != nil {
		return a.failure(metrics.ActionSignIn, err)
	}

	a.metrics.RecordAuthAction(metrics.ActionSignIn, metrics.OutcomeSuccess)
	slog.Info("user signed in", slog.String("user_id", session.User.ID))
	user := session.User
	return model.NewActionSuccess(&user, session)
}

// SignOut はアクセストークンに紐づくセッションをサービス側で失効させる。
func (a *Actions) SignOut(ctx context.Context, accessToken string) error {
	if err := a.svc.SignOut(ctx, accessToken); err != nil {
		a.metrics.RecordAuthAction(metrics.ActionSignOut, metrics.OutcomeFailure)
		return err
	}
	a.metrics.RecordAuthAction(metrics.ActionSignOut, metrics.OutcomeSuccess)
	return nil
}

// failure はサービスのエラーを表示用メッセージを持つ失敗結果に変換する。
func (a *Actions) failure(action string, err error) *model.ActionResult {
	a.metrics.RecordAuthAction(action, metrics.OutcomeFailure)

	var se *model.ServiceError
	if errors.As(err, &se) && se.Status > 0 {
		slog.Warn("auth action rejected",
			slog.String("action", action),
			slog.Int("status", se.Status),
			slog.String("code", se.Code),
		)
		msg := a.sanitizer.Sanitize(se.Message)
		if msg == "" {
			msg = MsgServiceUnavailable
		}
		return model.NewActionFailure(msg)
	}

	// 通信エラーやキャンセルは内部情報を含むためログのみに残す
	slog.Error("auth action failed",
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
	return model.NewActionFailure(MsgServiceUnavailable)
}
