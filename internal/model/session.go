package model

import "time"

// Session は外部認証サービスが発行したログインセッションを表す。
// トークンはHttpOnly Cookieにのみ保存し、JSONには出力しない。
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired は基準時刻にmarginを加えた時点でアクセストークンが失効しているかを返す。
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}
