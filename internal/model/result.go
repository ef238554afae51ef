package model

import (
	"encoding/json"
	"fmt"
)

// ActionResult は認証アクションの結果を表すタグ付き結果型。
// 成功時はData、失敗時はErrorのいずれか一方のみを持つ。
type ActionResult struct {
	Data  *ActionData  `json:"data,omitempty"`
	Error *ActionError `json:"error,omitempty"`

	// Session はサービスがセッションを発行した場合のみ設定される。
	// 転送形式には含めない。
	Session *Session `json:"-"`
}

// ActionData は成功時のペイロード。
type ActionData struct {
	User *User `json:"user,omitempty"`
}

// ActionError は失敗時のペイロード。
type ActionError struct {
	Message string `json:"message"`
}

// NewActionSuccess は成功結果を生成する。
func NewActionSuccess(user *User, session *Session) *ActionResult {
	return &ActionResult{
		Data:    &ActionData{User: user},
		Session: session,
	}
}

// NewActionFailure は失敗結果を生成する。
func NewActionFailure(message string) *ActionResult {
	return &ActionResult{Error: &ActionError{Message: message}}
}

// OK はエラーを含まない場合にtrueを返す。
func (r *ActionResult) OK() bool {
	return r.Error == nil
}

// Serialize は転送用のJSONテキストに変換する。
func (r *ActionResult) Serialize() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to serialize action result: %w", err)
	}
	return string(b), nil
}

// ParseActionResult はSerializeの出力を読み戻す。
// error.message を持たないerrorオブジェクトも失敗として扱う。
func ParseActionResult(text string) (*ActionResult, error) {
	var res ActionResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("failed to parse action result: %w", err)
	}
	return &res, nil
}
