// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MessageSanitizer は外部認証サービスが返したエラーメッセージを
// プレーンテキストに正規化し、トーストへ安全に表示できるようにする。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxMessageLength はメッセージの既定の最大文字数。
const DefaultMaxMessageLength = 300

// MessageSanitizer はサービス由来のメッセージをサニタイズする。
type MessageSanitizer interface {
	// Sanitize はHTMLタグを除去し、空白を正規化したプレーンテキストを返す。
	// 最大文字数を超える場合は末尾を省略する。
	Sanitize(msg string) string
}

// messageSanitizer はMessageSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理する。
type messageSanitizer struct {
	policy *bluemonday.Policy
	maxLen int
}

// NewMessageSanitizer はMessageSanitizerを生成する。
// maxLenが0以下の場合はDefaultMaxMessageLengthを使う。
func NewMessageSanitizer(maxLen int) *messageSanitizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	return &messageSanitizer{
		policy: bluemonday.StrictPolicy(),
		maxLen: maxLen,
	}
}

// Sanitize はメッセージをプレーンテキストに変換する。
func (s *messageSanitizer) Sanitize(msg string) string {
	// StrictPolicyは実体参照にエスケープするため、表示側の再エスケープに備えて戻す
	text := html.UnescapeString(s.policy.Sanitize(msg))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) > s.maxLen {
		runes := []rune(text)
		text = string(runes[:s.maxLen]) + "…"
	}
	return text
}
