// Package view はサーバーサイドで描画するHTML画面をtemplコンポーネントとして提供する。
package view

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// Render はレイアウトの中にページ本体を描画してレスポンスに書き込む。
// 描画に失敗した場合はステータスを書き込まずにエラーを返す。
func Render(w http.ResponseWriter, r *http.Request, status int, layout, body templ.Component) error {
	var buf bytes.Buffer
	if err := layout.Render(templ.WithChildren(r.Context(), body), &buf); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// htmlWriter は最初のエラーを保持しつつHTML断片を書き込む。
type htmlWriter struct {
	w   io.Writer
	err error
}

// raw はエスケープせずに書き込む。固定のマークアップ専用。
func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

// text は値をエスケープして書き込む。
func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

// component は子コンポーネントを描画する。
func (hw *htmlWriter) component(ctx context.Context, c templ.Component) {
	if hw.err != nil || c == nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}
