package view

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// HomePage はサインイン済みユーザーのトップ画面。
func HomePage(email, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<div class="home"><p>Signed in as <strong>`)
		hw.text(email)
		hw.raw(`</strong></p><form method="post" action="`)
		hw.text(PathSignOut)
		hw.raw(`">`)
		csrfField(hw, csrfToken)
		hw.raw(`<button type="submit">Sign out</button></form></div>`)
		return hw.err
	})
}
