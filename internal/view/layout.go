package view

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/hitoshi/authscreen/internal/toast"
)

// Layout は全ページ共通のHTML骨格。トーストを画面上部に表示する。
func Layout(title string, toasts []toast.Toast) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title></head><body>`)
		if len(toasts) > 0 {
			hw.raw(`<ol class="toaster" role="region" aria-label="Notifications">`)
			for _, t := range toasts {
				hw.component(ctx, Toast(t))
			}
			hw.raw(`</ol>`)
		}
		hw.raw(`<main>`)
		hw.component(ctx, templ.GetChildren(ctx))
		hw.raw(`</main></body></html>`)
		return hw.err
	})
}

// Toast は1件の通知を描画する。説明文は整形済みテキストとして表示する。
func Toast(t toast.Toast) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		variant := t.Variant
		if variant == "" {
			variant = toast.VariantDefault
		}
		hw.raw(`<li class="toast" role="status" data-variant="`)
		hw.text(string(variant))
		hw.raw(`"><div class="toast-title">`)
		hw.text(t.Title)
		hw.raw(`</div>`)
		if t.Description != "" {
			hw.raw(`<div class="toast-description"><pre><code>`)
			hw.text(t.Description)
			hw.raw(`</code></pre></div>`)
		}
		hw.raw(`</li>`)
		return hw.err
	})
}
