package view

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/hitoshi/authscreen/internal/validation"
)

// 画面とフォーム送信先のパス
const (
	PathHome    = "/"
	PathAuth    = "/auth-server-action"
	PathSignIn  = "/auth-server-action/sign-in"
	PathSignUp  = "/auth-server-action/register"
	PathOAuth   = "/auth-server-action/oauth"
	PathSignOut = "/auth-server-action/sign-out"
)

// CSRFFieldName はCSRFトークンを送るhiddenフィールド名。
const CSRFFieldName = "csrf_token"

// Tab は認証画面のタブ。
type Tab string

const (
	TabSignIn   Tab = "sign-in"
	TabRegister Tab = "register"
)

// ParseTab はクエリ値からタブを決める。不明な値はサインインとして扱う。
func ParseTab(s string) Tab {
	if Tab(s) == TabRegister {
		return TabRegister
	}
	return TabSignIn
}

// AuthPageData は認証画面の表示内容。
// 再表示時はメールアドレスのみを引き継ぎ、パスワードは空で描画する。
type AuthPageData struct {
	CSRFToken      string
	Tab            Tab
	SignInEmail    string
	SignInErrors   validation.FieldErrors
	RegisterEmail  string
	RegisterErrors validation.FieldErrors
	OAuthProvider  string
}

// AuthPage はサインイン・登録タブとOAuthボタンを持つ認証画面。
func AuthPage(data AuthPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		tab := data.Tab
		if tab == "" {
			tab = TabSignIn
		}

		hw.raw(`<div class="auth"><nav class="tabs" role="tablist">`)
		tabLink(hw, TabSignIn, "Sign in", tab)
		tabLink(hw, TabRegister, "Register", tab)
		hw.raw(`</nav>`)

		hw.raw(`<section id="panel-sign-in" role="tabpanel"`)
		if tab != TabSignIn {
			hw.raw(` hidden`)
		}
		hw.raw(`>`)
		hw.component(ctx, SignInForm(data.CSRFToken, data.SignInEmail, data.SignInErrors))
		hw.raw(`</section>`)

		hw.raw(`<section id="panel-register" role="tabpanel"`)
		if tab != TabRegister {
			hw.raw(` hidden`)
		}
		hw.raw(`>`)
		hw.component(ctx, RegisterForm(data.CSRFToken, data.RegisterEmail, data.RegisterErrors))
		hw.raw(`</section>`)

		hw.component(ctx, OAuthForm(data.CSRFToken, data.OAuthProvider))
		hw.raw(`</div>`)
		return hw.err
	})
}

func tabLink(hw *htmlWriter, t Tab, label string, active Tab) {
	hw.raw(`<a role="tab" href="`)
	hw.text(PathAuth + "?tab=" + string(t))
	hw.raw(`" aria-selected="`)
	if t == active {
		hw.raw(`true`)
	} else {
		hw.raw(`false`)
	}
	hw.raw(`">`)
	hw.text(label)
	hw.raw(`</a>`)
}

// SignInForm はサインインフォーム。
// スピナーは送信中のみ表示するため、hiddenで描画して送信時にスクリプトで表示する。
func SignInForm(csrfToken, email string, errs validation.FieldErrors) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<form id="sign-in-form" method="post" action="`)
		hw.text(PathSignIn)
		hw.raw(`" novalidate>`)
		csrfField(hw, csrfToken)
		field(hw, "sign-in", "email", "Email", "email", "example@gmail.com", email, errs)
		field(hw, "sign-in", "password", "Password", "password", "******", "", errs)
		hw.raw(`<button type="submit" class="w-full">Login`)
		hw.raw(`<span class="spinner animate-spin" aria-hidden="true" hidden></span>`)
		hw.raw(`</button></form>`)
		hw.raw(`<script nonce="`)
		hw.text(templ.GetNonce(ctx))
		hw.raw(`">document.getElementById("sign-in-form").addEventListener("submit",function(e){var s=e.target.querySelector(".spinner");if(s){s.hidden=false;}});</script>`)
		return hw.err
	})
}

// RegisterForm は登録フォーム。スピナーは常に表示する。
func RegisterForm(csrfToken, email string, errs validation.FieldErrors) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<form id="register-form" method="post" action="`)
		hw.text(PathSignUp)
		hw.raw(`" novalidate>`)
		csrfField(hw, csrfToken)
		field(hw, "register", "email", "Email", "email", "example@gmail.com", email, errs)
		field(hw, "register", "password", "Password", "password", "*****", "", errs)
		field(hw, "register", "confirm", "Confirm Password", "password", "*****", "", errs)
		hw.raw(`<button type="submit" class="w-full">Register`)
		hw.raw(`<span class="spinner animate-spin" aria-hidden="true"></span>`)
		hw.raw(`</button></form>`)
		return hw.err
	})
}

// OAuthForm はOAuthプロバイダでのサインインを開始するボタン。
func OAuthForm(csrfToken, provider string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<form class="oauth" method="post" action="`)
		hw.text(PathOAuth)
		hw.raw(`">`)
		csrfField(hw, csrfToken)
		hw.raw(`<button type="submit" class="w-full" name="provider" value="`)
		hw.text(provider)
		hw.raw(`">Continue With `)
		hw.text(ProviderLabel(provider))
		hw.raw(`</button></form>`)
		return hw.err
	})
}

// ProviderLabel はプロバイダ名の先頭を大文字にした表示名を返す。
func ProviderLabel(provider string) string {
	if provider == "" {
		return ""
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}

func csrfField(hw *htmlWriter, token string) {
	hw.raw(`<input type="hidden" name="` + CSRFFieldName + `" value="`)
	hw.text(token)
	hw.raw(`">`)
}

// field はラベル・入力欄・フィールドエラーを描画する。
func field(hw *htmlWriter, formID, name, label, inputType, placeholder, value string, errs validation.FieldErrors) {
	id := formID + "-" + name
	hw.raw(`<div class="field"><label for="`)
	hw.text(id)
	hw.raw(`">`)
	hw.text(label)
	hw.raw(`</label><input id="`)
	hw.text(id)
	hw.raw(`" name="`)
	hw.text(name)
	hw.raw(`" type="`)
	hw.text(inputType)
	hw.raw(`" placeholder="`)
	hw.text(placeholder)
	hw.raw(`"`)
	if value != "" {
		hw.raw(` value="`)
		hw.text(value)
		hw.raw(`"`)
	}
	msg, invalid := errs[name]
	if invalid {
		hw.raw(` aria-invalid="true" aria-describedby="`)
		hw.text(id + "-error")
		hw.raw(`"`)
	}
	hw.raw(`>`)
	if invalid {
		hw.raw(`<p class="field-error" id="`)
		hw.text(id + "-error")
		hw.raw(`">`)
		hw.text(msg)
		hw.raw(`</p>`)
	}
	hw.raw(`</div>`)
}
