// Package validation はフォーム入力の宣言的な検証を行う。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/authscreen/internal/model"
)

// DefaultPasswordMinLength はパスワードの既定の最小長。
const DefaultPasswordMinLength = 6

// 表示用メッセージ
const (
	MsgInvalidEmail     = "Invalid email"
	MsgPasswordMismatch = "Password did not match"
)

// FieldErrors はフォームのフィールド名をキーとするエラーメッセージ。
// 1フィールドにつき最初の1件のみを保持する。
type FieldErrors map[string]string

// Error はerrorインターフェースを実装する。
func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, name := range []string{"email", "password", "confirm"} {
		if msg, ok := fe[name]; ok {
			parts = append(parts, name+": "+msg)
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Has は指定フィールドにエラーがあるかを返す。
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Validator はサインイン・登録フォームの検証ルールを保持する。
// 生成後は読み取り専用のため、複数goroutineから安全に利用できる。
type Validator struct {
	v         *validator.Validate
	minLength int
}

// New は最小パスワード長を指定してValidatorを生成する。
func New(passwordMinLength int) *Validator {
	if passwordMinLength < 1 {
		passwordMinLength = DefaultPasswordMinLength
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーをフォームのフィールド名で報告する
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	minRule := fmt.Sprintf("min=%d", passwordMinLength)
	v.RegisterStructValidationMapRules(map[string]string{
		"Email":    "required,email",
		"Password": minRule,
	}, model.Credentials{})
	// eqfieldを先に評価し、不一致の場合は必ず不一致エラーを報告する
	v.RegisterStructValidationMapRules(map[string]string{
		"Email":    "required,email",
		"Password": minRule,
		"Confirm":  "eqfield=Password," + minRule,
	}, model.RegistrationCredentials{})

	return &Validator{v: v, minLength: passwordMinLength}
}

// PasswordMinLength は設定された最小パスワード長を返す。
func (val *Validator) PasswordMinLength() int {
	return val.minLength
}

// ValidateSignIn はサインインフォームの入力を検証する。
// 問題が無い場合はnilを返す。
func (val *Validator) ValidateSignIn(c model.Credentials) FieldErrors {
	return val.validate(c)
}

// ValidateRegister は登録フォームの入力を検証する。
func (val *Validator) ValidateRegister(c model.RegistrationCredentials) FieldErrors {
	return val.validate(c)
}

func (val *Validator) validate(s any) FieldErrors {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// 構造体以外が渡された場合のみ到達する
		return FieldErrors{"form": err.Error()}
	}

	fe := make(FieldErrors, len(verrs))
	for _, e := range verrs {
		if _, exists := fe[e.Field()]; exists {
			continue
		}
		fe[e.Field()] = val.message(e)
	}
	return fe
}

func (val *Validator) message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "email":
		return MsgInvalidEmail
	case "min":
		return fmt.Sprintf("Password Minimum length is %d", val.minLength)
	case "eqfield":
		return MsgPasswordMismatch
	default:
		return fmt.Sprintf("Invalid %s", e.Field())
	}
}
