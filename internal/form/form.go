package form

import (
	"context"
	"fmt"

	"github.com/hitoshi/authscreen/internal/metrics"
	"github.com/hitoshi/authscreen/internal/model"
	"github.com/hitoshi/authscreen/internal/toast"
	"github.com/hitoshi/authscreen/internal/validation"
)

// SignInAction はサインインアクション。
type SignInAction interface {
	SignInWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult
}

// SignUpAction はサインアップアクション。
type SignUpAction interface {
	SignUpWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult
}

// Submission は1回の送信結果。
// 検証エラーの場合はFieldErrorsのみを持ち、ResultとToastはnil。
type Submission struct {
	FieldErrors validation.FieldErrors
	Result      *model.ActionResult
	Toast       *toast.Toast
	States      []State
}

// Valid は検証を通過したかを返す。
func (s *Submission) Valid() bool {
	return len(s.FieldErrors) == 0
}

// SignInForm はサインインフォーム。
type SignInForm struct {
	validator *validation.Validator
	action    SignInAction
	metrics   metrics.MetricsCollector
}

// NewSignInForm はSignInFormを生成する。
func NewSignInForm(v *validation.Validator, action SignInAction, mc metrics.MetricsCollector) *SignInForm {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &SignInForm{validator: v, action: action, metrics: mc}
}

// Submit は入力を検証し、問題が無ければサインインアクションを1回だけ呼ぶ。
func (f *SignInForm) Submit(ctx context.Context, creds model.Credentials) (*Submission, error) {
	return submit(ctx, "sign_in", creds,
		func() validation.FieldErrors { return f.validator.ValidateSignIn(creds) },
		func(ctx context.Context) *model.ActionResult { return f.action.SignInWithEmailAndPassword(ctx, creds) },
		f.metrics,
	)
}

// RegisterForm は登録フォーム。
type RegisterForm struct {
	validator *validation.Validator
	action    SignUpAction
	metrics   metrics.MetricsCollector
}

// NewRegisterForm はRegisterFormを生成する。
func NewRegisterForm(v *validation.Validator, action SignUpAction, mc metrics.MetricsCollector) *RegisterForm {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &RegisterForm{validator: v, action: action, metrics: mc}
}

// Submit は入力を検証し、確認用パスワードが一致すればサインアップアクションを呼ぶ。
// トーストには確認用フィールドを含む送信値をそのまま表示する。
func (f *RegisterForm) Submit(ctx context.Context, creds model.RegistrationCredentials) (*Submission, error) {
	return submit(ctx, "register", creds,
		func() validation.FieldErrors { return f.validator.ValidateRegister(creds) },
		func(ctx context.Context) *model.ActionResult {
			return f.action.SignUpWithEmailAndPassword(ctx, creds.Credentials())
		},
		f.metrics,
	)
}

// submit は idle -> validating -> submitting -> success|error -> idle の流れを実行する。
func submit(
	ctx context.Context,
	name string,
	submitted any,
	validate func() validation.FieldErrors,
	call func(ctx context.Context) *model.ActionResult,
	mc metrics.MetricsCollector,
) (*Submission, error) {
	m := NewMachine()
	if err := m.To(StateValidating); err != nil {
		return nil, err
	}

	if fe := validate(); len(fe) > 0 {
		mc.RecordValidationFailure(name)
		if err := m.To(StateIdle); err != nil {
			return nil, err
		}
		return &Submission{FieldErrors: fe, States: m.History()}, nil
	}

	if err := m.To(StateSubmitting); err != nil {
		return nil, err
	}
	res := call(ctx)
	if res == nil {
		return nil, fmt.Errorf("%s action returned no result", name)
	}

	outcome := StateSuccess
	if !res.OK() {
		outcome = StateError
	}
	if err := m.To(outcome); err != nil {
		return nil, err
	}

	t, err := toast.FromResult(res, submitted)
	if err != nil {
		return nil, err
	}

	if err := m.To(StateIdle); err != nil {
		return nil, err
	}
	return &Submission{Result: res, Toast: &t, States: m.History()}, nil
}
