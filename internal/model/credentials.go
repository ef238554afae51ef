package model

// Credentials はサインインフォームの入力値を表す。
// フィールド順はトーストに表示するJSONのキー順になる。
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"min=6"`
}

// RegistrationCredentials は登録フォームの入力値を表す。
// Confirm は Password と一致しなければならない。
type RegistrationCredentials struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"min=6"`
	Confirm  string `json:"confirm" form:"confirm" validate:"eqfield=Password,min=6"`
}

// Credentials は確認用フィールドを除いた認証情報を返す。
func (r RegistrationCredentials) Credentials() Credentials {
	return Credentials{Email: r.Email, Password: r.Password}
}
