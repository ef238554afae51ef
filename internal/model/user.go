package model

// User は外部認証サービスが発行したユーザー識別情報を表す。
// アクセストークンのクレームから復元する。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}
