package form

import (
	"fmt"
	"net/http"

	"github.com/gorilla/schema"
)

// decoder はフォーム値を構造体に詰める。
// CSRFトークン等のフォーム以外のフィールドは無視する。
var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag("form")
	d.IgnoreUnknownKeys(true)
	return d
}

// Decode はapplication/x-www-form-urlencodedの本文をdstに読み込む。
func Decode(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("failed to parse form: %w", err)
	}
	if err := decoder.Decode(dst, r.PostForm); err != nil {
		return fmt.Errorf("failed to decode form: %w", err)
	}
	return nil
}
