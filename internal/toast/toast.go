// Package toast はフォーム送信結果の通知（トースト）を組み立てて、
// リダイレクト後の画面に1回だけ表示するためのフラッシュを提供する。
package toast

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/hitoshi/authscreen/internal/model"
)

// Variant はトーストの表示種別。
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// 表示タイトル
const (
	TitleError   = "Error"
	TitleSuccess = "You submitted the following values:"
)

// Toast は一時的な通知。
type Toast struct {
	Variant     Variant
	Title       string
	Description string
}

func init() {
	gob.Register(Toast{})
}

// FromResult はアクション結果から表示するトーストを決める。
// エラーがあればdestructiveでメッセージを、無ければ送信値を整形したJSONを表示する。
func FromResult(res *model.ActionResult, submitted any) (Toast, error) {
	if res != nil && res.Error != nil {
		return Error(res.Error.Message), nil
	}

	desc, err := prettyJSON(submitted)
	if err != nil {
		return Toast{}, fmt.Errorf("failed to format submitted values: %w", err)
	}
	return Toast{
		Variant:     VariantDefault,
		Title:       TitleSuccess,
		Description: desc,
	}, nil
}

// prettyJSON は2スペースでインデントしたJSONを返す。
// 表示時にエスケープされるため、ここでは<>&をエスケープしない。
func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Error はエラー通知を生成する。
func Error(message string) Toast {
	return Toast{
		Variant:     VariantDestructive,
		Title:       TitleError,
		Description: message,
	}
}

// Destructive はdestructive表示かどうかを返す。
func (t Toast) Destructive() bool {
	return t.Variant == VariantDestructive
}

// Flasher はトーストをCookieのフラッシュとして次の画面に引き渡す。
type Flasher struct {
	store sessions.Store
	name  string
}

// NewFlasher はFlasherを生成する。nameはフラッシュを保持するCookie名。
func NewFlasher(store sessions.Store, name string) *Flasher {
	return &Flasher{store: store, name: name}
}

// Add はトーストをフラッシュに追加してCookieを書き込む。
func (f *Flasher) Add(w http.ResponseWriter, r *http.Request, t Toast) error {
	sess, _ := f.store.Get(r, f.name)
	sess.AddFlash(t)
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save toast: %w", err)
	}
	return nil
}

// Pop はフラッシュに溜まったトーストを取り出して削除する。
func (f *Flasher) Pop(w http.ResponseWriter, r *http.Request) []Toast {
	sess, err := f.store.Get(r, f.name)
	if err != nil {
		return nil
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		return nil
	}

	toasts := make([]Toast, 0, len(flashes))
	for _, v := range flashes {
		if t, ok := v.(Toast); ok {
			toasts = append(toasts, t)
		}
	}
	return toasts
}
