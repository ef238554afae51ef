package supabase

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/authscreen/internal/model"
)

// gotrueクライアントはHTTPエラーを "response status code N: <body>" 形式の文字列で返す
var statusErrorPattern = regexp.MustCompile(`(?s)^response status code (\d+)(?::\s*(.*))?$`)

// ParseServiceError はgotrueクライアントのエラーをmodel.ServiceErrorに変換する。
// レスポンスボディにメッセージがあればそれを使い、無ければ元のエラー文字列を使う。
func ParseServiceError(err error) error {
	if err == nil {
		return nil
	}
	var se *model.ServiceError
	if errors.As(err, &se) {
		return err
	}

	m := statusErrorPattern.FindStringSubmatch(strings.TrimSpace(err.Error()))
	if m == nil {
		return &model.ServiceError{Message: err.Error()}
	}

	status, _ := strconv.Atoi(m[1])
	body := m[2]
	out := &model.ServiceError{Status: status, Message: body}

	if gjson.Valid(body) {
		res := gjson.Parse(body)
		out.Code = firstString(res, "error_code", "code", "error")
		if msg := firstString(res, "msg", "error_description", "message", "error"); msg != "" {
			out.Message = msg
		}
	}
	if out.Message == "" {
		out.Message = "Request failed with status " + m[1]
	}
	return out
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := res.Get(p)
		if v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
