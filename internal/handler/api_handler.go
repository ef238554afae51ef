package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/authscreen/internal/middleware"
	"github.com/hitoshi/authscreen/internal/model"
)

// maxActionBodySize はアクションAPIが受け付けるリクエストボディの上限。
const maxActionBodySize = 1 << 16

// AuthActions はJSON APIから呼ぶ認証アクション。
type AuthActions interface {
	SignInWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult
	SignUpWithEmailAndPassword(ctx context.Context, creds model.Credentials) *model.ActionResult
}

// APIHandler はスクリプトクライアント向けのJSON APIハンドラー。
type APIHandler struct {
	actions AuthActions
	store   SessionStore
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(actions AuthActions, store SessionStore) *APIHandler {
	return &APIHandler{actions: actions, store: store}
}

// sessionResponse は現在のセッションのレスポンス形式。
type sessionResponse struct {
	Session *sessionBody `json:"session"`
}

type sessionBody struct {
	User      model.User `json:"user"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Session は現在のセッションをJSONで返す。未サインインの場合はsessionがnull。
// GET /api/session
func (h *APIHandler) Session(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{}
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		body := &sessionBody{User: s.User}
		if !s.ExpiresAt.IsZero() {
			exp := s.ExpiresAt.UTC()
			body.ExpiresAt = &exp
		}
		resp.Session = body
	}

	writeJSON(w, http.StatusOK, resp)
}

// SignIn はサインインアクションを実行し、シリアライズした結果を返す。
// POST /api/actions/sign-in
func (h *APIHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, h.actions.SignInWithEmailAndPassword)
}

// SignUp はサインアップアクションを実行し、シリアライズした結果を返す。
// POST /api/actions/sign-up
func (h *APIHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, h.actions.SignUpWithEmailAndPassword)
}

// runAction はリクエストボディを認証情報として読み、アクション結果を返す。
// 成功・失敗のいずれも200で返し、ボディを解釈できない場合のみ400を返す。
func (h *APIHandler) runAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, creds model.Credentials) *model.ActionResult,
) {
	var creds model.Credentials
	dec := json.NewDecoder(io.LimitReader(r.Body, maxActionBodySize))
	if err := dec.Decode(&creds); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	res := action(r.Context(), creds)
	if res == nil {
		middleware.WriteInternalServerError(w)
		return
	}

	if res.OK() && res.Session != nil {
		if err := h.store.Save(w, r, res.Session); err != nil {
			slog.Error("failed to store session", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
	}

	text, err := res.Serialize()
	if err != nil {
		slog.Error("failed to serialize action result", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, text)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
