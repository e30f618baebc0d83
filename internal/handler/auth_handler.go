// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/embedgate/internal/middleware"
	"github.com/hitoshi/embedgate/internal/model"
)

// UserProfileSource は認証済みユーザーのレコードを取得するインターフェース。
// platform.Clientが実装する。
type UserProfileSource interface {
	CurrentUser(ctx context.Context, cred model.Credential) (model.UserRecord, error)
}

// AdminDecider は管理者権限を判定するインターフェース。admin.Checkerが実装する。
type AdminDecider interface {
	Decide(ctx context.Context, user model.UserRecord, cred model.Credential) (model.AdminDecision, error)
}

// MessageSanitizer はレスポンスに含める文字列を無害化する。
type MessageSanitizer interface {
	Sanitize(value string) string
}

// verifyResponse は認証確認のレスポンス。
type verifyResponse struct {
	Success bool   `json:"success"`
	AuthID  string `json:"authId"`
	Domain  string `json:"domain"`
}

// adminResponse は管理者判定のレスポンス。
type adminResponse struct {
	Success bool   `json:"success"`
	IsAdmin bool   `json:"isAdmin"`
	Source  string `json:"source"`
}

// AuthHandler は認証確認と管理者判定のHTTPハンドラー。
type AuthHandler struct {
	profiles  UserProfileSource
	admin     AdminDecider
	sanitizer MessageSanitizer
}

// NewAuthHandler はAuthHandlerを生成する。sanitizerはnilでもよい。
func NewAuthHandler(profiles UserProfileSource, admin AdminDecider, sanitizer MessageSanitizer) *AuthHandler {
	return &AuthHandler{
		profiles:  profiles,
		admin:     admin,
		sanitizer: sanitizer,
	}
}

// Verify は認証ゲートを通過した認証情報を返す。
// GET,POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialOrUnauthorized(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Success: true,
		AuthID:  cred.Token,
		Domain:  cred.Domain,
	})
}

// Admin は現在のユーザーが管理者かを判定する。
// GET,POST /api/auth/admin
func (h *AuthHandler) Admin(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialOrUnauthorized(w, r)
	if !ok {
		return
	}

	// 1. ユーザーレコードの取得
	user, err := h.profiles.CurrentUser(r.Context(), cred)
	if err != nil {
		slog.Error("failed to fetch current user",
			slog.String("domain", cred.Domain),
			slog.String("error", err.Error()),
		)
		h.writeFailure(w, err)
		return
	}

	// 2. 管理者判定
	decision, err := h.admin.Decide(r.Context(), user, cred)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	slog.Info("admin decision",
		slog.String("domain", cred.Domain),
		slog.Bool("is_admin", decision.IsAdmin),
		slog.String("source", string(decision.Source)),
	)

	writeJSON(w, http.StatusOK, adminResponse{
		Success: true,
		IsAdmin: decision.IsAdmin,
		Source:  string(decision.Source),
	})
}

// authClassError はplatform.APIErrorのように認証情報起因かを判別できるエラー。
type authClassError interface {
	IsAuthError() bool
}

// isCredentialRejected はerrのチェーンに認証情報起因のエラーが含まれるかを返す。
func isCredentialRejected(err error) bool {
	var ae authClassError
	return errors.As(err, &ae) && ae.IsAuthError()
}

// writeFailure はポータルが認証情報を拒否した場合は401、それ以外は500を書き込む。
func (h *AuthHandler) writeFailure(w http.ResponseWriter, err error) {
	if isCredentialRejected(err) {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewCredentialRejectedError())
		return
	}
	cause := err.Error()
	if h.sanitizer != nil {
		cause = h.sanitizer.Sanitize(cause)
	}
	middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewAuthorizationCheckFailedError(cause))
}

// credentialOrUnauthorized はコンテキストの認証情報を返す。
// 存在しない場合は401を書き込みfalseを返す。
func credentialOrUnauthorized(w http.ResponseWriter, r *http.Request) (model.Credential, bool) {
	cred, err := middleware.CredentialFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(
			[]string{model.FieldToken, model.FieldDomain},
		))
		return model.Credential{}, false
	}
	return cred, true
}
