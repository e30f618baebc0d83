// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/embedgate/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	credentialContextKey = contextKey("credential")
	verifiedContextKey   = contextKey("verified_tenant")
	requestIDContextKey  = contextKey("request_id")
	logFieldsContextKey  = contextKey("log_fields")
)

// ErrNoCredential はコンテキストに認証情報が存在しないことを示す。
var ErrNoCredential = errors.New("credential not found in context")

// Authenticator はリクエストを検証して判定結果を返す。gate.Gateが実装する。
type Authenticator interface {
	Authenticate(r *http.Request) model.AuthVerdict
}

// NewAuthGateMiddleware は認証ゲートの判定結果に応じてリクエストを通過させるか
// エラーレスポンスを返すミドルウェアを返す。
// 認証成功時はCredentialをリクエストコンテキストに注入する。
func NewAuthGateMiddleware(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 判定
			verdict := auth.Authenticate(r)
			if !verdict.Success || verdict.Credential == nil {
				WriteAPIError(w, model.NewVerdictError(verdict))
				return
			}

			// 2. ログ用にテナントドメインを記録
			if fields, ok := r.Context().Value(logFieldsContextKey).(*logFields); ok {
				fields.domain = verdict.Credential.Domain
			}

			// 3. 認証情報をコンテキストに注入
			ctx := ContextWithCredential(r.Context(), *verdict.Credential)
			if verdict.Verified {
				ctx = ContextWithVerifiedTenant(ctx)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CredentialFromContext はリクエストコンテキストから認証情報を取得する。
// 認証ゲートを通過したリクエストでのみ有効。
func CredentialFromContext(ctx context.Context) (model.Credential, error) {
	cred, ok := ctx.Value(credentialContextKey).(model.Credential)
	if !ok || cred.Token == "" {
		return model.Credential{}, ErrNoCredential
	}
	return cred, nil
}

// ContextWithCredential はコンテキストに認証情報を注入する。
func ContextWithCredential(ctx context.Context, cred model.Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey, cred)
}

// ContextWithVerifiedTenant はコンテキストの認証情報がポータルで確認済みであることを記録する。
func ContextWithVerifiedTenant(ctx context.Context) context.Context {
	return context.WithValue(ctx, verifiedContextKey, true)
}

// IsVerifiedTenant はコンテキストの認証情報がポータルで確認済みかを返す。
func IsVerifiedTenant(ctx context.Context) bool {
	verified, _ := ctx.Value(verifiedContextKey).(bool)
	return verified
}
