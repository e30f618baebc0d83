package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// Codeは機械判読用の安定したエラーコード、Messageは人間向けの説明。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, tenant, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized             = string(ErrorKindUnauthorized)
	ErrCodeInvalidFormat            = string(ErrorKindInvalidFormat)
	ErrCodeAuthorizationCheckFailed = string(ErrorKindAuthorizationCheckFailed)
	ErrCodeDomainNotFound           = "DOMAIN_NOT_FOUND"
	ErrCodeInvalidRequest           = "INVALID_REQUEST"
	ErrCodeRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInstallNotVerified       = "INSTALL_NOT_VERIFIED"
	ErrCodeInternal                 = "INTERNAL_ERROR"
)

// NewUnauthorizedError は必須フィールド欠落エラーを生成する。
func NewUnauthorizedError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  fmt.Sprintf("認証情報が不足しています: %s", strings.Join(missing, ", ")),
		Category: "auth",
	}
}

// NewInvalidFormatError はトークン形式エラーを生成する。
func NewInvalidFormatError(minTokenLength int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFormat,
		Message:  fmt.Sprintf("認証トークンの形式が不正です（%d文字以上が必要です）。", minTokenLength),
		Category: "auth",
	}
}

// NewCredentialRejectedError はポータルが認証情報を拒否した場合のエラーを生成する。
func NewCredentialRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証トークンがポータルに拒否されました。再認証してください。",
		Category: "auth",
	}
}

// NewAuthorizationCheckFailedError は認可チェック失敗エラーを生成する。
// causeには下位の失敗理由を渡す。
func NewAuthorizationCheckFailedError(cause string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthorizationCheckFailed,
		Message:  fmt.Sprintf("認可チェックに失敗しました: %s", cause),
		Category: "system",
	}
}

// NewInstallNotVerifiedError はインストールをポータルで確認できない場合のエラーを生成する。
func NewInstallNotVerifiedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInstallNotVerified,
		Message:  fmt.Sprintf("インストールを確認できませんでした: %s", reason),
		Category: "auth",
	}
}

// NewDomainNotFoundError はテナントドメインが解決できない場合のエラーを生成する。
func NewDomainNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDomainNotFound,
		Message:  "テナントドメインを特定できませんでした。",
		Category: "tenant",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
	}
}

// NewVerdictError は失敗したAuthVerdictをAPIErrorに変換する。
func NewVerdictError(v AuthVerdict) *APIError {
	category := "auth"
	if v.ErrorKind == ErrorKindAuthorizationCheckFailed {
		category = "system"
	}
	return &APIError{
		Code:     string(v.ErrorKind),
		Message:  v.Message,
		Category: category,
	}
}
