package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/embedgate/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusByCode はエラーコードごとのHTTPステータス。
// INVALID_FORMATは認証情報の不備であり、400ではなく401で返す。
var statusByCode = map[string]int{
	model.ErrCodeUnauthorized:             http.StatusUnauthorized,
	model.ErrCodeInvalidFormat:            http.StatusUnauthorized,
	model.ErrCodeAuthorizationCheckFailed: http.StatusInternalServerError,
	model.ErrCodeDomainNotFound:           http.StatusNotFound,
	model.ErrCodeInvalidRequest:           http.StatusBadRequest,
	model.ErrCodeRateLimitExceeded:        http.StatusTooManyRequests,
	model.ErrCodeInstallNotVerified:       http.StatusForbidden,
	model.ErrCodeInternal:                 http.StatusInternalServerError,
}

// StatusForCode はエラーコードに対応するHTTPステータスを返す。未知のコードは500。
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusForErrorKind は判定の失敗種別に対応するHTTPステータスを返す。
func StatusForErrorKind(kind model.ErrorKind) int {
	return StatusForCode(string(kind))
}

// WriteAPIError はエラーコードからステータスを決定してエラーレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// エラーレスポンスはトークンを含む入力への応答のため、キャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	body := ErrorResponseBody{
		Success: false,
		Error:   apiErr.Code,
		Message: apiErr.Message,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to write error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteAPIError(w, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
	})
}
