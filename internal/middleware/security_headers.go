package middleware

import (
	"net/http"
	"strings"
)

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// ポータルのiframe内で表示されるため、X-Frame-Optionsは使わず
// CSPのframe-ancestorsで埋め込み元を許可する。
func NewSecurityHeadersMiddleware(frameAncestors []string) func(next http.Handler) http.Handler {
	csp := "frame-ancestors 'self'"
	if len(frameAncestors) > 0 {
		csp += " " + strings.Join(frameAncestors, " ")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", csp)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			next.ServeHTTP(w, r)
		})
	}
}
