package middleware

import (
	"net/http"
	"strings"
)

// originPattern は許可オリジンの1エントリ。
// "https://*.example.com" のようにホスト先頭の"*."でサブドメインを許可する。
type originPattern struct {
	scheme string
	suffix string // ワイルドカードの場合は".example.com"
	exact  string
}

func parseOriginPattern(raw string) originPattern {
	raw = strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
	scheme, host, ok := strings.Cut(raw, "://")
	if ok && strings.HasPrefix(host, "*.") {
		return originPattern{scheme: scheme, suffix: host[1:]}
	}
	return originPattern{exact: raw}
}

func (p originPattern) matches(origin string) bool {
	if p.exact != "" {
		return origin == p.exact
	}
	scheme, host, ok := strings.Cut(origin, "://")
	return ok && scheme == p.scheme && strings.HasSuffix(host, p.suffix) && len(host) > len(p.suffix)
}

// NewCORSMiddleware は許可オリジン一覧に対するCORSミドルウェアを返す。
// ポータルはテナントごとに異なるサブドメインで動作するため、
// 一致したリクエストのOriginをそのまま返す。ワイルドカード(*)ヘッダーは使用しない。
// OPTIONSプリフライトには一致時204、不一致時403で応答する。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	patterns := make([]originPattern, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if strings.TrimSpace(o) != "" {
			patterns = append(patterns, parseOriginPattern(o))
		}
	}

	allowed := func(origin string) bool {
		origin = strings.ToLower(origin)
		for _, p := range patterns {
			if p.matches(origin) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if origin == "" || !allowed(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)

			if preflight {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
				h.Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
