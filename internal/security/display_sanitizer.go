package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// maxDisplayLength はエラーメッセージ等に含める外部入力値の最大文字数。
const maxDisplayLength = 128

// DisplaySanitizer はリクエスト由来の値をレスポンスやログに含める前に無害化する。
// bluemondayのStrictPolicyで全てのHTMLタグを除去する。
type DisplaySanitizer struct {
	policy *bluemonday.Policy
}

// NewDisplaySanitizer はDisplaySanitizerを生成する。
func NewDisplaySanitizer() *DisplaySanitizer {
	return &DisplaySanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグと制御文字を除去し、長すぎる値を切り詰める。
// 同一入力に対して常に同一出力を返す。
func (s *DisplaySanitizer) Sanitize(value string) string {
	cleaned := s.policy.Sanitize(value)
	cleaned = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if utf8.RuneCountInString(cleaned) > maxDisplayLength {
		runes := []rune(cleaned)
		cleaned = string(runes[:maxDisplayLength]) + "…"
	}
	return cleaned
}
