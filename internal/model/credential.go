// Package model はドメインモデルを定義する。
package model

import "unicode/utf8"

// DefaultMinTokenLength は構造的に有効とみなすトークンの最小長。
const DefaultMinTokenLength = 10

// 正規フィールド名。代替名はこれらに正規化される。
const (
	FieldToken  = "AUTH_ID"
	FieldDomain = "DOMAIN"
)

// Credential はリクエストが主張する認証トークンとテナントドメインの組を表す。
// リクエストごとに生成され、永続化されない。
type Credential struct {
	Token  string
	Domain string
}

// IsStructurallyValid はトークンとドメインが空でなく、
// トークンの文字数がminTokenLength以上であるかを返す。
// 文字数はバイト数ではなくrune数で数える。
func (c Credential) IsStructurallyValid(minTokenLength int) bool {
	return c.Token != "" && c.Domain != "" && c.TokenLength() >= minTokenLength
}

// TokenLength はトークンの文字数を返す。
func (c Credential) TokenLength() int {
	return utf8.RuneCountInString(c.Token)
}

// Incomplete は抽出時にトークンまたはドメインが見つからなかったことを表す。
type Incomplete struct {
	MissingToken  bool
	MissingDomain bool
}

// Fields は欠落している正規フィールド名を返す。
func (i *Incomplete) Fields() []string {
	if i == nil {
		return nil
	}
	var fields []string
	if i.MissingToken {
		fields = append(fields, FieldToken)
	}
	if i.MissingDomain {
		fields = append(fields, FieldDomain)
	}
	return fields
}
