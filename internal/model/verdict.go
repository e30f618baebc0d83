package model

// ErrorKind は認証ゲートの失敗種別を表す。
type ErrorKind string

const (
	// ErrorKindUnauthorized は必須フィールドが欠落していることを示す。
	ErrorKindUnauthorized ErrorKind = "UNAUTHORIZED"
	// ErrorKindInvalidFormat はトークンの形式が不正（短すぎる）であることを示す。
	ErrorKindInvalidFormat ErrorKind = "INVALID_FORMAT"
	// ErrorKindAuthorizationCheckFailed は認可チェック自体が失敗したことを示す。
	ErrorKindAuthorizationCheckFailed ErrorKind = "AUTHORIZATION_CHECK_FAILED"
)

// AuthVerdict は1リクエストに対する認証ゲートの判定結果。
// Successがtrueの場合のみCredentialが設定される。
// Verifiedはトークンとドメインの組をポータルが確認した場合のみtrueになる。
type AuthVerdict struct {
	Success    bool
	Credential *Credential
	Verified   bool
	ErrorKind  ErrorKind
	Message    string
}

// Authorized は認証成功の判定結果を生成する。
func Authorized(cred Credential) AuthVerdict {
	return AuthVerdict{Success: true, Credential: &cred}
}

// Rejected は認証失敗の判定結果を生成する。
func Rejected(kind ErrorKind, message string) AuthVerdict {
	return AuthVerdict{ErrorKind: kind, Message: message}
}
