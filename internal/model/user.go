package model

// UserRecord はプラットフォームから取得したユーザー情報を表す。
// フィールド名から値へのマップで、呼び出し元が所有する。
type UserRecord map[string]any

// 管理者判定に使うフィールド名。
const (
	UserFieldAdmin   = "ADMIN"
	UserFieldIsAdmin = "IS_ADMIN"
)

// AdminSource は管理者判定の根拠を表す。
type AdminSource string

const (
	// AdminSourceAdminFlag はADMINフィールドによる判定。
	AdminSourceAdminFlag AdminSource = "ADMIN"
	// AdminSourceIsAdminFlag はIS_ADMINフィールドによる判定。
	AdminSourceIsAdminFlag AdminSource = "IS_ADMIN"
	// AdminSourceRemote はリモートAPI（user.admin）による判定。
	AdminSourceRemote AdminSource = "remote"
)

// AdminDecision は管理者判定の結果と根拠を保持する。
type AdminDecision struct {
	IsAdmin bool
	Source  AdminSource
}
