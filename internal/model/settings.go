package model

// アプリケーション設定のキー。インストール時に保存される。
// 認証トークン類は保存しない。
const (
	SettingClientEndpoint = "client_endpoint"
	SettingDomain         = "domain"
	SettingMemberID       = "member_id"
	SettingInstalledAt    = "installed_at"
)
