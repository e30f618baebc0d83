// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
)

// SettingsRepository はアプリケーション設定（キーと値）の永続化インターフェース。
// tenant.SettingsViewとしても利用できる。
type SettingsRepository interface {
	// Get は指定キーの値を取得する。存在しない場合はokがfalseになる。
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set は指定キーの値を保存する。既存の値は上書きする。
	Set(ctx context.Context, key, value string) error

	// SetMany は複数のキーを同一トランザクションで保存する。
	SetMany(ctx context.Context, values map[string]string) error

	// Delete は指定キーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}
