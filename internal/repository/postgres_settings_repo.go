package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

const upsertSettingSQL = `INSERT INTO app_settings (key, value, updated_at)
	 VALUES ($1, $2, $3)
	 ON CONFLICT (key) DO UPDATE SET
	     value = EXCLUDED.value,
	     updated_at = EXCLUDED.updated_at`

// PostgresSettingsRepo はPostgreSQLを使用した設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Get は指定キーの値を取得する。見つからない場合はokがfalseになる。
func (r *PostgresSettingsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE key = $1`,
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set は指定キーの値をUPSERTする。
func (r *PostgresSettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, upsertSettingSQL, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert setting %q: %w", key, err)
	}
	return nil
}

// SetMany は複数のキーを同一トランザクションでUPSERTする。
// キーはソート順に書き込む。
func (r *PostgresSettingsRepo) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, key := range sortedKeys(values) {
		if _, err := tx.ExecContext(ctx, upsertSettingSQL, key, values[key], now); err != nil {
			return fmt.Errorf("failed to upsert setting %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定キーを削除する。
func (r *PostgresSettingsRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM app_settings WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
