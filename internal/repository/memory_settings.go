package repository

import (
	"context"
	"sync"
)

// MemorySettings はメモリ上で設定を保持するSettingsRepository。
// テストとローカル開発で使用する。
type MemorySettings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettings は初期値をコピーしてMemorySettingsを生成する。
func NewMemorySettings(initial map[string]string) *MemorySettings {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MemorySettings{values: values}
}

// Get は指定キーの値を返す。
func (m *MemorySettings) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set は指定キーの値を保存する。
func (m *MemorySettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// SetMany は複数のキーをまとめて保存する。
func (m *MemorySettings) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

// Delete は指定キーを削除する。
func (m *MemorySettings) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
