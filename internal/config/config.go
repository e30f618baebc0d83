package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NATIVE_SIGNAL_MODEの値
const (
	SignalModeMarker = "marker"
	SignalModeRemote = "remote"
	SignalModeOff    = "off"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string
	LogLevel   string

	// CORS / 埋め込み
	CORSAllowedOrigins []string
	FrameAncestors     []string

	// Auth gate
	MinTokenLength    int
	OAuthSentinelHost string
	TokenField        string
	TokenAltField     string
	DomainField       string
	MaxBodyBytes      int64
	NativeSignalMode  string

	// Platform REST
	PlatformScheme  string
	PlatformTimeout time.Duration

	// Settings cache
	RedisURL         string
	SettingsCacheTTL time.Duration

	// Rate Limit（1テナントあたりの毎分リクエスト数）
	RateLimitPerTenant int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigins = getEnvFields("CORS_ALLOWED_ORIGIN", []string{"http://localhost:3000"})
	cfg.FrameAncestors = getEnvFields("FRAME_ANCESTORS", []string{"https://*.bitrix24.com", "https://*.bitrix24.ru"})
	cfg.MinTokenLength = getEnvInt("MIN_TOKEN_LENGTH", 10)
	cfg.OAuthSentinelHost = getEnvString("OAUTH_SENTINEL_HOST", "oauth.bitrix.info")
	cfg.TokenField = getEnvString("TOKEN_FIELD", "AUTH_ID")
	cfg.TokenAltField = getEnvString("TOKEN_ALT_FIELD", "APP_SID")
	cfg.DomainField = getEnvString("DOMAIN_FIELD", "DOMAIN")
	cfg.MaxBodyBytes = getEnvInt64("MAX_BODY_BYTES", 1048576)
	cfg.NativeSignalMode = strings.ToLower(getEnvString("NATIVE_SIGNAL_MODE", SignalModeMarker))
	cfg.PlatformScheme = strings.ToLower(getEnvString("PLATFORM_SCHEME", "https"))
	cfg.PlatformTimeout = getEnvDuration("PLATFORM_TIMEOUT", 10*time.Second)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.SettingsCacheTTL = getEnvDuration("SETTINGS_CACHE_TTL", 5*time.Minute)
	cfg.RateLimitPerTenant = getEnvInt("RATE_LIMIT_PER_TENANT", 300)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.NativeSignalMode {
	case SignalModeMarker, SignalModeRemote, SignalModeOff:
	default:
		return fmt.Errorf("invalid NATIVE_SIGNAL_MODE %q: must be one of marker, remote, off", c.NativeSignalMode)
	}
	if c.PlatformScheme != "https" && c.PlatformScheme != "http" {
		return fmt.Errorf("invalid PLATFORM_SCHEME %q: must be https or http", c.PlatformScheme)
	}
	if c.MinTokenLength < 1 {
		return fmt.Errorf("invalid MIN_TOKEN_LENGTH %d: must be positive", c.MinTokenLength)
	}
	if c.RateLimitPerTenant < 1 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_TENANT %d: must be positive", c.RateLimitPerTenant)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

// getEnvFields は空白区切りのリストを読み込む。
func getEnvFields(key string, defaultVal []string) []string {
	fields := strings.Fields(os.Getenv(key))
	if len(fields) == 0 {
		return defaultVal
	}
	return fields
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
