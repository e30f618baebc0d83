// Package platform はテナントポータルのREST APIクライアントと
// プラットフォームからのリクエストかどうかを判定するシグナルを提供する。
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/embedgate/internal/model"
)

const (
	// defaultScheme はポータルREST APIのスキーム。
	defaultScheme = "https"
	// maxResponseBytes はレスポンスボディ読み取りの上限。
	maxResponseBytes = 1 << 20
)

// REST APIメソッド名
const (
	MethodUserAdmin   = "user.admin"
	MethodUserCurrent = "user.current"
	MethodAppInfo     = "app.info"
)

// ErrUnexpectedResult はレスポンスのresultが想定外の形式であることを示す。
var ErrUnexpectedResult = errors.New("unexpected result in platform response")

// APIError はポータルがエラーレスポンスを返したことを表す。
// 通信自体は成功しているため、呼び出し元は否定的な結果として扱える。
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	msg := fmt.Sprintf("platform API error (status=%d)", e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// IsAuthError は認証情報の不備（期限切れ、無効なトークン等）によるエラーかを返す。
func (e *APIError) IsAuthError() bool {
	switch strings.ToLower(e.Code) {
	case "expired_token", "invalid_token", "no_auth_found", "invalid_credentials", "authorization_error":
		return true
	}
	return e.StatusCode == http.StatusUnauthorized
}

// DomainValidator はテナントドメインを呼び出し前に検証する。
// security.SSRFGuardServiceが実装する。
type DomainValidator interface {
	ValidateDomain(domain string) error
}

// CallRecorder はリモート呼び出しの結果とレイテンシを記録する。
// metrics.Collectorが実装する。
type CallRecorder interface {
	RecordRemoteCall(method, outcome string, duration time.Duration)
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Scheme     string // テスト用にhttpへ差し替え可能
	Validator  DomainValidator
	Recorder   CallRecorder
}

// Client はテナントポータルのREST APIクライアント。
// リトライは行わず、失敗はそのまま呼び出し元に返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	scheme     string
	validator  DomainValidator
	recorder   CallRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = defaultScheme
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		scheme:     scheme,
		validator:  cfg.Validator,
		recorder:   cfg.Recorder,
	}
}

// envelope はREST APIレスポンスの共通形式。
type envelope struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// Call はREST APIメソッドを呼び出し、resultフィールドを返す。
// POST {scheme}://{domain}/rest/{method}.json にauthパラメータ付きで送信する。
func (c *Client) Call(ctx context.Context, domain, token, method string, params url.Values) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.call(ctx, domain, token, method, params)
	c.recordCall(method, err, time.Since(start))
	return result, err
}

func (c *Client) call(ctx context.Context, domain, token, method string, params url.Values) (json.RawMessage, error) {
	// 1. ドメインの検証
	if c.validator != nil {
		if err := c.validator.ValidateDomain(domain); err != nil {
			return nil, fmt.Errorf("refusing to call %s: %w", method, err)
		}
	}

	// 2. リクエスト構築
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("auth", token)

	endpoint := (&url.URL{
		Scheme: c.scheme,
		Host:   domain,
		Path:   "/rest/" + method + ".json",
	}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	// 3. HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("platform API request failed",
			slog.String("method", method),
			slog.String("domain", domain),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	// 4. レスポンスボディ読み取り
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	// 5. エラーレスポンス判定
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Error != "" {
		apiErr := &APIError{
			StatusCode:  resp.StatusCode,
			Code:        env.Error,
			Description: env.ErrorDescription,
		}
		c.logger.Warn("platform API returned error",
			slog.String("method", method),
			slog.String("domain", domain),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", env.Error),
		)
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", method, decodeErr)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, fmt.Errorf("%w: %s returned no result", ErrUnexpectedResult, method)
	}

	return env.Result, nil
}

// CheckAdmin はuser.adminを呼び出し、現在のユーザーが管理者かを返す。
func (c *Client) CheckAdmin(ctx context.Context, token, domain string) (bool, error) {
	result, err := c.Call(ctx, domain, token, MethodUserAdmin, nil)
	if err != nil {
		return false, err
	}
	var isAdmin bool
	if err := json.Unmarshal(result, &isAdmin); err != nil {
		return false, fmt.Errorf("%w: %s result is not a boolean", ErrUnexpectedResult, MethodUserAdmin)
	}
	return isAdmin, nil
}

// CurrentUser はuser.currentを呼び出し、現在のユーザーのレコードを返す。
// 数値はjson.Numberとして保持する。
func (c *Client) CurrentUser(ctx context.Context, cred model.Credential) (model.UserRecord, error) {
	result, err := c.Call(ctx, cred.Domain, cred.Token, MethodUserCurrent, nil)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(result)))
	dec.UseNumber()
	var user model.UserRecord
	if err := dec.Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: %s result is not an object", ErrUnexpectedResult, MethodUserCurrent)
	}
	return user, nil
}

// AppInfo はapp.infoの結果を表す。
type AppInfo struct {
	ID        any    `json:"ID"`
	Code      string `json:"CODE"`
	Version   any    `json:"VERSION"`
	Status    string `json:"STATUS"`
	Installed bool   `json:"INSTALLED"`
}

// GetAppInfo はapp.infoを呼び出し、トークンが紐付くアプリケーション情報を返す。
func (c *Client) GetAppInfo(ctx context.Context, cred model.Credential) (*AppInfo, error) {
	result, err := c.Call(ctx, cred.Domain, cred.Token, MethodAppInfo, nil)
	if err != nil {
		return nil, err
	}
	var info AppInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("%w: %s result is not an object", ErrUnexpectedResult, MethodAppInfo)
	}
	return &info, nil
}

func (c *Client) recordCall(method string, err error, d time.Duration) {
	if c.recorder == nil {
		return
	}
	outcome := "success"
	var apiErr *APIError
	switch {
	case err == nil:
	case errors.As(err, &apiErr):
		outcome = "api_error"
	default:
		outcome = "transport_error"
	}
	c.recorder.RecordRemoteCall(method, outcome, d)
}
