package platform

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/embedgate/internal/model"
)

// プラットフォームがiframe読み込み時に付与するパラメータ。
var nativeMarkerFields = []string{"PLACEMENT", "member_id"}

// MarkerSignal はリクエストにプラットフォーム固有のマーカーが含まれるかを判定する。
// 外部通信を行わないため、エラーを返さない。
type MarkerSignal struct{}

// NewMarkerSignal はMarkerSignalを生成する。
func NewMarkerSignal() *MarkerSignal {
	return &MarkerSignal{}
}

// IsNativeRequest はPLACEMENT/member_idパラメータ、またはテナントドメインと一致する
// Referer/Originヘッダーがあればtrueを返す。
func (s *MarkerSignal) IsNativeRequest(_ context.Context, r *http.Request, cred model.Credential) (bool, error) {
	query := r.URL.Query()
	for _, field := range nativeMarkerFields {
		if query.Get(field) != "" {
			return true, nil
		}
	}

	if isFormRequest(r) {
		// 不正なフォームはマーカーなしとして扱う
		if err := r.ParseForm(); err == nil {
			for _, field := range nativeMarkerFields {
				if r.PostForm.Get(field) != "" {
					return true, nil
				}
			}
		}
	}

	for _, header := range []string{"Origin", "Referer"} {
		if hostMatches(r.Header.Get(header), cred.Domain) {
			return true, nil
		}
	}
	return false, nil
}

// AppInfoSource はapp.infoを取得するインターフェース。Clientが実装する。
type AppInfoSource interface {
	GetAppInfo(ctx context.Context, cred model.Credential) (*AppInfo, error)
}

// RemoteSignal はapp.infoを呼び出し、トークンがこのアプリケーションに
// 発行されたものかをポータルに確認する。
// ポータルの認証エラーは否定的な結果とし、通信失敗のみをエラーとして返す。
type RemoteSignal struct {
	source AppInfoSource
}

// NewRemoteSignal はRemoteSignalを生成する。
func NewRemoteSignal(source AppInfoSource) *RemoteSignal {
	return &RemoteSignal{source: source}
}

// VerifiesIdentity はtrueを返す。肯定結果はポータルがトークンを受け入れたことを意味する。
func (s *RemoteSignal) VerifiesIdentity() bool {
	return true
}

// IsNativeRequest はapp.infoが成功すればtrueを返す。
func (s *RemoteSignal) IsNativeRequest(ctx context.Context, _ *http.Request, cred model.Credential) (bool, error) {
	info, err := s.source.GetAppInfo(ctx, cred)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsAuthError() {
			slog.Info("platform rejected token in app.info",
				slog.String("domain", cred.Domain),
				slog.String("code", apiErr.Code),
			)
			return false, nil
		}
		return false, err
	}
	return info != nil && info.Installed, nil
}

func isFormRequest(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded"
}

// hostMatches はURLのホストがdomainと一致するかを返す。
func hostMatches(rawURL, domain string) bool {
	if rawURL == "" || domain == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host != "" && strings.EqualFold(u.Host, domain)
}
