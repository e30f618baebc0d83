// Package tenant はテナントドメインの解決を提供する。
package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hitoshi/embedgate/internal/model"
)

// DefaultSentinelHost はプラットフォーム共通のOAuthホスト。
// 共有インフラのエンドポイントであり、テナントドメインにはなり得ない。
const DefaultSentinelHost = "oauth.bitrix.info"

// ErrDomainNotFound はどのソースからもテナントドメインを特定できなかったことを示す。
var ErrDomainNotFound = errors.New("tenant domain not found")

// Provenance は解決されたドメインの出所を表す。
type Provenance string

const (
	// ProvenanceExplicit は現在のリクエストに含まれていたドメイン。
	ProvenanceExplicit Provenance = "explicit"
	// ProvenanceEndpointDerived は設定済みclient_endpointのホスト部。
	ProvenanceEndpointDerived Provenance = "endpoint-derived"
	// ProvenanceStored は設定に保存されたドメイン値。
	ProvenanceStored Provenance = "stored"
)

// SettingsView は永続化された設定への読み取り専用アクセスを提供する。
// キーが存在しない場合はokがfalseになる。errは読み取り自体の失敗のみを表す。
type SettingsView interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Resolution は解決結果のドメインとその出所。
type Resolution struct {
	Domain     string
	Provenance Provenance
}

// Resolver はテナントドメインを優先順位に従って解決する。
type Resolver struct {
	sentinelHost string
}

// NewResolver はResolverを生成する。sentinelHostが空の場合はDefaultSentinelHostを使う。
func NewResolver(sentinelHost string) *Resolver {
	sentinelHost = strings.TrimSpace(sentinelHost)
	if sentinelHost == "" {
		sentinelHost = DefaultSentinelHost
	}
	return &Resolver{sentinelHost: sentinelHost}
}

// Resolve はテナントドメインを解決する。
// 優先順位: リクエストのドメイン > client_endpointのホスト部 > 保存済みドメイン。
// 設定由来の値がセンチネルホストと一致する場合は採用しない。
// いずれも得られない場合はErrDomainNotFoundを返す。
func (res *Resolver) Resolve(ctx context.Context, requestDomain string, settings SettingsView) (Resolution, error) {
	// 1. リクエストのドメインは無条件に採用
	if d := strings.TrimSpace(requestDomain); d != "" {
		return Resolution{Domain: d, Provenance: ProvenanceExplicit}, nil
	}
	if settings == nil {
		return Resolution{}, ErrDomainNotFound
	}

	// 2. client_endpointのホスト部
	endpoint, ok, err := settings.Get(ctx, model.SettingClientEndpoint)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to read %s: %w", model.SettingClientEndpoint, err)
	}
	if ok {
		if host := endpointHost(endpoint); host != "" && !res.isSentinel(host) {
			return Resolution{Domain: host, Provenance: ProvenanceEndpointDerived}, nil
		}
	}

	// 3. 保存済みドメイン
	stored, ok, err := settings.Get(ctx, model.SettingDomain)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to read %s: %w", model.SettingDomain, err)
	}
	if ok {
		if d := strings.TrimSpace(stored); d != "" && !res.isSentinel(d) {
			return Resolution{Domain: d, Provenance: ProvenanceStored}, nil
		}
	}

	return Resolution{}, ErrDomainNotFound
}

func (res *Resolver) isSentinel(host string) bool {
	return strings.EqualFold(host, res.sentinelHost)
}

// endpointHost はURLのオーソリティ部（host[:port]）を返す。
// パースできない場合は空文字列を返す。
func endpointHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
