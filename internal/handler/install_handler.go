package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/embedgate/internal/middleware"
	"github.com/hitoshi/embedgate/internal/model"
	"github.com/hitoshi/embedgate/internal/platform"
)

// InstallSettings はインストール情報の読み書きに使う設定ストア。
// repository.SettingsRepositoryの部分集合として定義する。
type InstallSettings interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
}

// DomainValidator はテナントドメインを検証する。security.SSRFGuardServiceが実装する。
type DomainValidator interface {
	ValidateDomain(domain string) error
}

// InstallVerifier はトークンに紐付くアプリケーションのインストール状態を取得する。
// platform.Clientが実装する。
type InstallVerifier interface {
	GetAppInfo(ctx context.Context, cred model.Credential) (*platform.AppInfo, error)
}

// installResponse はインストール完了のレスポンス。
type installResponse struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain"`
}

// InstallHandler はアプリケーションのインストールイベントを処理する。
type InstallHandler struct {
	settings  InstallSettings
	validator DomainValidator
	verifier  InstallVerifier
	now       func() time.Time
}

// NewInstallHandler はInstallHandlerを生成する。validatorはnilでもよい。
// verifierがnilの場合、すべてのインストールを拒否する。
func NewInstallHandler(settings InstallSettings, validator DomainValidator, verifier InstallVerifier) *InstallHandler {
	return &InstallHandler{
		settings:  settings,
		validator: validator,
		verifier:  verifier,
		now:       time.Now,
	}
}

// Install はポータルでインストール済みと確認できた情報だけを設定に保存する。
// POST /install
func (h *InstallHandler) Install(w http.ResponseWriter, r *http.Request) {
	cred, ok := credentialOrUnauthorized(w, r)
	if !ok {
		return
	}

	// 1. ドメインの検証
	if h.validator != nil {
		if err := h.validator.ValidateDomain(cred.Domain); err != nil {
			slog.Warn("rejected install domain",
				slog.String("domain", cred.Domain),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("DOMAIN"))
			return
		}
	}

	// 2. フォーム値の取得
	if err := r.ParseForm(); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("form"))
		return
	}
	values := map[string]string{
		model.SettingDomain:      cred.Domain,
		model.SettingInstalledAt: h.now().UTC().Format(time.RFC3339),
	}
	for _, key := range []string{model.SettingClientEndpoint, model.SettingMemberID} {
		if v := installField(r.Form, key); v != "" {
			values[key] = v
		}
	}

	// 3. client_endpointは認証情報のドメインと同じホストでなければならない
	if endpoint, ok := values[model.SettingClientEndpoint]; ok {
		if !isEndpointForDomain(endpoint, cred.Domain) {
			slog.Warn("rejected install endpoint",
				slog.String("domain", cred.Domain),
				slog.String("client_endpoint", endpoint),
			)
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(model.SettingClientEndpoint))
			return
		}
	}

	// 4. 既にインストール済みのポータルと異なるドメインは受け付けない
	stored, found, err := h.settings.Get(r.Context(), model.SettingDomain)
	if err != nil {
		slog.Error("failed to read installed domain",
			slog.String("domain", cred.Domain),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if found && !strings.EqualFold(stored, cred.Domain) {
		slog.Warn("install for a different portal rejected",
			slog.String("domain", cred.Domain),
			slog.String("installed_domain", stored),
		)
		middleware.WriteAPIError(w, model.NewInstallNotVerifiedError("別のポータルにインストール済みです"))
		return
	}

	// 5. ポータルでのインストール状態の確認
	if !h.verify(w, r, cred) {
		return
	}

	// 6. 保存
	if err := h.settings.SetMany(r.Context(), values); err != nil {
		slog.Error("failed to persist install settings",
			slog.String("domain", cred.Domain),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	slog.Info("application installed",
		slog.String("domain", cred.Domain),
		slog.Bool("has_client_endpoint", values[model.SettingClientEndpoint] != ""),
	)

	writeJSON(w, http.StatusOK, installResponse{Success: true, Domain: cred.Domain})
}

// verify はapp.infoでINSTALLEDがtrueであることを確認する。
// 確認できない場合はエラーレスポンスを書き込みfalseを返す。
func (h *InstallHandler) verify(w http.ResponseWriter, r *http.Request, cred model.Credential) bool {
	if h.verifier == nil {
		slog.Error("install verifier is not configured", slog.String("domain", cred.Domain))
		middleware.WriteInternalServerError(w)
		return false
	}

	info, err := h.verifier.GetAppInfo(r.Context(), cred)
	if err != nil {
		slog.Warn("install verification failed",
			slog.String("domain", cred.Domain),
			slog.String("error", err.Error()),
		)
		if isCredentialRejected(err) {
			middleware.WriteAPIError(w, model.NewInstallNotVerifiedError("認証トークンが拒否されました"))
			return false
		}
		middleware.WriteAPIError(w, model.NewAuthorizationCheckFailedError(platform.MethodAppInfo))
		return false
	}
	if info == nil || !info.Installed {
		slog.Warn("application is not installed on the portal", slog.String("domain", cred.Domain))
		middleware.WriteAPIError(w, model.NewInstallNotVerifiedError("アプリケーションが未インストールです"))
		return false
	}
	return true
}

// installField はauth[key]を優先し、なければkeyの値を返す。
func installField(form url.Values, key string) string {
	if v := strings.TrimSpace(form.Get("auth[" + key + "]")); v != "" {
		return v
	}
	return strings.TrimSpace(form.Get(key))
}

// isEndpointForDomain はrawがhttp(s)のURLで、ホストがdomainと一致するかを返す。
func isEndpointForDomain(raw, domain string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, domain) || strings.EqualFold(u.Hostname(), domain)
}
