package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/embedgate/internal/middleware"
	"github.com/hitoshi/embedgate/internal/model"
	"github.com/hitoshi/embedgate/internal/tenant"
)

// DomainResolver はテナントドメインを解決するインターフェース。tenant.Resolverが実装する。
type DomainResolver interface {
	Resolve(ctx context.Context, requestDomain string, settings tenant.SettingsView) (tenant.Resolution, error)
}

// domainResponse はドメイン解決のレスポンス。
type domainResponse struct {
	Success    bool   `json:"success"`
	Domain     string `json:"domain"`
	Provenance string `json:"provenance"`
}

// DomainHandler はテナントドメイン解決のHTTPハンドラー。
type DomainHandler struct {
	resolver    DomainResolver
	settings    tenant.SettingsView
	domainField string
}

// NewDomainHandler はDomainHandlerを生成する。domainFieldが空の場合はDOMAINを使う。
func NewDomainHandler(resolver DomainResolver, settings tenant.SettingsView, domainField string) *DomainHandler {
	if domainField == "" {
		domainField = model.FieldDomain
	}
	return &DomainHandler{
		resolver:    resolver,
		settings:    settings,
		domainField: domainField,
	}
}

// Resolve はリクエストのドメインまたは保存済み設定からテナントドメインを解決する。
// GET /api/domain?DOMAIN=...
func (h *DomainHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	requestDomain := strings.TrimSpace(r.URL.Query().Get(h.domainField))

	res, err := h.resolver.Resolve(r.Context(), requestDomain, h.settings)
	if errors.Is(err, tenant.ErrDomainNotFound) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDomainNotFoundError())
		return
	}
	if err != nil {
		slog.Error("failed to resolve tenant domain",
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, domainResponse{
		Success:    true,
		Domain:     res.Domain,
		Provenance: string(res.Provenance),
	})
}
