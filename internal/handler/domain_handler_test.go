package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/embedgate/internal/middleware"
	"github.com/hitoshi/embedgate/internal/model"
	"github.com/hitoshi/embedgate/internal/repository"
	"github.com/hitoshi/embedgate/internal/tenant"
)

var _ DomainResolver = (*tenant.Resolver)(nil)

type failingSettings struct{}

func (failingSettings) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func TestDomainHandler_Resolve(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		settings       map[string]string
		wantStatus     int
		wantDomain     string
		wantProvenance string
	}{
		{
			name:           "リクエストのドメイン",
			query:          "?DOMAIN=tenant.example",
			settings:       map[string]string{model.SettingDomain: "stored.example"},
			wantStatus:     http.StatusOK,
			wantDomain:     "tenant.example",
			wantProvenance: "explicit",
		},
		{
			name:           "client_endpointから導出",
			settings:       map[string]string{model.SettingClientEndpoint: "https://foo.example/rest/"},
			wantStatus:     http.StatusOK,
			wantDomain:     "foo.example",
			wantProvenance: "endpoint-derived",
		},
		{
			name:           "保存済みドメイン",
			settings:       map[string]string{model.SettingDomain: "stored.example"},
			wantStatus:     http.StatusOK,
			wantDomain:     "stored.example",
			wantProvenance: "stored",
		},
		{
			name:       "センチネルのみ",
			settings:   map[string]string{model.SettingDomain: tenant.DefaultSentinelHost},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "設定なし",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDomainHandler(tenant.NewResolver(""), repository.NewMemorySettings(tt.settings), "")

			w := httptest.NewRecorder()
			h.Resolve(w, httptest.NewRequest(http.MethodGet, "/api/domain"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNotFound {
				var body middleware.ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Error != model.ErrCodeDomainNotFound {
					t.Errorf("error = %q, want %q", body.Error, model.ErrCodeDomainNotFound)
				}
				return
			}
			var body domainResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Domain != tt.wantDomain || body.Provenance != tt.wantProvenance {
				t.Errorf("body = %+v, want domain %q provenance %q", body, tt.wantDomain, tt.wantProvenance)
			}
		})
	}
}

func TestDomainHandler_SettingsFailure_Returns500(t *testing.T) {
	h := NewDomainHandler(tenant.NewResolver(""), failingSettings{}, "")

	w := httptest.NewRecorder()
	h.Resolve(w, httptest.NewRequest(http.MethodGet, "/api/domain", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestDomainHandler_CustomDomainField(t *testing.T) {
	h := NewDomainHandler(tenant.NewResolver(""), repository.NewMemorySettings(nil), "host")

	w := httptest.NewRecorder()
	h.Resolve(w, httptest.NewRequest(http.MethodGet, "/api/domain?host=tenant.example", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
