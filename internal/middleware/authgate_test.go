package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/embedgate/internal/model"
)

type mockAuthenticator struct {
	authenticateFn func(r *http.Request) model.AuthVerdict
}

func (m *mockAuthenticator) Authenticate(r *http.Request) model.AuthVerdict {
	return m.authenticateFn(r)
}

var _ Authenticator = (*mockAuthenticator)(nil)

func fixedVerdict(v model.AuthVerdict) *mockAuthenticator {
	return &mockAuthenticator{authenticateFn: func(*http.Request) model.AuthVerdict { return v }}
}

func TestAuthGateMiddleware_Authorized_InjectsCredential(t *testing.T) {
	cred := model.Credential{Token: "token-0123456789", Domain: "tenant.example"}
	mw := NewAuthGateMiddleware(fixedVerdict(model.Authorized(cred)))

	var got model.Credential
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := CredentialFromContext(r.Context())
		if err != nil {
			t.Fatalf("CredentialFromContext: %v", err)
		}
		got = c
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got != cred {
		t.Errorf("credential = %+v, want %+v", got, cred)
	}
}

func TestAuthGateMiddleware_VerifiedFlag(t *testing.T) {
	cred := model.Credential{Token: "token-0123456789", Domain: "tenant.example"}
	tests := []struct {
		name     string
		verified bool
	}{
		{name: "ポータル確認済み", verified: true},
		{name: "未確認", verified: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := model.Authorized(cred)
			verdict.Verified = tt.verified

			var got bool
			handler := NewAuthGateMiddleware(fixedVerdict(verdict))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = IsVerifiedTenant(r.Context())
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))

			if got != tt.verified {
				t.Errorf("IsVerifiedTenant = %v, want %v", got, tt.verified)
			}
		})
	}
}

func TestAuthGateMiddleware_RejectedVerdicts(t *testing.T) {
	tests := []struct {
		name       string
		kind       model.ErrorKind
		wantStatus int
	}{
		{name: "欠落", kind: model.ErrorKindUnauthorized, wantStatus: http.StatusUnauthorized},
		{name: "形式不正", kind: model.ErrorKindInvalidFormat, wantStatus: http.StatusUnauthorized},
		{name: "チェック失敗", kind: model.ErrorKindAuthorizationCheckFailed, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthGateMiddleware(fixedVerdict(model.Rejected(tt.kind, "説明")))
			called := false
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))

			if called {
				t.Error("next handler should not be called")
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Success {
				t.Error("success should be false")
			}
			if body.Error != string(tt.kind) {
				t.Errorf("error = %q, want %q", body.Error, tt.kind)
			}
			if body.Message != "説明" {
				t.Errorf("message = %q, want %q", body.Message, "説明")
			}
		})
	}
}

func TestCredentialFromContext_Missing(t *testing.T) {
	if _, err := CredentialFromContext(context.Background()); err != ErrNoCredential {
		t.Errorf("err = %v, want ErrNoCredential", err)
	}
}

func TestContextWithCredential_RoundTrip(t *testing.T) {
	cred := model.Credential{Token: "token-0123456789", Domain: "tenant.example"}
	got, err := CredentialFromContext(ContextWithCredential(context.Background(), cred))
	if err != nil || got != cred {
		t.Errorf("CredentialFromContext = (%+v, %v), want %+v", got, err, cred)
	}
}
