package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/embedgate/internal/middleware"
	"github.com/hitoshi/embedgate/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	StatusRecorder     middleware.StatusRecorder
	CORSAllowedOrigins []string
	FrameAncestors     []string
	RateLimiter        *middleware.RateLimiter
	Gate               middleware.Authenticator

	// 認証・管理者判定
	Profiles  UserProfileSource
	Admin     AdminDecider
	Sanitizer MessageSanitizer

	// テナント
	Resolver        DomainResolver
	Settings        repository.SettingsRepository
	DomainValidator DomainValidator
	InstallVerifier InstallVerifier
	DomainField     string

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → CORS → (RateLimit(IP) → AuthGate → RateLimit(テナント))
//
// /health、/metrics、/api/domainは認証ゲートの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.FrameAncestors))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	authHandler := NewAuthHandler(deps.Profiles, deps.Admin, deps.Sanitizer)
	domainHandler := NewDomainHandler(deps.Resolver, deps.Settings, deps.DomainField)
	installHandler := NewInstallHandler(deps.Settings, deps.DomainValidator, deps.InstallVerifier)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware(middleware.ClientIPKey))
		}
		r.Get("/api/domain", domainHandler.Resolve)
	})

	// --- 認証ゲートを通過する必要があるルート ---
	// ミドルウェアスタック: RateLimit（接続元IP単位）→ AuthGate → RateLimit（確認済みテナント単位）
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware(middleware.ClientIPKey))
		}
		r.Use(middleware.NewAuthGateMiddleware(deps.Gate))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware(middleware.VerifiedTenantKey))
		}

		// iframe内のトップレベル読み込み
		r.Get("/", authHandler.Verify)
		r.Post("/", authHandler.Verify)

		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/verify", authHandler.Verify)
			r.Post("/verify", authHandler.Verify)
			r.Get("/admin", authHandler.Admin)
			r.Post("/admin", authHandler.Admin)
		})

		r.Post("/install", installHandler.Install)
	})

	return r
}
