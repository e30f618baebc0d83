package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/embedgate/internal/admin"
	"github.com/hitoshi/embedgate/internal/config"
	"github.com/hitoshi/embedgate/internal/credential"
	"github.com/hitoshi/embedgate/internal/database"
	"github.com/hitoshi/embedgate/internal/gate"
	"github.com/hitoshi/embedgate/internal/handler"
	"github.com/hitoshi/embedgate/internal/logger"
	"github.com/hitoshi/embedgate/internal/metrics"
	"github.com/hitoshi/embedgate/internal/middleware"
	"github.com/hitoshi/embedgate/internal/platform"
	"github.com/hitoshi/embedgate/internal/repository"
	"github.com/hitoshi/embedgate/internal/security"
	"github.com/hitoshi/embedgate/internal/tenant"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("native_signal_mode", cfg.NativeSignalMode),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 依存関係のワイヤリング
	router, cleanup, err := buildRouter(context.Background(), cfg, repository.NewPostgresSettingsRepo(db), db)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter は設定ストアとヘルスチェッカーを受け取り、全コンポーネントを組み立てたルーターを返す。
// 返されたcleanupはレートリミッターとRedis接続を解放する。
func buildRouter(ctx context.Context, cfg *config.Config, store repository.SettingsRepository, health handler.HealthChecker) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// 1. 設定ストア（REDIS_URLが指定されている場合はRedisキャッシュを挟む）
	settings := store
	if cfg.RedisURL != "" {
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		settings = repository.NewRedisSettingsCache(store, rdb, cfg.SettingsCacheTTL)
		slog.Info("settings cache enabled", slog.Duration("ttl", cfg.SettingsCacheTTL))
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 3. セキュリティサービス
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewDisplaySanitizer()

	// 4. ポータルRESTクライアントと管理者判定
	client := platform.NewClient(platform.ClientConfig{
		HTTPClient: ssrfGuard.NewSafeClient(cfg.PlatformTimeout),
		Scheme:     cfg.PlatformScheme,
		Validator:  ssrfGuard,
		Recorder:   collector,
	})
	adminChecker := admin.NewChecker(client, collector)

	// 5. 認証ゲート
	authGate := gate.New(gate.Config{
		Extractor: credential.NewExtractor(credential.Config{
			Fields: credential.FieldNames{
				Token:    cfg.TokenField,
				TokenAlt: cfg.TokenAltField,
				Domain:   cfg.DomainField,
			},
			MaxBodyBytes: cfg.MaxBodyBytes,
		}),
		MinTokenLength: cfg.MinTokenLength,
		Signal:         newNativeSignal(cfg.NativeSignalMode, client),
		Recorder:       collector,
		Sanitizer:      sanitizer,
	})

	// 6. レートリミッター
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitPerTenant))
	closers = append(closers, rateLimiter.Stop)

	// 7. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		StatusRecorder:     collector,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		FrameAncestors:     cfg.FrameAncestors,
		RateLimiter:        rateLimiter,
		Gate:               authGate,

		Profiles:  client,
		Admin:     adminChecker,
		Sanitizer: sanitizer,

		Resolver:        tenant.NewResolver(cfg.OAuthSentinelHost),
		Settings:        settings,
		DomainValidator: ssrfGuard,
		InstallVerifier: client,
		DomainField:     cfg.DomainField,

		HealthChecker:  health,
		MetricsHandler: metrics.Handler(reg),
	})

	return router, cleanup, nil
}

// newNativeSignal はNATIVE_SIGNAL_MODEに応じたシグナルを返す。offの場合はnil。
func newNativeSignal(mode string, client *platform.Client) gate.PlatformSignal {
	switch mode {
	case config.SignalModeRemote:
		return platform.NewRemoteSignal(client)
	case config.SignalModeOff:
		return nil
	default:
		return platform.NewMarkerSignal()
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
