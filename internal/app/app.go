// Package app は設定の読み込みと依存関係のワイヤリングを行い、各起動モードを実行する。
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/slotkeeper/internal/auth"
	"github.com/hitoshi/slotkeeper/internal/config"
	"github.com/hitoshi/slotkeeper/internal/database"
	"github.com/hitoshi/slotkeeper/internal/handler"
	"github.com/hitoshi/slotkeeper/internal/logger"
	"github.com/hitoshi/slotkeeper/internal/metrics"
	"github.com/hitoshi/slotkeeper/internal/middleware"
	"github.com/hitoshi/slotkeeper/internal/platform"
	"github.com/hitoshi/slotkeeper/internal/repository"
	"github.com/hitoshi/slotkeeper/internal/security"
	"github.com/hitoshi/slotkeeper/internal/snapshot"
	"github.com/hitoshi/slotkeeper/internal/subscription"
	"github.com/hitoshi/slotkeeper/internal/worker/expiry"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、設定に従って構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.FormatJSON, "info")

	// 2. .envを読み込む。既に設定済みの環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定の形式とレベルでログを再設定する
	logger.SetupDefault(w, cfg.LogFormat, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMを受信するとコマンドのコンテキストをキャンセルする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// services はストア上に構築したドメインサービス群。
type services struct {
	store    repository.Store
	registry *platform.Registry
	ledger   *subscription.Ledger
	snapshot *snapshot.Service
	auth     *auth.Service
}

// newServices はドメインサービスを構築する。
// 登録簿、台帳、スナップショット取り込みは同じロックを共有する。
func newServices(cfg *config.Config, store repository.Store) (*services, error) {
	mu := &sync.Mutex{}
	sanitizer := security.NewTextSanitizer()

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		slog.Warn("SESSION_SECRET is not set; login tokens will be invalidated on restart")
	}

	registry := platform.NewRegistry(store.Platforms(), store.Subscriptions(), mu, sanitizer, platform.Config{
		EnforceUniqueNameOnUpdate: cfg.EnforceUniqueNameOnUpdate,
		EnforceProfileCapacity:    cfg.EnforceProfileCapacity,
	})
	ledger := subscription.NewLedger(store.Subscriptions(), registry, mu, sanitizer, subscription.Config{
		EnforceProfileCapacity: cfg.EnforceProfileCapacity,
		ExpiringSoonDays:       cfg.ExpiringSoonDays,
	})

	return &services{
		store:    store,
		registry: registry,
		ledger:   ledger,
		snapshot: snapshot.NewService(store, mu, sanitizer, snapshot.Config{
			EnforceProfileCapacity: cfg.EnforceProfileCapacity,
		}),
		auth: auth.NewService(store.Security(), auth.ServiceConfig{
			Secret:     secret,
			TokenTTL:   cfg.TokenTTL,
			BcryptCost: cfg.BcryptCost,
		}),
	}, nil
}

// newHTTPHandler はルーターを構築し、ログ、リカバリー、セキュリティヘッダーのミドルウェアで包む。
// 返されたRateLimiterは呼び出し側でStopすること。
//
// 実行順序: RequestID → Logging → Recovery → SecurityHeaders → Router
func newHTTPHandler(
	cfg *config.Config,
	svc *services,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
	log *slog.Logger,
) (http.Handler, *middleware.RateLimiter) {
	limiter := middleware.NewRateLimiter(middleware.LoginRateLimiterConfig(cfg.RateLimitLogin), collector)

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		LoginLimiter:      limiter,

		PlatformService:     svc.registry,
		SubscriptionService: svc.ledger,
		AuthService:         svc.auth,
		SnapshotService:     svc.snapshot,
		HealthChecker:       svc.store,

		Recorder:       collector,
		MetricsHandler: metrics.Handler(gatherer),
	}
	if cfg.AuthRequired {
		deps.TokenVerifier = svc.auth
	}

	var h http.Handler = handler.NewRouter(deps)
	h = middleware.NewSecurityHeadersMiddleware()(h)
	h = middleware.NewRecoveryMiddleware(log, collector)(h)
	h = middleware.NewLoggingMiddleware(log, collector)(h)
	h = chimw.RequestID(h)
	return h, limiter
}

// newMetrics はプロセス専用のレジストリにランタイムとアプリケーションのメトリクスを登録する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// buildStore はSTORAGE_BACKENDに応じたストアを開き、疎通を確認する。
// SQLiteは単一ファイルのため、起動時にマイグレーションも適用する。
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres, config.BackendSQLite:
		db, driver, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if string(driver) != cfg.StorageBackend {
			db.Close()
			return nil, fmt.Errorf("DATABASE_URL scheme %q does not match STORAGE_BACKEND %q", driver, cfg.StorageBackend)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if driver == database.DriverSQLite {
			if err := database.RunMigrations(db, driver); err != nil {
				db.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		slog.Info("database connection established",
			slog.String("driver", string(driver)),
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return repository.NewSQLStore(db, driver), nil

	case config.BackendRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established",
			slog.String("addr", opt.Addr),
			slog.String("key_prefix", cfg.RedisKeyPrefix),
		)
		return repository.NewRedisStore(client, cfg.RedisKeyPrefix), nil

	default:
		slog.Warn("using in-memory storage; data will be lost on restart")
		return repository.NewMemoryStore(), nil
	}
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーと期限スキャンを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := newServices(cfg, store)
	if err != nil {
		return err
	}

	reg, collector := newMetrics()
	h, limiter := newHTTPHandler(cfg, svc, collector, reg, slog.Default())
	defer limiter.Stop()

	// /metricsのゲージを最新に保つため、サーバープロセスでも期限スキャンを実行する
	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()
	go expiry.NewScanner(svc.ledger, collector, slog.Default()).Start(scanCtx, cfg.ExpiryScanInterval)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("API server starting",
		slog.String("addr", server.Addr),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.Bool("auth_required", cfg.AuthRequired),
	)
	if err := serveUntilDone(ctx, server); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限スキャンを定期実行し、/metricsと/healthのみを提供する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := newServices(cfg, store)
	if err != nil {
		return err
	}

	reg, collector := newMetrics()
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg, handler.NewHealthHandler(store)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serveUntilDone(ctx, server); err != nil {
			slog.Error("worker metrics server error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("expiry_scan_interval", cfg.ExpiryScanInterval),
		slog.Int("expiring_soon_days", cfg.ExpiringSoonDays),
	)

	// 期限スキャンをメインgoroutineで実行（ブロッキング）
	expiry.NewScanner(svc.ledger, collector, slog.Default()).Start(ctx, cfg.ExpiryScanInterval)

	wg.Wait()
	slog.Info("worker stopped gracefully")
	return nil
}

// serveUntilDone はサーバーを起動し、ctxのキャンセルまたは起動失敗まで待つ。
func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...", slog.String("addr", server.Addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。SQL以外のバックエンドでは何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.BackendPostgres && cfg.StorageBackend != config.BackendSQLite {
		slog.Info("no migrations for storage backend", slog.String("storage_backend", cfg.StorageBackend))
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	db, driver, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, driver); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, _, err := database.SchemaVersion(db, driver)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runExport は全データをスナップショット文書として書き出す。outが空の場合はstdoutに書く。
func runExport(ctx context.Context, cfg *config.Config, format snapshot.Format, out string, stdout io.Writer) error {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := newServices(cfg, store)
	if err != nil {
		return err
	}

	doc, err := svc.snapshot.Export(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := snapshot.Encode(w, doc, format); err != nil {
		return err
	}

	slog.Info("export completed",
		slog.Int("platforms", len(doc.Platforms)),
		slog.Int("subscriptions", len(doc.Subscriptions)),
		slog.String("format", string(format)),
	)
	return nil
}

// runImport はスナップショット文書を読み込み、全データを置き換える。
func runImport(ctx context.Context, cfg *config.Config, format snapshot.Format, in string) error {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", in, err)
	}
	defer f.Close()

	doc, err := snapshot.Decode(f, format)
	if err != nil {
		return err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := newServices(cfg, store)
	if err != nil {
		return err
	}

	res, err := svc.snapshot.Import(ctx, doc)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	slog.Info("import completed",
		slog.Int("platforms", res.Platforms),
		slog.Int("subscriptions", res.Subscriptions),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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
