// Package app はプロセスの起動・依存関係のワイヤリング・終了処理を担う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/blogmind/internal/auth"
	"github.com/hitoshi/blogmind/internal/blog"
	"github.com/hitoshi/blogmind/internal/config"
	"github.com/hitoshi/blogmind/internal/database"
	"github.com/hitoshi/blogmind/internal/handler"
	"github.com/hitoshi/blogmind/internal/importer"
	"github.com/hitoshi/blogmind/internal/logger"
	"github.com/hitoshi/blogmind/internal/metrics"
	"github.com/hitoshi/blogmind/internal/middleware"
	"github.com/hitoshi/blogmind/internal/repository"
	"github.com/hitoshi/blogmind/internal/security"
	"github.com/hitoshi/blogmind/internal/summarizer"
	"github.com/hitoshi/blogmind/internal/user"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. .envがあれば環境変数に反映する
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたレベルでログを再構成する
	logger.SetupDefault(w, cfg.LogLevel)

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
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandMigrateStatus:
		return runMigrateStatus(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスとレート制限
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitSummarize),
	)
	defer rateLimiter.Stop()

	// 3. ルーターの構築
	router := newRouter(cfg, db, slog.Default(), collector, metrics.Handler(registry), rateLimiter)

	// 4. HTTPサーバーの起動
	// WriteTimeoutはAI要約の待ち時間より長くする
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.SummarizeTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
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

	slog.Info("shutting down API server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newRouter はリポジトリ・サービス・ゲートウェイを組み立ててルーターを返す。
// dbがnilの場合、ヘルスチェックはDB疎通を確認しない。
func newRouter(
	cfg *config.Config,
	db *sql.DB,
	log *slog.Logger,
	collector metrics.MetricsCollector,
	metricsHandler http.Handler,
	rateLimiter *middleware.RateLimiter,
) http.Handler {
	// リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// セキュリティ
	sanitizer := security.NewTextSanitizer()
	ssrfGuard := security.NewSSRFGuard()

	// ドメインサービス
	authService := auth.NewService(userRepo, auth.ServiceConfig{
		Secret:     []byte(cfg.JWTSecret),
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
	})
	userService := user.NewService(userRepo)
	blogService := blog.NewService(postRepo, collector)

	geminiClient := summarizer.NewClient(
		&http.Client{Timeout: cfg.SummarizeTimeout},
		log,
		cfg.GeminiEndpoint,
		cfg.GeminiModel,
		cfg.GeminiAPIKey,
	)
	if !geminiClient.Configured() {
		slog.Warn("GEMINI_API_KEY is not set; AI summarize will be unavailable")
	}
	summarizerService := summarizer.NewService(geminiClient, sanitizer, collector, cfg.SummarizeTimeout)

	importService := importer.NewService(postRepo, ssrfGuard, sanitizer, collector, log, importer.Config{
		Timeout:     cfg.ImportTimeout,
		MaxBodySize: cfg.ImportMaxSize,
		MaxItems:    cfg.ImportMaxItems,
	})

	var health handler.Pinger
	if db != nil {
		health = db
	}

	return handler.NewRouter(&handler.RouterDeps{
		Identity:          authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
		Metrics:           collector,
		MetricsHandler:    metricsHandler,
		Health:            health,

		AuthService: authService,
		UserService: userService,
		BlogService: blogService,
		Summarizer:  summarizerService,
		Importer:    importService,

		SummarizeRequireAuth: cfg.SummarizeRequireAuth,
	})
}

// runMigrate は未適用のマイグレーションを適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	before, after, err := database.MigrateUp(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed",
		slog.Uint64("from_version", uint64(before.Version)),
		slog.Uint64("to_version", uint64(after.Version)),
		slog.Bool("changed", before.Version != after.Version),
	)
	return nil
}

// runMigrateStatus はスキーマバージョンをログに出す。
// 未適用またはdirtyの場合はエラーを返し、デプロイ前チェックで使えるようにする。
func runMigrateStatus(cfg *config.Config) error {
	status, err := database.Status(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	slog.Info("migration status",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Uint64("version", uint64(status.Version)),
		slog.Uint64("latest", uint64(status.Latest)),
		slog.Bool("dirty", status.Dirty),
	)

	switch {
	case status.Dirty:
		return fmt.Errorf("%w at version %d", database.ErrDirtySchema, status.Version)
	case status.Pending():
		return fmt.Errorf("schema is at version %d, %d is available: run migrate", status.Version, status.Latest)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
