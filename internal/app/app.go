package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/revicx/blade/internal/auth"
	"github.com/revicx/blade/internal/config"
	"github.com/revicx/blade/internal/content"
	"github.com/revicx/blade/internal/database"
	"github.com/revicx/blade/internal/handler"
	"github.com/revicx/blade/internal/logger"
	"github.com/revicx/blade/internal/metrics"
	"github.com/revicx/blade/internal/middleware"
	"github.com/revicx/blade/internal/model"
	"github.com/revicx/blade/internal/render"
	"github.com/revicx/blade/internal/repository"
	"github.com/revicx/blade/internal/security"
	"github.com/revicx/blade/internal/space"
	"github.com/revicx/blade/internal/token"
	"github.com/revicx/blade/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	spaceRepo := repository.NewPostgresSpaceRepo(db)
	memberRepo := repository.NewPostgresMemberRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)
	tokenRepo := repository.NewPostgresAccessTokenRepo(db)
	componentRepo := repository.NewPostgresComponentRepo(db)
	contentTypeRepo := repository.NewPostgresContentTypeRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.GitHubRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	spaceService := space.NewService(spaceRepo, memberRepo, favoriteRepo, userRepo)
	contentService := content.NewService(spaceService, componentRepo, contentTypeRepo, entryRepo)

	usageRecorder := token.NewAsyncRecorder(tokenRepo, slog.Default(), cfg.TokenUsageQueueSize)
	tokenValidator := token.NewValidator(tokenRepo, usageRecorder)
	tokenService := token.NewService(tokenRepo, spaceService)

	importer := content.NewImporter(
		contentService, ssrfGuard, sanitizer,
		slog.Default(), cfg.ImportTimeout, cfg.ImportMaxSize, cfg.ImportMaxItems,
	)

	renderer, err := render.NewRenderer(sanitizer)
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}
	siteResolver := space.NewSiteResolver(userRepo, spaceService, cfg.SeedUserEmail)

	// 5. 観測の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. 最終使用日時レコーダーの起動
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()
	go usageRecorder.Start(recorderCtx)

	// 7. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60)
	rateLimiterCfg.TokenMintRate = rate.Limit(float64(cfg.RateLimitTokenMint) / 60)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		TokenValidator:    tokenValidator,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieSecure:      cfg.CookieSecure,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		SpaceService: spaceService,
		SpaceSeeder:  contentService,

		TokenService: tokenService,

		ContentService: contentService,
		FeedImporter:   importer,

		PublishedReader:  contentService,
		SchemaReader:     contentService,
		ContentAPISpaces: spaceService,
		SpaceFinder:      spaceRepo,

		SiteHandler: handler.NewSiteHandler(
			siteResolver, contentService, renderer,
			collector, slog.Default(), cfg.BaseURL,
		),

		Collector: collector,
		Gatherer:  registry,
		Logger:    slog.Default(),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
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

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ループを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	cleanupJob := cleanup.NewSessionCleanupJob(sessionRepo, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップループをメインgoroutineで実行（ブロッキング）
	cleanupJob.RunLoop(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はシードユーザーとデフォルトスペースを冪等に作成する。
// SEED_USER_EMAILのユーザーをupsertし、identifierが"default"のスペースと
// 既定のコンポーネント・コンテンツタイプを用意する。再実行しても安全。
func runSeed(cfg *config.Config) error {
	if cfg.SeedUserEmail == "" {
		return fmt.Errorf("SEED_USER_EMAIL is required for the seed command")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepo(db)
	spaceRepo := repository.NewPostgresSpaceRepo(db)
	memberRepo := repository.NewPostgresMemberRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)
	componentRepo := repository.NewPostgresComponentRepo(db)
	contentTypeRepo := repository.NewPostgresContentTypeRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)

	spaceService := space.NewService(spaceRepo, memberRepo, favoriteRepo, userRepo)
	contentService := content.NewService(spaceService, componentRepo, contentTypeRepo, entryRepo)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := cfg.SeedUserEmail
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	owner, err := userRepo.UpsertByEmail(ctx, cfg.SeedUserEmail, name, "")
	if err != nil {
		return fmt.Errorf("failed to upsert seed user: %w", err)
	}

	sp, err := spaceService.ResolveDefaultSpace(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve default space: %w", err)
	}
	if sp == nil {
		sp, err = spaceService.CreateSpace(ctx, owner.ID, "Default", model.DefaultSpaceIdentifier)
		if err != nil {
			// 並行seedとの競合は再解決で回収する
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeConflict {
				return fmt.Errorf("failed to create default space: %w", err)
			}
			sp, err = spaceService.ResolveDefaultSpace(ctx, owner.ID)
			if err != nil || sp == nil {
				return fmt.Errorf("failed to resolve default space after conflict: %w", err)
			}
		}
	}

	if err := contentService.EnsureSpaceDefaults(ctx, sp.ID); err != nil {
		return fmt.Errorf("failed to seed space defaults: %w", err)
	}

	slog.Info("seed completed",
		slog.String("user_id", owner.ID),
		slog.String("space_id", sp.ID),
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

// openDatabase は設定のプールパラメータでDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
