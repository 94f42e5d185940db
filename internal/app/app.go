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

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/maintlog/internal/auth"
	"github.com/hitoshi/maintlog/internal/bootstrap"
	"github.com/hitoshi/maintlog/internal/config"
	"github.com/hitoshi/maintlog/internal/database"
	"github.com/hitoshi/maintlog/internal/handler"
	"github.com/hitoshi/maintlog/internal/logger"
	"github.com/hitoshi/maintlog/internal/maintenance"
	"github.com/hitoshi/maintlog/internal/metrics"
	"github.com/hitoshi/maintlog/internal/middleware"
	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/repository"
	"github.com/hitoshi/maintlog/internal/security"
	"github.com/hitoshi/maintlog/internal/view"
)

// startupPingTimeout は起動時のDB疎通確認のタイムアウト。
const startupPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
// LOG_FILEが設定されている場合はローテーション付きファイルにも出力する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ファイル出力が設定されていればロガーを差し替える
	if cfg.Log.File != "" {
		logger.SetupDefault(logger.WithFile(w, logger.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}))
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
		slog.Bool("google_login", cfg.GoogleEnabled()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandBootstrap:
		return runBootstrap(cfg)
	default:
		return runServe(cfg)
	}
}

// services はHTTPサーバーとCLIで共有するサービス群。
type services struct {
	db        *sqlx.DB
	auth      *auth.Service
	records   *maintenance.Service
	bootstrap *bootstrap.Service
}

// newServices はDB接続プールを開き、リポジトリとサービスをワイヤリングする。
// sqlx.Openは接続を試行しないため、DB未構築でも成功する。
func newServices(cfg *config.Config) (*services, error) {
	// 1. DB接続プール
	db, err := database.Open(cfg.Database.URL(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	logRepo := repository.NewPostgresMaintenanceLogRepo(db)

	// 3. 認証サービスの初期化（Google未設定の場合はパスワードログインのみ）
	var oauthProvider auth.OAuthProvider
	if cfg.GoogleEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}
	tokens := auth.NewTokenManager(cfg.SessionSecret, time.Duration(cfg.SessionMaxAge)*time.Second)
	authService := auth.NewService(oauthProvider, userRepo, tokens)

	// 4. ドメインサービスの初期化
	recordService := maintenance.NewService(logRepo, maintenance.ServiceConfig{
		StrictMutations: cfg.StrictMutations,
	})
	bootstrapService := bootstrap.NewService(bootstrap.Config{
		Database:      cfg.Database,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	}, db, userRepo)

	return &services{
		db:        db,
		auth:      authService,
		records:   recordService,
		bootstrap: bootstrapService,
	}, nil
}

// newRouterDeps は設定とサービスからルーターの依存関係を組み立てる。
func newRouterDeps(cfg *config.Config, svc *services, renderer *view.Renderer, collector metrics.MetricsCollector, gatherer prometheus.Gatherer, rl *middleware.RateLimiter) *handler.RouterDeps {
	sessionConfig := middleware.SessionConfig{
		CookieSecure:    cfg.CookieSecure,
		CookieDomain:    cfg.CookieDomain,
		MaxAge:          time.Duration(cfg.SessionMaxAge) * time.Second,
		RefreshInterval: cfg.SessionRefreshInterval,
	}

	return &handler.RouterDeps{
		Logger:         slog.Default(),
		SessionManager: svc.auth,
		SessionConfig:  sessionConfig,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		TrustProxy:        cfg.TrustProxy,

		Metrics:         collector,
		MetricsGatherer: gatherer,

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			Session:      sessionConfig,
			StateHashKey: []byte(cfg.SessionSecret),
		},

		RecordService: svc.records,

		BootstrapService: svc.bootstrap,
		AdminPassword:    cfg.AdminPassword,

		Renderer: renderer,
	}
}

// runServe はHTTPサーバーモードで起動する。
// DB接続パラメータが不足していてもサーバーは起動し、初期化エンドポイントが不足を報告する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. サービスのワイヤリング
	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	checkDatabase(svc.db, cfg.Database)

	// 2. 画面・メトリクス・レート制限の初期化
	renderer, err := view.NewRenderer(security.NewNotesSanitizer())
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	rl := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
		collector,
	)
	defer rl.Stop()

	// 3. ルーターの構築
	router := handler.NewRouter(newRouterDeps(cfg, svc, renderer, collector, prometheus.DefaultGatherer, rl))

	// 4. HTTPサーバーの起動
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
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	case <-stop:
	}

	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// checkDatabase は起動時にDB接続を確認し、結果をログに記録する。
// 失敗してもサーバーは起動を続ける。
func checkDatabase(db *sqlx.DB, dbCfg config.Database) {
	if missing := dbCfg.MissingParams(); len(missing) > 0 {
		slog.Warn("database parameters are not configured",
			slog.Any("missing", missing),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		slog.Warn("database is not reachable at startup",
			slog.String("host", dbCfg.Host),
			slog.String("database", dbCfg.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("database connection established",
		slog.String("host", dbCfg.Host),
		slog.String("database", dbCfg.Name),
	)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if missing := cfg.Database.MissingParams(); len(missing) > 0 {
		return model.NewConfigMissingError(missing)
	}

	slog.Info("running database migrations",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	if err := database.RunMigrations(cfg.Database.URL()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.SchemaVersion(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runBootstrap はスキーマ作成と管理者アカウントの投入をCLIから実行する。
// 何度実行しても安全。
func runBootstrap(cfg *config.Config) error {
	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := svc.bootstrap.Run(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	slog.Info("database bootstrap completed",
		slog.String("admin_email", result.AdminEmail),
		slog.Bool("admin_created", result.AdminCreated),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
