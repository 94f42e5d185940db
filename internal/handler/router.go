package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/maintlog/internal/metrics"
	"github.com/hitoshi/maintlog/internal/middleware"
	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionManager    middleware.SessionManager
	SessionConfig     middleware.SessionConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	// TrustProxy がtrueの場合はX-Forwarded-For等から接続元IPを決める。
	TrustProxy bool

	// メトリクス
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 整備記録
	RecordService RecordServiceInterface

	// 初期化
	BootstrapService BootstrapServiceInterface
	AdminPassword    string

	// 画面
	Renderer PageRenderer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → Metrics → SecurityHeaders → CORS → Session
//
// ロール判定・CSRF検証・レート制限はルートごとに適用する。
// 初期化エンドポイント（/api/init-db）のみ認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SessionConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionManager, deps.SessionConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, collector)
	recordHandler := NewRecordHandler(deps.RecordService, collector)
	bootstrapHandler := NewBootstrapHandler(deps.BootstrapService, deps.AdminPassword)
	pageHandler := NewPageHandler(deps.Renderer, deps.RecordService, deps.AuthService.GoogleEnabled(), deps.CSRFConfig)

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)
	requireUser := middleware.NewRequireRoleMiddleware(model.RoleUser)
	requireAdmin := middleware.NewRequireRoleMiddleware(model.RoleAdmin)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Handle("/static/*", view.StaticHandler())
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 初期化（DB未構築の状態で呼ばれるため認証・CSRF検証の対象外）
	r.Get("/api/init-db", bootstrapHandler.InitDB)
	r.Post("/api/init-db", bootstrapHandler.InitDB)

	// 画面
	r.Get("/", pageHandler.Index)
	r.Get("/login", pageHandler.Login)
	r.Get("/dashboard", pageHandler.Dashboard)

	// 認証
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware(), csrf).Post("/login", authHandler.Login)
		r.With(csrf).Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)

		// OAuthフロー
		r.With(deps.RateLimiter.LoginMiddleware()).Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: RequireRole(user) → RateLimit(General)
	// 変更操作はさらに RequireRole(admin) → CSRF
	r.Route("/records", func(r chi.Router) {
		r.Use(requireUser)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", recordHandler.ListRecords)
		r.With(requireAdmin, csrf).Post("/", recordHandler.CreateRecord)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", recordHandler.GetRecord)
			r.With(requireAdmin, csrf).Put("/", recordHandler.UpdateRecord)
			r.With(requireAdmin, csrf).Delete("/", recordHandler.DeleteRecord)
		})
	})

	return r
}
