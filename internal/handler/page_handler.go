package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/maintlog/internal/middleware"
	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/view"
)

// ログイン画面に渡すエラーコード（?error=）
const (
	loginErrorInvalidCredentials = "invalid_credentials"
	loginErrorGoogleUnavailable  = "google_unavailable"
	loginErrorGoogleFailed       = "google_failed"
	loginErrorServer             = "server_error"
)

var loginErrorMessages = map[string]string{
	loginErrorInvalidCredentials: "Invalid email or password. Make sure the database is initialized and the admin user exists.",
	loginErrorGoogleUnavailable:  "Google sign-in is not configured.",
	loginErrorGoogleFailed:       "Google sign-in failed. Please try again.",
	loginErrorServer:             "Login failed. Please try again.",
}

// PageRenderer はHTML画面の描画インターフェース。
type PageRenderer interface {
	RenderLogin(w http.ResponseWriter, status int, page view.LoginPage)
	RenderDashboard(w http.ResponseWriter, page view.DashboardPage)
}

var _ PageRenderer = (*view.Renderer)(nil)

// PageHandler はログイン画面とダッシュボードのHTTPハンドラー。
type PageHandler struct {
	renderer      PageRenderer
	records       RecordServiceInterface
	googleEnabled bool
	csrfConfig    middleware.CSRFConfig
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer PageRenderer, records RecordServiceInterface, googleEnabled bool, csrfConfig middleware.CSRFConfig) *PageHandler {
	return &PageHandler{
		renderer:      renderer,
		records:       records,
		googleEnabled: googleEnabled,
		csrfConfig:    csrfConfig,
	}
}

// Index はログイン状態に応じてダッシュボードかログイン画面へリダイレクトする。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Login はログイン画面を描画する。ログイン済みの場合はダッシュボードへリダイレクトする。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	page := view.LoginPage{
		CSRFToken:     middleware.EnsureCSRFToken(w, r, h.csrfConfig),
		GoogleEnabled: h.googleEnabled,
	}
	if code := r.URL.Query().Get("error"); code != "" {
		msg, ok := loginErrorMessages[code]
		if !ok {
			msg = loginErrorMessages[loginErrorServer]
		}
		page.Error = msg
	}

	h.renderer.RenderLogin(w, http.StatusOK, page)
}

// Dashboard はロールに応じたダッシュボードを描画する。
// 管理者は編集フォーム付き、一般ユーザーは閲覧専用の一覧を表示する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	if err := middleware.Authorize(session, model.RoleUser); err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	records, err := h.records.List(r.Context())
	if err != nil {
		slog.Error("failed to load dashboard records",
			slog.Int64("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.renderer.RenderDashboard(w, view.DashboardPage{
		CSRFToken: middleware.EnsureCSRFToken(w, r, h.csrfConfig),
		Session:   session,
		Records:   records,
		CanEdit:   session.Role.Satisfies(model.RoleAdmin),
	})
}
