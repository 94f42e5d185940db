// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/hitoshi/maintlog/internal/auth"
	"github.com/hitoshi/maintlog/internal/metrics"
	"github.com/hitoshi/maintlog/internal/middleware"
	"github.com/hitoshi/maintlog/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GoogleEnabled() bool
	GetLoginURL(state string) (string, error)
	LoginWithPassword(ctx context.Context, email, password string) (string, *model.Session, error)
	HandleCallback(ctx context.Context, code string) (string, *model.Session, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Session middleware.SessionConfig
	// StateHashKey はOAuth stateCookieの署名鍵。
	StateHashKey []byte
}

// AuthHandler はログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service    AuthServiceInterface
	config     AuthHandlerConfig
	collector  metrics.MetricsCollector
	stateCodec *securecookie.SecureCookie
}

// NewAuthHandler はAuthHandlerを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	codec := securecookie.New(config.StateHashKey, nil)
	codec.MaxAge(oauthStateMaxAge)

	return &AuthHandler{
		service:    service,
		config:     config,
		collector:  collector,
		stateCodec: codec,
	}
}

// loginRequest はJSONでのパスワードログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はログインユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	Provider  string     `json:"provider"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

func toUserResponse(session *model.Session) userResponse {
	return userResponse{
		ID:        session.UserID,
		Email:     session.Email,
		Name:      session.Name,
		Role:      session.Role,
		Provider:  session.Provider,
		ExpiresAt: session.ExpiresAt,
	}
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
// フォーム送信はダッシュボードまたはログイン画面へリダイレクトし、
// JSONリクエストはユーザー情報またはエラーをJSONで返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	jsonReq := isJSONRequest(r)

	var req loginRequest
	if jsonReq {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}
	} else {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}

	token, session, err := h.service.LoginWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.collector.RecordLogin(model.ProviderPassword, metrics.OutcomeRejected)
			if jsonReq {
				writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
				return
			}
			redirectToLogin(w, r, loginErrorInvalidCredentials)
			return
		}

		h.collector.RecordLogin(model.ProviderPassword, metrics.OutcomeError)
		slog.Error("password login failed", slog.String("error", err.Error()))
		if jsonReq {
			handleServiceError(w, err)
			return
		}
		redirectToLogin(w, r, loginErrorServer)
		return
	}

	h.collector.RecordLogin(model.ProviderPassword, metrics.OutcomeSuccess)
	middleware.SetSessionCookie(w, token, h.config.Session)

	if jsonReq {
		writeJSON(w, http.StatusOK, toUserResponse(session))
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.GoogleEnabled() {
		redirectToLogin(w, r, loginErrorGoogleUnavailable)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 署名付きのstateをCookieに保存（CSRF対策）
	encoded, err := h.stateCodec.Encode(oauthStateCookie, state)
	if err != nil {
		slog.Error("failed to encode oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(state)
	if err != nil {
		slog.Error("failed to build google login url", slog.String("error", err.Error()))
		redirectToLogin(w, r, loginErrorGoogleUnavailable)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    encoded,
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, cookieErr := r.Cookie(oauthStateCookie)

	// stateクッキーは結果に関わらず削除する
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		slog.Warn("google login cancelled", slog.String("error", providerErr))
		h.collector.RecordLogin(model.ProviderGoogle, metrics.OutcomeRejected)
		redirectToLogin(w, r, loginErrorGoogleFailed)
		return
	}

	// 1. stateの検証（CSRF対策）
	if cookieErr != nil || !h.validState(stateCookie.Value, query.Get("state")) {
		slog.Warn("oauth state mismatch")
		h.collector.RecordLogin(model.ProviderGoogle, metrics.OutcomeRejected)
		redirectToLogin(w, r, loginErrorGoogleFailed)
		return
	}

	// 2. 認可コードの取得
	code := query.Get("code")
	if code == "" {
		slog.Warn("oauth callback without authorization code")
		h.collector.RecordLogin(model.ProviderGoogle, metrics.OutcomeRejected)
		redirectToLogin(w, r, loginErrorGoogleFailed)
		return
	}

	// 3. 認証処理
	token, _, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.collector.RecordLogin(model.ProviderGoogle, metrics.OutcomeError)
		redirectToLogin(w, r, loginErrorGoogleFailed)
		return
	}

	// 4. セッションCookieを設定してダッシュボードへ
	h.collector.RecordLogin(model.ProviderGoogle, metrics.OutcomeSuccess)
	middleware.SetSessionCookie(w, token, h.config.Session)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Logout はセッションCookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		slog.Info("user logged out", slog.Int64("user_id", userID))
	}

	middleware.ClearSessionCookie(w, h.config.Session)

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(session))
}

// validState は署名付きCookieのstateとクエリのstateが一致するかを検証する。
func (h *AuthHandler) validState(cookieValue, queryState string) bool {
	if queryState == "" {
		return false
	}
	var state string
	if err := h.stateCodec.Decode(oauthStateCookie, cookieValue, &state); err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state), []byte(queryState)) == 1
}

// redirectToLogin はエラーコード付きでログイン画面へリダイレクトする。
func redirectToLogin(w http.ResponseWriter, r *http.Request, errorCode string) {
	target := "/login?" + url.Values{"error": {errorCode}}.Encode()
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
