// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/maintlog/internal/auth"
	"github.com/hitoshi/maintlog/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionManager はセッショントークンの検証と再発行に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionManager interface {
	ParseSession(token string) (*model.Session, error)
	RefreshSession(ctx context.Context, session *model.Session) (string, *model.Session, error)
}

// SessionConfig はセッションミドルウェアとセッションCookieの設定。
type SessionConfig struct {
	CookieSecure    bool
	CookieDomain    string
	MaxAge          time.Duration
	RefreshInterval time.Duration
}

// NewSessionMiddleware はCookieからセッショントークンを読み取り、
// 有効なセッションをリクエストコンテキストに注入するミドルウェアを返す。
// セッションが無い、または無効な場合も後続に処理を渡す（拒否は認可ゲートで行う）。
// 発行から RefreshInterval を超えたセッションは保存済みのユーザー情報で再発行する。
func NewSessionMiddleware(manager SessionManager, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := manager.ParseSession(cookie.Value)
			if err != nil {
				slog.Debug("discarding invalid session cookie", slog.String("error", err.Error()))
				ClearSessionCookie(w, config)
				next.ServeHTTP(w, r)
				return
			}

			if session.NeedsRefresh(time.Now(), config.RefreshInterval) {
				token, refreshed, err := manager.RefreshSession(r.Context(), session)
				switch {
				case errors.Is(err, auth.ErrUserNotFound):
					slog.Warn("session user no longer exists",
						slog.Int64("user_id", session.UserID),
					)
					ClearSessionCookie(w, config)
					next.ServeHTTP(w, r)
					return
				case err != nil:
					// 再発行に失敗しても有効期限内のセッションはそのまま使う
					slog.Error("failed to refresh session",
						slog.Int64("user_id", session.UserID),
						slog.String("error", err.Error()),
					)
				default:
					SetSessionCookie(w, token, config)
					session = refreshed
				}
			}

			annotateSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SetSessionCookie はセッショントークンをHTTP Only Cookieに設定する。
func SetSessionCookie(w http.ResponseWriter, token string, config SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   int(config.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアが有効なセッションを注入した場合のみokがtrueになる。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (int64, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return 0, false
	}
	return session.UserID, true
}
