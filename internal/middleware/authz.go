package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/maintlog/internal/model"
)

var (
	// ErrUnauthenticated はセッションが無いことを表す。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden はセッションのロールが要求ロールを満たさないことを表す。
	ErrForbidden = errors.New("forbidden")
)

// Authorize はセッションが要求ロールを満たすかどうかを判定する。
// 管理者は一般ユーザーの要求も満たす。
func Authorize(session *model.Session, required model.Role) error {
	if session == nil {
		return ErrUnauthenticated
	}
	if !session.Role.Satisfies(required) {
		return ErrForbidden
	}
	return nil
}

// NewRequireRoleMiddleware は要求ロールを満たさないリクエストを拒否するミドルウェアを返す。
// セッションが無い場合は401、ロール不足の場合は403を返す。
// SessionMiddlewareの後に配置する。
func NewRequireRoleMiddleware(required model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, _ := SessionFromContext(r.Context())

			switch err := Authorize(session, required); {
			case errors.Is(err, ErrUnauthenticated):
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			case errors.Is(err, ErrForbidden):
				slog.Warn("insufficient role",
					slog.Int64("user_id", session.UserID),
					slog.String("role", string(session.Role)),
					slog.String("required", string(required)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
