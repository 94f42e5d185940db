package middleware

import (
	"net/http"
	"strings"
)

// contentSecurityPolicy は画面が同一オリジンのスクリプトとスタイルのみを読み込む前提のポリシー。
// Googleログインのフォーム遷移先のみ外部を許可する。
const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:; form-action 'self' https://accounts.google.com; frame-ancestors 'none'"

// hstsMaxAge はStrict-Transport-Securityの有効期間（1年）。
const hstsMaxAge = "max-age=31536000; includeSubDomains"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// httpsOnlyがtrueの場合（Secure Cookie運用時）はHSTSヘッダーも付与する。
// セッションを扱う画面とAPIの応答はキャッシュさせない。
func NewSecurityHeadersMiddleware(httpsOnly bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Content-Security-Policy", contentSecurityPolicy)
			if httpsOnly {
				h.Set("Strict-Transport-Security", hstsMaxAge)
			}
			if !isStaticAsset(r.URL.Path) {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isStaticAsset(path string) bool {
	return strings.HasPrefix(path, "/static/")
}
