package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/maintlog/internal/model"
)

// newChainRouter はサーバーと同じ順序でミドルウェアを組み立てたルーターを返す。
func newChainRouter(manager SessionManager, rl *RateLimiter) http.Handler {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	csrfConfig := CSRFConfig{}

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewRecoveryMiddleware())
	r.Use(NewSecurityHeadersMiddleware(false))
	r.Use(NewCORSMiddleware("http://localhost:8080"))
	r.Use(NewSessionMiddleware(manager, testSessionConfig))

	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	r.Route("/records", func(r chi.Router) {
		r.Use(rl.GeneralMiddleware())
		r.Use(NewCSRFMiddleware(csrfConfig))

		r.With(NewRequireRoleMiddleware(model.RoleUser)).Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("[]"))
		})
		r.With(NewRequireRoleMiddleware(model.RoleAdmin)).Post("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	})

	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	return r
}

func newChainFixture(t *testing.T) http.Handler {
	t.Helper()

	manager := &mockSessionManager{
		parseSessionFn: func(token string) (*model.Session, error) {
			switch token {
			case "admin-token":
				return freshSession(1, model.RoleAdmin), nil
			case "user-token":
				return freshSession(2, model.RoleUser), nil
			}
			return nil, ErrUnauthenticated
		},
	}

	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    100,
		LoginRate:       1,
		LoginBurst:      10,
		CleanupInterval: time.Minute,
	}, nil)
	t.Cleanup(rl.Stop)

	return newChainRouter(manager, rl)
}

func TestMiddlewareChain_NoSession_Returns401(t *testing.T) {
	router := newChainFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestMiddlewareChain_UserSession_CanRead(t *testing.T) {
	router := newChainFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "user-token"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := resp.Header.Get("Content-Security-Policy"); got == "" {
		t.Error("expected Content-Security-Policy header")
	}
}

func TestMiddlewareChain_UserSession_CannotCreate(t *testing.T) {
	router := newChainFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/records", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "user-token"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
	req.Header.Set(CSRFHeaderName, "tok")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeForbidden)
	}
}

func TestMiddlewareChain_AdminSession_CreateRequiresCSRF(t *testing.T) {
	router := newChainFixture(t)

	// CSRFトークン無しは403
	req := httptest.NewRequest(http.MethodPost, "/records", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "admin-token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("without csrf: status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}

	// トークン取得エンドポイントで得たトークンを使えば通る
	tokenReq := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	tokenW := httptest.NewRecorder()
	router.ServeHTTP(tokenW, tokenReq)

	var tokenBody struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(tokenW.Result().Body).Decode(&tokenBody); err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/records", nil)
	req2.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "admin-token"})
	for _, c := range tokenW.Result().Cookies() {
		req2.AddCookie(c)
	}
	req2.Header.Set(CSRFHeaderName, tokenBody.Token)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)

	if w2.Result().StatusCode != http.StatusCreated {
		t.Errorf("with csrf: status = %d, want %d", w2.Result().StatusCode, http.StatusCreated)
	}
}

func TestMiddlewareChain_Panic_RecoversWithJSON500(t *testing.T) {
	router := newChainFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}
