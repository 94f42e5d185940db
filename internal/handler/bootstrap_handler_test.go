package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/maintlog/internal/bootstrap"
	"github.com/hitoshi/maintlog/internal/model"
)

type mockBootstrapService struct {
	runFn func(ctx context.Context) (*bootstrap.Result, error)
	calls int
}

func (m *mockBootstrapService) Run(ctx context.Context) (*bootstrap.Result, error) {
	m.calls++
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return &bootstrap.Result{AdminEmail: "admin@admin.com"}, nil
}

var _ BootstrapServiceInterface = (*mockBootstrapService)(nil)

func decodeBootstrapResponse(t *testing.T, w *httptest.ResponseRecorder) bootstrapResponse {
	t.Helper()
	var body bootstrapResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestBootstrapHandler_InitDB_AdminCreated_ShowsPassword(t *testing.T) {
	svc := &mockBootstrapService{
		runFn: func(ctx context.Context) (*bootstrap.Result, error) {
			return &bootstrap.Result{AdminEmail: "admin@admin.com", AdminCreated: true}, nil
		},
	}
	h := NewBootstrapHandler(svc, "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/init-db", nil)
	w := httptest.NewRecorder()

	h.InitDB(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBootstrapResponse(t, w)
	if !body.Admin.Created || body.Admin.Email != "admin@admin.com" || body.Admin.Password != "admin" {
		t.Errorf("admin = %+v, want created admin with password", body.Admin)
	}
	if len(body.Tables) != 2 {
		t.Errorf("tables = %v, want users and maintenance_logs", body.Tables)
	}
}

func TestBootstrapHandler_InitDB_AdminExists_HidesPassword(t *testing.T) {
	h := NewBootstrapHandler(&mockBootstrapService{}, "admin")

	req := httptest.NewRequest(http.MethodGet, "/api/init-db", nil)
	w := httptest.NewRecorder()

	h.InitDB(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Admin map[string]any `json:"admin"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Admin["created"] != false {
		t.Errorf("created = %v, want false", body.Admin["created"])
	}
	if _, ok := body.Admin["password"]; ok {
		t.Error("password must not be returned when the admin already exists")
	}
}

func TestBootstrapHandler_InitDB_RepeatedCallsAreSafe(t *testing.T) {
	created := true
	svc := &mockBootstrapService{
		runFn: func(ctx context.Context) (*bootstrap.Result, error) {
			r := &bootstrap.Result{AdminEmail: "admin@admin.com", AdminCreated: created}
			created = false
			return r, nil
		},
	}
	h := NewBootstrapHandler(svc, "admin")

	for i, wantCreated := range []bool{true, false, false} {
		w := httptest.NewRecorder()
		h.InitDB(w, httptest.NewRequest(http.MethodGet, "/api/init-db", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
		body := decodeBootstrapResponse(t, w)
		if body.Admin.Created != wantCreated {
			t.Errorf("call %d: created = %v, want %v", i, body.Admin.Created, wantCreated)
		}
		if !wantCreated && body.Admin.Password != "" {
			t.Errorf("call %d: password should be hidden when the admin already exists", i)
		}
	}
}

func TestBootstrapHandler_InitDB_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing config", model.NewConfigMissingError([]string{"DB_HOST", "DB_NAME"}), http.StatusBadRequest, model.ErrCodeConfigMissing},
		{"connection refused", model.NewConnectionRefusedError(), http.StatusInternalServerError, model.ErrCodeConnectionRefused},
		{"access denied", model.NewAccessDeniedError(), http.StatusInternalServerError, model.ErrCodeAccessDenied},
		{"database not found", model.NewDatabaseNotFoundError(), http.StatusInternalServerError, model.ErrCodeDatabaseNotFound},
		{"other", model.NewBootstrapFailedError(), http.StatusInternalServerError, model.ErrCodeBootstrapFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBootstrapService{
				runFn: func(ctx context.Context) (*bootstrap.Result, error) {
					return nil, tt.err
				},
			}
			h := NewBootstrapHandler(svc, "admin")

			w := httptest.NewRecorder()
			h.InitDB(w, httptest.NewRequest(http.MethodGet, "/api/init-db", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if resp := parseAPIErrorResponse(t, w); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestBootstrapHandler_InitDB_MissingConfigListsVariables(t *testing.T) {
	svc := &mockBootstrapService{
		runFn: func(ctx context.Context) (*bootstrap.Result, error) {
			return nil, model.NewConfigMissingError([]string{"DB_HOST", "DB_PASSWORD"})
		},
	}
	h := NewBootstrapHandler(svc, "admin")

	w := httptest.NewRecorder()
	h.InitDB(w, httptest.NewRequest(http.MethodGet, "/api/init-db", nil))

	resp := parseAPIErrorResponse(t, w)
	if len(resp.Fields) != 2 || resp.Fields[0] != "DB_HOST" || resp.Fields[1] != "DB_PASSWORD" {
		t.Errorf("fields = %v, want [DB_HOST DB_PASSWORD]", resp.Fields)
	}
}
