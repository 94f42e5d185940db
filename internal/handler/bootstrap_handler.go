package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/maintlog/internal/bootstrap"
)

// bootstrapTables は初期化で作成するテーブル。
var bootstrapTables = []string{"users", "maintenance_logs"}

// BootstrapServiceInterface は初期化ハンドラーが必要とするサービスインターフェース。
type BootstrapServiceInterface interface {
	Run(ctx context.Context) (*bootstrap.Result, error)
}

// BootstrapHandler はデータベース初期化のHTTPハンドラー。
type BootstrapHandler struct {
	service       BootstrapServiceInterface
	adminPassword string
}

// NewBootstrapHandler はBootstrapHandlerを生成する。
// adminPasswordは管理者を新規作成した場合のみレスポンスに含める。
func NewBootstrapHandler(service BootstrapServiceInterface, adminPassword string) *BootstrapHandler {
	return &BootstrapHandler{
		service:       service,
		adminPassword: adminPassword,
	}
}

// bootstrapResponse は初期化結果のレスポンス。
type bootstrapResponse struct {
	Message string         `json:"message"`
	Tables  []string       `json:"tables"`
	Admin   adminSeedState `json:"admin"`
}

// adminSeedState は管理者アカウントの投入結果。
type adminSeedState struct {
	Created  bool   `json:"created"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Message  string `json:"message"`
}

// InitDB はスキーマ作成と管理者アカウントの投入を行う。
// GET /api/init-db, POST /api/init-db
// 何度呼び出しても安全。
func (h *BootstrapHandler) InitDB(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Run(r.Context())
	if err != nil {
		slog.Error("database bootstrap failed", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	admin := adminSeedState{
		Created: result.AdminCreated,
		Email:   result.AdminEmail,
		Message: "Admin user already exists.",
	}
	if result.AdminCreated {
		admin.Password = h.adminPassword
		admin.Message = "Admin user created successfully. You can now login."
	}

	writeJSON(w, http.StatusOK, bootstrapResponse{
		Message: "Database initialized successfully",
		Tables:  bootstrapTables,
		Admin:   admin,
	})
}
