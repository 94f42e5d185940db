// Package bootstrap はスキーマ作成と初期管理者アカウントの投入を提供する。
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/maintlog/internal/auth"
	"github.com/hitoshi/maintlog/internal/config"
	"github.com/hitoshi/maintlog/internal/database"
	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/repository"
)

const adminName = "Administrator"

// Pinger はデータベースへの疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MigrateFunc はスキーマを作成する関数。
type MigrateFunc func(databaseURL string) error

// Config は初期化サービスの設定。
type Config struct {
	Database      config.Database
	AdminEmail    string
	AdminPassword string
}

// Result は初期化の結果を表す。
type Result struct {
	AdminEmail   string
	AdminCreated bool
}

// Service はデータベース初期化のビジネスロジックを提供する。
type Service struct {
	config  Config
	db      Pinger
	users   repository.UserRepository
	migrate MigrateFunc
}

// NewService はServiceを生成する。
func NewService(config Config, db Pinger, users repository.UserRepository) *Service {
	return &Service{
		config:  config,
		db:      db,
		users:   users,
		migrate: database.RunMigrations,
	}
}

// WithMigrateFunc はスキーマ作成関数を差し替える。
func (s *Service) WithMigrateFunc(fn MigrateFunc) *Service {
	s.migrate = fn
	return s
}

// Run は接続設定の確認、スキーマ作成、管理者アカウントの投入を順に行う。
// 何度呼び出しても管理者アカウントは1つしか作成されない。
// 失敗した場合は原因を分類したAPIErrorを返す。
func (s *Service) Run(ctx context.Context) (*Result, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	created, err := s.EnsureAdminSeed(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		AdminEmail:   s.config.AdminEmail,
		AdminCreated: created,
	}, nil
}

// EnsureSchema はテーブルが存在しなければ作成する。
func (s *Service) EnsureSchema(ctx context.Context) error {
	if missing := s.config.Database.MissingParams(); len(missing) > 0 {
		slog.Warn("database configuration is incomplete", slog.Any("missing", missing))
		return model.NewConfigMissingError(missing)
	}

	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}

	if err := s.migrate(s.config.Database.URL()); err != nil {
		return classify("migrate", err)
	}

	slog.Info("database schema is ready")
	return nil
}

// EnsureAdminSeed は管理者のメールアドレスのユーザーが存在しなければ作成する。
// 作成した場合はtrueを返す。
func (s *Service) EnsureAdminSeed(ctx context.Context) (bool, error) {
	hash, err := auth.HashPassword(s.config.AdminPassword)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &model.User{
		Email:        s.config.AdminEmail,
		Name:         adminName,
		PasswordHash: &hash,
		Role:         model.RoleAdmin,
	}
	created, err := s.users.CreateIfEmailAbsent(ctx, admin)
	if err != nil {
		return false, classify("seed admin", err)
	}

	if created {
		slog.Info("admin account created", slog.Int64("user_id", admin.ID))
	} else {
		slog.Info("admin account already exists")
	}
	return created, nil
}

// classify はDBエラーを原因カテゴリのAPIErrorに変換する。
// 元のエラーはログにのみ記録する。
func classify(step string, err error) error {
	kind := database.ClassifyError(err)
	slog.Error("database bootstrap failed",
		slog.String("step", step),
		slog.String("cause", kind.String()),
		slog.String("error", err.Error()),
	)

	switch kind {
	case database.FailureConnectionRefused:
		return model.NewConnectionRefusedError()
	case database.FailureAccessDenied:
		return model.NewAccessDeniedError()
	case database.FailureDatabaseMissing:
		return model.NewDatabaseNotFoundError()
	default:
		return model.NewBootstrapFailedError()
	}
}
