// Package maintenance は整備記録のCRUDと入力検証を提供する。
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/repository"
)

// ServiceConfig は整備記録サービスの設定。
type ServiceConfig struct {
	// StrictMutations がtrueの場合、存在しない記録の更新・削除をRECORD_NOT_FOUNDとする。
	// falseの場合は影響行数0でも成功として扱う。
	StrictMutations bool
}

// Service は整備記録に関するビジネスロジックを提供する。
type Service struct {
	repo     repository.MaintenanceLogRepository
	validate *validator.Validate
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(repo repository.MaintenanceLogRepository, config ServiceConfig) *Service {
	return &Service{
		repo:     repo,
		validate: newValidator(),
		config:   config,
	}
}

// List はすべての整備記録を整備日の新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.MaintenanceLog, error) {
	logs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("整備記録一覧の取得に失敗しました: %w", err)
	}
	return logs, nil
}

// Get は指定IDの整備記録を返す。存在しない場合はRECORD_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.MaintenanceLog, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("整備記録の取得に失敗しました: %w", err)
	}
	if rec == nil {
		return nil, model.NewRecordNotFoundError(id)
	}
	return rec, nil
}

// Create は入力を検証して整備記録を作成し、採番されたIDを返す。
func (s *Service) Create(ctx context.Context, in RecordInput) (int64, error) {
	if err := validateInput(s.validate, &in); err != nil {
		return 0, err
	}
	rec, err := in.toModel()
	if err != nil {
		return 0, err
	}

	id, err := s.repo.Create(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("整備記録の作成に失敗しました: %w", err)
	}

	slog.Info("maintenance record created", slog.Int64("record_id", id))
	return id, nil
}

// Update は入力を検証して指定IDの整備記録を全項目置き換えで更新する。
func (s *Service) Update(ctx context.Context, id int64, in RecordInput) error {
	if err := validateInput(s.validate, &in); err != nil {
		return err
	}
	rec, err := in.toModel()
	if err != nil {
		return err
	}
	rec.ID = id

	rows, err := s.repo.Update(ctx, rec)
	if err != nil {
		return fmt.Errorf("整備記録の更新に失敗しました: %w", err)
	}
	if rows == 0 {
		if s.config.StrictMutations {
			return model.NewRecordNotFoundError(id)
		}
		slog.Warn("maintenance record update affected no rows", slog.Int64("record_id", id))
		return nil
	}

	slog.Info("maintenance record updated", slog.Int64("record_id", id))
	return nil
}

// Delete は指定IDの整備記録を削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("整備記録の削除に失敗しました: %w", err)
	}
	if rows == 0 {
		if s.config.StrictMutations {
			return model.NewRecordNotFoundError(id)
		}
		slog.Warn("maintenance record delete affected no rows", slog.Int64("record_id", id))
		return nil
	}

	slog.Info("maintenance record deleted", slog.Int64("record_id", id))
	return nil
}
