package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/maintlog/internal/model"
)

const maintenanceLogColumns = `id, car_make, car_model, service_type, service_date,
	mileage, cost, notes, created_at, updated_at`

// PostgresMaintenanceLogRepo はPostgreSQLを使用した整備記録リポジトリ。
type PostgresMaintenanceLogRepo struct {
	db *sqlx.DB
}

// NewPostgresMaintenanceLogRepo はPostgresMaintenanceLogRepoを生成する。
func NewPostgresMaintenanceLogRepo(db *sqlx.DB) *PostgresMaintenanceLogRepo {
	return &PostgresMaintenanceLogRepo{db: db}
}

// List はすべての整備記録を返す。
func (r *PostgresMaintenanceLogRepo) List(ctx context.Context) ([]*model.MaintenanceLog, error) {
	logs := []*model.MaintenanceLog{}
	err := r.db.SelectContext(ctx, &logs,
		`SELECT `+maintenanceLogColumns+`
		 FROM maintenance_logs
		 ORDER BY service_date DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("整備記録一覧の取得に失敗しました: %w", err)
	}
	return logs, nil
}

// FindByID は指定IDの整備記録を取得する。見つからない場合はnilを返す。
func (r *PostgresMaintenanceLogRepo) FindByID(ctx context.Context, id int64) (*model.MaintenanceLog, error) {
	rec := &model.MaintenanceLog{}
	err := r.db.GetContext(ctx, rec,
		`SELECT `+maintenanceLogColumns+` FROM maintenance_logs WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("整備記録の取得に失敗しました: %w", err)
	}
	return rec, nil
}

// Create は整備記録を作成し、採番されたIDを返す。
func (r *PostgresMaintenanceLogRepo) Create(ctx context.Context, rec *model.MaintenanceLog) (int64, error) {
	query, args, err := r.db.BindNamed(
		`INSERT INTO maintenance_logs (car_make, car_model, service_type, service_date, mileage, cost, notes)
		 VALUES (:car_make, :car_model, :service_type, :service_date, :mileage, :cost, :notes)
		 RETURNING id`,
		rec,
	)
	if err != nil {
		return 0, fmt.Errorf("整備記録の作成クエリの構築に失敗しました: %w", err)
	}

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("整備記録の作成に失敗しました: %w", err)
	}
	return id, nil
}

// Update は指定IDの整備記録を全項目置き換えで更新し、影響行数を返す。
// 任意項目がnilの場合はNULLで上書きする。
func (r *PostgresMaintenanceLogRepo) Update(ctx context.Context, rec *model.MaintenanceLog) (int64, error) {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE maintenance_logs SET
		    car_make = :car_make, car_model = :car_model, service_type = :service_type,
		    service_date = :service_date, mileage = :mileage, cost = :cost, notes = :notes,
		    updated_at = NOW()
		 WHERE id = :id`,
		rec,
	)
	if err != nil {
		return 0, fmt.Errorf("整備記録の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Delete は指定IDの整備記録を削除し、影響行数を返す。
func (r *PostgresMaintenanceLogRepo) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM maintenance_logs WHERE id = $1`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("整備記録の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ MaintenanceLogRepository = (*PostgresMaintenanceLogRepo)(nil)
