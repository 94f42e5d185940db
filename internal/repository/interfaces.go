// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/maintlog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByEmailOrGoogleID はメールアドレスまたはGoogleのsubject IDでユーザーを検索する。
	// 両方に一致するユーザーが異なる場合はメールアドレスの一致を優先する。
	// 見つからない場合はnilを返す。
	FindByEmailOrGoogleID(ctx context.Context, email, googleID string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDと作成日時をuserに設定する。
	Create(ctx context.Context, user *model.User) error

	// CreateIfEmailAbsent は同じメールアドレスのユーザーが存在しない場合のみ作成する。
	// 作成した場合はtrueを返し、IDと作成日時をuserに設定する。
	CreateIfEmailAbsent(ctx context.Context, user *model.User) (bool, error)

	// AttachGoogleID はGoogleのsubject IDが未登録のユーザーに紐付ける。
	// すでに紐付け済みの場合は何もしない。
	AttachGoogleID(ctx context.Context, id int64, googleID string) error
}

// MaintenanceLogRepository は整備記録の永続化インターフェース。
type MaintenanceLogRepository interface {
	// List はすべての整備記録を整備日の降順、同日内は作成日時の降順で返す。
	List(ctx context.Context) ([]*model.MaintenanceLog, error)

	// FindByID は指定IDの整備記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.MaintenanceLog, error)

	// Create は整備記録を作成し、採番されたIDを返す。
	Create(ctx context.Context, rec *model.MaintenanceLog) (int64, error)

	// Update は指定IDの整備記録を全項目置き換えで更新し、影響行数を返す。
	Update(ctx context.Context, rec *model.MaintenanceLog) (int64, error)

	// Delete は指定IDの整備記録を削除し、影響行数を返す。
	Delete(ctx context.Context, id int64) (int64, error)
}
