package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/maintlog/internal/model"
)

const userColumns = `id, email, name, password_hash, role, google_id, created_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByEmailOrGoogleID はメールアドレスまたはGoogleのsubject IDでユーザーを検索する。
func (r *PostgresUserRepo) FindByEmailOrGoogleID(ctx context.Context, email, googleID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT `+userColumns+` FROM users
		 WHERE email = $1 OR google_id = $2
		 ORDER BY CASE WHEN email = $1 THEN 0 ELSE 1 END
		 LIMIT 1`,
		email, googleID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email or google id: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (email, name, password_hash, role, google_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		user.Email, user.Name, user.PasswordHash, user.Role, user.GoogleID,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CreateIfEmailAbsent は同じメールアドレスのユーザーが存在しない場合のみ作成する。
// 一意制約の競合は作成しなかったものとして扱うため、同時に呼ばれても重複しない。
func (r *PostgresUserRepo) CreateIfEmailAbsent(ctx context.Context, user *model.User) (bool, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (email, name, password_hash, role, google_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, created_at`,
		user.Email, user.Name, user.PasswordHash, user.Role, user.GoogleID,
	).Scan(&user.ID, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert user if absent: %w", err)
	}
	return true, nil
}

// AttachGoogleID はGoogleのsubject IDが未登録のユーザーに紐付ける。
func (r *PostgresUserRepo) AttachGoogleID(ctx context.Context, id int64, googleID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET google_id = $2 WHERE id = $1 AND google_id IS NULL`,
		id, googleID,
	)
	if err != nil {
		return fmt.Errorf("failed to attach google id: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
