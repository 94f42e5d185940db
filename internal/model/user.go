// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleAdmin は記録の作成・更新・削除が可能な管理者ロール。
	RoleAdmin Role = "admin"
	// RoleUser は記録の閲覧のみ可能な一般ユーザーロール。
	RoleUser Role = "user"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Satisfies はこのロールがrequiredの権限を満たすかどうかを返す。
// 管理者はすべてのロールの権限を満たす。
func (r Role) Satisfies(required Role) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser:
		return required == RoleUser
	default:
		return false
	}
}

// User はサービス利用ユーザーを表す。
// PasswordHashがnilのユーザーはGoogleログイン専用アカウント。
type User struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash *string   `db:"password_hash"`
	Role         Role      `db:"role"`
	GoogleID     *string   `db:"google_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// HasPassword はパスワードログインが可能なアカウントかどうかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
