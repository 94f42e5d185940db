package model

import "time"

// ログイン経路
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Session はユーザーのログインセッションを表す。
// サーバー側には保存せず、署名付きトークンとしてCookieで保持する。
type Session struct {
	UserID    int64
	Email     string
	Name      string
	Role      Role
	Provider  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NeedsRefresh はトークン発行からintervalが経過しているかどうかを返す。
// intervalが0以下の場合は常にfalseを返す。
func (s *Session) NeedsRefresh(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	return now.Sub(s.IssuedAt) >= interval
}
