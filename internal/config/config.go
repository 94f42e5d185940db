package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	Database Database `envPrefix:"DB_"`

	// OAuth（未設定の場合はGoogleログインを無効化する）
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// Session
	SessionSecret          string        `env:"SESSION_SECRET,notEmpty"`
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	SessionRefreshInterval time.Duration `env:"SESSION_REFRESH_INTERVAL" envDefault:"5m"`

	// Bootstrap
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@admin.com"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin"`

	// Records
	StrictMutations bool `env:"STRICT_MUTATIONS" envDefault:"false"`

	// Rate Limit（req/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitLogin   int `env:"RATE_LIMIT_LOGIN" envDefault:"10"`

	// Logging
	Log Log `envPrefix:"LOG_"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`

	// リバースプロキシ配下で接続元IPをX-Forwarded-Forから取得する
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`
}

// Database はデータベース接続パラメータを保持する。
// 接続パラメータが欠けていてもサーバーは起動し、
// 初期化エンドポイントが不足パラメータを報告する。
type Database struct {
	Host         string `env:"HOST"`
	Port         int    `env:"PORT" envDefault:"5432"`
	User         string `env:"USER"`
	Password     string `env:"PASSWORD"`
	Name         string `env:"NAME"`
	SSL          bool   `env:"SSL" envDefault:"false"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
}

// Log はログ出力先の設定を保持する。
// Fileが空の場合は標準出力のみに出力する。
type Log struct {
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"7"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"14"`
}

// MissingError は必須設定が不足していることを表す。
type MissingError struct {
	Missing []string
}

// Error はerrorインターフェースを実装する。
func (e *MissingError) Error() string {
	return fmt.Sprintf("required environment variables are not set: %v", e.Missing)
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は不足している変数名の一覧を含むMissingErrorを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		if missing := missingKeys(err); len(missing) > 0 {
			return nil, &MissingError{Missing: missing}
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/auth/google/callback"
	}
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return cfg, nil
}

// GoogleEnabled はGoogleログインが設定済みかどうかを返す。
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// MissingParams はDB接続に必要で未設定のパラメータ名を返す。
func (d Database) MissingParams() []string {
	var missing []string
	if d.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if d.User == "" {
		missing = append(missing, "DB_USER")
	}
	if d.Password == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if d.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	return missing
}

// URL はPostgreSQLの接続URLを組み立てる。
func (d Database) URL() string {
	sslMode := "disable"
	if d.SSL {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// missingKeys はenvのパースエラーから未設定のキー名を抽出する。
func missingKeys(err error) []string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return nil
	}

	var missing []string
	for _, e := range agg.Errors {
		var empty env.EmptyEnvVarError
		var notSet env.EnvVarIsNotSetError
		switch {
		case errors.As(e, &empty):
			missing = append(missing, empty.Key)
		case errors.As(e, &notSet):
			missing = append(missing, notSet.Key)
		}
	}
	return missing
}
