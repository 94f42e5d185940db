// Package auth はパスワード認証、Google OAuth認証、セッショントークン管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/maintlog/internal/model"
	"github.com/hitoshi/maintlog/internal/repository"
)

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが正しくないことを表す。
	// 未登録とパスワード不一致を呼び出し元に区別させない。
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound はセッションのユーザーがストアに存在しないことを表す。
	ErrUserNotFound = errors.New("user not found")

	// ErrGoogleNotConfigured はGoogleログインが設定されていないことを表す。
	ErrGoogleNotConfigured = errors.New("google login is not configured")
)

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	userRepo repository.UserRepository
	tokens   *TokenManager
}

// NewService はServiceを生成する。
// Googleログインを使わない場合、oauthにはnilを指定する。
func NewService(oauth OAuthProvider, userRepo repository.UserRepository, tokens *TokenManager) *Service {
	return &Service{
		oauth:    oauth,
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// GoogleEnabled はGoogleログインが利用可能かどうかを返す。
func (s *Service) GoogleEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) (string, error) {
	if s.oauth == nil {
		return "", ErrGoogleNotConfigured
	}
	return s.oauth.GetLoginURL(state), nil
}

// LoginWithPassword はメールアドレスとパスワードで認証し、セッショントークンを発行する。
// 未登録、パスワード未設定（Google専用アカウント）、不一致はいずれもErrInvalidCredentialsを返す。
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) (string, *model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		burnPasswordCheck(password)
		slog.Info("password login rejected", slog.String("reason", "unknown email"))
		return "", nil, ErrInvalidCredentials
	}
	if !user.HasPassword() {
		burnPasswordCheck(password)
		slog.Warn("password login rejected",
			slog.String("reason", "account has no password"),
			slog.Int64("user_id", user.ID),
		)
		return "", nil, ErrInvalidCredentials
	}
	if !CheckPassword(*user.PasswordHash, password) {
		slog.Info("password login rejected",
			slog.String("reason", "password mismatch"),
			slog.Int64("user_id", user.ID),
		)
		return "", nil, ErrInvalidCredentials
	}

	token, session, err := s.tokens.Issue(user, model.ProviderPassword)
	if err != nil {
		return "", nil, err
	}

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("provider", model.ProviderPassword),
		slog.String("role", string(user.Role)),
	)
	return token, session, nil
}

// HandleCallback はOAuthコールバックを処理し、セッショントークンを発行する。
// 未登録のメールアドレスは一般ユーザーとして自動作成し、
// Google IDが未登録の既存ユーザーには紐付ける。ロールは常にストアの値を使う。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, *model.Session, error) {
	if s.oauth == nil {
		return "", nil, ErrGoogleNotConfigured
	}

	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.findOrCreateFederatedUser(ctx, info)
	if err != nil {
		return "", nil, err
	}

	token, session, err := s.tokens.Issue(user, info.Provider)
	if err != nil {
		return "", nil, err
	}

	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("provider", info.Provider),
		slog.String("role", string(user.Role)),
	)
	return token, session, nil
}

// findOrCreateFederatedUser はプロバイダーが検証したユーザー情報に対応するユーザーを返す。
func (s *Service) findOrCreateFederatedUser(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	user, err := s.userRepo.FindByEmailOrGoogleID(ctx, info.Email, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		name := info.Name
		if name == "" {
			name = info.Email
		}
		googleID := info.ProviderUserID
		newUser := &model.User{
			Email:    info.Email,
			Name:     name,
			Role:     model.RoleUser,
			GoogleID: &googleID,
		}
		if err := s.userRepo.Create(ctx, newUser); err != nil {
			// 同じメールアドレスで同時にログインした場合は先に作成されたユーザーを使う
			existing, findErr := s.userRepo.FindByEmailOrGoogleID(ctx, info.Email, info.ProviderUserID)
			if findErr != nil || existing == nil {
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
			return existing, nil
		}
		slog.Info("new user created",
			slog.Int64("user_id", newUser.ID),
			slog.String("provider", info.Provider),
		)
		return newUser, nil
	}

	if user.GoogleID == nil || *user.GoogleID == "" {
		if err := s.userRepo.AttachGoogleID(ctx, user.ID, info.ProviderUserID); err != nil {
			return nil, fmt.Errorf("failed to attach google id: %w", err)
		}
		googleID := info.ProviderUserID
		user.GoogleID = &googleID
		slog.Info("google account linked", slog.Int64("user_id", user.ID))
	}

	return user, nil
}

// ParseSession はセッショントークンを検証し、セッションを返す。
func (s *Service) ParseSession(token string) (*model.Session, error) {
	return s.tokens.Parse(token)
}

// RefreshSession はストアから最新のユーザー情報を読み直し、トークンを再発行する。
// ログイン経路に関わらず適用し、ロール変更を再ログインなしで反映する。
func (s *Service) RefreshSession(ctx context.Context, session *model.Session) (string, *model.Session, error) {
	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", nil, ErrUserNotFound
	}

	if user.Role != session.Role {
		slog.Info("session role changed",
			slog.Int64("user_id", user.ID),
			slog.String("from", string(session.Role)),
			slog.String("to", string(user.Role)),
		)
	}

	return s.tokens.Issue(user, session.Provider)
}
