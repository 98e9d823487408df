package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

// Profile は外部IdPが検証済みのユーザー情報を表す。
// IdPハンドシェイク成功後はそのまま信頼し、追加検証は行わない。
// ログイン試行ごとに消費され、永続化はしない。
type Profile struct {
	Email string
	Name  string
}

// OAuthProvider は外部IdPとの認証フローのインターフェース。
type OAuthProvider interface {
	// AuthCodeURL は認可コード取得用の認証URLを生成する。
	AuthCodeURL(state string) string
	// ExchangeCode は認可コードを検証済みプロフィールに交換する。
	ExchangeCode(ctx context.Context, code string) (*Profile, error)
}

// TokenIssuer はトークン発行のインターフェース。
// TokenServiceの部分集合として定義する。
type TokenIssuer interface {
	Issue(user *model.User) (string, error)
}

// ManualRegistration はパスワード付きの手動登録リクエスト。
type ManualRegistration struct {
	Email    string
	Password string
	Name     string
	Age      int
	Role     model.Role // 空の場合はRoleUser
}

// DelegatedRegistration は外部IdP由来のパスワードなし登録リクエスト。
// この経路で作成されたアカウントはパスワードログインできない。
type DelegatedRegistration struct {
	Email string
	Name  string
	Age   int
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	oauth  OAuthProvider // Googleログイン無効時はnil
}

// NewService はServiceを生成する。
// oauthはGoogleログインが無効の場合nilを許容する。
func NewService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, oauth OAuthProvider) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		oauth:  oauth,
	}
}

// RegisterManual はパスワード付きユーザーを作成し、トークンを発行する。
// email重複の場合はConflictエラーを返す。
func (s *Service) RegisterManual(ctx context.Context, in ManualRegistration) (*model.User, string, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		Name:         in.Name,
		Age:          in.Age,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", model.NewEmailConflictError()
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return user, token, nil
}

// RegisterDelegated はパスワードなしユーザーを作成し、トークンを発行する。
// email重複の場合はConflictエラーを返す（find-or-createが必要な場合はExchangeProfileを使用する）。
func (s *Service) RegisterDelegated(ctx context.Context, in DelegatedRegistration) (*model.User, string, error) {
	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     in.Email,
		Name:      in.Name,
		Age:       in.Age,
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", model.NewEmailConflictError()
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("delegated user registered", slog.String("user_id", user.ID))

	return user, token, nil
}

// Login はメールアドレスとパスワードを照合し、トークンを発行する。
// ユーザー列挙攻撃を防ぐため、email未登録・パスワード不一致・
// パスワードなしアカウント（外部IdP専用）はすべて同一のエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil || !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return user, token, nil
}

// AuthCodeURL は外部IdPの認証URLを生成する。
func (s *Service) AuthCodeURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.AuthCodeURL(state)
}

// HandleCallback はOAuthコールバックを処理し、トークンを発行する。
// 認可コードを検証済みプロフィールに交換し、ローカルアカウントに解決する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.User, string, error) {
	if s.oauth == nil {
		return nil, "", fmt.Errorf("oauth provider is not configured")
	}

	profile, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	return s.ExchangeProfile(ctx, profile)
}

// ExchangeProfile は検証済みプロフィールをローカルアカウントに解決し、トークンを発行する。
// 既存アカウントがあればそのまま使用する（IdP側の表示名変更は無視する）。
// 未登録の場合はロールuser・パスワードなしでアカウントを作成する。
// find-then-createはストアに対してアトミックではないため、作成がユニーク制約に
// 衝突した場合は「先に誰かが作成した」とみなして1回だけ再検索する。
func (s *Service) ExchangeProfile(ctx context.Context, profile *Profile) (*model.User, string, error) {
	user, err := s.users.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		now := time.Now()
		newUser := &model.User{
			ID:        uuid.New().String(),
			Email:     profile.Email,
			Name:      profile.Name,
			Role:      model.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.users.Create(ctx, newUser)
		switch {
		case err == nil:
			user = newUser
			slog.Info("new user created via oauth", slog.String("user_id", user.ID))
		case errors.Is(err, repository.ErrDuplicateEmail):
			// 並行する初回ログインが先にアカウントを作成した
			user, err = s.users.FindByEmail(ctx, profile.Email)
			if err != nil {
				return nil, "", fmt.Errorf("failed to refetch user after conflict: %w", err)
			}
			if user == nil {
				return nil, "", fmt.Errorf("user disappeared after duplicate email conflict")
			}
		default:
			return nil, "", fmt.Errorf("failed to create user: %w", err)
		}
	} else {
		slog.Info("existing user logged in via oauth", slog.String("user_id", user.ID))
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}
