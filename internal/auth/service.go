// Package auth はパスワード認証とベアラートークンによる本人確認を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/blogmind/internal/model"
	"github.com/hitoshi/blogmind/internal/repository"
)

const (
	// minPasswordLength はパスワードの最小文字数。
	minPasswordLength = 6
	// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
	maxPasswordBytes = 72
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	Secret     []byte        // トークン署名鍵
	TokenTTL   time.Duration // トークン有効期間
	BcryptCost int
}

// Result は登録・ログイン成功時の結果。
type Result struct {
	User  *model.User
	Token string
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	cost     int
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, config ServiceConfig) *Service {
	cost := config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	cost = min(max(cost, bcrypt.MinCost), bcrypt.MaxCost)
	return &Service{
		userRepo: userRepo,
		tokens:   NewTokenIssuer(config.Secret, config.TokenTTL),
		cost:     cost,
	}
}

// Register は新規ユーザーを作成し、トークンを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewValidationError("Name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, model.NewValidationError(fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return s.result(user)
}

// Login はメールアドレスとパスワードを検証し、トークンを発行する。
// ユーザー不在とパスワード不一致は区別せずINVALID_LOGINを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidLoginError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidLoginError()
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return s.result(user)
}

// IssueToken はユーザーIDを持つ署名済みトークンを発行する。
func (s *Service) IssueToken(userID string) (string, error) {
	return s.tokens.Issue(userID)
}

// ResolveIdentity はベアラートークンをユーザーに解決する。
// 返却するUserのPasswordHashは空にする。
func (s *Service) ResolveIdentity(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, model.NewMissingCredentialError()
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		slog.Debug("token verification failed", slog.String("error", err.Error()))
		return nil, model.NewInvalidCredentialError()
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, model.NewInvalidCredentialError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialError()
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *Service) result(user *model.User) (*Result, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return &Result{User: user, Token: token}, nil
}

// normalizeEmail はメールアドレスを検証し、小文字化して返す。
func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", model.NewValidationError("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewValidationError("Email is invalid")
	}
	return strings.ToLower(email), nil
}
