// Package user はユーザープロフィールのドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/blogmind/internal/model"
	"github.com/hitoshi/blogmind/internal/repository"
	"github.com/hitoshi/blogmind/internal/security"
)

// Service はユーザープロフィールのサービス層。
// 登録後に変更できるのはアバターのみ。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// GetProfile は指定ユーザーのプロフィールを返す。PasswordHashは空にする。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateAvatar はアバターを更新し、更新後のプロフィールを返す。
// 空文字列はアバターの削除を意味する。
func (s *Service) UpdateAvatar(ctx context.Context, userID, avatar string) (*model.User, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar != "" && !security.IsWebURL(avatar) {
		return nil, model.NewValidationError("Avatar must be an http(s) URL")
	}

	if err := s.userRepo.UpdateAvatar(ctx, userID, avatar); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("アバターの更新に失敗しました: %w", err)
	}

	slog.Info("アバターを更新しました", slog.String("user_id", userID))
	return s.GetProfile(ctx, userID)
}
