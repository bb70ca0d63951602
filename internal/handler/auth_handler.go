package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/blogmind/internal/auth"
	"github.com/hitoshi/blogmind/internal/middleware"
	"github.com/hitoshi/blogmind/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
}

// UserServiceInterface はプロフィール操作に必要なサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateAvatar(ctx context.Context, userID, avatar string) (*model.User, error)
}

// AuthHandler はユーザー登録・ログイン・プロフィールのHTTPハンドラー。
type AuthHandler struct {
	auth  AuthServiceInterface
	users UserServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, userService UserServiceInterface) *AuthHandler {
	return &AuthHandler{auth: authService, users: userService}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

// Register はユーザーを登録し、トークン付きのユーザー情報を返す。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(result.User, result.Token))
}

// Login はメールアドレスとパスワードを検証し、トークン付きのユーザー情報を返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(result.User, result.Token))
}

// Me は認証済みユーザーの情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewMissingCredentialError())
		return
	}

	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user, ""))
}

// UpdateAvatar はアバターURLを更新する。
// PATCH /api/auth/me/avatar
func (h *AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewMissingCredentialError())
		return
	}

	var req avatarRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.UpdateAvatar(r.Context(), userID, req.Avatar)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user, ""))
}
