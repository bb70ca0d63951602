// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogmind/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

const (
	userContextKey    = contextKey("user")
	authErrContextKey = contextKey("auth_error")
)

// IdentityResolver はベアラートークンをユーザーに解決する。
// auth.Serviceが実装する。
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを解決し、
// 成功した場合はユーザーをコンテキストに注入するミドルウェアを返す。
// トークンがない・無効な場合もリクエストは拒否せず、匿名として次へ渡す。
// 認証必須のルートにはRequireAuthを併用する。
func NewAuthMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := resolver.ResolveIdentity(r.Context(), token)
			if err != nil {
				ctx := context.WithValue(r.Context(), authErrContextKey, err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// RequireAuth は認証済みユーザーがいない場合に401を返すミドルウェア。
// NewAuthMiddlewareの後に配置する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		err, _ := r.Context().Value(authErrContextKey).(error)
		if err == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingCredentialError())
			return
		}

		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
			return
		}
		slog.Error("本人確認に失敗しました",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
	})
}

// BearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
// Bearerスキームでない場合はfalseを返す。
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// リクエストログのuser_idにも反映される。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}

// ContextWithUserID はユーザーIDのみを持つユーザーをコンテキストに注入する。
// テストで使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithUser(ctx, &model.User{ID: userID})
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext は認証済みユーザーのIDを返す。匿名の場合は空文字列を返す。
func UserIDFromContext(ctx context.Context) string {
	if user, ok := UserFromContext(ctx); ok {
		return user.ID
	}
	return ""
}
