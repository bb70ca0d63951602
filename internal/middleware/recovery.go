package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はハンドラー内のpanicを回収して500を返すミドルウェアを返す。
// 応答の書き込みが始まった後のpanicはログのみ残し、ボディは追記しない。
// http.ErrAbortHandlerは接続を切るためにそのまま再送出する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				args := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				}
				if userID := recoveredUserID(r); userID != "" {
					args = append(args, slog.String("user_id", userID))
				}
				logger.ErrorContext(r.Context(), "panic recovered", args...)

				if responseStarted(w) {
					return
				}
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// responseStarted はLoggingミドルウェアの記録からヘッダー送信済みかを判定する。
func responseStarted(w http.ResponseWriter) bool {
	sr, ok := w.(*statusRecorder)
	return ok && sr.written
}

// recoveredUserID はpanic時点で判明している利用者IDを返す。
// 認証はRecoveryより内側で行われるため、Loggingが共有するrequestInfoも参照する。
func recoveredUserID(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return userID
	}
	if info, ok := r.Context().Value(requestInfoContextKey).(*requestInfo); ok {
		return info.userID
	}
	return ""
}
