package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func panicHandler(v any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(v)
	})
}

func TestRecoveryMiddleware_ReturnsUnifiedError(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRecoveryMiddleware(newBufferLogger(&buf))(panicHandler("boom"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/blogs", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if code := decodeErrorCode(t, w); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", code)
	}

	entry := decodeLogEntry(t, &buf)
	if entry["msg"] != "panic recovered" || entry["level"] != "ERROR" {
		t.Errorf("log entry = %v", entry)
	}
	if entry["panic"] != "boom" || entry["path"] != "/api/blogs" {
		t.Errorf("log entry = %v", entry)
	}
	if stack, _ := entry["stack"].(string); stack == "" {
		t.Error("stack should be logged")
	}
}

func TestRecoveryMiddleware_LogsUserResolvedInside(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(ContextWithUserID(r.Context(), "user-42"))
		panic("after auth")
	})
	handler := NewLoggingMiddleware(logger, nil)(NewRecoveryMiddleware(logger)(inner))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/blogs/p1", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	firstLine, _, _ := strings.Cut(buf.String(), "\n")
	if !strings.Contains(firstLine, `"msg":"panic recovered"`) || !strings.Contains(firstLine, `"user_id":"user-42"`) {
		t.Errorf("panic log = %s", firstLine)
	}
}

func TestRecoveryMiddleware_ResponseAlreadyStarted(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"p1"`))
		panic("mid-body")
	})
	handler := NewLoggingMiddleware(logger, nil)(NewRecoveryMiddleware(logger)(inner))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/blogs/p1", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"id":"p1"` {
		t.Errorf("body = %q, エラーボディを追記してはならない", got)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("panic should still be logged")
	}
}

func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware(newBufferLogger(&bytes.Buffer{}))(panicHandler(http.ErrAbortHandler))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/blogs", nil))
	t.Fatal("ErrAbortHandler should propagate")
}

func TestRecoveryMiddleware_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRecoveryMiddleware(newBufferLogger(&buf))(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log: %s", buf.String())
	}
}
