package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/blogmind/internal/auth"
	"github.com/hitoshi/blogmind/internal/blog"
	"github.com/hitoshi/blogmind/internal/importer"
	"github.com/hitoshi/blogmind/internal/middleware"
	"github.com/hitoshi/blogmind/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.Result, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
	return m.registerFn(ctx, in)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	return m.loginFn(ctx, email, password)
}

type mockUserService struct {
	getProfileFn   func(ctx context.Context, userID string) (*model.User, error)
	updateAvatarFn func(ctx context.Context, userID, avatar string) (*model.User, error)
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return m.getProfileFn(ctx, userID)
}

func (m *mockUserService) UpdateAvatar(ctx context.Context, userID, avatar string) (*model.User, error) {
	return m.updateAvatarFn(ctx, userID, avatar)
}

type mockBlogService struct {
	listFn        func(ctx context.Context, params blog.ListParams) (*blog.ListResult, error)
	getFn         func(ctx context.Context, callerID, postID string, countView bool) (*model.Post, error)
	createFn      func(ctx context.Context, callerID string, in blog.PostInput) (*model.Post, error)
	updateFn      func(ctx context.Context, callerID, postID string, in blog.PostInput) (*model.Post, error)
	updateNotesFn func(ctx context.Context, callerID, postID, notes string) (string, error)
	deleteFn      func(ctx context.Context, callerID, postID string) error
	listMineFn    func(ctx context.Context, callerID string) ([]*model.Post, error)
	listTagsFn    func(ctx context.Context) ([]string, error)
}

func (m *mockBlogService) List(ctx context.Context, params blog.ListParams) (*blog.ListResult, error) {
	return m.listFn(ctx, params)
}

func (m *mockBlogService) Get(ctx context.Context, callerID, postID string, countView bool) (*model.Post, error) {
	return m.getFn(ctx, callerID, postID, countView)
}

func (m *mockBlogService) Create(ctx context.Context, callerID string, in blog.PostInput) (*model.Post, error) {
	return m.createFn(ctx, callerID, in)
}

func (m *mockBlogService) Update(ctx context.Context, callerID, postID string, in blog.PostInput) (*model.Post, error) {
	return m.updateFn(ctx, callerID, postID, in)
}

func (m *mockBlogService) UpdateNotes(ctx context.Context, callerID, postID, notes string) (string, error) {
	return m.updateNotesFn(ctx, callerID, postID, notes)
}

func (m *mockBlogService) Delete(ctx context.Context, callerID, postID string) error {
	return m.deleteFn(ctx, callerID, postID)
}

func (m *mockBlogService) ListMine(ctx context.Context, callerID string) ([]*model.Post, error) {
	return m.listMineFn(ctx, callerID)
}

func (m *mockBlogService) ListTags(ctx context.Context) ([]string, error) {
	return m.listTagsFn(ctx)
}

type mockSummarizer struct {
	enrichFn func(ctx context.Context, title, content string) (*model.Enrichment, error)
}

func (m *mockSummarizer) Enrich(ctx context.Context, title, content string) (*model.Enrichment, error) {
	return m.enrichFn(ctx, title, content)
}

type mockImporter struct {
	importFn func(ctx context.Context, callerID, inputURL string, published *bool) (*importer.Result, error)
}

func (m *mockImporter) Import(ctx context.Context, callerID, inputURL string, published *bool) (*importer.Result, error) {
	return m.importFn(ctx, callerID, inputURL, published)
}

// --- ヘルパー ---

// withUserID はリクエストのコンテキストに認証済みユーザーIDを注入する。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
}

func samplePost(id, authorID string) *model.Post {
	return &model.Post{
		ID:          id,
		Title:       "Title",
		Content:     "Content",
		Summary:     model.EmptySummary(),
		Notes:       "private",
		Tags:        []string{"Go"},
		AuthorID:    authorID,
		Author:      model.AuthorRef{ID: authorID, Name: "Alice", Avatar: "https://example.com/a.png"},
		IsPublished: true,
	}
}

type mockResolver struct {
	resolveFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockResolver) ResolveIdentity(ctx context.Context, token string) (*model.User, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return nil, model.NewInvalidCredentialError()
}

// tokenResolver は "token-<userID>" 形式のトークンを受け付けるリゾルバー。
func tokenResolver() *mockResolver {
	return &mockResolver{
		resolveFn: func(_ context.Context, token string) (*model.User, error) {
			id, ok := strings.CutPrefix(token, "token-")
			if !ok || id == "" {
				return nil, model.NewInvalidCredentialError()
			}
			return &model.User{ID: id}, nil
		},
	}
}

// newTestRouter は未指定の依存をゼロ値のモックで補ったルーターを返す。
func newTestRouter(deps RouterDeps) http.Handler {
	if deps.Identity == nil {
		deps.Identity = tokenResolver()
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.BlogService == nil {
		deps.BlogService = &mockBlogService{}
	}
	if deps.Summarizer == nil {
		deps.Summarizer = &mockSummarizer{}
	}
	if deps.Importer == nil {
		deps.Importer = &mockImporter{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewRouter(&deps)
}

// serve はルーター経由でリクエストを処理する。userIDが空でなければベアラートークンを付与する。
func serve(router http.Handler, method, target, body, userID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer token-"+userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// httptestRecorder はハンドラーを直接呼び出す。reqがnilの場合はmethodとtargetから生成する。
func httptestRecorder(h http.HandlerFunc, method, target string, req *http.Request) *httptest.ResponseRecorder {
	if req == nil {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}
