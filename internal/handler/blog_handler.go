package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogmind/internal/blog"
	"github.com/hitoshi/blogmind/internal/middleware"
	"github.com/hitoshi/blogmind/internal/model"
)

// BlogServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type BlogServiceInterface interface {
	List(ctx context.Context, params blog.ListParams) (*blog.ListResult, error)
	Get(ctx context.Context, callerID, postID string, countView bool) (*model.Post, error)
	Create(ctx context.Context, callerID string, in blog.PostInput) (*model.Post, error)
	Update(ctx context.Context, callerID, postID string, in blog.PostInput) (*model.Post, error)
	UpdateNotes(ctx context.Context, callerID, postID, notes string) (string, error)
	Delete(ctx context.Context, callerID, postID string) error
	ListMine(ctx context.Context, callerID string) ([]*model.Post, error)
	ListTags(ctx context.Context) ([]string, error)
}

// BlogHandler は投稿リソースのHTTPハンドラー。
type BlogHandler struct {
	service BlogServiceInterface
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(service BlogServiceInterface) *BlogHandler {
	return &BlogHandler{service: service}
}

// postRequest は作成・全置換更新のリクエストボディ。
type postRequest struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Summary     summaryRequest `json:"summary"`
	CoverImage  string         `json:"coverImage"`
	Tags        []string       `json:"tags"`
	Notes       string         `json:"notes"`
	IsPublished *bool          `json:"isPublished"`
}

func (p postRequest) toInput() blog.PostInput {
	return blog.PostInput{
		Title:       p.Title,
		Content:     p.Content,
		Summary:     p.Summary.toModel(),
		CoverImage:  p.CoverImage,
		Tags:        p.Tags,
		Notes:       p.Notes,
		IsPublished: p.IsPublished,
	}
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type listResponse struct {
	Blogs       []postResponse `json:"blogs"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalBlogs  int            `json:"totalBlogs"`
}

type notesResponse struct {
	Notes string `json:"notes"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// List は公開済み投稿の一覧を返す。
// GET /api/blogs?page=&limit=&search=&tag=
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.List(r.Context(), blog.ListParams{
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
		Search: q.Get("search"),
		Tag:    q.Get("tag"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Blogs:       toPostResponses(result.Posts, false),
		CurrentPage: result.CurrentPage,
		TotalPages:  result.TotalPages,
		TotalBlogs:  result.Total,
	})
}

// Get は投稿を1件返す。view=true の場合は閲覧数を1加算する。
// GET /api/blogs/{id}
func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())
	countView, _ := strconv.ParseBool(r.URL.Query().Get("view"))

	post, err := h.service.Get(r.Context(), callerID, chi.URLParam(r, "id"), countView)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(post, post.IsOwnedBy(callerID)))
}

// Create は投稿を作成する。
// POST /api/blogs
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(post, true))
}

// Update は投稿を全置換する。
// PUT /api/blogs/{id}
func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(post, true))
}

// UpdateNotes はメモのみを更新する。
// PATCH /api/blogs/{id}/notes
func (h *BlogHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	notes, err := h.service.UpdateNotes(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, notesResponse{Notes: notes})
}

// Delete は投稿を削除する。
// DELETE /api/blogs/{id}
func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Blog deleted successfully"})
}

// ListMine は呼び出し元の全投稿を返す。
// GET /api/blogs/my-blogs
func (h *BlogHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListMine(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponses(posts, true))
}

// ListTags は全投稿のタグを返す。
// GET /api/blogs/tags
func (h *BlogHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.ListTags(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(tags))
}

// queryInt はクエリ値を整数に変換する。不正な値は0（デフォルト適用）とする。
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
