// Package handler はHTTPハンドラーとリクエスト/レスポンスの型を提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/blogmind/internal/middleware"
	"github.com/hitoshi/blogmind/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの最大サイズ。
const maxRequestBodySize = 1 << 20

// authorResponse は投稿に埋め込む著者情報。
// emailは単一投稿の取得時のみ含める。
type authorResponse struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Email  string `json:"email,omitempty"`
}

// summaryResponse は構造化サマリー。
type summaryResponse struct {
	Context     string   `json:"context"`
	CoreIdeas   []string `json:"coreIdeas"`
	Actionables []string `json:"actionables"`
}

// postResponse は投稿のAPIレスポンス。
// notesは著者本人への応答にのみ含める。
type postResponse struct {
	ID           string          `json:"_id"`
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	Summary      summaryResponse `json:"summary"`
	Notes        *string         `json:"notes,omitempty"`
	CoverImage   string          `json:"coverImage"`
	Tags         []string        `json:"tags"`
	Author       authorResponse  `json:"author"`
	IsPublished  bool            `json:"isPublished"`
	Views        int64           `json:"views"`
	QualityScore float64         `json:"qualityScore"`
	SourceURL    string          `json:"sourceUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Token  string `json:"token,omitempty"`
}

// summaryRequest はリクエストで受け取る構造化サマリー。
type summaryRequest struct {
	Context     string   `json:"context"`
	CoreIdeas   []string `json:"coreIdeas"`
	Actionables []string `json:"actionables"`
}

func (s summaryRequest) toModel() model.Summary {
	return model.Summary{
		Context:     s.Context,
		CoreIdeas:   s.CoreIdeas,
		Actionables: s.Actionables,
	}
}

func toSummaryResponse(s model.Summary) summaryResponse {
	return summaryResponse{
		Context:     s.Context,
		CoreIdeas:   nonNil(s.CoreIdeas),
		Actionables: nonNil(s.Actionables),
	}
}

func toPostResponse(p *model.Post, includeNotes bool) postResponse {
	resp := postResponse{
		ID:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		Summary:    toSummaryResponse(p.Summary),
		CoverImage: p.CoverImage,
		Tags:       nonNil(p.Tags),
		Author: authorResponse{
			ID:     p.Author.ID,
			Name:   p.Author.Name,
			Avatar: p.Author.Avatar,
			Email:  p.Author.Email,
		},
		IsPublished:  p.IsPublished,
		Views:        p.Views,
		QualityScore: p.QualityScore,
		SourceURL:    p.SourceURL,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if resp.Author.ID == "" {
		resp.Author.ID = p.AuthorID
	}
	if includeNotes {
		notes := p.Notes
		resp.Notes = &notes
	}
	return resp
}

func toPostResponses(posts []*model.Post, includeNotes bool) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p, includeNotes))
	}
	return out
}

func toUserResponse(u *model.User, token string) userResponse {
	return userResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Token:  token,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
// 空のボディは空オブジェクトとして扱う。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
	return false
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// 著者以外による変更（FORBIDDEN）は既存クライアントとの互換のため401を返す。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidRequest, model.ErrCodeEmailTaken,
		model.ErrCodeAIInvalidInput, model.ErrCodeImportInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeMissingCredential, model.ErrCodeInvalidCredential,
		model.ErrCodeInvalidLogin, model.ErrCodeForbidden:
		return http.StatusUnauthorized
	case model.ErrCodeImportBlocked:
		return http.StatusForbidden
	case model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case model.ErrCodeImportFeedNotFound, model.ErrCodeImportParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeImportFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
