package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/blogmind/internal/importer"
	"github.com/hitoshi/blogmind/internal/middleware"
)

// ImporterInterface はフィードインポートに必要なサービスインターフェース。
type ImporterInterface interface {
	Import(ctx context.Context, callerID, inputURL string, published *bool) (*importer.Result, error)
}

// ImportHandler はフィードインポートのHTTPハンドラー。
type ImportHandler struct {
	importer ImporterInterface
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(imp ImporterInterface) *ImportHandler {
	return &ImportHandler{importer: imp}
}

type importRequest struct {
	URL         string `json:"url"`
	IsPublished *bool  `json:"isPublished"`
}

type importResponse struct {
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Blogs    []postResponse `json:"blogs"`
}

// Import はフィードから投稿を取り込む。
// POST /api/blogs/import
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.importer.Import(r.Context(), middleware.UserIDFromContext(r.Context()), req.URL, req.IsPublished)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Imported > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, importResponse{
		Imported: result.Imported,
		Skipped:  result.Skipped,
		Blogs:    toPostResponses(result.Posts, true),
	})
}
