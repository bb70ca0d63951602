package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/blogmind/internal/model"
)

// SummarizerInterface はAI要約ハンドラーが必要とするサービスインターフェース。
type SummarizerInterface interface {
	Enrich(ctx context.Context, title, content string) (*model.Enrichment, error)
}

// AIHandler はAI要約のHTTPハンドラー。
type AIHandler struct {
	summarizer SummarizerInterface
}

// NewAIHandler はAIHandlerを生成する。
func NewAIHandler(summarizer SummarizerInterface) *AIHandler {
	return &AIHandler{summarizer: summarizer}
}

type summarizeRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type summarizeResponse struct {
	Summary summaryResponse `json:"summary"`
	Tags    []string        `json:"tags"`
}

// Summarize は本文から構造化サマリーとタグを生成する。結果は保存しない。
// POST /api/ai/summarize
func (h *AIHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	enrichment, err := h.summarizer.Enrich(r.Context(), req.Title, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summarizeResponse{
		Summary: toSummaryResponse(enrichment.Summary),
		Tags:    nonNil(enrichment.Tags),
	})
}
