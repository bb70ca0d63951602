package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/blogmind/internal/blog"
	"github.com/hitoshi/blogmind/internal/metrics"
	"github.com/hitoshi/blogmind/internal/model"
	"github.com/hitoshi/blogmind/internal/security"
)

// Generator はプロンプトから生成テキストを得る外部AIプロバイダーのインターフェース。
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// providerOutput はプロバイダーに要求するJSONの形。
type providerOutput struct {
	Context     string   `json:"context"`
	CoreIdeas   []string `json:"coreIdeas"`
	Actionables []string `json:"actionables"`
	Tags        []string `json:"tags"`
}

// Service は投稿本文からサマリーとタグを生成する。
// 投稿の永続化とは独立しており、結果はキャッシュしない。
type Service struct {
	generator Generator
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	timeout   time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// timeoutが0以下の場合はプロバイダー呼び出しに期限を設けない。
func NewService(generator Generator, sanitizer security.TextSanitizer, collector metrics.MetricsCollector, timeout time.Duration) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		generator: generator,
		sanitizer: sanitizer,
		metrics:   collector,
		timeout:   timeout,
	}
}

// Enrich はタイトルと本文からサマリーとタグを生成する。
//   - 本文が空の場合はAI_INVALID_INPUT
//   - プロバイダー未設定・到達不能・応答形式不正の場合はAI_SERVICE_UNAVAILABLE
//   - 生成テキストがJSONとして解析できない場合はAI_MALFORMED_RESPONSE
func (s *Service) Enrich(ctx context.Context, title, body string) (*model.Enrichment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, model.NewAIInvalidInputError()
	}
	if !s.generator.Configured() {
		return nil, model.NewAIUnavailableError("the AI provider API key is not configured")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, buildPrompt(title, body))
	if err != nil {
		s.metrics.RecordSummarizeFailure("unavailable", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.NewAIUnavailableError("the AI provider did not respond in time")
		}
		return nil, model.NewAIUnavailableError("the AI provider could not be reached")
	}

	var out providerOutput
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &out); err != nil {
		s.metrics.RecordSummarizeFailure("malformed", time.Since(start))
		slog.Warn("AI応答のJSONパースに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("length", len(text)),
		)
		return nil, model.NewAIMalformedResponseError()
	}

	s.metrics.RecordSummarizeSuccess(time.Since(start))
	return s.normalize(out), nil
}

// normalize はプロバイダー出力のマークアップを除去し、空要素を取り除く。
func (s *Service) normalize(out providerOutput) *model.Enrichment {
	return &model.Enrichment{
		Summary: model.Summary{
			Context:     s.sanitizer.StripMarkup(out.Context),
			CoreIdeas:   s.cleanList(out.CoreIdeas),
			Actionables: s.cleanList(out.Actionables),
		},
		Tags: blog.NormalizeTags(s.cleanList(out.Tags)),
	}
}

func (s *Service) cleanList(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if v := s.sanitizer.StripMarkup(item); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return cleaned
}

// StripCodeFence は```json または ``` で囲まれた応答から囲みを取り除く。
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func buildPrompt(title, body string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	return fmt.Sprintf(promptTemplate, title, body)
}

const promptTemplate = `You are an expert knowledge distiller. Analyze the following blog post and return a JSON response with the following structure:

{
  "context": "A 2-3 sentence overview explaining what this content is about and why it matters",
  "coreIdeas": [
    "First key insight or main point from the content",
    "Second key insight or main point",
    "Third key insight or main point",
    "Add more if needed, max 6 items"
  ],
  "actionables": [
    "First practical action the reader can take",
    "Second practical action",
    "Third practical action"
  ],
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

Rules:
- Tags should be relevant categories like: AI/ML, Technology, Business, Productivity, Career Growth, Health, Science, Programming, Design, Marketing, Finance, Leadership, etc.
- Generate 3-5 relevant tags based on the content
- Core ideas should be numbered insights, not generic statements
- Actionables should be specific, practical steps the reader can implement
- Keep the context concise but informative

Title: %s

Content:
%s

Return ONLY the JSON object, no additional text or markdown formatting.`
