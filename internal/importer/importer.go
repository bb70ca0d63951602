// Package importer は外部サイトのRSS/Atomフィードから投稿を取り込む。
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/blogmind/internal/blog"
	"github.com/hitoshi/blogmind/internal/metrics"
	"github.com/hitoshi/blogmind/internal/model"
	"github.com/hitoshi/blogmind/internal/repository"
	"github.com/hitoshi/blogmind/internal/security"
)

const (
	userAgent    = "Blogmind/1.0 Feed Importer"
	acceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8"
)

// Config はインポートの制限値。
type Config struct {
	Timeout     time.Duration
	MaxBodySize int64
	MaxItems    int
}

// Result はインポート結果。
type Result struct {
	Imported int
	Skipped  int
	Posts    []*model.Post
}

// Service はフィードの検出・取得・投稿化を行う。
type Service struct {
	postRepo  repository.PostRepository
	ssrfGuard security.SSRFGuardService
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	config    Config
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	postRepo repository.PostRepository,
	ssrfGuard security.SSRFGuardService,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config Config,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 5 << 20
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 20
	}
	return &Service{
		postRepo:  postRepo,
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		config:    config,
	}
}

// fetched は取得したレスポンスの要約。
type fetched struct {
	url         string
	contentType string
	body        []byte
}

// Import はinputURLのフィード（またはフィードを告知するHTMLページ）から
// 最大MaxItems件の投稿をcallerIDを著者として作成する。
// 同じ記事URLを既に取り込んでいる項目はスキップする。
func (s *Service) Import(ctx context.Context, callerID, inputURL string, published *bool) (*Result, error) {
	if callerID == "" {
		return nil, model.NewMissingCredentialError()
	}

	inputURL = strings.TrimSpace(inputURL)
	if inputURL == "" {
		return nil, s.fail("invalid_url", model.NewImportInvalidURLError("URL is required"))
	}
	if !security.IsWebURL(inputURL) {
		return nil, s.fail("invalid_url", model.NewImportInvalidURLError("URL must be an absolute http(s) URL"))
	}

	start := time.Now()
	client := s.ssrfGuard.NewSafeClient(s.config.Timeout)

	page, err := s.fetch(ctx, client, inputURL)
	if err != nil {
		return nil, err
	}

	feedDoc := page
	if !IsDirectFeed(page.contentType, page.body) {
		if !IsHTML(page.contentType) {
			return nil, s.fail("feed_not_found", model.NewImportFeedNotFoundError(inputURL))
		}
		best := SelectBestFeed(ParseFeedLinks(page.body, page.url), inputURL)
		if best == nil {
			return nil, s.fail("feed_not_found", model.NewImportFeedNotFoundError(inputURL))
		}
		feedDoc, err = s.fetch(ctx, client, best.URL)
		if err != nil {
			return nil, err
		}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(feedDoc.body))
	if err != nil {
		s.logger.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", feedDoc.url),
			slog.String("error", err.Error()),
		)
		return nil, s.fail("parse", model.NewImportParseFailedError())
	}

	isPublished := true
	if published != nil {
		isPublished = *published
	}

	result := &Result{Posts: []*model.Post{}}
	for _, item := range parsed.Items {
		if result.Imported+result.Skipped >= s.config.MaxItems {
			break
		}

		post := s.convertItem(item)
		if post == nil {
			result.Skipped++
			continue
		}
		post.ID = uuid.New().String()
		post.AuthorID = callerID
		post.IsPublished = isPublished

		created, err := s.store(ctx, post)
		if err != nil {
			// まだ1件も保存していなければ、何も変更せずに失敗として返せる
			if result.Imported == 0 {
				return nil, err
			}
			s.metrics.RecordImportFailure("store")
			s.logger.Warn("インポート中の投稿の保存に失敗したためスキップしました",
				slog.String("user_id", callerID),
				slog.String("source_url", post.SourceURL),
				slog.Int("imported_so_far", result.Imported),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if created == nil {
			result.Skipped++
			continue
		}
		result.Imported++
		result.Posts = append(result.Posts, created)
	}

	s.metrics.RecordImport(result.Imported, result.Skipped)
	s.logger.Info("フィードのインポートが完了しました",
		slog.String("user_id", callerID),
		slog.String("feed_url", feedDoc.url),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return result, nil
}

// fetch はSSRF検証の後にURLを取得する。ボディはMaxBodySizeまで読み込む。
func (s *Service) fetch(ctx context.Context, client *http.Client, rawURL string) (*fetched, error) {
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		s.logger.Warn("SSRF検証によりURLを拒否しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, s.fail("blocked", model.NewImportBlockedError())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, s.fail("invalid_url", model.NewImportInvalidURLError(err.Error()))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Warn("HTTPリクエストに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, s.fail("fetch", model.NewImportFetchFailedError("the site could not be reached"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.fail("fetch", model.NewImportFetchFailedError(fmt.Sprintf("HTTP status %d", resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodySize+1))
	if err != nil {
		return nil, s.fail("fetch", model.NewImportFetchFailedError("the response could not be read"))
	}
	if int64(len(body)) > s.config.MaxBodySize {
		return nil, s.fail("fetch", model.NewImportFetchFailedError("the response is too large"))
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &fetched{
		url:         finalURL,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

// store は投稿を保存し、著者情報付きで返す。既に取り込み済みの場合はnilを返す。
func (s *Service) store(ctx context.Context, post *model.Post) (*model.Post, error) {
	if post.SourceURL != "" {
		exists, err := s.postRepo.ExistsBySource(ctx, post.AuthorID, post.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("取り込み済み記事の確認に失敗しました: %w", err)
		}
		if exists {
			return nil, nil
		}
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil
		}
		return nil, fmt.Errorf("インポート記事の作成に失敗しました: %w", err)
	}
	s.metrics.RecordPostCreated()

	created, err := s.postRepo.FindByID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("インポート記事の再取得に失敗しました: %w", err)
	}
	if created == nil {
		return post, nil
	}
	created.Author.Email = ""
	return created, nil
}

// convertItem はフィード項目を投稿に変換する。本文が得られない項目はnilを返す。
func (s *Service) convertItem(item *gofeed.Item) *model.Post {
	if item == nil {
		return nil
	}

	content := item.Content
	if strings.TrimSpace(s.sanitizer.StripMarkup(content)) == "" {
		content = item.Description
	}
	content = s.sanitizer.StripMarkup(content)
	if content == "" {
		return nil
	}

	title := truncateRunes(s.sanitizer.StripMarkup(item.Title), model.MaxTitleLength)
	if title == "" {
		title = truncateRunes(strings.SplitN(content, "\n", 2)[0], model.MaxTitleLength)
	}

	link := strings.TrimSpace(item.Link)
	if link == "" && security.IsWebURL(item.GUID) {
		link = item.GUID
	}

	return &model.Post{
		Title:      title,
		Content:    content,
		Summary:    model.EmptySummary(),
		CoverImage: coverImage(item),
		Tags:       blog.NormalizeTags(item.Categories),
		SourceURL:  link,
	}
}

// coverImage は項目の画像URLを返す。http(s) 以外は採用しない。
func coverImage(item *gofeed.Item) string {
	if item.Image != nil && security.IsWebURL(item.Image.URL) {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && security.IsWebURL(enc.URL) {
			return enc.URL
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// fail はインポート失敗を記録してエラーを返す。
func (s *Service) fail(reason string, err *model.APIError) error {
	s.metrics.RecordImportFailure(reason)
	return err
}
