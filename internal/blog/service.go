// Package blog はブログ投稿の作成・閲覧・更新・削除と一覧検索を提供する。
//
// 変更系の操作はすべて著者本人に限定される。呼び出し元の本人確認は
// 上位（ミドルウェア）で行われ、ここではユーザーIDとして受け取る。
package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/blogmind/internal/metrics"
	"github.com/hitoshi/blogmind/internal/model"
	"github.com/hitoshi/blogmind/internal/repository"
	"github.com/hitoshi/blogmind/internal/security"
)

const (
	// DefaultPageSize は一覧取得時のデフォルト件数。
	DefaultPageSize = 10
	// MaxPageSize は一覧取得時の最大件数。
	MaxPageSize = 100
)

// PostInput は作成・全置換更新の入力。
// IsPublishedがnilの場合はtrueとして扱う。
type PostInput struct {
	Title       string
	Content     string
	Summary     model.Summary
	CoverImage  string
	Tags        []string
	Notes       string
	IsPublished *bool
}

// ListParams は公開投稿一覧の取得条件。
type ListParams struct {
	Page   int
	Limit  int
	Search string
	Tag    string
}

// ListResult は公開投稿一覧の取得結果。
type ListResult struct {
	Posts       []*model.Post
	CurrentPage int
	TotalPages  int
	Total       int
}

// Service は投稿リソースのサービス層。
type Service struct {
	postRepo repository.PostRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(postRepo repository.PostRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{postRepo: postRepo, metrics: collector}
}

// List は公開済み投稿を検索・タグ・ページ指定で返す。
// 最終ページを超えるページ指定は空の一覧を返す。
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	query := model.PostQuery{
		Search: strings.TrimSpace(params.Search),
		Tag:    strings.TrimSpace(params.Tag),
		Offset: pageOffset(page, limit),
		Limit:  limit,
	}

	posts, total, err := s.postRepo.ListPublished(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}

	for _, p := range posts {
		redactForPublic(p)
	}
	if posts == nil {
		posts = []*model.Post{}
	}

	return &ListResult{
		Posts:       posts,
		CurrentPage: page,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
		Total:       total,
	}, nil
}

// Get は投稿を1件返す。公開状態による制限は行わない。
// countViewがtrueの場合は閲覧数を1だけアトミックに加算し、加算後の値を返す。
// メモは著者本人（callerID）にのみ返す。
func (s *Service) Get(ctx context.Context, callerID, postID string, countView bool) (*model.Post, error) {
	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}

	if countView {
		views, err := s.postRepo.IncrementViews(ctx, post.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, model.NewPostNotFoundError()
			}
			return nil, fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
		}
		post.Views = views
		s.metrics.RecordPostViewed()
	}

	if !post.IsOwnedBy(callerID) {
		post.Notes = ""
	}
	return post, nil
}

// Create は呼び出し元を著者として投稿を作成する。
func (s *Service) Create(ctx context.Context, callerID string, in PostInput) (*model.Post, error) {
	if callerID == "" {
		return nil, model.NewMissingCredentialError()
	}

	post, err := buildPost(in)
	if err != nil {
		return nil, err
	}
	post.ID = uuid.New().String()
	post.AuthorID = callerID

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	s.metrics.RecordPostCreated()

	slog.Info("投稿を作成しました",
		slog.String("post_id", post.ID),
		slog.String("user_id", callerID),
	)
	return s.reload(ctx, post.ID)
}

// Update は投稿を全置換する。省略された任意項目はデフォルト値に戻る。
func (s *Service) Update(ctx context.Context, callerID, postID string, in PostInput) (*model.Post, error) {
	current, err := s.findOwned(ctx, callerID, postID, "update")
	if err != nil {
		return nil, err
	}

	post, err := buildPost(in)
	if err != nil {
		return nil, err
	}
	post.ID = current.ID
	post.AuthorID = current.AuthorID

	if err := s.postRepo.Update(ctx, post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewPostNotFoundError()
		}
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	slog.Info("投稿を更新しました",
		slog.String("post_id", post.ID),
		slog.String("user_id", callerID),
	)
	return s.reload(ctx, post.ID)
}

// UpdateNotes はメモのみを更新し、更新後のメモを返す。
func (s *Service) UpdateNotes(ctx context.Context, callerID, postID, notes string) (string, error) {
	post, err := s.findOwned(ctx, callerID, postID, "update")
	if err != nil {
		return "", err
	}

	if err := s.postRepo.UpdateNotes(ctx, post.ID, callerID, notes); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", model.NewPostNotFoundError()
		}
		return "", fmt.Errorf("メモの更新に失敗しました: %w", err)
	}
	return notes, nil
}

// Delete は投稿を物理削除する。
func (s *Service) Delete(ctx context.Context, callerID, postID string) error {
	post, err := s.findOwned(ctx, callerID, postID, "delete")
	if err != nil {
		return err
	}

	if err := s.postRepo.Delete(ctx, post.ID, callerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPostNotFoundError()
		}
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	slog.Info("投稿を削除しました",
		slog.String("post_id", post.ID),
		slog.String("user_id", callerID),
	)
	return nil
}

// ListMine は呼び出し元の全投稿（非公開を含む）を作成日時の降順で返す。
func (s *Service) ListMine(ctx context.Context, callerID string) ([]*model.Post, error) {
	if callerID == "" {
		return nil, model.NewMissingCredentialError()
	}

	posts, err := s.postRepo.ListByAuthor(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("自分の投稿一覧の取得に失敗しました: %w", err)
	}
	for _, p := range posts {
		p.Author.Email = ""
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}

// ListTags は全投稿のタグを重複なしで辞書順に返す。
func (s *Service) ListTags(ctx context.Context) ([]string, error) {
	tags, err := s.postRepo.DistinctTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// find は投稿を取得する。UUIDとして解釈できないIDは存在しない投稿として扱う。
func (s *Service) find(ctx context.Context, postID string) (*model.Post, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return nil, model.NewPostNotFoundError()
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError()
	}
	return post, nil
}

// findOwned は本人確認の後に投稿を取得し、著者であることを確認する。
func (s *Service) findOwned(ctx context.Context, callerID, postID, action string) (*model.Post, error) {
	if callerID == "" {
		return nil, model.NewMissingCredentialError()
	}

	post, err := s.find(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsOwnedBy(callerID) {
		slog.Warn("著者以外による変更を拒否しました",
			slog.String("post_id", post.ID),
			slog.String("user_id", callerID),
			slog.String("action", action),
		)
		return nil, model.NewForbiddenError(action)
	}
	return post, nil
}

// reload は書き込み後の投稿を著者情報付きで取得し直す。著者のメールアドレスは含めない。
func (s *Service) reload(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の再取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError()
	}
	post.Author.Email = ""
	return post, nil
}

// pageOffset はページ番号からOFFSETを求める。
// 極端に大きいページ番号ではOFFSET+LIMITがintに収まる最大値に丸める。
func pageOffset(page, limit int) int {
	maxOffset := math.MaxInt - limit
	if page-1 > maxOffset/limit {
		return maxOffset
	}
	return (page - 1) * limit
}

// redactForPublic は公開一覧に含めない項目を除去する。
func redactForPublic(p *model.Post) {
	p.Notes = ""
	p.Author.Email = ""
}

// buildPost は入力を正規化・検証して投稿を組み立てる。
func buildPost(in PostInput) (*model.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return nil, model.NewValidationError(fmt.Sprintf("Title cannot exceed %d characters", model.MaxTitleLength))
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, model.NewValidationError("Content is required")
	}

	cover := strings.TrimSpace(in.CoverImage)
	if cover != "" && !security.IsWebURL(cover) {
		return nil, model.NewValidationError("Cover image must be an http(s) URL")
	}

	published := true
	if in.IsPublished != nil {
		published = *in.IsPublished
	}

	return &model.Post{
		Title:   title,
		Content: in.Content,
		Summary: model.Summary{
			Context:     in.Summary.Context,
			CoreIdeas:   nonNil(in.Summary.CoreIdeas),
			Actionables: nonNil(in.Summary.Actionables),
		},
		Notes:       in.Notes,
		CoverImage:  cover,
		Tags:        NormalizeTags(in.Tags),
		IsPublished: published,
	}, nil
}

// NormalizeTags はタグをトリムし、空要素と重複を除いて出現順に返す。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
