package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/blogmind/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postSelect = `SELECT p.id, p.title, p.content, p.summary_context, p.summary_core_ideas,
		p.summary_actionables, p.notes, p.cover_image, p.tags, p.author_id, p.is_published,
		p.views, p.quality_score, p.source_url, p.created_at, p.updated_at,
		u.name, u.avatar, u.email
	FROM posts p
	JOIN users u ON u.id = p.author_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost は1行を投稿に変換する。配列カラムは空でも非nilのスライスにする。
func scanPost(row rowScanner) (*model.Post, error) {
	p := &model.Post{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Content, &p.Summary.Context,
		pq.Array(&p.Summary.CoreIdeas), pq.Array(&p.Summary.Actionables),
		&p.Notes, &p.CoverImage, pq.Array(&p.Tags), &p.AuthorID, &p.IsPublished,
		&p.Views, &p.QualityScore, &p.SourceURL, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.Name, &p.Author.Avatar, &p.Author.Email,
	)
	if err != nil {
		return nil, err
	}
	p.Author.ID = p.AuthorID
	p.Summary.CoreIdeas = nonNil(p.Summary.CoreIdeas)
	p.Summary.Actionables = nonNil(p.Summary.Actionables)
	p.Tags = nonNil(p.Tags)
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (id, title, content, summary_context, summary_core_ideas,
			summary_actionables, notes, cover_image, tags, author_id, is_published,
			quality_score, source_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING views, created_at, updated_at`,
		post.ID, post.Title, post.Content, post.Summary.Context,
		pq.Array(nonNil(post.Summary.CoreIdeas)), pq.Array(nonNil(post.Summary.Actionables)),
		post.Notes, post.CoverImage, pq.Array(nonNil(post.Tags)), post.AuthorID, post.IsPublished,
		post.QualityScore, post.SourceURL,
	).Scan(&post.Views, &post.CreatedAt, &post.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return p, nil
}

// buildListQuery は公開投稿一覧のWHERE句、ORDER BY句、引数を組み立てる。
// 検索語がある場合は関連度順、ない場合は作成日時の降順とする。
func buildListQuery(q model.PostQuery) (where string, orderBy string, args []any) {
	conds := []string{"p.is_published = TRUE"}
	orderBy = "p.created_at DESC, p.id"

	if q.Search != "" {
		args = append(args, q.Search)
		n := len(args)
		conds = append(conds, fmt.Sprintf("p.search_vector @@ websearch_to_tsquery('english', $%d)", n))
		orderBy = fmt.Sprintf("ts_rank(p.search_vector, websearch_to_tsquery('english', $%d)) DESC, p.created_at DESC, p.id", n)
	}
	if q.Tag != "" {
		args = append(args, pq.Array([]string{q.Tag}))
		conds = append(conds, fmt.Sprintf("p.tags @> $%d", len(args)))
	}

	return " WHERE " + strings.Join(conds, " AND "), orderBy, args
}

// ListPublished は公開済み投稿の1ページ分と総件数を返す。
func (r *PostgresPostRepo) ListPublished(ctx context.Context, q model.PostQuery) ([]*model.Post, int, error) {
	where, orderBy, args := buildListQuery(q)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)
	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		postSelect, where, orderBy, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListByAuthor は著者の全投稿を返す。
func (r *PostgresPostRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		postSelect+` WHERE p.author_id = $1 ORDER BY p.created_at DESC, p.id`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	return scanPosts(rows)
}

// Update は投稿を全置換する。著者以外の場合はErrNotFoundを返す。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts SET
			title = $3, content = $4, summary_context = $5, summary_core_ideas = $6,
			summary_actionables = $7, notes = $8, cover_image = $9, tags = $10,
			is_published = $11, updated_at = now()
		 WHERE id = $1 AND author_id = $2
		 RETURNING views, quality_score, source_url, created_at, updated_at`,
		post.ID, post.AuthorID, post.Title, post.Content, post.Summary.Context,
		pq.Array(nonNil(post.Summary.CoreIdeas)), pq.Array(nonNil(post.Summary.Actionables)),
		post.Notes, post.CoverImage, pq.Array(nonNil(post.Tags)), post.IsPublished,
	).Scan(&post.Views, &post.QualityScore, &post.SourceURL, &post.CreatedAt, &post.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// UpdateNotes は投稿のメモを更新する。
func (r *PostgresPostRepo) UpdateNotes(ctx context.Context, id, authorID, notes string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET notes = $3, updated_at = now() WHERE id = $1 AND author_id = $2`,
		id, authorID, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update notes: %w", err)
	}
	return requireAffected(result)
}

// Delete は投稿を物理削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id, authorID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews は閲覧数を1増やす。単一UPDATE文のため同時実行でも加算は失われない。
func (r *PostgresPostRepo) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts SET views = views + 1 WHERE id = $1 RETURNING views`,
		id,
	).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	return views, nil
}

// DistinctTags は全投稿のタグを辞書順で返す。
func (r *PostgresPostRepo) DistinctTags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT tag FROM posts, unnest(tags) AS tag ORDER BY tag`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

// ExistsBySource は著者が同一URLからインポート済みかを返す。
func (r *PostgresPostRepo) ExistsBySource(ctx context.Context, authorID, sourceURL string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE author_id = $1 AND source_url = $2)`,
		authorID, sourceURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check imported post: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
