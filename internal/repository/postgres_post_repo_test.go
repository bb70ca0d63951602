package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hitoshi/blogmind/internal/model"
)

func TestPostgresPostRepo_ImplementsInterface(t *testing.T) {
	var _ PostRepository = (*PostgresPostRepo)(nil)
}

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       model.PostQuery
		wantArgs    int
		wantWhere   []string
		wantOrderBy string
	}{
		{
			name:        "公開のみ",
			query:       model.PostQuery{},
			wantArgs:    0,
			wantWhere:   []string{"p.is_published = TRUE"},
			wantOrderBy: "p.created_at DESC",
		},
		{
			name:        "検索語あり",
			query:       model.PostQuery{Search: "golang"},
			wantArgs:    1,
			wantWhere:   []string{"websearch_to_tsquery('english', $1)"},
			wantOrderBy: "ts_rank(",
		},
		{
			name:        "タグのみ",
			query:       model.PostQuery{Tag: "go"},
			wantArgs:    1,
			wantWhere:   []string{"p.tags @> $1"},
			wantOrderBy: "p.created_at DESC",
		},
		{
			name:        "検索語とタグ",
			query:       model.PostQuery{Search: "x", Tag: "go"},
			wantArgs:    2,
			wantWhere:   []string{"$1", "p.tags @> $2"},
			wantOrderBy: "ts_rank(",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, orderBy, args := buildListQuery(tt.query)
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
			for _, w := range tt.wantWhere {
				if !strings.Contains(where, w) {
					t.Errorf("where %q does not contain %q", where, w)
				}
			}
			if !strings.HasPrefix(orderBy, tt.wantOrderBy) {
				t.Errorf("orderBy = %q, want prefix %q", orderBy, tt.wantOrderBy)
			}
		})
	}
}

func newTestPost(authorID, title string, published bool, tags ...string) *model.Post {
	return &model.Post{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     "content about " + title,
		Summary:     model.EmptySummary(),
		Tags:        tags,
		AuthorID:    authorID,
		IsPublished: published,
	}
}

func TestPostgresPostRepo_CreateFindUpdateDelete(t *testing.T) {
	db := setupRepoDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresPostRepo(db)
	ctx := context.Background()

	author := createTestUser(t, users, "author@example.com")
	other := createTestUser(t, users, "other@example.com")

	post := newTestPost(author.ID, "Hello", true, "go")
	post.Notes = "private"
	if err := repo.Create(ctx, post); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if post.Views != 0 {
		t.Errorf("Views = %d, want 0", post.Views)
	}

	got, err := repo.FindByID(ctx, post.ID)
	if err != nil || got == nil {
		t.Fatalf("FindByID = %v, %v", got, err)
	}
	if got.Author.Name != author.Name || got.Author.Email != author.Email {
		t.Errorf("Author = %+v", got.Author)
	}
	if got.Notes != "private" || len(got.Tags) != 1 {
		t.Errorf("unexpected post: %+v", got)
	}
	if got.Summary.CoreIdeas == nil {
		t.Error("CoreIdeas should be non-nil")
	}

	post.Title = "Updated"
	post.Tags = nil
	post.AuthorID = other.ID
	if err := repo.Update(ctx, post); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update by non-author: expected ErrNotFound, got %v", err)
	}
	post.AuthorID = author.ID
	if err := repo.Update(ctx, post); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	got, _ = repo.FindByID(ctx, post.ID)
	if got.Title != "Updated" || len(got.Tags) != 0 {
		t.Errorf("update not applied: %+v", got)
	}

	if err := repo.UpdateNotes(ctx, post.ID, other.ID, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateNotes by non-author: expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateNotes(ctx, post.ID, author.ID, "new notes"); err != nil {
		t.Fatalf("UpdateNotes returned error: %v", err)
	}

	if err := repo.Delete(ctx, post.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete by non-author: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, post.ID, author.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	got, err = repo.FindByID(ctx, post.ID)
	if err != nil || got != nil {
		t.Errorf("expected nil after delete, got %v, %v", got, err)
	}
}

func TestPostgresPostRepo_ListPublished(t *testing.T) {
	db := setupRepoDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresPostRepo(db)
	ctx := context.Background()

	author := createTestUser(t, users, "lister@example.com")
	for _, p := range []*model.Post{
		newTestPost(author.ID, "Goroutines explained", true, "go", "concurrency"),
		newTestPost(author.ID, "Rust ownership", true, "rust"),
		newTestPost(author.ID, "Draft about goroutines", false, "go"),
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	posts, total, err := repo.ListPublished(ctx, model.PostQuery{Limit: 10})
	if err != nil {
		t.Fatalf("ListPublished returned error: %v", err)
	}
	if total != 2 || len(posts) != 2 {
		t.Errorf("total=%d len=%d, want 2/2", total, len(posts))
	}

	posts, total, _ = repo.ListPublished(ctx, model.PostQuery{Tag: "go", Limit: 10})
	if total != 1 || posts[0].Title != "Goroutines explained" {
		t.Errorf("tag filter: total=%d posts=%v", total, posts)
	}

	posts, total, _ = repo.ListPublished(ctx, model.PostQuery{Search: "goroutines", Limit: 10})
	if total != 1 || posts[0].Title != "Goroutines explained" {
		t.Errorf("search: total=%d posts=%v", total, posts)
	}

	posts, total, _ = repo.ListPublished(ctx, model.PostQuery{Offset: 10, Limit: 10})
	if total != 2 || len(posts) != 0 {
		t.Errorf("beyond last page: total=%d len=%d", total, len(posts))
	}

	mine, err := repo.ListByAuthor(ctx, author.ID)
	if err != nil {
		t.Fatalf("ListByAuthor returned error: %v", err)
	}
	if len(mine) != 3 {
		t.Errorf("ListByAuthor len = %d, want 3", len(mine))
	}

	tags, err := repo.DistinctTags(ctx)
	if err != nil {
		t.Fatalf("DistinctTags returned error: %v", err)
	}
	want := []string{"concurrency", "go", "rust"}
	if strings.Join(tags, ",") != strings.Join(want, ",") {
		t.Errorf("DistinctTags = %v, want %v", tags, want)
	}
}

func TestPostgresPostRepo_IncrementViews_Concurrent(t *testing.T) {
	db := setupRepoDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresPostRepo(db)
	ctx := context.Background()

	author := createTestUser(t, users, "views@example.com")
	post := newTestPost(author.ID, "Popular", true)
	if err := repo.Create(ctx, post); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementViews(ctx, post.ID); err != nil {
				t.Errorf("IncrementViews returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := repo.FindByID(ctx, post.ID)
	if got.Views != n {
		t.Errorf("Views = %d, want %d", got.Views, n)
	}

	if _, err := repo.IncrementViews(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresPostRepo_SourceURL(t *testing.T) {
	db := setupRepoDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresPostRepo(db)
	ctx := context.Background()

	author := createTestUser(t, users, "importer@example.com")
	post := newTestPost(author.ID, "Imported", true)
	post.SourceURL = "https://example.com/posts/1"
	if err := repo.Create(ctx, post); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	exists, err := repo.ExistsBySource(ctx, author.ID, post.SourceURL)
	if err != nil || !exists {
		t.Errorf("ExistsBySource = %v, %v; want true", exists, err)
	}

	dup := newTestPost(author.ID, "Imported again", true)
	dup.SourceURL = post.SourceURL
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}
