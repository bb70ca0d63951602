// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/blogmind/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しない（または著者が一致しない）ことを示す。
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate は一意性制約違反を示す。
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateAvatar はユーザーのアバターを更新する。ユーザーが存在しない場合はErrNotFoundを返す。
	UpdateAvatar(ctx context.Context, id, avatar string) error
}

// PostRepository は投稿データの永続化インターフェース。
// 著者限定の書き込みはWHERE句にauthor_idを含め、一致しない場合はErrNotFoundを返す。
type PostRepository interface {
	// Create は投稿を作成する。CreatedAt/UpdatedAtはDBの値で上書きされる。
	// 同一著者で同一source_urlの投稿が既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を著者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ListPublished は公開済み投稿を検索条件に従って取得し、条件に一致する総件数と共に返す。
	ListPublished(ctx context.Context, query model.PostQuery) ([]*model.Post, int, error)

	// ListByAuthor は著者の全投稿（非公開を含む）を作成日時の降順で返す。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Post, error)

	// Update は投稿を著者限定で全置換する。
	Update(ctx context.Context, post *model.Post) error

	// UpdateNotes は投稿のメモのみを著者限定で更新する。
	UpdateNotes(ctx context.Context, id, authorID, notes string) error

	// Delete は投稿を著者限定で物理削除する。
	Delete(ctx context.Context, id, authorID string) error

	// IncrementViews は閲覧数をアトミックに1増やし、増加後の値を返す。
	IncrementViews(ctx context.Context, id string) (int64, error)

	// DistinctTags は全投稿のタグを重複なしで辞書順に返す。
	DistinctTags(ctx context.Context) ([]string, error)

	// ExistsBySource は著者が指定URLからインポート済みの投稿を持つかを返す。
	ExistsBySource(ctx context.Context, authorID, sourceURL string) (bool, error)
}
