package model

import "time"

// MaxTitleLength はタイトルの最大文字数（rune単位）。
const MaxTitleLength = 200

// Summary はAIによって生成される構造化サマリー。
// エンリッチメントが行われていない場合は全フィールドが空となる。
type Summary struct {
	Context     string
	CoreIdeas   []string
	Actionables []string
}

// EmptySummary は全フィールドが空（スライスは非nil）のSummaryを返す。
func EmptySummary() Summary {
	return Summary{
		Context:     "",
		CoreIdeas:   []string{},
		Actionables: []string{},
	}
}

// Post はブログ投稿を表す。
// AuthorIDは作成時に一度だけ設定され、以後変更されない。
type Post struct {
	ID           string
	Title        string
	Content      string
	Summary      Summary
	Notes        string
	CoverImage   string
	Tags         []string
	AuthorID     string
	Author       AuthorRef
	IsPublished  bool
	Views        int64
	QualityScore float64
	SourceURL    string // フィードインポート元の記事URL（手動作成時は空）
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOwnedBy は指定ユーザーが投稿の著者かどうかを返す。
func (p *Post) IsOwnedBy(userID string) bool {
	return userID != "" && p.AuthorID == userID
}

// PostQuery は公開投稿一覧の検索条件。
type PostQuery struct {
	Search string
	Tag    string
	Offset int
	Limit  int
}

// Enrichment はSummary Enrichment Gatewayの出力。
type Enrichment struct {
	Summary Summary
	Tags    []string
}
