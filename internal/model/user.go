// Package model はドメインモデルを定義する。
package model

import "time"

// User はブログの執筆者・閲覧者となる登録ユーザーを表す。
// PasswordHash はbcryptのハッシュ値であり、クライアントへ返してはならない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthorRef は投稿に埋め込む著者情報。
// 一覧系ではName/Avatarのみ、詳細取得ではEmailも含める。
type AuthorRef struct {
	ID     string
	Name   string
	Avatar string
	Email  string
}

// Ref はユーザーからAuthorRefを生成する。includeEmailがfalseの場合はEmailを空にする。
func (u *User) Ref(includeEmail bool) AuthorRef {
	ref := AuthorRef{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
	}
	if includeEmail {
		ref.Email = u.Email
	}
	return ref
}
