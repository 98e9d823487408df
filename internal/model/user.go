// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
// 階層構造は持たず、完全一致でのみ判定する（adminはuserを包含しない）。
type Role string

const (
	// RoleUser は一般ユーザーのロール。
	RoleUser Role = "user"
	// RoleAdmin は管理者のロール。
	RoleAdmin Role = "admin"
)

// Valid はロールが定義済みの値であるかを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// PasswordHashが空文字列のユーザーは外部IdP経由でのみ作成されたユーザーであり、
// パスワードログインは常に失敗する。
type User struct {
	ID           string
	Email        string
	Name         string
	Age          int
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword はパスワードログイン可能なユーザーであるかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
