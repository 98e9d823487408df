// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/bookshelf/internal/model"
)

// ErrDuplicateEmail はemailのユニーク制約違反を表す。
// Create/Updateが返し、呼び出し側でConflictまたはバリデーションエラーに変換する。
var ErrDuplicateEmail = errors.New("email already in use")

// ErrNotFound は更新・削除対象のレコードが存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
	// emailは保存された値との完全一致で照合する（大文字小文字を区別する）。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。
	// emailが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はname, email, age, roleを更新し、更新後のユーザーを返す。
	// password_hashはこの経路では変更されない。
	// 対象が存在しない場合はErrNotFound、email重複はErrDuplicateEmailを返す。
	UpdateProfile(ctx context.Context, user *model.User) (*model.User, error)

	// Delete は指定IDのユーザーを削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// BookRepository は蔵書データの永続化インターフェース。
type BookRepository interface {
	// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// List は全蔵書を作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Book, error)

	// Create は蔵書を作成する。
	Create(ctx context.Context, book *model.Book) error

	// Update は蔵書を上書き更新し、更新後の蔵書を返す。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, book *model.Book) (*model.Book, error)

	// Delete は指定IDの蔵書を削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}
