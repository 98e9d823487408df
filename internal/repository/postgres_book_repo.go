package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用した蔵書リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

const bookColumns = `id, title, author, isbn, description, published_date, created_at, updated_at`

// scanBook は1行をmodel.Bookに読み込む。published_dateはNULL許容。
func scanBook(row *sql.Row) (*model.Book, error) {
	book := &model.Book{}
	var published sql.NullTime
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.ISBN,
		&book.Description, &published, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if published.Valid {
		book.PublishedDate = &published.Time
	}
	return book, nil
}

// FindByID は指定IDの蔵書を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, id)

	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find book by ID: %w", err)
	}
	return book, nil
}

// List は全蔵書を作成日時の昇順で返す。
func (r *PostgresBookRepo) List(ctx context.Context) ([]*model.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		book := &model.Book{}
		var published sql.NullTime
		err := rows.Scan(
			&book.ID, &book.Title, &book.Author, &book.ISBN,
			&book.Description, &published, &book.CreatedAt, &book.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		if published.Valid {
			book.PublishedDate = &published.Time
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}

	return books, nil
}

// Create は蔵書を作成する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, isbn, description, published_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		book.ID, book.Title, book.Author, book.ISBN,
		book.Description, nullTime(book.PublishedDate), book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}

	return nil
}

// Update は蔵書を上書き更新し、更新後の蔵書を返す。
func (r *PostgresBookRepo) Update(ctx context.Context, book *model.Book) (*model.Book, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE books
		 SET title = $2, author = $3, isbn = $4, description = $5, published_date = $6, updated_at = $7
		 WHERE id = $1
		 RETURNING `+bookColumns,
		book.ID, book.Title, book.Author, book.ISBN,
		book.Description, nullTime(book.PublishedDate), book.UpdatedAt,
	)

	updated, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	return updated, nil
}

// Delete は指定IDの蔵書を削除する。
func (r *PostgresBookRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// nullTime は*time.TimeをNULL許容のドライバ値に変換する。
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
