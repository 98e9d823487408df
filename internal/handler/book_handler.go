package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
	"github.com/hitoshi/bookshelf/internal/security"
)

// BookHandler は書籍管理のHTTPハンドラー。
// 全エンドポイントが認証不要の公開APIとして提供される。
type BookHandler struct {
	books     repository.BookRepository
	sanitizer security.ContentSanitizerService
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(books repository.BookRepository, sanitizer security.ContentSanitizerService) *BookHandler {
	return &BookHandler{
		books:     books,
		sanitizer: sanitizer,
	}
}

// bookRequest は書籍作成・更新リクエストのボディ。
type bookRequest struct {
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          string     `json:"isbn"`
	Description   string     `json:"description"`
	PublishedDate *time.Time `json:"published_date"`
}

// bookResponse は書籍情報のAPIレスポンス。
type bookResponse struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          string     `json:"isbn"`
	Description   string     `json:"description"`
	PublishedDate *time.Time `json:"published_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// List は書籍一覧を取得する。
// GET /api/books
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]bookResponse, 0, len(books))
	for _, book := range books {
		responses = append(responses, toBookResponse(book))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Get は書籍詳細を取得する。
// GET /api/books/{id}
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	book, err := h.books.FindByID(r.Context(), bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if book == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewBookNotFoundError(bookID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookResponse(book))
}

// Create は書籍を作成する。
// POST /api/books
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("titleは必須です"))
		return
	}

	now := time.Now()
	book := &model.Book{
		ID:            uuid.New().String(),
		Title:         h.sanitizer.SanitizeStrict(req.Title),
		Author:        h.sanitizer.SanitizeStrict(req.Author),
		ISBN:          h.sanitizer.SanitizeStrict(req.ISBN),
		Description:   h.sanitizer.Sanitize(req.Description),
		PublishedDate: req.PublishedDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.books.Create(r.Context(), book); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBookResponse(book))
}

// Update は書籍を更新する。
// PUT /api/books/{id}
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("titleは必須です"))
		return
	}

	current, err := h.books.FindByID(r.Context(), bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if current == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewBookNotFoundError(bookID))
		return
	}

	current.Title = h.sanitizer.SanitizeStrict(req.Title)
	current.Author = h.sanitizer.SanitizeStrict(req.Author)
	current.ISBN = h.sanitizer.SanitizeStrict(req.ISBN)
	current.Description = h.sanitizer.Sanitize(req.Description)
	current.PublishedDate = req.PublishedDate
	current.UpdatedAt = time.Now()

	updated, err := h.books.Update(r.Context(), current)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewBookNotFoundError(bookID))
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookResponse(updated))
}

// Delete は書籍を削除する。
// DELETE /api/books/{id}
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	if err := h.books.Delete(r.Context(), bookID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewBookNotFoundError(bookID))
			return
		}
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toBookResponse はmodel.BookからAPIレスポンスに変換する。
func toBookResponse(book *model.Book) bookResponse {
	return bookResponse{
		ID:            book.ID,
		Title:         book.Title,
		Author:        book.Author,
		ISBN:          book.ISBN,
		Description:   book.Description,
		PublishedDate: book.PublishedDate,
		CreatedAt:     book.CreatedAt,
		UpdatedAt:     book.UpdatedAt,
	}
}
