package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookshelf/internal/auth"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

// UserRegistrar はユーザー作成に必要なサービスインターフェース。
// 認証サービスの部分集合として定義する。
type UserRegistrar interface {
	RegisterManual(ctx context.Context, in auth.ManualRegistration) (*model.User, string, error)
	RegisterDelegated(ctx context.Context, in auth.DelegatedRegistration) (*model.User, string, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	users     repository.UserRepository
	registrar UserRegistrar
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users repository.UserRepository, registrar UserRegistrar) *UserHandler {
	return &UserHandler{
		users:     users,
		registrar: registrar,
	}
}

// createUserRequest はユーザー作成リクエストのボディ。
// passwordの有無で通常登録と外部IdP連携登録を区別する。
type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Role     string `json:"role"`
}

// updateUserRequest はユーザー更新リクエストのボディ。
// パスワードはこの経路では変更できない。
type updateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Role  string `json:"role"`
}

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List はユーザー一覧を取得する。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]userResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, toUserResponse(user))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Get はユーザー詳細を取得する。
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// Create はユーザーを作成する。
// passwordフィールドがある場合は通常登録、ない場合は外部IdP連携登録として扱う。
// POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if detail, ok := validateCreateUser(&req); !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(detail))
		return
	}

	var (
		user *model.User
		err  error
	)
	if req.Password != "" {
		user, _, err = h.registrar.RegisterManual(r.Context(), auth.ManualRegistration{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Age:      req.Age,
			Role:     model.Role(req.Role),
		})
	} else {
		user, _, err = h.registrar.RegisterDelegated(r.Context(), auth.DelegatedRegistration{
			Email: req.Email,
			Name:  req.Name,
			Age:   req.Age,
		})
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// Update はユーザーのプロフィールを更新する。
// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if detail, ok := validateUpdateUser(&req); !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(detail))
		return
	}

	current, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if current == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	// 指定されたフィールドだけを上書きする
	if req.Email != "" {
		current.Email = req.Email
	}
	if req.Name != "" {
		current.Name = req.Name
	}
	if req.Age > 0 {
		current.Age = req.Age
	}
	if req.Role != "" {
		current.Role = model.Role(req.Role)
	}

	updated, err := h.users.UpdateProfile(r.Context(), current)
	if err != nil {
		// 更新経路でのメールアドレス重複は422ではなくバリデーションエラーとして返す
		if errors.Is(err, repository.ErrDuplicateEmail) {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("このemailは既に使用されています"))
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(updated))
}

// Delete はユーザーを削除する。adminロールのみ実行できる。
// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.users.Delete(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
			return
		}
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- バリデーション ---

// validateCreateUser はユーザー作成リクエストを検証する。
// passwordの有無で必須フィールドの組み合わせが変わる。
func validateCreateUser(req *createUserRequest) (string, bool) {
	if req.Email == "" {
		return "emailは必須です", false
	}
	if !validEmail(req.Email) {
		return "emailの形式が正しくありません", false
	}
	if req.Role != "" && !model.Role(req.Role).Valid() {
		return "roleはuserまたはadminを指定してください", false
	}
	// 名前と年齢はどちらの登録経路でも必須
	if len(req.Name) < 3 {
		return "nameは3文字以上で指定してください", false
	}
	if req.Age < 1 {
		return "ageは1以上で指定してください", false
	}
	if req.Password != "" && len(req.Password) < 8 {
		return "passwordは8文字以上で指定してください", false
	}

	return "", true
}

// validateUpdateUser はユーザー更新リクエストを検証する。
// 全フィールドが省略可能で、省略されたフィールドは現在値を維持する。
func validateUpdateUser(req *updateUserRequest) (string, bool) {
	if req.Email != "" && !validEmail(req.Email) {
		return "emailの形式が正しくありません", false
	}
	if req.Name != "" && len(req.Name) < 3 {
		return "nameは3文字以上で指定してください", false
	}
	if req.Age < 0 {
		return "ageは1以上で指定してください", false
	}
	if req.Role != "" && !model.Role(req.Role).Valid() {
		return "roleはuserまたはadminを指定してください", false
	}
	return "", true
}

// validEmail はメールアドレスの形式を検証する。
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Age:       user.Age,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
