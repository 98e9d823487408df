// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookshelf/internal/auth"
	"github.com/hitoshi/bookshelf/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RegisterManual(ctx context.Context, in auth.ManualRegistration) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	AuthCodeURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.User, string, error)
}

// LoginMetricsRecorder はログイン結果のメトリクス記録に必要なインターフェース。
type LoginMetricsRecorder interface {
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
}

// AuthHandler はパスワード認証とGoogle OAuth認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics LoginMetricsRecorder
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, metrics LoginMetricsRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Role     string `json:"role"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は認証成功時のレスポンス。
type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Register はメールアドレスとパスワードによるユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("emailは必須です"))
		return
	}
	if !validEmail(req.Email) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("emailの形式が正しくありません"))
		return
	}
	if len(req.Password) < 8 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("passwordは8文字以上で指定してください"))
		return
	}

	role := model.Role(req.Role)
	if req.Role != "" && !role.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("roleはuserまたはadminを指定してください"))
		return
	}

	user, token, err := h.service.RegisterManual(r.Context(), auth.ManualRegistration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Age:      req.Age,
		Role:     role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(authResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// Login はメールアドレスとパスワードによるログインを処理する。
// 存在しないメールアドレスとパスワード不一致は区別せず、同一の401を返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("emailとpasswordは必須です"))
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials && h.metrics != nil {
			h.metrics.RecordLoginFailure("password")
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess("password")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
		return
	}

	url := h.service.AuthCodeURL(state)
	if url == "" {
		// Google認証が構成されていない
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewValidationError("Google認証は利用できません"))
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// 成功時はセッショントークン付きで成功ページへリダイレクトする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Redirect(w, r, h.config.BaseURL+"/auth/google/fail", http.StatusTemporaryRedirect)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, h.config.BaseURL+"/auth/google/fail", http.StatusTemporaryRedirect)
		return
	}

	// 3. 認可コードをセッショントークンに交換
	_, token, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		if h.metrics != nil {
			h.metrics.RecordLoginFailure("google")
		}
		http.Redirect(w, r, h.config.BaseURL+"/auth/google/fail", http.StatusTemporaryRedirect)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess("google")
	}

	http.Redirect(w, r, h.config.BaseURL+"/auth/success?token="+token, http.StatusTemporaryRedirect)
}

// AuthSuccess は認証成功ページ。クエリパラメータのトークンをJSONで返す。
// GET /auth/success?token=xxx
func (h *AuthHandler) AuthSuccess(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("tokenが指定されていません"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// GoogleFail はGoogle認証失敗時のレスポンスを返す。
// GET /auth/google/fail
func (h *AuthHandler) GoogleFail(w http.ResponseWriter, r *http.Request) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
}

// Logout はログアウトを処理する。
// セッショントークンはステートレスなため、サーバー側で破棄する状態はない。
// クライアントにトークンの破棄を促すための成功レスポンスのみを返す。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
