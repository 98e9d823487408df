package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookshelf/internal/middleware"
	"github.com/hitoshi/bookshelf/internal/model"
)

// DBPinger はヘルスチェックに必要なデータベース接続確認のインターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler はヘルスチェックとアクセス制御確認用のエンドポイントを提供する。
type SystemHandler struct {
	db DBPinger
}

// NewSystemHandler はSystemHandlerを生成する。
func NewSystemHandler(db DBPinger) *SystemHandler {
	return &SystemHandler{db: db}
}

// Health はヘルスチェックを処理する。データベース接続も確認する。
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Secret は認証済みユーザーのみがアクセスできる確認用エンドポイント。
// GET /api/secret
func (h *SystemHandler) Secret(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "認証済みユーザーのみが閲覧できます",
		"email":   user.Email,
	})
}

// AdminOnly はadminロールのみがアクセスできる確認用エンドポイント。
// DELETE /api/admin-only
func (h *SystemHandler) AdminOnly(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "管理者のみが閲覧できます",
	})
}
