package middleware

import (
	"net/http"

	"github.com/hitoshi/bookshelf/internal/model"
)

// RequireRole は認証済みユーザーのロールが指定ロールと完全一致する場合のみ
// 後続ハンドラーへ進めるミドルウェアを返す。
// ロールに階層はなく、adminもuser指定のルートでは拒否される。
// 認証ミドルウェアの内側で使用すること。
func RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if user.Role != role {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
