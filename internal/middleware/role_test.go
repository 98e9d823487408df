package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/bookshelf/internal/model"
)

func TestRequireRole_MatchingRole_Passes(t *testing.T) {
	mw := RequireRole(model.RoleAdmin)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/users/u1", nil)
	ctx := ContextWithUser(req.Context(), &model.User{ID: "admin-1", Role: model.RoleAdmin})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req.WithContext(ctx))

	if !called {
		t.Error("handler should be called for matching role")
	}
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRequireRole_WrongRole_Returns403(t *testing.T) {
	mw := RequireRole(model.RoleAdmin)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/users/u1", nil)
	ctx := ContextWithUser(req.Context(), &model.User{ID: "user-1", Role: model.RoleUser})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req.WithContext(ctx))

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeForbidden)
	}
}

// ロールに階層がないこと（adminもuser指定のルートでは拒否）を検証
func TestRequireRole_ExactMatchNoHierarchy(t *testing.T) {
	mw := RequireRole(model.RoleUser)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user-only", nil)
	ctx := ContextWithUser(req.Context(), &model.User{ID: "admin-1", Role: model.RoleAdmin})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req.WithContext(ctx))

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRequireRole_NoUserInContext_Returns401(t *testing.T) {
	mw := RequireRole(model.RoleAdmin)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/users/u1", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
