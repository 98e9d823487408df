package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/bookshelf/internal/auth"
	"github.com/hitoshi/bookshelf/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerManualFn func(ctx context.Context, in auth.ManualRegistration) (*model.User, string, error)
	loginFn          func(ctx context.Context, email, password string) (*model.User, string, error)
	authCodeURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.User, string, error)
}

func (m *mockAuthService) RegisterManual(ctx context.Context, in auth.ManualRegistration) (*model.User, string, error) {
	if m.registerManualFn != nil {
		return m.registerManualFn(ctx, in)
	}
	return nil, "", nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, "", nil
}

func (m *mockAuthService) AuthCodeURL(state string) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.User, string, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, "", nil
}

type mockLoginMetrics struct {
	successes map[string]int
	failures  map[string]int
}

func newMockLoginMetrics() *mockLoginMetrics {
	return &mockLoginMetrics{
		successes: map[string]int{},
		failures:  map[string]int{},
	}
}

func (m *mockLoginMetrics) RecordLoginSuccess(provider string) { m.successes[provider]++ }
func (m *mockLoginMetrics) RecordLoginFailure(provider string) { m.failures[provider]++ }

// --- テスト ---

func TestAuthHandler_Register_Success(t *testing.T) {
	service := &mockAuthService{
		registerManualFn: func(ctx context.Context, in auth.ManualRegistration) (*model.User, string, error) {
			return &model.User{ID: "u1", Email: in.Email, Name: in.Name, Role: model.RoleUser}, "issued-token", nil
		},
	}
	h := NewAuthHandler(service, nil, AuthHandlerConfig{})

	body := `{"email":"a@x.com","password":"pw123456","name":"Alice","age":22}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp authResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Token != "issued-token" {
		t.Errorf("token = %q, want issued-token", resp.Token)
	}
	if resp.User.Email != "a@x.com" {
		t.Errorf("user.email = %q, want a@x.com", resp.User.Email)
	}
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, AuthHandlerConfig{})

	body := `{"email":"a@x.com","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuthHandler_Register_MalformedEmail(t *testing.T) {
	called := false
	service := &mockAuthService{
		registerManualFn: func(ctx context.Context, in auth.ManualRegistration) (*model.User, string, error) {
			called = true
			return &model.User{ID: "u1", Email: in.Email, Role: model.RoleUser}, "token", nil
		},
	}
	h := NewAuthHandler(service, nil, AuthHandlerConfig{})

	body := `{"email":"not-an-email","password":"pw123456"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("malformed email must not reach registration")
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeValidationFailed)
	}
}

func TestAuthHandler_Register_DuplicateEmail_Returns409(t *testing.T) {
	service := &mockAuthService{
		registerManualFn: func(ctx context.Context, in auth.ManualRegistration) (*model.User, string, error) {
			return nil, "", model.NewEmailConflictError()
		},
	}
	h := NewAuthHandler(service, nil, AuthHandlerConfig{})

	body := `{"email":"a@x.com","password":"pw123456"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	var body2 apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body2); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body2.Code != model.ErrCodeEmailConflict {
		t.Errorf("code = %q, want %q", body2.Code, model.ErrCodeEmailConflict)
	}
}

func TestAuthHandler_Login_Success_RecordsMetrics(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, string, error) {
			return &model.User{ID: "u1", Email: email, Role: model.RoleUser}, "login-token", nil
		},
	}
	metrics := newMockLoginMetrics()
	h := NewAuthHandler(service, metrics, AuthHandlerConfig{})

	body := `{"email":"a@x.com","password":"pw123456"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if metrics.successes["password"] != 1 {
		t.Errorf("login success metric = %d, want 1", metrics.successes["password"])
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, string, error) {
			return nil, "", model.NewInvalidCredentialsError()
		},
	}
	metrics := newMockLoginMetrics()
	h := NewAuthHandler(service, metrics, AuthHandlerConfig{})

	body := `{"email":"a@x.com","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if metrics.failures["password"] != 1 {
		t.Errorf("login failure metric = %d, want 1", metrics.failures["password"])
	}
}

func TestAuthHandler_Login_MissingFields_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, AuthHandlerConfig{})

	body := `{"email":"a@x.com"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuthHandler_GoogleLogin_RedirectsWithStateCookie(t *testing.T) {
	service := &mockAuthService{
		authCodeURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := NewAuthHandler(service, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	w := httptest.NewRecorder()

	h.GoogleLogin(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("state cookie should be set")
	}
	if !stateCookie.HttpOnly {
		t.Error("state cookie should be HttpOnly")
	}

	location := w.Result().Header.Get("Location")
	if !strings.Contains(location, "state="+stateCookie.Value) {
		t.Errorf("redirect location %q should carry the state", location)
	}
}

func TestAuthHandler_GoogleLogin_NotConfigured_Returns404(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	w := httptest.NewRecorder()

	h.GoogleLogin(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAuthHandler_GoogleCallback_Success_RedirectsWithToken(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*model.User, string, error) {
			return &model.User{ID: "u1", Email: "g@x.com"}, "google-token", nil
		},
	}
	metrics := newMockLoginMetrics()
	h := NewAuthHandler(service, metrics, AuthHandlerConfig{BaseURL: "http://localhost:8080"})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "xyz"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	location := w.Result().Header.Get("Location")
	if location != "http://localhost:8080/auth/success?token=google-token" {
		t.Errorf("location = %q, want success redirect with token", location)
	}
	if metrics.successes["google"] != 1 {
		t.Errorf("google login success metric = %d, want 1", metrics.successes["google"])
	}
}

func TestAuthHandler_GoogleCallback_StateMismatch_RedirectsToFail(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, AuthHandlerConfig{BaseURL: "http://localhost:8080"})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=attacker", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "legit"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want redirect", w.Code)
	}
	location := w.Result().Header.Get("Location")
	if !strings.HasSuffix(location, "/auth/google/fail") {
		t.Errorf("location = %q, want fail redirect", location)
	}
}

func TestAuthHandler_GoogleFail_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/fail", nil)
	w := httptest.NewRecorder()

	h.GoogleFail(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Logout_ReturnsOK(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]bool
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !resp["ok"] {
		t.Error("response should be {\"ok\":true}")
	}
}
