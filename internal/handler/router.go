package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/bookshelf/internal/metrics"
	"github.com/hitoshi/bookshelf/internal/middleware"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
	"github.com/hitoshi/bookshelf/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	Metrics           *metrics.Collector
	Gatherer          prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	Registrar   UserRegistrar

	// リポジトリ
	UserRepo repository.UserRepository
	BookRepo repository.BookRepository

	// 書籍コンテンツのサニタイズ
	Sanitizer security.ContentSanitizerService

	// ヘルスチェック
	DB DBPinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// 認証が必要なルートはこの外側スタックに加えてAuth（とRequireRole）を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	// 型付きnilがインターフェースのnil判定をすり抜けないように明示的に変換する
	var loginMetrics LoginMetricsRecorder
	var verifyFailures middleware.VerifyFailureRecorder
	if deps.Metrics != nil {
		loginMetrics = deps.Metrics
		verifyFailures = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, loginMetrics, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserRepo, deps.Registrar)
	bookHandler := NewBookHandler(deps.BookRepo, deps.Sanitizer)
	systemHandler := NewSystemHandler(deps.DB)

	authMW := middleware.NewAuthMiddleware(deps.TokenVerifier, deps.UserRepo, verifyFailures)
	adminMW := middleware.RequireRole(model.RoleAdmin)

	// --- 認証不要のルート ---

	r.Get("/health", systemHandler.Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// 認証フロー
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
		r.Get("/success", authHandler.AuthSuccess)

		// Google OAuthフロー
		r.Get("/google", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
		r.Get("/google/fail", authHandler.GoogleFail)
	})

	// 書籍は全操作が公開API
	r.Route("/api/books", func(r chi.Router) {
		r.Get("/", bookHandler.List)
		r.Post("/", bookHandler.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", bookHandler.Get)
			r.Put("/", bookHandler.Update)
			r.Delete("/", bookHandler.Delete)
		})
	})

	// ユーザー作成は認証不要（登録エンドポイントと同等）
	r.Post("/api/users", userHandler.Create)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(authMW)

		r.Get("/api/users", userHandler.List)
		r.Get("/api/users/{id}", userHandler.Get)
		r.Put("/api/users/{id}", userHandler.Update)

		r.Get("/api/secret", systemHandler.Secret)

		// adminロールのみ
		r.Group(func(r chi.Router) {
			r.Use(adminMW)
			r.Delete("/api/users/{id}", userHandler.Delete)
			r.Delete("/api/admin-only", systemHandler.AdminOnly)
		})
	})

	return r
}
