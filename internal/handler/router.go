package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogmind/internal/metrics"
	"github.com/hitoshi/blogmind/internal/middleware"
	"github.com/hitoshi/blogmind/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Identity          middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// nilの場合は /metrics を公開しない
	MetricsHandler http.Handler
	// nilの場合はデータベースの疎通確認を行わない
	Health Pinger

	AuthService AuthServiceInterface
	UserService UserServiceInterface
	BlogService BlogServiceInterface
	Summarizer  SummarizerInterface
	Importer    ImporterInterface

	// SummarizeRequireAuth がtrueの場合、AI要約に認証を要求する
	SummarizeRequireAuth bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → Auth(任意) → RateLimit(General)
//
// 認証必須のルートにはRequireAuthを個別に付与する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// サブルーターに引き継がれるよう、ルート定義より先に設定する
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	health := NewHealthHandler(deps.Health)
	r.Get("/health", health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService)
	blogHandler := NewBlogHandler(deps.BlogService)
	aiHandler := NewAIHandler(deps.Summarizer)
	importHandler := NewImportHandler(deps.Importer)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Identity))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/health", health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(middleware.RequireAuth).Get("/me", authHandler.Me)
			r.With(middleware.RequireAuth).Patch("/me/avatar", authHandler.UpdateAvatar)
		})

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", blogHandler.List)
			r.Get("/tags", blogHandler.ListTags)
			r.With(middleware.RequireAuth).Post("/", blogHandler.Create)
			r.With(middleware.RequireAuth).Get("/my-blogs", blogHandler.ListMine)
			r.With(middleware.RequireAuth).Post("/import", importHandler.Import)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", blogHandler.Get)
				r.With(middleware.RequireAuth).Put("/", blogHandler.Update)
				r.With(middleware.RequireAuth).Delete("/", blogHandler.Delete)
				r.With(middleware.RequireAuth).Patch("/notes", blogHandler.UpdateNotes)
			})
		})

		r.Route("/ai", func(r chi.Router) {
			var summarize chi.Router = r
			if deps.SummarizeRequireAuth {
				summarize = summarize.With(middleware.RequireAuth)
			}
			if deps.RateLimiter != nil {
				summarize = summarize.With(deps.RateLimiter.SummarizeMiddleware())
			}
			summarize.Post("/summarize", aiHandler.Summarize)
		})
	})

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
		Code:     "ROUTE_NOT_FOUND",
		Message:  "Route not found",
		Category: "system",
		Action:   "Check the request path.",
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
}
