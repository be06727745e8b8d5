package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/fitfolio/internal/metrics"
	"github.com/hitoshi/fitfolio/internal/middleware"
	"github.com/hitoshi/fitfolio/internal/model"
	"github.com/hitoshi/fitfolio/internal/view"
)

// SessionBackend はルーターが必要とするセッションストアの操作。
type SessionBackend interface {
	middleware.SessionStore
	SessionCounter
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          SessionBackend
	SessionCookie     middleware.SessionCookieConfig
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// 画面フロー
	Flow     *FlowService
	Renderer PageRenderer
	Catalog  model.Catalog
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → Status(metrics)
//	  → [/api のみ CORS] → Session → Logging → RateLimit → CSRF
//
// 運用ルート（/health, /metrics, /static/*）とCSRFトークン取得はセッションを作らない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
		HSTS: deps.SessionCookie.CookieSecure,
	}))
	r.Use(metrics.NewStatusMiddleware(deps.Metrics))

	pageHandler := NewPageHandler(deps.Flow, deps.Renderer, deps.Catalog)
	apiHandler := NewAPIHandler(deps.Flow)

	sessionStack := []func(http.Handler) http.Handler{
		middleware.NewSessionMiddleware(deps.Sessions, deps.SessionCookie),
		middleware.NewLoggingMiddleware(logger),
		deps.RateLimiter.Middleware(),
		middleware.NewCSRFMiddleware(deps.CSRF),
	}

	// --- 運用ルート ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.Sessions))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	r.Method(http.MethodGet, "/static/*", view.StaticHandler("/static/"))

	// --- HTML画面 ---
	r.Group(func(r chi.Router) {
		r.Use(sessionStack...)

		r.Get("/", pageHandler.Show)
		r.Post("/start", pageHandler.Start)
		r.Post("/connect/{platform}", pageHandler.Connect)
		r.Post("/next", pageHandler.Next)
		r.Post("/candidate", pageHandler.SubmitCandidate)
		r.Post("/restart", pageHandler.Restart)
	})

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{deps.CORSAllowedOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		r.Route("/session", func(r chi.Router) {
			r.Use(sessionStack...)

			r.Get("/", apiHandler.GetSession)
			r.Post("/platforms", apiHandler.ConnectPlatform)
			r.Post("/transitions", apiHandler.RequestTransition)
			r.Put("/candidate", apiHandler.SetCandidate)
			r.Post("/reset", apiHandler.Reset)
			r.Get("/progress", apiHandler.GetProgress)
		})
	})

	return r
}
