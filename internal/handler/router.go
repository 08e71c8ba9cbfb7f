package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/castsite/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	GeneralLimiter    *middleware.RateLimiter
	SyncLimiter       *middleware.RateLimiter

	// ヘルスチェックとメトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 同期
	SyncService SyncServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → CORS → Session → Logging → OriginCheck → RateLimit(General)
//
// /health と /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.With(middleware.NewLoggingMiddleware(deps.Logger)).Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	podcastHandler := NewPodcastHandler(deps.SyncService, deps.Logger)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.Logger))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewOriginCheckMiddleware(deps.CORSAllowedOrigin, deps.Logger))
		if deps.GeneralLimiter != nil {
			r.Use(deps.GeneralLimiter.Middleware())
		}

		r.Route("/api/podcasts", func(r chi.Router) {
			// 取り込みと同期はフィード取得とAPIクォータを消費するため専用の制限を追加する
			r.Group(func(r chi.Router) {
				if deps.SyncLimiter != nil {
					r.Use(deps.SyncLimiter.Middleware())
				}

				r.Post("/", podcastHandler.ImportPodcast)
				r.Route("/{id}/sync", func(r chi.Router) {
					r.Post("/", podcastHandler.SyncPodcast)
					r.Post("/rss", podcastHandler.SyncFeed)
					r.Post("/youtube", podcastHandler.SyncYouTube)
				})
			})
		})
	})

	return r
}
