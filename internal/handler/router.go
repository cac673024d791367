package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/slotkeeper/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	LoginLimiter      *middleware.RateLimiter
	// TokenVerifierが設定されている場合、書き込み系APIにトークンを要求する
	TokenVerifier middleware.TokenVerifier

	// サービス
	PlatformService     PlatformServiceInterface
	SubscriptionService SubscriptionServiceInterface
	AuthService         AuthServiceInterface
	SnapshotService     SnapshotServiceInterface
	HealthChecker       HealthChecker

	// メトリクス
	Recorder       Recorder
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → (AuthGate) を /api/platforms, /api/subscriptions, /api/data に適用
//	LoginLimiter を /api/security/login に適用
//
// ログ、リカバリー、セキュリティヘッダーはapp側でルーター全体に適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	platformHandler := NewPlatformHandler(deps.PlatformService, deps.Recorder)
	subHandler := NewSubscriptionHandler(deps.SubscriptionService, deps.Recorder)
	securityHandler := NewSecurityHandler(deps.AuthService, deps.Recorder)
	dataHandler := NewDataHandler(deps.SnapshotService, deps.Recorder)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/security", func(r chi.Router) {
		r.Post("/setup", securityHandler.Setup)
		if deps.LoginLimiter != nil {
			r.With(deps.LoginLimiter.Middleware("login")).Post("/login", securityHandler.Login)
		} else {
			r.Post("/login", securityHandler.Login)
		}
		r.Get("/status", securityHandler.Status)
	})

	r.Group(func(r chi.Router) {
		if deps.TokenVerifier != nil {
			r.Use(middleware.NewAuthGateMiddleware(deps.TokenVerifier))
		}

		r.Route("/api/platforms", func(r chi.Router) {
			r.Get("/", platformHandler.ListPlatforms)
			r.Post("/", platformHandler.CreatePlatform)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", platformHandler.UpdatePlatform)
				r.Delete("/", platformHandler.DeletePlatform)
				r.Get("/available-profiles", platformHandler.AvailableProfiles)
			})
		})

		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Get("/", subHandler.ListSubscriptions)
			r.Post("/", subHandler.CreateSubscription)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", subHandler.GetSubscription)
				r.Put("/", subHandler.UpdateSubscription)
				r.Delete("/", subHandler.DeleteSubscription)
			})
		})

		r.Get("/api/data", dataHandler.Export)
		r.Post("/api/data", dataHandler.Import)
	})

	return r
}
