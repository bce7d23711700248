package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/revicx/blade/internal/metrics"
	"github.com/revicx/blade/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	TokenValidator    middleware.TokenValidator
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CookieSecure      bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// スペース
	SpaceService SpaceServiceInterface
	SpaceSeeder  SpaceDefaultsSeeder

	// トークン管理
	TokenService TokenServiceInterface

	// コンテンツ管理
	ContentService ContentServiceInterface
	FeedImporter   FeedImporterInterface

	// コンテンツAPI（トークン保護）
	PublishedReader  PublishedContentReader
	SchemaReader     SchemaReader
	ContentAPISpaces ContentAPISpaceResolver
	SpaceFinder      SpaceFinder

	// 公開サイト
	SiteHandler *SiteHandler

	// 観測
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →
//	  管理API: Session → CSRF → RateLimit(General)
//	  コンテンツAPI: OptionalSession → ReadAccess → RateLimit(General)
//	  公開サイト・認証ルート: ミドルウェアチェーンの外
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	spaceHandler := NewSpaceHandler(deps.SpaceService, deps.SpaceSeeder)
	tokenHandler := NewTokenHandler(deps.TokenService)
	contentHandler := NewContentHandler(deps.ContentService, deps.FeedImporter, deps.Collector)
	contentAPIHandler := NewContentAPIHandler(deps.PublishedReader, deps.SchemaReader, deps.ContentAPISpaces, deps.SpaceFinder, deps.Collector)

	// --- 認証不要のルート ---

	// OAuthフロー
	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.Login)
		r.Get("/github/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
	})

	// CSRFトークン配布
	r.Method(http.MethodGet, "/api/csrf", middleware.NewCSRFTokenHandler(deps.CookieSecure))

	// 公開サイト
	r.Get("/", deps.SiteHandler.Home)
	r.Get("/p/{slug}", deps.SiteHandler.Page)
	r.Get("/feed.xml", deps.SiteHandler.Feed)

	// 運用エンドポイント
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// --- セッション必須の管理API ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CookieSecure))
		r.Use(deps.RateLimiter.GeneralMiddleware)

		r.Get("/api/me", authHandler.Me)

		// スペース管理
		r.Route("/api/spaces", func(r chi.Router) {
			r.Get("/", spaceHandler.ListSpaces)
			r.Post("/", spaceHandler.CreateSpace)

			r.Route("/{spaceID}", func(r chi.Router) {
				r.Get("/", spaceHandler.GetSpace)
				r.Patch("/", spaceHandler.UpdateSpace)
				r.Delete("/", spaceHandler.DeleteSpace)

				// メンバー管理
				r.Route("/members", func(r chi.Router) {
					r.Get("/", spaceHandler.ListMembers)
					r.Post("/", spaceHandler.AddMember)
					r.Delete("/{userID}", spaceHandler.RemoveMember)
				})

				// お気に入り
				r.Put("/favorite", spaceHandler.Favorite)
				r.Delete("/favorite", spaceHandler.Unfavorite)

				// コンポーネント
				r.Route("/components", func(r chi.Router) {
					r.Get("/", contentHandler.ListComponents)
					r.Post("/", contentHandler.CreateComponent)
					r.Delete("/{componentID}", contentHandler.DeleteComponent)
				})

				// コンテンツタイプ
				r.Route("/content-types", func(r chi.Router) {
					r.Get("/", contentHandler.ListContentTypes)
					r.Post("/", contentHandler.CreateContentType)
				})

				// エントリ
				r.Route("/entries", func(r chi.Router) {
					r.Get("/", contentHandler.ListEntries)
					r.Post("/", contentHandler.CreateEntry)
					r.Put("/reorder", contentHandler.ReorderEntries)
					r.Post("/import", contentHandler.ImportFeed)
					r.Get("/{slug}", contentHandler.GetEntry)
					r.Put("/id/{entryID}", contentHandler.UpdateEntry)
					r.Delete("/id/{entryID}", contentHandler.DeleteEntry)
				})
			})
		})

		// トークン管理
		r.Route("/api/admin/tokens", func(r chi.Router) {
			r.Get("/", tokenHandler.ListTokens)
			// 発行は専用レート制限を追加
			r.With(deps.RateLimiter.TokenMintMiddleware).Post("/", tokenHandler.MintToken)
			r.Delete("/{tokenID}", tokenHandler.RevokeToken)
		})
	})

	// --- トークンまたはセッションで読めるコンテンツAPI ---
	// ミドルウェアスタック: OptionalSession → ReadAccess → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewReadAccessMiddleware(deps.TokenValidator, deps.Collector))
		r.Use(deps.RateLimiter.GeneralMiddleware)

		r.Route("/api/content", func(r chi.Router) {
			r.Get("/entries", contentAPIHandler.ListEntries)
			r.Get("/entries/{slug}", contentAPIHandler.GetEntry)
			r.Get("/content-types", contentAPIHandler.ListContentTypes)
			r.Get("/components", contentAPIHandler.ListComponents)
		})
	})

	return r
}
