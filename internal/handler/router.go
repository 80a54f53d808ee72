package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/handler/admin"
	"github.com/zhouzirui/med-assist/backend/internal/handler/chat"
	"github.com/zhouzirui/med-assist/backend/internal/handler/health"
	"github.com/zhouzirui/med-assist/backend/internal/handler/jurisdiction"
	middlewarePkg "github.com/zhouzirui/med-assist/backend/internal/middleware"
	jurisdictionModel "github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
	chatService "github.com/zhouzirui/med-assist/backend/internal/service/chat"
)

// Dependencies are the services the HTTP layer routes to.
type Dependencies struct {
	Server        config.ServerConfig
	Production    bool
	Chat          *chatService.Service
	Dashboards    admin.Dashboards
	Jurisdictions jurisdictionModel.Store
	// StreamInterval is the admin dashboard SSE refresh period.
	StreamInterval time.Duration
	// Store is pinged by /healthz when set.
	Store health.Pinger
}

// NewRouter wires HTTP routes to core services. The chat routes are served
// both at the root and under /api.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if deps.Server.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middlewarePkg.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	chatHandler := chat.New(deps.Chat, deps.Production, deps.Server.AllowedOrigins)
	jurisdictionHandler := jurisdiction.New(deps.Jurisdictions)

	health.New(deps.Store).RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)
	jurisdictionHandler.RegisterRoutes(r)
	admin.New(deps.Dashboards, deps.StreamInterval).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		jurisdictionHandler.RegisterRoutes(api)
	})

	return r
}
