package router

import (
	"net/http"

	"github.com/cocsc-web/api/internal/config"
	"github.com/cocsc-web/api/internal/enum"
	"github.com/cocsc-web/api/internal/handler"
	mw "github.com/cocsc-web/api/internal/middleware"
	"github.com/cocsc-web/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AdminStore covers both login lookups and account management.
type AdminStore interface {
	handler.AuthStore
	handler.AdminStore
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Admins  AdminStore
	Orders  handler.OrderServicer
	Reports handler.ReportsStore
	Hub     *ws.Hub
	Logger  *zap.Logger
}

// New creates a Chi router with all application routes wired up.
// Order reads and receipt uploads are public; listing, editing and deleting
// orders require an admin token.
func New(cfg *config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.Metrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	health := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
	r.Get("/health", health)
	r.Handle("/metrics", promhttp.Handler())

	// Stored receipt files. Inline receipts travel as data URIs instead.
	if cfg.ReceiptStorage == "file" {
		prefix := cfg.ReceiptURLPrefix
		r.Handle(prefix+"*", http.StripPrefix(prefix, noDirListing(http.FileServer(http.Dir(cfg.ReceiptDir)))))
	}

	// WebSocket feeds (admin feed checks its token from the query string)
	wsHandler := ws.NewHandler(deps.Hub, cfg.JWTSecret, deps.Logger)
	r.Route("/ws", wsHandler.RegisterRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health)

		authHandler := handler.NewAuthHandler(deps.Admins, cfg.JWTSecret, deps.Logger)
		authHandler.RegisterRoutes(r)

		orderHandler := handler.NewOrderHandler(deps.Orders, deps.Logger)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))
				r.Use(mw.RequireRole(enum.AdminRole))
				orderHandler.RegisterAdminRoutes(r)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.AdminRole))
			reportsHandler := handler.NewReportsHandler(deps.Reports, deps.Logger)
			r.Route("/reports", reportsHandler.RegisterRoutes)

			adminHandler := handler.NewAdminHandler(deps.Admins, deps.Logger)
			r.Route("/admins", adminHandler.RegisterRoutes)
		})
	})

	deps.Logger.Info("router initialized", zap.Bool("receipt_files", cfg.ReceiptStorage == "file"))
	return r
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
