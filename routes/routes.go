package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/book-feed/app"
	"github.com/upb/book-feed/handlers"
	appmiddleware "github.com/upb/book-feed/middleware"
	"github.com/upb/book-feed/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware. No Timeout middleware: websocket streams are long lived.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Sec-WebSocket-Protocol"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check endpoints
	var topics handlers.SubscriberCounter
	if deps.Broker != nil {
		topics = deps.Broker
	}
	health := handlers.NewHealthHandler(topics, deps.Config.Feed.Topic, deps.Schema != nil, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// GraphQL over POST and graphql-ws on both paths
	if deps.GraphQL != nil {
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.PermissionCache)
			r.Handle("/", deps.GraphQL)
			r.Handle("/graphql", deps.GraphQL)
		})
	}

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
