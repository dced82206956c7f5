package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"shortener/internal/auth"
	"shortener/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// routeOptions collects optional route behavior applied by SetupRoutes.
type routeOptions struct {
	otelServiceName string
	rateLimit       func(http.Handler) http.Handler
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeOptions)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(o *routeOptions) {
		o.otelServiceName = serviceName
	}
}

// WithRateLimiter adds rate limiting middleware to the API routes. It runs
// after authentication so the limiter sees the resolved identity; redirect
// and health endpoints are never rate limited.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(o *routeOptions) {
		o.rateLimit = middleware
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	options := &routeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	router := mux.NewRouter()

	if options.otelServiceName != "" {
		router.Use(otelmux.Middleware(options.otelServiceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	if config.Security.EnableAuth {
		api.Use(auth.Middleware(handlers.validator))
	}
	if options.rateLimit != nil {
		api.Use(options.rateLimit)
	}

	api.HandleFunc("/links", handlers.CreateLink).Methods("POST")
	api.HandleFunc("/links", handlers.ListLinks).Methods("GET")
	api.HandleFunc("/links/{id}", handlers.GetLink).Methods("GET")
	api.HandleFunc("/links/{id}", handlers.UpdateLink).Methods("PATCH")
	api.HandleFunc("/links/{id}", handlers.DeleteLink).Methods("DELETE")
	api.HandleFunc("/links/{id}/stats", handlers.GetLinkStats).Methods("GET")
	api.HandleFunc("/links/{id}/tags/{tag}", handlers.TagLink).Methods("PUT")
	api.HandleFunc("/links/{id}/tags/{tag}", handlers.UntagLink).Methods("DELETE")

	api.HandleFunc("/tags", handlers.CreateTag).Methods("POST")
	api.HandleFunc("/tags", handlers.ListTags).Methods("GET")
	api.HandleFunc("/tags/{name}", handlers.DeleteTag).Methods("DELETE")

	// Key management never accepts the default identity, even in
	// deployments that allow anonymous access elsewhere.
	keys := api.PathPrefix("/keys").Subrouter()
	if config.Security.EnableAuth {
		keys.Use(auth.RequireVerified())
	}
	keys.HandleFunc("", handlers.CreateAPIKey).Methods("POST")
	keys.HandleFunc("", handlers.ListAPIKeys).Methods("GET")
	keys.HandleFunc("/{id}", handlers.DeleteAPIKey).Methods("DELETE")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handlers.HealthCheck).Methods("GET")

	// The redirect route is registered last so it never shadows service
	// endpoints. Reserved slugs are also rejected at validation time.
	router.HandleFunc("/{slug}", handlers.Redirect).Methods("GET")

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest)
	json.NewEncoder(w).Encode(errorResp)
}

// corsMiddleware handles Cross-Origin Resource Sharing
func corsMiddleware(corsConfig models.CORSConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(corsConfig.AllowedOrigins) > 0 {
				origin := r.Header.Get("Origin")
				if origin != "" && (contains(corsConfig.AllowedOrigins, "*") || contains(corsConfig.AllowedOrigins, origin)) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
			if len(corsConfig.AllowedMethods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(corsConfig.AllowedMethods, ", "))
			}
			if len(corsConfig.AllowedHeaders) > 0 {
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(corsConfig.AllowedHeaders, ", "))
			}
			if corsConfig.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", corsConfig.MaxAge))
			}
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
