package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/api/middleware"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/gateway"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/handlers"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore may be
// nil; the rate limiter then passes everything through.
func NewRouter(logger zerolog.Logger, st store.MessageStore, redisStore *store.RedisStore, gw *gateway.Gateway, room string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	var redisClient *redis.Client
	if redisStore != nil {
		redisClient = redisStore.Client()
	}
	limiter := middleware.NewRateLimiter(redisClient, logger)
	r.Use(limiter.Middleware)

	// CORS - the browser UI is served from another origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(st, redisStore, gw, room)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Session channel
	r.Get("/ws", gw.ServeWS)

	// REST surface for the browser UI
	r.Route("/api", func(r chi.Router) {
		r.Get("/messages", h.ListMessages)
		r.Delete("/messages/{id}", h.DeleteMessage)
		r.Get("/users", h.OnlineUsers)
		r.Get("/stats", h.Stats)
	})

	return r
}
