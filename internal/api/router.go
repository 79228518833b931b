package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"arena-shooter/internal/game"
)

// EngineInterface defines the game engine methods used by the API.
// This interface enables mocking for tests without spinning up the full game loop.
type EngineInterface interface {
	Join(id, name string) error
	SetInput(id string, dirs game.Directions) error
	Shoot(id string, angle float64) error
	Disconnect(id string) error
	Restart() error
	End(ctx context.Context) ([]game.KillEntry, error)

	// Snapshot returns the latest immutable snapshot
	Snapshot() *game.Snapshot
	Ticking() bool
	TickRate() int
	EventLogStats() map[string]any
}

// ClientCounter reports live websocket connections for /api/stats.
type ClientCounter interface {
	ClientCount() int
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Clients is optional; without it /api/stats reports zero connections.
	Clients ClientCounter

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	CORSOrigins []string

	// AdminToken guards the match control endpoints when set.
	AdminToken string

	// StaticFilesDir serves the browser client at /. Empty disables it.
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine  EngineInterface
	clients ClientCounter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter's cleanup
// goroutine when none is supplied. No listeners are opened.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		engine:  cfg.Engine,
		clients: cfg.Clients,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/scoreboard", h.handleGetScoreboard)
		r.Get("/stats", h.handleGetStats)
		r.Get("/minimap.png", h.handleGetMinimap)

		r.Route("/game", func(r chi.Router) {
			r.Use(adminTokenMiddleware(cfg.AdminToken))
			r.Post("/restart", h.handleRestart)
			r.Post("/end", h.handleEnd)
		})
	})

	if cfg.StaticFilesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticFilesDir)))
	}

	return r
}
