package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig holds the transport settings for Server.
type ServerConfig struct {
	CORSOrigins    []string
	AdminToken     string
	StaticFilesDir string
	RateLimit      RateLimitConfig
	MessageRate    MessageRateConfig
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer wires the router and the hub to engine. The hub must be the
// publisher the engine was created with.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
func NewServer(engine EngineInterface, hub *WebSocketHub, cfg ServerConfig) *Server {
	hub.Attach(engine)

	s := &Server{
		engine:      engine,
		wsHub:       hub,
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
	}

	s.router = NewRouter(RouterConfig{
		Engine:         engine,
		Clients:        hub,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    cfg.CORSOrigins,
		AdminToken:     cfg.AdminToken,
		StaticFilesDir: cfg.StaticFilesDir,
	})

	s.setupWebSocketRoutes()
	return s
}

// setupWebSocketRoutes adds WebSocket-specific routes to the router.
// These routes need access to the wsHub instance, so they can't be
// part of the generic NewRouter factory.
func (s *Server) setupWebSocketRoutes() {
	// Socket.IO-compatible path for the browser client
	s.router.Get("/socket.io/", s.handleSocketIO)
	s.router.Get("/ws", s.wsHub.HandleWebSocket)
}

// Start runs the hub and serves HTTP until Shutdown. It returns nil on a
// clean shutdown.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, closes websockets and stops the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleSocketIO(w http.ResponseWriter, r *http.Request) {
	if websocketUpgrade(r) {
		s.wsHub.HandleWebSocket(w, r)
		return
	}
	// No long-polling fallback
	writeError(w, "use websocket", http.StatusNotFound)
}

func websocketUpgrade(r *http.Request) bool {
	for _, v := range r.Header.Values("Upgrade") {
		if v == "websocket" || v == "WebSocket" {
			return true
		}
	}
	return false
}
