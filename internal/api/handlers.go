package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"arena-shooter/internal/game"
	"arena-shooter/internal/render"
)

const endRequestTimeout = 3 * time.Second

// ScoreEntry is one scoreboard row.
type ScoreEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kills  int    `json:"kills"`
	Health int    `json:"health"`
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	players := h.engine.Snapshot().PlayersByKills()

	limit := len(players)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < limit {
			limit = n
		}
	}

	result := make([]ScoreEntry, 0, limit)
	for _, p := range players[:limit] {
		result = append(result, ScoreEntry{ID: p.ID, Name: p.Name, Kills: p.Kills, Health: p.Health})
	}
	writeJSON(w, result)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()

	pickup := "none"
	if snap.Pickup != nil {
		pickup = snap.Pickup.Kind.String()
	}
	clients := 0
	if h.clients != nil {
		clients = h.clients.ClientCount()
	}

	writeJSON(w, map[string]any{
		"tick":            snap.Tick,
		"tickRate":        h.engine.TickRate(),
		"running":         h.engine.Ticking(),
		"playerCount":     len(snap.Players),
		"projectileCount": len(snap.Projectiles),
		"pickup":          pickup,
		"clients":         clients,
		"eventLog":        h.engine.EventLogStats(),
	})
}

func (h *routerHandlers) handleGetMinimap(w http.ResponseWriter, r *http.Request) {
	width := render.DefaultMinimapWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "width must be a positive integer", http.StatusBadRequest)
			return
		}
		width = n
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WritePNG(w, h.engine.Snapshot(), width); err != nil {
		log.Printf("⚠️ Minimap render failed: %v", err)
	}
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	log.Println("🔄 Restart requested via API")
	if err := h.engine.Restart(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleEnd(w http.ResponseWriter, r *http.Request) {
	log.Println("🏁 End requested via API")
	ctx, cancel := context.WithTimeout(r.Context(), endRequestTimeout)
	defer cancel()

	summary, err := h.engine.End(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if summary == nil {
		summary = []game.KillEntry{}
	}
	writeJSON(w, map[string]any{"summary": summary})
}

// Helper functions (package-level for reuse)

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrEngineStopped):
		writeError(w, "engine stopped", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, "engine busy", http.StatusGatewayTimeout)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
