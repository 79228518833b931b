package api

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"arena-shooter/internal/game"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockEngine implements EngineInterface for testing
type MockEngine struct {
	mu       sync.Mutex
	calls    []string
	snap     *game.Snapshot
	summary  []game.KillEntry
	err      error
	ticking  bool
	lastDirs game.Directions
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		snap: &game.Snapshot{
			Tick: 42,
			Players: map[string]game.PlayerSnapshot{
				"a": {ID: "a", Name: "Alice", X: 100, Y: 100, Color: "hsl(0, 100%, 50%)", Health: 100, Kills: 1},
				"b": {ID: "b", Name: "Bob", X: 300, Y: 200, Color: "#00ff00", Health: 60, Kills: 4},
				"c": {ID: "c", Name: "Cara", X: 500, Y: 400, Color: "#0000ff", Health: 10, Kills: 2},
			},
			Projectiles: []game.ProjectileSnapshot{{ID: 1, X: 120, Y: 100, OwnerID: "a"}},
			Pickup:      &game.Pickup{Kind: game.KindHaste, X: 400, Y: 300},
		},
		ticking: true,
	}
}

func (m *MockEngine) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockEngine) Join(id, name string) error { return m.record("join:" + name) }

func (m *MockEngine) SetInput(id string, dirs game.Directions) error {
	m.mu.Lock()
	m.lastDirs = dirs
	m.mu.Unlock()
	return m.record("input")
}

func (m *MockEngine) Shoot(id string, angle float64) error { return m.record("shoot") }
func (m *MockEngine) Disconnect(id string) error           { return m.record("disconnect") }
func (m *MockEngine) Restart() error                       { return m.record("restart") }

func (m *MockEngine) End(ctx context.Context) ([]game.KillEntry, error) {
	if err := m.record("end"); err != nil {
		return nil, err
	}
	return m.summary, nil
}

func (m *MockEngine) Snapshot() *game.Snapshot { return m.snap }
func (m *MockEngine) Ticking() bool            { return m.ticking }
func (m *MockEngine) TickRate() int            { return 60 }

func (m *MockEngine) EventLogStats() map[string]any {
	return map[string]any{"enabled": false}
}

type fixedCount int

func (c fixedCount) ClientCount() int { return int(c) }

// testRateLimit keeps the limiter out of the way of functional tests.
var testRateLimit = &RateLimitConfig{
	RequestsPerSecond: 1000,
	Burst:             1000,
	CleanupInterval:   time.Hour,
}

func newTestRouter(t *testing.T, engine EngineInterface, adminToken string) http.Handler {
	t.Helper()
	rl := NewIPRateLimiter(*testRateLimit)
	t.Cleanup(rl.Stop)
	return NewRouter(RouterConfig{
		Engine:         engine,
		Clients:        fixedCount(3),
		RateLimiter:    rl,
		AdminToken:     adminToken,
		DisableLogging: true,
	})
}

func doRequest(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Read-only endpoints
// ============================================================================

// TestGetState tests that /api/state returns the latest snapshot
func TestGetState(t *testing.T) {
	router := newTestRouter(t, NewMockEngine(), "")

	rec := doRequest(router, "GET", "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var got struct {
		Tick    uint64                         `json:"tick"`
		Players map[string]game.PlayerSnapshot `json:"players"`
		Bullets []game.ProjectileSnapshot      `json:"bullets"`
		PowerUp *struct {
			Type string `json:"type"`
		} `json:"currentPowerUp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if got.Tick != 42 || len(got.Players) != 3 || len(got.Bullets) != 1 {
		t.Errorf("Unexpected state: %+v", got)
	}
	if got.PowerUp == nil || got.PowerUp.Type != game.KindHaste.String() {
		t.Errorf("Expected haste pickup, got %+v", got.PowerUp)
	}
}

// TestGetScoreboard tests ordering and the limit parameter
func TestGetScoreboard(t *testing.T) {
	router := newTestRouter(t, NewMockEngine(), "")

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Bob", "Cara", "Alice"}},
		{"?limit=2", []string{"Bob", "Cara"}},
		{"?limit=0", []string{}},
		{"?limit=99", []string{"Bob", "Cara", "Alice"}},
		{"?limit=junk", []string{"Bob", "Cara", "Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := doRequest(router, "GET", "/api/scoreboard"+tt.query, nil)
			var rows []ScoreEntry
			if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
				t.Fatalf("Failed to decode scoreboard: %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("Expected %d rows, got %d", len(tt.want), len(rows))
			}
			for i, name := range tt.want {
				if rows[i].Name != name {
					t.Errorf("Row %d: expected %s, got %s", i, name, rows[i].Name)
				}
			}
		})
	}
}

// TestGetStats tests the summary counters
func TestGetStats(t *testing.T) {
	router := newTestRouter(t, NewMockEngine(), "")

	rec := doRequest(router, "GET", "/api/stats", nil)
	var stats map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}

	checks := map[string]any{
		"tick":            float64(42),
		"tickRate":        float64(60),
		"running":         true,
		"playerCount":     float64(3),
		"projectileCount": float64(1),
		"pickup":          game.KindHaste.String(),
		"clients":         float64(3),
	}
	for k, want := range checks {
		if stats[k] != want {
			t.Errorf("%s: expected %v, got %v", k, want, stats[k])
		}
	}
}

// TestGetMinimap tests PNG rendering and width validation
func TestGetMinimap(t *testing.T) {
	router := newTestRouter(t, NewMockEngine(), "")

	rec := doRequest(router, "GET", "/api/minimap.png?width=400", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("Response is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 400 {
		t.Errorf("Expected width 400, got %d", img.Bounds().Dx())
	}

	for _, bad := range []string{"abc", "0", "-3"} {
		rec := doRequest(router, "GET", "/api/minimap.png?width="+bad, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("width=%s: expected 400, got %d", bad, rec.Code)
		}
	}
}

// ============================================================================
// Match control
// ============================================================================

// TestRestartEndpoint tests POST /api/game/restart
func TestRestartEndpoint(t *testing.T) {
	engine := NewMockEngine()
	router := newTestRouter(t, engine, "")

	rec := doRequest(router, "POST", "/api/game/restart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if calls := engine.Calls(); len(calls) != 1 || calls[0] != "restart" {
		t.Errorf("Expected one restart call, got %v", calls)
	}

	rec = doRequest(router, "GET", "/api/game/restart", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}

// TestEndEndpoint tests the summary response and engine errors
func TestEndEndpoint(t *testing.T) {
	engine := NewMockEngine()
	engine.summary = []game.KillEntry{{Name: "Bob", Kills: 4}, {Name: "Alice", Kills: 1}}
	router := newTestRouter(t, engine, "")

	rec := doRequest(router, "POST", "/api/game/end", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Summary []game.KillEntry `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if len(body.Summary) != 2 || body.Summary[0].Name != "Bob" {
		t.Errorf("Unexpected summary: %+v", body.Summary)
	}

	// Empty arena still returns an array
	engine.summary = nil
	rec = doRequest(router, "POST", "/api/game/end", nil)
	if !strings.Contains(rec.Body.String(), `"summary":[]`) {
		t.Errorf("Expected empty summary array, got %s", rec.Body.String())
	}

	engine.err = game.ErrEngineStopped
	rec = doRequest(router, "POST", "/api/game/end", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 from stopped engine, got %d", rec.Code)
	}
}

// TestAdminToken tests the bearer token guard on match control
func TestAdminToken(t *testing.T) {
	engine := NewMockEngine()
	router := newTestRouter(t, engine, "s3cret")

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": "s3cret"}, http.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, "POST", "/api/game/restart", tt.header)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	if n := len(engine.Calls()); n != 1 {
		t.Errorf("Expected only the authorized request to reach the engine, got %d calls", n)
	}

	// Read-only endpoints stay public
	if rec := doRequest(router, "GET", "/api/state", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected public /api/state, got %d", rec.Code)
	}
}

// ============================================================================
// Limits
// ============================================================================

// TestRateLimiterRejectsBurst tests that requests beyond the burst get 429
func TestRateLimiterRejectsBurst(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine: NewMockEngine(),
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 0.001,
			Burst:             2,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = doRequest(router, "GET", "/api/stats", nil).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst, got %d", codes[2])
	}

	// A different client has its own bucket
	rec := doRequest(router, "GET", "/api/stats", map[string]string{"X-Forwarded-For": "10.0.0.9"})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected other IP to pass, got %d", rec.Code)
	}
}

// TestGetClientIP tests proxy header handling
func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.1:80", "198.51.100.7"},
		{"no port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestWebSocketRateLimiter tests per-IP connection slots
func TestWebSocketRateLimiter(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)

	if !wrl.Allow("1.1.1.1") || !wrl.Allow("1.1.1.1") {
		t.Fatal("Expected first two connections allowed")
	}
	if wrl.Allow("1.1.1.1") {
		t.Error("Expected third connection rejected")
	}
	if !wrl.Allow("2.2.2.2") {
		t.Error("Expected other IP allowed")
	}

	wrl.Release("1.1.1.1")
	if wrl.GetConnectionCount("1.1.1.1") != 1 {
		t.Errorf("Expected 1 connection after release, got %d", wrl.GetConnectionCount("1.1.1.1"))
	}
	if !wrl.Allow("1.1.1.1") {
		t.Error("Expected slot to be reusable after release")
	}
}

// TestOriginChecker tests exact, wildcard and same-host origins
func TestOriginChecker(t *testing.T) {
	oc := NewOriginChecker([]string{"https://arena.example", "http://localhost:*"})

	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "game.example", true},
		{"https://arena.example", "game.example", true},
		{"http://localhost:5173", "game.example", true},
		{"http://localhost", "game.example", true},
		{"http://localhost.evil.example", "game.example", false},
		{"https://evil.example", "game.example", false},
		{"https://game.example", "game.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := oc.Check(r); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if !NewOriginChecker([]string{"*"}).IsAllowed("https://anything.example") {
		t.Error("Expected * to allow any origin")
	}
}

// TestDebugHandler tests the metrics and health endpoints
func TestDebugHandler(t *testing.T) {
	RecordKill()
	RecordPickup(game.KindMedkit)

	h := DebugHandler(ObservabilityConfig{Enabled: true})

	rec := doRequest(h, "GET", "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("Expected healthy, got %d %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(h, "GET", "/metrics", nil)
	body := rec.Body.String()
	for _, name := range []string{"arena_kills_total", `arena_pickups_total{kind="medkit"}`} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected %s in metrics output", name)
		}
	}

	authed := DebugHandler(ObservabilityConfig{Enabled: true, BasicAuthUser: "ops", BasicAuthPass: "pw"})
	if rec := doRequest(authed, "GET", "/health", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", rec.Code)
	}
}
