package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"arena-shooter/internal/game"
	"arena-shooter/internal/protocol"
)

// startArena runs a real engine behind a test server.
func startArena(t *testing.T) (*httptest.Server, *game.Engine) {
	t.Helper()

	hub := NewWebSocketHub(NewOriginChecker([]string{"http://allowed.example"}), DefaultMessageRateConfig)
	cfg := game.DefaultEngineConfig()
	cfg.World.Seed = 1
	engine := game.NewEngine(cfg, hub)

	srv := NewServer(engine, hub, ServerConfig{RateLimit: *testRateLimit})
	go hub.Run()
	engine.Start()

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
		engine.Stop()
	})
	return ts, engine
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s failed: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitEvent reads frames until one named event satisfies match.
func awaitEvent(t *testing.T, conn *websocket.Conn, codec protocol.Codec, event string, match func(protocol.Envelope) bool) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Waiting for %s: %v", event, err)
		}
		env, err := codec.Decode(frame)
		if err != nil {
			t.Fatalf("Undecodable frame: %v", err)
		}
		if env.Event == event && (match == nil || match(env)) {
			return env
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, codec protocol.Codec, event string, data any) {
	t.Helper()
	frame, err := codec.Encode(event, data)
	if err != nil {
		t.Fatalf("Encode %s: %v", event, err)
	}
	msgType := websocket.TextMessage
	if codec.Binary() {
		msgType = websocket.BinaryMessage
	}
	if err := conn.WriteMessage(msgType, frame); err != nil {
		t.Fatalf("Write %s: %v", event, err)
	}
}

func hasPlayerNamed(codec protocol.Codec, name string) func(protocol.Envelope) bool {
	return func(env protocol.Envelope) bool {
		snap, err := protocol.DecodeData[game.Snapshot](codec, env)
		if err != nil {
			return false
		}
		for _, p := range snap.Players {
			if p.Name == name {
				return true
			}
		}
		return false
	}
}

// TestWebSocketJoinReceivesState tests join followed by gameState over JSON
func TestWebSocketJoinReceivesState(t *testing.T) {
	ts, _ := startArena(t)
	codec := protocol.JSONCodec{}
	conn := dial(t, ts, "/ws")

	send(t, conn, codec, protocol.EventJoinGame, "  Alice  ")
	awaitEvent(t, conn, codec, "gameState", hasPlayerNamed(codec, "Alice"))
}

// TestWebSocketMsgpack tests the binary codec end to end
func TestWebSocketMsgpack(t *testing.T) {
	ts, _ := startArena(t)
	codec := protocol.MsgpackCodec{}
	conn := dial(t, ts, "/ws?codec=msgpack")

	send(t, conn, codec, protocol.EventJoinGame, "Bob")

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	msgType, _, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("Expected binary frames, got type %d", msgType)
	}
	awaitEvent(t, conn, codec, "gameState", hasPlayerNamed(codec, "Bob"))
}

// TestWebSocketSocketIOPath tests the browser client's upgrade path
func TestWebSocketSocketIOPath(t *testing.T) {
	ts, _ := startArena(t)
	codec := protocol.JSONCodec{}
	conn := dial(t, ts, "/socket.io/")

	send(t, conn, codec, protocol.EventJoinGame, "Cara")
	awaitEvent(t, conn, codec, "gameState", hasPlayerNamed(codec, "Cara"))

	resp, err := http.Get(ts.URL + "/socket.io/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without upgrade, got %d", resp.StatusCode)
	}
}

// TestWebSocketNewPlayerBroadcast tests that others hear about a join and a leave
func TestWebSocketNewPlayerBroadcast(t *testing.T) {
	ts, _ := startArena(t)
	codec := protocol.JSONCodec{}

	first := dial(t, ts, "/ws")
	send(t, first, codec, protocol.EventJoinGame, "Dana")
	awaitEvent(t, first, codec, "gameState", hasPlayerNamed(codec, "Dana"))

	second := dial(t, ts, "/ws")
	send(t, second, codec, protocol.EventJoinGame, "Eli")
	awaitEvent(t, first, codec, "newPlayer", nil)

	second.Close()
	awaitEvent(t, first, codec, "playerDisconnected", nil)
}

// TestWebSocketEndGame tests that endGame broadcasts the summary and stops ticking
func TestWebSocketEndGame(t *testing.T) {
	ts, engine := startArena(t)
	codec := protocol.JSONCodec{}
	conn := dial(t, ts, "/ws")

	send(t, conn, codec, protocol.EventJoinGame, "Finn")
	awaitEvent(t, conn, codec, "gameState", hasPlayerNamed(codec, "Finn"))

	send(t, conn, codec, protocol.EventEndGame, nil)
	env := awaitEvent(t, conn, codec, "gameEnded", nil)

	summary, err := protocol.DecodeData[[]game.KillEntry](codec, env)
	if err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if len(summary) != 1 || summary[0].Name != "Finn" {
		t.Errorf("Expected Finn in summary, got %+v", summary)
	}

	deadline := time.Now().Add(time.Second)
	for engine.Ticking() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if engine.Ticking() {
		t.Error("Expected engine to stop ticking after endGame")
	}
}

// TestWebSocketRejectsForeignOrigin tests the origin allow list
func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	ts, _ := startArena(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}

	header = http.Header{"Origin": {"http://allowed.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Expected allowed origin to connect: %v", err)
	}
	conn.Close()
}

// TestWebSocketDispatch tests inbound frame routing against a mock engine
func TestWebSocketDispatch(t *testing.T) {
	engine := NewMockEngine()
	hub := NewWebSocketHub(nil, DefaultMessageRateConfig)
	hub.Attach(engine)
	c := &wsClient{id: "c1", codec: protocol.JSONCodec{}}

	frames := []string{
		`{"event":"joinGame","data":"   "}`,
		`{"event":"joinGame","data":"Gus"}`,
		`{"event":"playerMovement","data":{"up":true,"right":true,"down":false}}`,
		`{"event":"playerMovement","data":["ArrowLeft"]}`,
		`{"event":"shoot","data":1.5}`,
		`{"event":"shoot","data":"up"}`,
		`{"event":"restartGame"}`,
		`{"event":"endGame"}`,
		`{"event":"unknown","data":1}`,
		`not json`,
	}
	for _, f := range frames {
		hub.dispatch(c, []byte(f))
	}

	want := []string{"join:Gus", "input", "input", "shoot", "restart", "end"}
	got := engine.Calls()
	if len(got) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Call %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	engine.mu.Lock()
	dirs := engine.lastDirs
	engine.mu.Unlock()
	if !dirs.Has(game.DirLeft) || dirs.Has(game.DirUp) {
		t.Errorf("Expected only left held after second movement, got %v", dirs)
	}
}

// TestSanitizeName tests trimming and the length cap
func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Alice ", "Alice"},
		{"", ""},
		{"\t\n", ""},
		{strings.Repeat("x", 30), strings.Repeat("x", MaxNameLength)},
		{strings.Repeat("é", 25), strings.Repeat("é", MaxNameLength)},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// TestPublishTargets tests To and Except routing and the full-buffer drop
func TestPublishTargets(t *testing.T) {
	hub := NewWebSocketHub(nil, DefaultMessageRateConfig)
	mk := func(id string, buf int) *wsClient {
		c := &wsClient{id: id, codec: protocol.JSONCodec{}, send: make(chan []byte, buf)}
		hub.clients[id] = c
		return c
	}
	a, b, full := mk("a", 4), mk("b", 4), mk("full", 0)

	hub.Publish(game.Event{Type: game.EventNewPlayer, Except: "a", Payload: "x"})
	hub.Publish(game.Event{Type: game.EventGameState, To: "a", Payload: "y"})

	if len(a.send) != 1 || len(b.send) != 1 || len(full.send) != 0 {
		t.Fatalf("Unexpected queue lengths a=%d b=%d full=%d", len(a.send), len(b.send), len(full.send))
	}
	if got := string(<-a.send); !strings.Contains(got, `"gameState"`) {
		t.Errorf("Expected a to get only gameState, got %s", got)
	}
	if got := string(<-b.send); !strings.Contains(got, `"newPlayer"`) {
		t.Errorf("Expected b to get newPlayer, got %s", got)
	}
}

// TestHubStopClosesClients tests that Stop tears down registered clients
func TestHubStopClosesClients(t *testing.T) {
	hub := NewWebSocketHub(nil, DefaultMessageRateConfig)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run()
	}()

	c := &wsClient{id: "z", ip: "127.0.0.1", codec: protocol.JSONCodec{}, send: make(chan []byte, 1)}
	hub.register <- c
	hub.Stop()
	wg.Wait()

	if _, ok := <-c.send; ok {
		t.Error("Expected send channel closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", hub.ClientCount())
	}
}
