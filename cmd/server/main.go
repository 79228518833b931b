package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"arena-shooter/internal/api"
	"arena-shooter/internal/config"
	"arena-shooter/internal/game"

	"github.com/joho/godotenv"
)

// statsEvery is how many ticks pass between event log gauge refreshes.
const statsEvery = 60

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ARENA SHOOTER - GO SERVER")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	serverCfg := appConfig.Server
	arenaCfg := appConfig.Arena
	obsCfg := appConfig.Observability

	log.Printf("🎮 Config: %d TPS, %d max players, %d max projectiles, power-up every %v",
		arenaCfg.TickRate, arenaCfg.MaxPlayers, arenaCfg.MaxProjectiles, arenaCfg.SpawnDelay)

	// The hub is the engine's publisher and the engine is the hub's command
	// sink, so the hub is built first and attached once the engine exists.
	origins := api.NewOriginChecker(serverCfg.CORSOrigins)
	hub := api.NewWebSocketHub(origins, api.DefaultMessageRateConfig)

	engine := game.NewEngine(arenaCfg.EngineConfig(), hub)

	var ticks uint64
	engine.OnTick = func(d time.Duration, snap *game.Snapshot) {
		api.RecordTick(d, snap)
		if ticks++; ticks%statsEvery == 0 {
			api.UpdateEventLogStats(engine.EventLogStats())
		}
	}
	engine.OnKill = func(killer, victim *game.Player) {
		api.RecordKill()
	}
	engine.OnCollect = func(p *game.Player, kind game.Kind) {
		api.RecordPickup(kind)
	}

	// Start event log
	if obsCfg.EventLogPath != "" {
		if err := engine.StartEventLog(obsCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", obsCfg.EventLogPath)
		}
	}

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = obsCfg.DebugEnabled
	debugCfg.ListenAddr = obsCfg.DebugAddr
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	server := api.NewServer(engine, hub, api.ServerConfig{
		CORSOrigins:    serverCfg.CORSOrigins,
		AdminToken:     serverCfg.AdminToken,
		StaticFilesDir: serverCfg.ClientDir,
		RateLimit:      api.DefaultRateLimitConfig,
	})
	if serverCfg.AdminToken == "" {
		log.Println("⚠️ ADMIN_TOKEN not set - /api/game/restart and /api/game/end are open")
	}

	// Start game engine
	engine.Start()
	log.Println("✅ Game Engine started")

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		log.Printf("🌐 Play at http://localhost%s", addr)
		log.Printf("🔌 WebSocket: ws://localhost%s/ws (?codec=msgpack for binary frames)", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ %v", err)
	}
	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}
