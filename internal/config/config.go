// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server and arena settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"arena-shooter/internal/game"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	ClientDir   string   // Static browser client; empty disables it
	CORSOrigins []string // Also the websocket origin allow list
	AdminToken  string   // Bearer token for /api/game/*; empty leaves them open
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:      3000,
		ClientDir: "client",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v, ok := os.LookupEnv("CLIENT_DIR"); ok {
		cfg.ClientDir = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	return cfg
}

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds simulation settings.
type ArenaConfig struct {
	TickRate       int           // Simulation steps per second
	SpawnDelay     time.Duration // Delay before the next power-up appears
	MaxPlayers     int           // Hard cap on joined players
	MaxProjectiles int           // Shots beyond this are dropped
	Seed           uint64        // 0 picks a time-based seed
}

// DefaultArena returns the default arena configuration.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		TickRate:       60,
		SpawnDelay:     game.PickupSpawnDelay,
		MaxPlayers:     game.DefaultMaxPlayers,
		MaxProjectiles: 512,
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvInt("SPAWN_DELAY_MS", 0); v > 0 {
		cfg.SpawnDelay = time.Duration(v) * time.Millisecond
	}
	if v := getEnvInt("MAX_PLAYERS", 0); v > 0 {
		cfg.MaxPlayers = v
	}
	if v := getEnvInt("MAX_PROJECTILES", 0); v > 0 {
		cfg.MaxProjectiles = v
	}
	if v := os.Getenv("RNG_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = seed
		}
	}

	return cfg
}

// EngineConfig converts the arena settings for game.NewEngine.
func (a ArenaConfig) EngineConfig() game.EngineConfig {
	cfg := game.DefaultEngineConfig()
	cfg.TickRate = a.TickRate
	cfg.World.SpawnDelay = a.SpawnDelay
	cfg.World.MaxPlayers = a.MaxPlayers
	cfg.World.MaxProjectiles = a.MaxProjectiles
	if a.Seed != 0 {
		cfg.World.Seed = a.Seed
	}
	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig holds debug server and event log settings.
type ObservabilityConfig struct {
	DebugEnabled bool
	DebugAddr    string
	EventLogPath string // Empty disables the event log
}

// DefaultObservability returns the default observability configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		DebugEnabled: true,
		DebugAddr:    "127.0.0.1:6060",
		EventLogPath: "events.jsonl",
	}
}

// ObservabilityFromEnv returns observability configuration with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugEnabled = false
	}
	if v, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = v
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	Arena         ArenaConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:        ServerFromEnv(),
		Arena:         ArenaFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
