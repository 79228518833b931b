package game

import (
	"sort"
	"sync/atomic"
)

// PlayerSnapshot is an immutable copy of player state for broadcast.
// Uses value types (no pointers into the world) so it can be read from any
// goroutine after publication.
type PlayerSnapshot struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	X             float64          `json:"x"`
	Y             float64          `json:"y"`
	Color         string           `json:"color"`
	Health        int              `json:"health"`
	Kills         int              `json:"kills"`
	ActivePowerUp *PowerUpSnapshot `json:"activePowerUp"`
	ShieldHealth  int              `json:"shieldHealth"`
}

// PowerUpSnapshot is a player's active power-up; ExpiresAt is unix millis.
type PowerUpSnapshot struct {
	Type      Kind  `json:"type"`
	ExpiresAt int64 `json:"expiresAt"`
}

// ProjectileSnapshot is an immutable projectile.
type ProjectileSnapshot struct {
	ID          uint64  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Angle       float64 `json:"angle"`
	OwnerID     string  `json:"ownerId"`
	BouncesLeft int     `json:"bouncesLeft"`
	IsPiercing  bool    `json:"isPiercing"`
}

// Snapshot is the full broadcast state at a tick boundary. Field names match
// what the browser client reads from gameState.
type Snapshot struct {
	Tick        uint64                    `json:"tick"`
	Players     map[string]PlayerSnapshot `json:"players"`
	Projectiles []ProjectileSnapshot      `json:"bullets"`
	Pickup      *Pickup                   `json:"currentPowerUp"`
}

// PlayersByKills returns the players ordered by kills (descending), then name
// for a stable tie-break.
func (s *Snapshot) PlayersByKills() []PlayerSnapshot {
	out := make([]PlayerSnapshot, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kills != out[j].Kills {
			return out[i].Kills > out[j].Kills
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func snapshotPlayer(p *Player) PlayerSnapshot {
	ps := PlayerSnapshot{
		ID:           p.ID,
		Name:         p.Name,
		X:            p.X,
		Y:            p.Y,
		Color:        p.Color,
		Health:       p.Health,
		Kills:        p.Kills,
		ShieldHealth: p.ShieldHealth,
	}
	if p.ActivePowerUp != nil {
		ps.ActivePowerUp = &PowerUpSnapshot{
			Type:      p.ActivePowerUp.Kind,
			ExpiresAt: p.ActivePowerUp.ExpiresAt.UnixMilli(),
		}
	}
	return ps
}

func snapshotProjectile(pr *Projectile) ProjectileSnapshot {
	return ProjectileSnapshot{
		ID:          pr.ID,
		X:           pr.X,
		Y:           pr.Y,
		Angle:       pr.Angle,
		OwnerID:     pr.OwnerID,
		BouncesLeft: pr.BouncesLeft,
		IsPiercing:  pr.Piercing,
	}
}

// snapshotStore publishes the latest snapshot for lock-free readers
// (HTTP handlers, the minimap renderer).
type snapshotStore struct {
	latest atomic.Pointer[Snapshot]
}

func (s *snapshotStore) publish(snap *Snapshot) {
	s.latest.Store(snap)
}

// load returns the latest snapshot, or an empty one before the first tick.
func (s *snapshotStore) load() *Snapshot {
	if snap := s.latest.Load(); snap != nil {
		return snap
	}
	return &Snapshot{Players: map[string]PlayerSnapshot{}, Projectiles: []ProjectileSnapshot{}}
}
