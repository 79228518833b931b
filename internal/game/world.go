package game

import (
	"log"
	"sort"
	"time"

	"golang.org/x/exp/rand"

	"arena-shooter/internal/game/spatial"
)

// WorldConfig holds the per-arena knobs that are not geometry.
type WorldConfig struct {
	SpawnDelay     time.Duration // pickup respawn delay
	MaxPlayers     int           // join is refused beyond this
	MaxProjectiles int           // shots are dropped beyond this
	Seed           uint64        // RNG seed for spawn points, colours and pickups
}

// DefaultWorldConfig returns the stock arena settings.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		SpawnDelay:     PickupSpawnDelay,
		MaxPlayers:     DefaultMaxPlayers,
		MaxProjectiles: 512,
		Seed:           uint64(time.Now().UnixNano()),
	}
}

// Hooks are optional observers of world changes. They run synchronously on
// the simulation goroutine.
type Hooks struct {
	OnJoin    func(p *Player)
	OnLeave   func(p *Player)
	OnKill    func(killer, victim *Player)
	OnCollect func(p *Player, kind Kind)
}

// World is the authoritative simulation state of one arena. It is not safe
// for concurrent use; the Engine serializes every call.
type World struct {
	cfg WorldConfig

	// Entity store. order keeps join order so iteration is deterministic.
	players     map[string]*Player
	order       []string
	projectiles []*Projectile

	spawner *Spawner
	grid    *spatial.Grid
	sched   Scheduler
	pub     Publisher
	rng     *rand.Rand
	hooks   Hooks

	tick     uint64
	nextShot uint64
}

// NewWorld creates an empty arena. A nil publisher discards events.
func NewWorld(cfg WorldConfig, sched Scheduler, pub Publisher) *World {
	def := DefaultWorldConfig()
	if cfg.SpawnDelay <= 0 {
		cfg.SpawnDelay = def.SpawnDelay
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = def.MaxPlayers
	}
	if cfg.MaxProjectiles <= 0 {
		cfg.MaxProjectiles = def.MaxProjectiles
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	return &World{
		cfg:     cfg,
		players: make(map[string]*Player),
		spawner: NewSpawner(cfg.SpawnDelay),
		grid:    spatial.NewGrid(ArenaWidth, ArenaHeight, GridCellSize),
		sched:   sched,
		pub:     pub,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

// SetHooks installs observers.
func (w *World) SetHooks(h Hooks) { w.hooks = h }

func (w *World) publish(ev Event) { w.pub.Publish(ev) }

// Entity store

// Player returns the player for a connection id, or nil.
func (w *World) Player(id string) *Player { return w.players[id] }

// Players returns all players in join order.
func (w *World) Players() []*Player {
	out := make([]*Player, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.players[id])
	}
	return out
}

// Projectiles returns the live projectiles in firing order.
func (w *World) Projectiles() []*Projectile { return w.projectiles }

// PlayerCount returns the number of players.
func (w *World) PlayerCount() int { return len(w.players) }

// Spawner exposes the pickup state machine.
func (w *World) Spawner() *Spawner { return w.spawner }

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 { return w.tick }

func (w *World) add(p *Player) {
	w.players[p.ID] = p
	w.order = append(w.order, p.ID)
}

func (w *World) remove(id string) *Player {
	p, ok := w.players[id]
	if !ok {
		return nil
	}
	delete(w.players, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return p
}

func (w *World) addProjectile(pr *Projectile) bool {
	if len(w.projectiles) >= w.cfg.MaxProjectiles {
		return false
	}
	w.projectiles = append(w.projectiles, pr)
	return true
}

// spawnPoint picks an integral in-bounds position for a player.
func (w *World) spawnPoint() (float64, float64) {
	x := float64(int(w.rng.Float64() * (ArenaWidth - PlayerSize)))
	y := float64(int(w.rng.Float64() * (ArenaHeight - PlayerSize)))
	return x, y
}

// Session lifecycle

// Join adds a player for the connection. The joiner receives the full state,
// everyone else a newPlayer event. A second join on the same connection
// returns the existing player unchanged.
func (w *World) Join(id, name string) *Player {
	if id == "" {
		return nil
	}
	if existing := w.players[id]; existing != nil {
		return existing
	}
	if len(w.players) >= w.cfg.MaxPlayers {
		log.Printf("⚠️ Player limit reached (%d), rejecting: %s", w.cfg.MaxPlayers, name)
		return nil
	}

	x, y := w.spawnPoint()
	p := &Player{
		ID:     id,
		Name:   name,
		X:      x,
		Y:      y,
		Color:  randomColor(w.rng.Float64() * 360),
		Health: MaxHealth,
	}
	w.add(p)

	w.publish(Event{Type: EventGameState, To: id, Payload: w.Snapshot()})
	w.publish(Event{Type: EventNewPlayer, Except: id, Payload: snapshotPlayer(p)})
	if w.hooks.OnJoin != nil {
		w.hooks.OnJoin(p)
	}

	log.Printf("👤 %s (ID: %s) joined the game", name, id)
	return p
}

// SetInput replaces the held directions verbatim.
func (w *World) SetInput(id string, dirs Directions) {
	if p := w.players[id]; p != nil {
		p.Input = dirs
	}
}

// Shoot fires from the player's centre if the fire-rate gate allows it and
// returns the number of projectiles created. Ricochet and piercing come from
// the power-up held at the moment of firing.
func (w *World) Shoot(id string, angle float64, now time.Time) int {
	p := w.players[id]
	if p == nil || !p.canFire(now) {
		return 0
	}
	p.LastShot = now

	angles := []float64{angle}
	if p.HasPowerUp(KindTripleShot) {
		angles = []float64{angle - MultiShotSpread, angle, angle + MultiShotSpread}
	}

	fired := 0
	for _, a := range angles {
		w.nextShot++
		pr := NewProjectile(w.nextShot, p.ID, p.CenterX(), p.CenterY(), a)
		if p.HasPowerUp(KindRicochet) {
			pr.BouncesLeft = RicochetBounces
		}
		pr.Piercing = p.HasPowerUp(KindPiercingShot)
		if !w.addProjectile(pr) {
			break
		}
		fired++
	}
	return fired
}

// Disconnect removes the player and tells everyone else. Unknown ids are
// ignored.
func (w *World) Disconnect(id string) bool {
	p := w.remove(id)
	if p == nil {
		return false
	}
	w.publish(Event{Type: EventPlayerDisconnected, Payload: id})
	if w.hooks.OnLeave != nil {
		w.hooks.OnLeave(p)
	}
	log.Printf("👋 %s (ID: %s) disconnected", p.Name, id)
	return true
}

// Restart resets every player, clears projectiles and the pickup, and
// schedules a fresh pickup. Restarting the tick is the engine's job.
func (w *World) Restart() {
	for _, id := range w.order {
		p := w.players[id]
		p.Health = MaxHealth
		p.Kills = 0
		p.X, p.Y = w.spawnPoint()
		p.clearPowerUp()
		p.LastShot = time.Time{}
	}
	w.projectiles = nil
	w.spawner.Cancel()

	w.publish(Event{Type: EventGameRestarted})
	w.publish(Event{Type: EventGameState, Payload: w.Snapshot()})
	w.StartSpawner()

	log.Printf("🔄 Game restarted with %d players", len(w.players))
}

// End cancels the spawner, broadcasts the kill summary and empties the
// arena. The summary is sorted by kills, highest first; ties keep join order.
func (w *World) End() []KillEntry {
	w.spawner.Reset()

	summary := make([]KillEntry, 0, len(w.order))
	for _, id := range w.order {
		p := w.players[id]
		summary = append(summary, KillEntry{Name: p.Name, Kills: p.Kills})
	}
	sort.SliceStable(summary, func(i, j int) bool {
		return summary[i].Kills > summary[j].Kills
	})

	w.publish(Event{Type: EventGameEnded, Payload: summary})

	w.players = make(map[string]*Player)
	w.order = nil
	w.projectiles = nil

	log.Printf("🏁 Game ended, %d players in summary", len(summary))
	return summary
}

// StartSpawner schedules the next pickup.
func (w *World) StartSpawner() {
	if w.sched == nil {
		return
	}
	w.spawner.Request(w.sched, w.spawnPickup)
}

// spawnPickup runs when the spawn delay elapses.
func (w *World) spawnPickup() {
	if w.spawner.State() != SpawnerPending {
		return
	}
	x := PickupMargin + w.rng.Float64()*(ArenaWidth-2*PickupMargin)
	y := PickupMargin + w.rng.Float64()*(ArenaHeight-2*PickupMargin)
	pk := w.spawner.place(x, y)
	w.publish(Event{Type: EventPowerUpSpawned, Payload: *pk})
}

// damage applies one hit to victim and reports whether it was lethal. An
// energy shield absorbs the hit instead and drops when its charges run out.
func (w *World) damage(victim *Player, amount int) bool {
	if victim.HasPowerUp(KindEnergyShield) && victim.ShieldHealth > 0 {
		victim.ShieldHealth--
		if victim.ShieldHealth == 0 {
			victim.clearPowerUp()
		}
		return false
	}
	victim.Health -= amount
	if victim.Health <= 0 {
		victim.Health = 0
		return true
	}
	return false
}

// handleDeath credits the shooter, respawns the victim and announces the
// explosion at the victim's pre-respawn position. A shooter who already left
// earns nothing.
func (w *World) handleDeath(victim *Player, shooterID string) {
	destroyed := DestroyedPayload{X: victim.X, Y: victim.Y, Color: victim.Color}

	if shooterID != victim.ID {
		if killer := w.players[shooterID]; killer != nil {
			killer.Kills++
			if w.hooks.OnKill != nil {
				w.hooks.OnKill(killer, victim)
			}
			log.Printf("💀 %s killed by %s (Kills: %d)", victim.Name, killer.Name, killer.Kills)
		}
	}

	victim.Health = MaxHealth
	victim.X, victim.Y = w.spawnPoint()
	victim.clearPowerUp()

	w.publish(Event{Type: EventPlayerDestroyed, Payload: destroyed})
}

// Snapshot copies the current state into an immutable value.
func (w *World) Snapshot() *Snapshot {
	snap := &Snapshot{
		Tick:        w.tick,
		Players:     make(map[string]PlayerSnapshot, len(w.players)),
		Projectiles: make([]ProjectileSnapshot, 0, len(w.projectiles)),
	}
	for _, id := range w.order {
		snap.Players[id] = snapshotPlayer(w.players[id])
	}
	for _, pr := range w.projectiles {
		snap.Projectiles = append(snap.Projectiles, snapshotProjectile(pr))
	}
	if pk := w.spawner.Pickup(); pk != nil {
		cp := *pk
		snap.Pickup = &cp
	}
	return snap
}
