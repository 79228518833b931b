package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrEngineStopped is returned when a command reaches an engine that is not
// running.
var ErrEngineStopped = errors.New("engine stopped")

// EngineConfig configures the simulation loop.
type EngineConfig struct {
	TickRate  int // steps per second
	InboxSize int // buffered inbound commands
	World     WorldConfig
}

// DefaultEngineConfig returns a 60 TPS engine with stock arena settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickRate:  DefaultTickRate,
		InboxSize: 1024,
		World:     DefaultWorldConfig(),
	}
}

// Commands posted to the loop
type (
	joinCmd struct {
		id, name string
	}
	inputCmd struct {
		id   string
		dirs Directions
	}
	shootCmd struct {
		id    string
		angle float64
	}
	leaveCmd struct {
		id string
	}
	restartCmd struct{}
	endCmd     struct {
		reply chan []KillEntry
	}
)

// Engine owns one World and runs it on a single goroutine. Inbound commands,
// tick steps and timer callbacks are serialized through one select loop, so
// the world itself needs no locking.
type Engine struct {
	cfg   EngineConfig
	world *World

	inbox chan any
	fired chan *loopTimer
	quit  chan struct{}
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
	ticking   atomic.Bool

	// ticker is only touched by the loop goroutine.
	ticker *time.Ticker

	snapshots snapshotStore
	eventLog  *EventLog
	now       func() time.Time

	// Callbacks, set before Start. They run on the loop goroutine.
	OnTick    func(d time.Duration, snap *Snapshot)
	OnKill    func(killer, victim *Player)
	OnCollect func(p *Player, kind Kind)
}

// NewEngine creates a stopped engine publishing through pub.
func NewEngine(cfg EngineConfig, pub Publisher) *Engine {
	def := DefaultEngineConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = def.InboxSize
	}

	e := &Engine{
		cfg:      cfg,
		inbox:    make(chan any, cfg.InboxSize),
		fired:    make(chan *loopTimer, 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		eventLog: NewEventLog(),
		now:      time.Now,
	}
	e.world = NewWorld(cfg.World, loopScheduler{fired: e.fired, quit: e.quit}, pub)
	e.world.SetHooks(Hooks{
		OnJoin:    e.recordJoin,
		OnLeave:   e.recordLeave,
		OnKill:    e.recordKill,
		OnCollect: e.recordCollect,
	})
	e.snapshots.publish(e.world.Snapshot())
	return e
}

// Start launches the simulation goroutine. Calling it twice is a no-op.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.running.Store(true)
		go e.run()
		log.Printf("🎮 Game engine started at %d TPS", e.cfg.TickRate)
	})
}

// Stop halts the loop and waits for it to exit. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if !e.running.Swap(false) {
			return
		}
		close(e.quit)
		<-e.done
		log.Println("🛑 Game engine stopped")
	})
}

func (e *Engine) run() {
	defer close(e.done)
	e.startSession()

	for {
		var tickC <-chan time.Time
		if e.ticker != nil {
			tickC = e.ticker.C
		}

		select {
		case <-e.quit:
			e.stopTicking()
			e.world.Spawner().Cancel()
			return
		case cmd := <-e.inbox:
			e.handleCommand(cmd)
		case lt := <-e.fired:
			lt.fire()
		case <-tickC:
			e.step()
		}
	}
}

func (e *Engine) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		if e.world.Join(c.id, c.name) != nil && !e.ticking.Load() {
			e.startSession()
		}
	case inputCmd:
		e.world.SetInput(c.id, c.dirs)
	case shootCmd:
		e.world.Shoot(c.id, c.angle, e.now())
	case leaveCmd:
		e.world.Disconnect(c.id)
	case restartCmd:
		e.stopTicking()
		e.world.Restart()
		e.startTicking()
		e.eventLog.Emit(RecordRestart, e.world.Tick(), nil)
	case endCmd:
		e.stopTicking()
		summary := e.world.End()
		e.snapshots.publish(e.world.Snapshot())
		e.eventLog.Emit(RecordEnd, e.world.Tick(), EndRecord{Summary: summary})
		c.reply <- summary
	}
}

// startSession starts the tick and schedules the first pickup. Any previous
// tick or spawn timer is stopped first.
func (e *Engine) startSession() {
	e.stopTicking()
	e.startTicking()
	e.world.StartSpawner()
}

func (e *Engine) startTicking() {
	e.stopTicking()
	e.ticker = time.NewTicker(time.Second / time.Duration(e.cfg.TickRate))
	e.ticking.Store(true)
}

func (e *Engine) stopTicking() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	e.ticking.Store(false)
}

func (e *Engine) step() {
	start := time.Now()
	snap := e.world.Step(e.now())
	e.snapshots.publish(snap)
	if e.OnTick != nil {
		e.OnTick(time.Since(start), snap)
	}
}

// post hands a command to the loop, blocking while the inbox is full.
func (e *Engine) post(cmd any) error {
	if !e.running.Load() {
		return ErrEngineStopped
	}
	select {
	case e.inbox <- cmd:
		return nil
	case <-e.quit:
		return ErrEngineStopped
	}
}

// Join adds a player for the connection id.
func (e *Engine) Join(id, name string) error {
	return e.post(joinCmd{id: id, name: name})
}

// SetInput replaces the player's held directions.
func (e *Engine) SetInput(id string, dirs Directions) error {
	return e.post(inputCmd{id: id, dirs: dirs})
}

// Shoot fires toward angle (radians).
func (e *Engine) Shoot(id string, angle float64) error {
	return e.post(shootCmd{id: id, angle: angle})
}

// Disconnect removes the player for the connection id.
func (e *Engine) Disconnect(id string) error {
	return e.post(leaveCmd{id: id})
}

// Restart resets the match and restarts the tick and spawner.
func (e *Engine) Restart() error {
	return e.post(restartCmd{})
}

// End stops the match and returns the kill summary.
func (e *Engine) End(ctx context.Context) ([]KillEntry, error) {
	reply := make(chan []KillEntry, 1)
	if err := e.post(endCmd{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case summary := <-reply:
		return summary, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, ErrEngineStopped
	}
}

// Snapshot returns the latest published snapshot. Safe from any goroutine.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshots.load()
}

// Ticking reports whether a match is in progress.
func (e *Engine) Ticking() bool {
	return e.ticking.Load()
}

// TickRate returns the configured steps per second.
func (e *Engine) TickRate() int {
	return e.cfg.TickRate
}

// StartEventLog begins writing the audit trail to filePath.
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and closes the audit trail.
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EventLogStats returns audit trail counters.
func (e *Engine) EventLogStats() map[string]any {
	return e.eventLog.Stats()
}

func (e *Engine) recordJoin(p *Player) {
	e.eventLog.Emit(RecordJoin, e.world.Tick(), JoinRecord{
		PlayerID: p.ID, Name: p.Name, SpawnX: p.X, SpawnY: p.Y, Color: p.Color,
	})
}

func (e *Engine) recordLeave(p *Player) {
	e.eventLog.Emit(RecordLeave, e.world.Tick(), LeaveRecord{PlayerID: p.ID, Name: p.Name, Kills: p.Kills})
}

func (e *Engine) recordKill(killer, victim *Player) {
	e.eventLog.Emit(RecordKill, e.world.Tick(), KillRecord{
		KillerID: killer.ID, VictimID: victim.ID, KillerKills: killer.Kills,
	})
	if e.OnKill != nil {
		e.OnKill(killer, victim)
	}
}

func (e *Engine) recordCollect(p *Player, kind Kind) {
	e.eventLog.Emit(RecordPickup, e.world.Tick(), PickupRecord{PlayerID: p.ID, Kind: kind})
	if e.OnCollect != nil {
		e.OnCollect(p, kind)
	}
}
