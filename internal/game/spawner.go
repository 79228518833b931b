package game

import "time"

// SpawnerState is the lifecycle of the arena's single pickup.
type SpawnerState uint8

const (
	SpawnerEmpty   SpawnerState = iota // no pickup, no timer
	SpawnerPending                     // spawn delay running
	SpawnerActive                      // pickup placed
)

func (s SpawnerState) String() string {
	switch s {
	case SpawnerEmpty:
		return "empty"
	case SpawnerPending:
		return "pending"
	case SpawnerActive:
		return "active"
	default:
		return "unknown"
	}
}

// Spawner places at most one pickup at a time, cycling through Catalog.
type Spawner struct {
	state  SpawnerState
	pickup *Pickup
	timer  TimerHandle
	next   int // index into Catalog
	delay  time.Duration
}

// NewSpawner creates an empty spawner with the given respawn delay.
func NewSpawner(delay time.Duration) *Spawner {
	if delay <= 0 {
		delay = PickupSpawnDelay
	}
	return &Spawner{delay: delay}
}

// State returns the current lifecycle state.
func (s *Spawner) State() SpawnerState { return s.state }

// Pickup returns the live pickup, or nil.
func (s *Spawner) Pickup() *Pickup { return s.pickup }

// Request moves Empty to PendingSpawn. onDue runs when the delay elapses.
// Any previous timer is stopped first so two timers never coexist.
func (s *Spawner) Request(sched Scheduler, onDue func()) {
	s.Cancel()
	s.state = SpawnerPending
	s.timer = sched.AfterFunc(s.delay, onDue)
}

// place moves PendingSpawn to Active with the next catalog kind.
func (s *Spawner) place(x, y float64) *Pickup {
	s.timer = nil
	kind := Catalog[s.next]
	s.next = (s.next + 1) % len(Catalog)
	s.pickup = &Pickup{X: x, Y: y, Kind: kind, Size: PickupSize}
	s.state = SpawnerActive
	return s.pickup
}

// take clears the live pickup and returns it. The reference is gone before
// any effect runs so nobody else can collect the same instance.
func (s *Spawner) take() *Pickup {
	p := s.pickup
	s.pickup = nil
	s.state = SpawnerEmpty
	return p
}

// Cancel stops any pending timer and clears the pickup.
func (s *Spawner) Cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pickup = nil
	s.state = SpawnerEmpty
}

// Reset cancels and rewinds the catalog to its first kind.
func (s *Spawner) Reset() {
	s.Cancel()
	s.next = 0
}
