package game

// EventType enumerates outbound events.
type EventType uint8

const (
	EventGameState EventType = iota
	EventNewPlayer
	EventPlayerDisconnected
	EventGameRestarted
	EventGameEnded
	EventPowerUpSpawned
	EventPowerUpCollected
	EventSmartBombBlast
	EventPlayerDestroyed
)

// String returns the wire name clients subscribe to.
func (t EventType) String() string {
	switch t {
	case EventGameState:
		return "gameState"
	case EventNewPlayer:
		return "newPlayer"
	case EventPlayerDisconnected:
		return "playerDisconnected"
	case EventGameRestarted:
		return "gameRestarted"
	case EventGameEnded:
		return "gameEnded"
	case EventPowerUpSpawned:
		return "powerUpSpawned"
	case EventPowerUpCollected:
		return "powerUpCollected"
	case EventSmartBombBlast:
		return "smartBombBlast"
	case EventPlayerDestroyed:
		return "playerDestroyed"
	default:
		return "unknown"
	}
}

// Event is one outbound message. With To set it goes to that connection
// only; otherwise it is broadcast to everyone except Except.
type Event struct {
	Type    EventType
	To      string
	Except  string
	Payload any
}

// Publisher delivers events to connections. Publish is called from the
// simulation goroutine and must not block.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Typed payloads for outbound events

// BlastPayload marks where a smart bomb went off.
type BlastPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DestroyedPayload carries a victim's position and colour from before the
// respawn, for the client's explosion.
type DestroyedPayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// CollectedPayload announces who picked up what.
type CollectedPayload struct {
	PlayerName string `json:"playerName"`
	Type       Kind   `json:"type"`
}

// KillEntry is one row of the end-of-game summary.
type KillEntry struct {
	Name  string `json:"name"`
	Kills int    `json:"kills"`
}
