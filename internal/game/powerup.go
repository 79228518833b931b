package game

import (
	"fmt"
	"time"
)

// Kind is a power-up type. The set is closed: every Kind below numKinds has
// an entry in kindTable.
type Kind uint8

const (
	KindHaste Kind = iota
	KindTripleShot
	KindSmartBomb
	KindEnergyShield
	KindMedkit
	KindRicochet
	KindPiercingShot
	KindRapidFire

	numKinds
)

// Catalog is the spawn order. The spawner walks it round-robin.
var Catalog = [numKinds]Kind{
	KindHaste,
	KindTripleShot,
	KindSmartBomb,
	KindEnergyShield,
	KindMedkit,
	KindRicochet,
	KindPiercingShot,
	KindRapidFire,
}

// kindBehavior describes what collecting a kind does.
type kindBehavior struct {
	name      string
	duration  time.Duration // zero for instant kinds
	speedMult float64
	instant   bool
}

// kindTable is sized by numKinds; TestKindTableComplete catches blank rows and
// instant kinds that applyInstant does not handle.
var kindTable = [numKinds]kindBehavior{
	KindHaste:        {name: "haste", duration: 8 * time.Second, speedMult: HasteSpeedMult},
	KindTripleShot:   {name: "tripleShot", duration: 10 * time.Second, speedMult: 1},
	KindSmartBomb:    {name: "smartBomb", speedMult: 1, instant: true},
	KindEnergyShield: {name: "energyShield", duration: 15 * time.Second, speedMult: 1},
	KindMedkit:       {name: "medkit", speedMult: 1, instant: true},
	KindRicochet:     {name: "ricochet", duration: 10 * time.Second, speedMult: 1},
	KindPiercingShot: {name: "piercingShot", duration: 10 * time.Second, speedMult: 1},
	KindRapidFire:    {name: "rapidFire", duration: 8 * time.Second, speedMult: 1},
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k >= numKinds {
		return "unknown"
	}
	return kindTable[k].name
}

// Timed reports whether the kind occupies the player's active power-up slot.
func (k Kind) Timed() bool {
	return k < numKinds && kindTable[k].duration > 0
}

// Duration is how long a timed kind stays active.
func (k Kind) Duration() time.Duration {
	if k >= numKinds {
		return 0
	}
	return kindTable[k].duration
}

// SpeedMultiplier scales movement while the kind is active.
func (k Kind) SpeedMultiplier() float64 {
	if k >= numKinds || kindTable[k].speedMult == 0 {
		return 1
	}
	return kindTable[k].speedMult
}

// MarshalText makes kinds travel by name in both JSON and MessagePack.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown power-up kind %q", b)
	}
	*k = parsed
	return nil
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if kindTable[k].name == s {
			return k, true
		}
	}
	return 0, false
}

// ActivePowerUp is a timed effect held by a player.
type ActivePowerUp struct {
	Kind      Kind      `json:"type"`
	ExpiresAt time.Time `json:"-"`
}

// Pickup is the single collectable item placed in the arena.
type Pickup struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Kind Kind    `json:"type"`
	Size float64 `json:"size"`
}

// applyPowerUp gives kind to p. Timed kinds replace whatever p held before;
// there is no stacking.
func (w *World) applyPowerUp(p *Player, kind Kind, now time.Time) {
	b := kindTable[kind]
	if b.instant {
		w.applyInstant(p, kind)
		return
	}
	p.ActivePowerUp = &ActivePowerUp{Kind: kind, ExpiresAt: now.Add(b.duration)}
	if kind == KindEnergyShield {
		p.ShieldHealth = ShieldCharges
	} else {
		p.ShieldHealth = 0
	}
}

// applyInstant runs the one-shot effect of an instant kind and reports
// whether the kind had one.
func (w *World) applyInstant(p *Player, kind Kind) bool {
	switch kind {
	case KindMedkit:
		p.Health = MaxHealth
	case KindSmartBomb:
		w.detonateSmartBomb(p)
	default:
		return false
	}
	return true
}

// detonateSmartBomb damages every other player, wipes all projectiles and
// resolves any deaths it causes in the same pass.
func (w *World) detonateSmartBomb(p *Player) {
	w.publish(Event{Type: EventSmartBombBlast, Payload: BlastPayload{X: p.X, Y: p.Y}})
	w.truncateProjectiles(0)

	for _, id := range w.order {
		victim := w.players[id]
		if victim == nil || victim.ID == p.ID {
			continue
		}
		if w.damage(victim, SmartBombDamage) {
			w.handleDeath(victim, p.ID)
		}
	}
}
