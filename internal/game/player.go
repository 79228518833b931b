package game

import (
	"fmt"
	"math"
	"time"
)

// Directions is the set of movement keys a player is holding.
type Directions uint8

const (
	DirUp Directions = 1 << iota
	DirDown
	DirLeft
	DirRight
)

// Has reports whether every direction in d2 is held.
func (d Directions) Has(d2 Directions) bool {
	return d&d2 == d2
}

// ParseDirection maps a key name to a direction. It accepts the short names
// ("up") as well as the browser key codes the web client sends.
func ParseDirection(name string) (Directions, bool) {
	switch name {
	case "up", "ArrowUp", "KeyW":
		return DirUp, true
	case "down", "ArrowDown", "KeyS":
		return DirDown, true
	case "left", "ArrowLeft", "KeyA":
		return DirLeft, true
	case "right", "ArrowRight", "KeyD":
		return DirRight, true
	}
	return 0, false
}

// Player is one connected participant.
type Player struct {
	ID     string
	Name   string
	X, Y   float64
	Color  string
	Health int
	Kills  int

	Input         Directions
	ActivePowerUp *ActivePowerUp
	ShieldHealth  int
	LastShot      time.Time
}

// CenterX returns the x coordinate of the hitbox centre.
func (p *Player) CenterX() float64 { return p.X + PlayerSize/2 }

// CenterY returns the y coordinate of the hitbox centre.
func (p *Player) CenterY() float64 { return p.Y + PlayerSize/2 }

// HasPowerUp reports whether kind is the player's active power-up.
func (p *Player) HasPowerUp(kind Kind) bool {
	return p.ActivePowerUp != nil && p.ActivePowerUp.Kind == kind
}

// speed is the per-tick displacement along one held axis.
func (p *Player) speed() float64 {
	if p.ActivePowerUp == nil {
		return PlayerSpeed
	}
	return PlayerSpeed * p.ActivePowerUp.Kind.SpeedMultiplier()
}

// move applies held directions and clamps the player into the arena.
func (p *Player) move() {
	s := p.speed()
	if p.Input.Has(DirUp) {
		p.Y -= s
	}
	if p.Input.Has(DirDown) {
		p.Y += s
	}
	if p.Input.Has(DirLeft) {
		p.X -= s
	}
	if p.Input.Has(DirRight) {
		p.X += s
	}
	p.clamp()
}

func (p *Player) clamp() {
	p.X = math.Max(0, math.Min(p.X, ArenaWidth-PlayerSize))
	p.Y = math.Max(0, math.Min(p.Y, ArenaHeight-PlayerSize))
}

// fireCooldown is the minimum gap between two shots.
func (p *Player) fireCooldown() time.Duration {
	if p.HasPowerUp(KindRapidFire) {
		return RapidFireCooldown
	}
	return FireCooldown
}

// canFire applies the fire-rate gate. A zero LastShot always passes.
func (p *Player) canFire(now time.Time) bool {
	if p.Health <= 0 {
		return false
	}
	return p.LastShot.IsZero() || now.Sub(p.LastShot) >= p.fireCooldown()
}

// clearPowerUp drops the active power-up together with any shield charge.
func (p *Player) clearPowerUp() {
	p.ActivePowerUp = nil
	p.ShieldHealth = 0
}

// randomColor picks a fully saturated hue the way the web client expects.
func randomColor(hue float64) string {
	return fmt.Sprintf("hsl(%.0f, 100%%, 50%%)", hue)
}
