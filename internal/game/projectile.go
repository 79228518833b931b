package game

import "math"

// Projectile is a bullet in flight.
type Projectile struct {
	ID          uint64
	OwnerID     string
	X, Y        float64
	Angle       float64 // radians
	BouncesLeft int
	Piercing    bool

	// hit holds players a piercing projectile already damaged.
	hit map[string]struct{}
}

// NewProjectile creates a projectile at (x, y) travelling along angle.
func NewProjectile(id uint64, ownerID string, x, y, angle float64) *Projectile {
	return &Projectile{
		ID:      id,
		OwnerID: ownerID,
		X:       x,
		Y:       y,
		Angle:   angle,
	}
}

// Update advances the projectile one tick and reflects it off the arena
// edges while it has bounces left. It returns false when the projectile left
// the arena and should be removed.
func (p *Projectile) Update() bool {
	p.X += math.Cos(p.Angle) * ProjectileSpeed
	p.Y += math.Sin(p.Angle) * ProjectileSpeed

	outX := p.X < 0 || p.X > ArenaWidth
	outY := p.Y < 0 || p.Y > ArenaHeight
	if !outX && !outY {
		return true
	}
	if p.BouncesLeft <= 0 {
		return false
	}

	if outX {
		p.Angle = math.Pi - p.Angle
		p.X = math.Max(0, math.Min(p.X, ArenaWidth))
	}
	if outY {
		p.Angle = -p.Angle
		p.Y = math.Max(0, math.Min(p.Y, ArenaHeight))
	}
	p.BouncesLeft--
	return true
}

// CheckHit tests the projectile against a player's hitbox centre. The owner
// and players a piercing shot already went through never register.
func (p *Projectile) CheckHit(target *Player) bool {
	if target.ID == p.OwnerID || p.AlreadyHit(target.ID) {
		return false
	}
	return math.Hypot(p.X-target.CenterX(), p.Y-target.CenterY()) < HitRadius
}

// AlreadyHit reports whether the projectile already damaged the player.
func (p *Projectile) AlreadyHit(id string) bool {
	_, ok := p.hit[id]
	return ok
}

func (p *Projectile) markHit(id string) {
	if p.hit == nil {
		p.hit = make(map[string]struct{}, 2)
	}
	p.hit[id] = struct{}{}
}
