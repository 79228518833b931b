package game

import "time"

// Arena geometry and combat tuning. Clients draw with literal coordinates,
// so these must match the browser client.
const (
	ArenaWidth  = 1200.0
	ArenaHeight = 900.0

	PlayerSize      = 24.0
	BulletSize      = 5.0
	PlayerSpeed     = 3.0 // units per tick
	ProjectileSpeed = 7.0 // units per tick
	MaxHealth       = 100
	HitDamage       = 10

	// HitRadius is measured from the player centre to the projectile.
	HitRadius = PlayerSize/2 + BulletSize/2

	FireCooldown      = 250 * time.Millisecond
	RapidFireCooldown = 100 * time.Millisecond
	MultiShotSpread   = 0.2 // radians between the centre shot and each side shot
	RicochetBounces   = 3

	PickupSize        = 20.0
	PickupRadius      = PlayerSize/2 + PickupSize/2
	PickupMargin      = 50.0
	PickupSpawnDelay  = 3000 * time.Millisecond
	ShieldCharges     = 3
	SmartBombDamage   = 50
	HasteSpeedMult    = 1.75
	DefaultTickRate   = 60
	DefaultMaxPlayers = 64

	// GridCellSize buckets players for hit tests; several times HitRadius
	// keeps each query within a 2x2 block.
	GridCellSize = 100.0
)
