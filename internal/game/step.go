package game

import (
	"math"
	"slices"
	"time"
)

// Step advances the world by one tick and broadcasts the resulting snapshot.
// Every stage is total over the current state: nothing here returns an
// error or panics on missing entities.
func (w *World) Step(now time.Time) *Snapshot {
	w.tick++

	for _, id := range w.order {
		w.players[id].move()
	}
	w.advanceProjectiles()
	w.resolveHits()
	w.expirePowerUps(now)
	w.collectPickup(now)

	snap := w.Snapshot()
	w.publish(Event{Type: EventGameState, Payload: snap})
	return snap
}

// advanceProjectiles moves every projectile and drops those that left the
// arena without bounces. Zero-allocation in-place filtering.
func (w *World) advanceProjectiles() {
	n := 0
	for _, pr := range w.projectiles {
		if pr.Update() {
			w.projectiles[n] = pr
			n++
		}
	}
	w.truncateProjectiles(n)
}

// resolveHits tests each projectile against every player but its owner,
// in join order. A non-piercing projectile is spent on its first hit; a
// lethal hit stops the projectile from testing further players this tick.
// The grid only narrows the candidates; it is rebuilt after a death because
// the victim respawns elsewhere.
func (w *World) resolveHits() {
	if len(w.projectiles) == 0 || len(w.order) == 0 {
		return
	}
	w.indexPlayers()

	n := 0
	for _, pr := range w.projectiles {
		keep := true
		for _, idx := range w.hitCandidates(pr) {
			target := w.players[w.order[idx]]
			if !pr.CheckHit(target) {
				continue
			}

			lethal := w.damage(target, HitDamage)
			if pr.Piercing {
				pr.markHit(target.ID)
			} else {
				keep = false
			}
			if lethal {
				w.handleDeath(target, pr.OwnerID)
				w.indexPlayers()
				break
			}
			if !keep {
				break
			}
		}
		if keep {
			w.projectiles[n] = pr
			n++
		}
	}
	w.truncateProjectiles(n)
}

// indexPlayers refills the grid with join-order indices at hitbox centres.
func (w *World) indexPlayers() {
	w.grid.Clear()
	for i, id := range w.order {
		p := w.players[id]
		w.grid.Insert(uint32(i), p.CenterX(), p.CenterY())
	}
}

// hitCandidates returns the join-order indices near pr, ascending.
func (w *World) hitCandidates(pr *Projectile) []uint32 {
	c := w.grid.QueryRadius(pr.X, pr.Y, HitRadius)
	slices.Sort(c)
	return c
}

func (w *World) truncateProjectiles(n int) {
	for i := n; i < len(w.projectiles); i++ {
		w.projectiles[i] = nil
	}
	w.projectiles = w.projectiles[:n]
}

// expirePowerUps clears power-ups whose expiry has passed.
func (w *World) expirePowerUps(now time.Time) {
	for _, id := range w.order {
		p := w.players[id]
		if p.ActivePowerUp != nil && now.After(p.ActivePowerUp.ExpiresAt) {
			p.clearPowerUp()
		}
	}
}

// collectPickup hands the live pickup to the first player touching it.
func (w *World) collectPickup(now time.Time) {
	pk := w.spawner.Pickup()
	if pk == nil {
		return
	}
	for _, id := range w.order {
		p := w.players[id]
		if math.Hypot(p.CenterX()-pk.X, p.CenterY()-pk.Y) >= PickupRadius {
			continue
		}

		taken := w.spawner.take()
		w.publish(Event{Type: EventPowerUpCollected, Payload: CollectedPayload{PlayerName: p.Name, Type: taken.Kind}})
		if w.hooks.OnCollect != nil {
			w.hooks.OnCollect(p, taken.Kind)
		}
		w.applyPowerUp(p, taken.Kind, now)
		w.StartSpawner()
		return
	}
}
