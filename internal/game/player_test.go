package game

import (
	"testing"
	"time"
)

// TestParseDirection tests key name mapping
func TestParseDirection(t *testing.T) {
	tests := []struct {
		name string
		want Directions
		ok   bool
	}{
		{"up", DirUp, true},
		{"ArrowDown", DirDown, true},
		{"KeyA", DirLeft, true},
		{"right", DirRight, true},
		{"jump", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDirection(tt.name)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseDirection(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestDirectionsHas tests the bitmask check
func TestDirectionsHas(t *testing.T) {
	d := DirUp | DirLeft
	if !d.Has(DirUp) || !d.Has(DirLeft) {
		t.Error("Held directions should be reported")
	}
	if d.Has(DirDown) {
		t.Error("Unheld direction should not be reported")
	}
}

// TestPlayerCanFire tests the fire-rate gate
func TestPlayerCanFire(t *testing.T) {
	now := time.Now()
	p := &Player{Health: MaxHealth}

	if !p.canFire(now) {
		t.Error("A player who never fired should be able to")
	}
	p.LastShot = now
	if p.canFire(now.Add(FireCooldown - time.Millisecond)) {
		t.Error("Shot inside the cooldown should be refused")
	}
	if !p.canFire(now.Add(FireCooldown)) {
		t.Error("Shot at the cooldown boundary should pass")
	}

	p.Health = 0
	if p.canFire(now.Add(time.Hour)) {
		t.Error("A player at zero health should not fire")
	}
}

// TestPlayerCenter tests the hitbox centre
func TestPlayerCenter(t *testing.T) {
	p := &Player{X: 10, Y: 20}
	if p.CenterX() != 10+PlayerSize/2 || p.CenterY() != 20+PlayerSize/2 {
		t.Errorf("Unexpected centre (%v, %v)", p.CenterX(), p.CenterY())
	}
}

// TestRandomColor tests the colour format
func TestRandomColor(t *testing.T) {
	if got := randomColor(120.4); got != "hsl(120, 100%, 50%)" {
		t.Errorf("Unexpected colour %q", got)
	}
}
