// Package render draws snapshots to images for spectators and debugging.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"

	"arena-shooter/internal/game"
)

const (
	DefaultMinimapWidth = 300
	MaxMinimapWidth     = 1200
)

// pickupColors tints the pickup marker by kind.
var pickupColors = map[game.Kind]color.RGBA{
	game.KindHaste:        {0, 200, 255, 255},
	game.KindTripleShot:   {255, 200, 0, 255},
	game.KindSmartBomb:    {255, 60, 60, 255},
	game.KindEnergyShield: {80, 140, 255, 255},
	game.KindMedkit:       {60, 220, 90, 255},
	game.KindRicochet:     {200, 100, 255, 255},
	game.KindPiercingShot: {255, 255, 255, 255},
	game.KindRapidFire:    {255, 140, 0, 255},
}

// Minimap renders the arena scaled to width pixels. Height keeps the arena's
// aspect ratio.
func Minimap(snap *game.Snapshot, width int) image.Image {
	return draw(snap, width).Image()
}

// WritePNG renders the minimap and encodes it as PNG.
func WritePNG(w io.Writer, snap *game.Snapshot, width int) error {
	if err := draw(snap, width).EncodePNG(w); err != nil {
		return fmt.Errorf("encode minimap: %w", err)
	}
	return nil
}

func draw(snap *game.Snapshot, width int) *gg.Context {
	if width <= 0 {
		width = DefaultMinimapWidth
	}
	if width > MaxMinimapWidth {
		width = MaxMinimapWidth
	}
	scale := float64(width) / game.ArenaWidth
	height := int(math.Round(game.ArenaHeight * scale))

	dc := gg.NewContext(width, height)
	dc.SetColor(color.RGBA{12, 12, 28, 255})
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	dc.Scale(scale, scale)
	drawGrid(dc)

	if pk := snap.Pickup; pk != nil {
		c, ok := pickupColors[pk.Kind]
		if !ok {
			c = color.RGBA{255, 255, 255, 255}
		}
		dc.SetColor(c)
		dc.DrawRegularPolygon(4, pk.X, pk.Y, pk.Size, 0)
		dc.Fill()
	}

	dc.SetColor(color.RGBA{255, 240, 120, 255})
	for _, pr := range snap.Projectiles {
		dc.DrawCircle(pr.X, pr.Y, game.BulletSize)
		dc.Fill()
	}

	for _, p := range snap.Players {
		drawPlayer(dc, p)
	}
	return dc
}

func drawGrid(dc *gg.Context) {
	dc.SetColor(color.RGBA{30, 30, 45, 255})
	dc.SetLineWidth(2)
	gridSize := 100.0
	for x := 0.0; x <= game.ArenaWidth; x += gridSize {
		dc.DrawLine(x, 0, x, game.ArenaHeight)
		dc.Stroke()
	}
	for y := 0.0; y <= game.ArenaHeight; y += gridSize {
		dc.DrawLine(0, y, game.ArenaWidth, y)
		dc.Stroke()
	}
}

func drawPlayer(dc *gg.Context, p game.PlayerSnapshot) {
	// Shield ring
	if p.ShieldHealth > 0 {
		dc.SetColor(color.RGBA{80, 140, 255, 160})
		dc.DrawCircle(p.X+game.PlayerSize/2, p.Y+game.PlayerSize/2, game.PlayerSize)
		dc.Fill()
	}

	// Body
	dc.SetColor(parseColor(p.Color))
	dc.DrawRectangle(p.X, p.Y, game.PlayerSize, game.PlayerSize)
	dc.Fill()

	// Health bar
	hpPercent := float64(p.Health) / float64(game.MaxHealth)
	dc.SetColor(color.RGBA{51, 51, 51, 255})
	dc.DrawRectangle(p.X, p.Y-10, game.PlayerSize, 4)
	dc.Fill()
	if hpPercent > 0.5 {
		dc.SetColor(color.RGBA{83, 255, 69, 255})
	} else if hpPercent > 0.25 {
		dc.SetColor(color.RGBA{255, 149, 0, 255})
	} else {
		dc.SetColor(color.RGBA{255, 62, 62, 255})
	}
	dc.DrawRectangle(p.X, p.Y-10, game.PlayerSize*hpPercent, 4)
	dc.Fill()
}

// parseColor understands the "hsl(h, s%, l%)" strings players are given and
// "#rrggbb". Anything else renders white.
func parseColor(s string) color.RGBA {
	var h, sat, l float64
	if _, err := fmt.Sscanf(s, "hsl(%f, %f%%, %f%%)", &h, &sat, &l); err == nil {
		return hslToRGB(h, sat/100, l/100)
	}
	if len(s) == 7 && s[0] == '#' {
		var r, g, b uint8
		if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err == nil {
			return color.RGBA{r, g, b, 255}
		}
	}
	return color.RGBA{255, 255, 255, 255}
}

func hslToRGB(h, s, l float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to8 := func(v float64) uint8 { return uint8(math.Round((v + m) * 255)) }
	return color.RGBA{to8(r), to8(g), to8(b), 255}
}
