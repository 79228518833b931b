// Package spatial provides a uniform grid for broad-phase collision tests.
//
// Entities are stored as integer indices into the caller's own slice, so the
// grid never holds pointers and can be cleared and refilled every tick
// without allocating.
package spatial

import (
	"math"
)

// Grid buckets points into fixed-size cells stored row-major
// (cells[row*cols+col]).
//
// Cell size should be at least the largest query radius so a query touches
// at most a 3x3 block.
type Grid struct {
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
	count       int
}

// NewGrid creates a grid covering width x height.
func NewGrid(width, height, cellSize float64) *Grid {
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))

	// Ensure at least 1x1 grid
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint32, cols*rows)
	for i := range cells {
		cells[i] = make([]uint32, 0, 4)
	}

	return &Grid{
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 16),
	}
}

// Clear empties every cell, keeping capacity.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.count = 0
}

// Len returns the number of inserted entities.
func (g *Grid) Len() int { return g.count }

// Insert adds entity id at (x, y). Points outside the grid land in the
// nearest edge cell.
func (g *Grid) Insert(id uint32, x, y float64) {
	col := g.clampCol(int(x * g.invCellSize))
	row := g.clampRow(int(y * g.invCellSize))
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], id)
	g.count++
}

// QueryRadius returns every id whose cell overlaps the square around
// (cx, cy). Candidates may lie outside radius; callers do the exact test.
//
// IMPORTANT: The returned slice is reused on the next call.
func (g *Grid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := g.clampCol(int(math.Floor((cx - radius) * g.invCellSize)))
	maxCol := g.clampCol(int(math.Floor((cx + radius) * g.invCellSize)))
	minRow := g.clampRow(int(math.Floor((cy - radius) * g.invCellSize)))
	maxRow := g.clampRow(int(math.Floor((cy + radius) * g.invCellSize)))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}
	return g.scratch
}

func (g *Grid) clampCol(col int) int {
	return min(max(col, 0), g.cols-1)
}

func (g *Grid) clampRow(row int) int {
	return min(max(row, 0), g.rows-1)
}
