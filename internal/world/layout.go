package world

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Layout constants for the column-shoved hex canvas.
const (
	CanvasWidthRatio = 0.6  // Share of the viewport width reserved for the map
	SizingMargin     = 50.0 // Subtracted from the viewport before sizing
	CenterMargin     = 40.0 // Offset of the first hex center from the canvas origin
)

var sqrt3 = math.Sqrt(3)

// HexSize returns the largest hex radius that fits a gridW × gridH map into
// the reserved part of a viewport.
func HexSize(viewportW, viewportH float64, gridW, gridH int) float64 {
	if gridW <= 0 || gridH <= 0 {
		return 0
	}
	byWidth := (viewportW*CanvasWidthRatio - SizingMargin) / (float64(gridW) * 1.5)
	byHeight := (viewportH - SizingMargin) / (float64(gridH) * sqrt3)
	size := math.Min(byWidth, byHeight)
	if size < 0 {
		return 0
	}
	return size
}

// Layout maps grid cells to canvas geometry. The hex size follows the
// viewport and must be refreshed with Resize whenever it changes.
type Layout struct {
	Grid Grid
	size float64
}

// NewLayout creates a layout with a fixed hex size.
func NewLayout(g Grid, size float64) *Layout {
	return &Layout{Grid: g, size: size}
}

// Resize recomputes the hex size for a new viewport and returns it.
func (l *Layout) Resize(viewportW, viewportH float64) float64 {
	l.size = HexSize(viewportW, viewportH, l.Grid.Width, l.Grid.Height)
	return l.size
}

// Size returns the current hex radius.
func (l *Layout) Size() float64 {
	return l.size
}

// Center returns the pixel center of a cell. Odd columns sit half a row lower.
func (l *Layout) Center(c Cell) r2.Vec {
	horiz := l.size * 1.5
	vert := l.size * sqrt3

	x := float64(c.Col)*horiz + CenterMargin
	y := float64(c.Row)*vert + CenterMargin
	if c.Col&1 == 1 {
		y += vert / 2
	}
	return r2.Vec{X: x + l.size*2, Y: y + l.size}
}

// Corners returns the six vertices of the hexagon centered at center, at
// 0°, 60°, … 300°.
func (l *Layout) Corners(center r2.Vec) [6]r2.Vec {
	var points [6]r2.Vec
	for i := range points {
		angle := float64(i) * math.Pi / 3
		offset := r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}
		points[i] = r2.Add(center, r2.Scale(l.size, offset))
	}
	return points
}

// PointInHex is a bounding-box plus half-plane approximation of hex
// containment. Half-width is size·√3/2, half-height is size.
func (l *Layout) PointInHex(p, center r2.Vec) bool {
	dx := math.Abs(p.X - center.X)
	dy := math.Abs(p.Y - center.Y)
	hw := l.size * sqrt3 / 2
	hh := l.size
	if dx > hw || dy > hh {
		return false
	}
	return hw*hh-hw*dy-hh*dx/2 >= 0
}

// CellAt returns the first cell, scanning rows then columns, whose hex
// contains p.
func (l *Layout) CellAt(p r2.Vec) (Cell, bool) {
	if l.size <= 0 {
		return Cell{}, false
	}
	for _, c := range l.Grid.Cells() {
		if l.PointInHex(p, l.Center(c)) {
			return c, true
		}
	}
	return Cell{}, false
}
