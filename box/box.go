// Package box provides the periodic simulation box.
package box

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Cubic is an orthorhombic periodic box with side lengths L.
// A zero side length disables wrapping along that axis.
type Cubic struct {
	L r3.Vec
}

// NewCubic returns a box with the given side lengths.
func NewCubic(lx, ly, lz float64) *Cubic {
	return &Cubic{L: r3.Vec{X: lx, Y: ly, Z: lz}}
}

// MinImage returns the shortest periodic displacement from a to b.
func (b *Cubic) MinImage(from, to r3.Vec) r3.Vec {
	d := r3.Sub(to, from)
	return r3.Vec{
		X: wrap(d.X, b.L.X),
		Y: wrap(d.Y, b.L.Y),
		Z: wrap(d.Z, b.L.Z),
	}
}

// Wrap maps a position into the primary cell [0, L).
func (b *Cubic) Wrap(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: fold(p.X, b.L.X),
		Y: fold(p.Y, b.L.Y),
		Z: fold(p.Z, b.L.Z),
	}
}

func wrap(d, l float64) float64 {
	if l <= 0 {
		return d
	}
	return d - l*math.Round(d/l)
}

func fold(x, l float64) float64 {
	if l <= 0 {
		return x
	}
	x -= l * math.Floor(x/l)
	if x >= l {
		x = 0
	}
	return x
}

// Open is a box without periodic boundaries.
type Open struct{}

// MinImage returns b - a.
func (Open) MinImage(a, b r3.Vec) r3.Vec {
	return r3.Sub(b, a)
}
