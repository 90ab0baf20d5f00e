// Package evaluate enumerates interacting pairs and drives energy and force
// passes over a whole configuration.
package evaluate

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/polyswap/box"
)

// CellList bins particles into a periodic grid of cells at least minCell
// wide, so candidate pairs only come from adjacent cells. Boxes too small
// for three cells per axis fall back to all pairs.
type CellList struct {
	box  *box.Cubic
	dims [3]int
	size r3.Vec
	head []int // first particle per cell, -1 if empty
	next []int // next particle in the same cell, -1 at the end
	n    int
}

// NewCellList creates a cell list for the given box.
func NewCellList(b *box.Cubic, minCell float64) *CellList {
	c := &CellList{box: b}
	l := [3]float64{b.L.X, b.L.Y, b.L.Z}
	for k := range c.dims {
		if minCell <= 0 || l[k] <= 0 {
			c.dims = [3]int{}
			return c
		}
		c.dims[k] = int(math.Floor(l[k] / minCell))
		if c.dims[k] < 3 {
			c.dims = [3]int{}
			return c
		}
	}
	c.size = r3.Vec{
		X: l[0] / float64(c.dims[0]),
		Y: l[1] / float64(c.dims[1]),
		Z: l[2] / float64(c.dims[2]),
	}
	c.head = make([]int, c.dims[0]*c.dims[1]*c.dims[2])
	return c
}

// Gridded reports whether the list bins particles or enumerates all pairs.
func (c *CellList) Gridded() bool {
	return c.head != nil
}

// Build bins the given positions.
func (c *CellList) Build(pos []r3.Vec) {
	c.n = len(pos)
	if !c.Gridded() {
		return
	}
	for i := range c.head {
		c.head[i] = -1
	}
	if cap(c.next) < len(pos) {
		c.next = make([]int, len(pos))
	}
	c.next = c.next[:len(pos)]

	for i, p := range pos {
		idx := c.cellIndex(c.box.Wrap(p))
		c.next[i] = c.head[idx]
		c.head[idx] = i
	}
}

// ForEachPair calls fn once for every candidate pair p < q.
func (c *CellList) ForEachPair(fn func(p, q int)) {
	if !c.Gridded() {
		for p := 0; p < c.n; p++ {
			for q := p + 1; q < c.n; q++ {
				fn(p, q)
			}
		}
		return
	}

	nx, ny, nz := c.dims[0], c.dims[1], c.dims[2]
	for cx := 0; cx < nx; cx++ {
		for cy := 0; cy < ny; cy++ {
			for cz := 0; cz < nz; cz++ {
				cell := (cx*ny+cy)*nz + cz
				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						for dz := -1; dz <= 1; dz++ {
							ox := (cx + dx + nx) % nx
							oy := (cy + dy + ny) % ny
							oz := (cz + dz + nz) % nz
							other := (ox*ny+oy)*nz + oz
							for p := c.head[cell]; p >= 0; p = c.next[p] {
								for q := c.head[other]; q >= 0; q = c.next[q] {
									if p < q {
										fn(p, q)
									}
								}
							}
						}
					}
				}
			}
		}
	}
}

// cellIndex returns the flat index for a wrapped position.
func (c *CellList) cellIndex(p r3.Vec) int {
	ix := clamp(int(p.X/c.size.X), c.dims[0])
	iy := clamp(int(p.Y/c.size.Y), c.dims[1])
	iz := clamp(int(p.Z/c.size.Z), c.dims[2])
	return (ix*c.dims[1]+iy)*c.dims[2] + iz
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
