// Package topology builds the particle table and the bond graph of a
// sticky-polymer system from a topology file and a bond-list file.
package topology

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Chemistry is the chemical type of a particle.
type Chemistry uint8

const (
	Monomer Chemistry = iota
	Sticky
)

func (c Chemistry) String() string {
	switch c {
	case Monomer:
		return "monomer"
	case Sticky:
		return "sticky"
	}
	return fmt.Sprintf("chemistry(%d)", uint8(c))
}

// Particle holds the load-time attributes of one particle.
type Particle struct {
	Index        int
	Chemistry    Chemistry
	Multiplicity int   // Declared number of bonded neighbors
	StrandID     int   // Always 0 for this model
	Neighbors    []int // Sorted indices of bonded neighbors
}

// Topology is an arena of particles plus their bond graph.
// It is built once by a Loader and read-only afterwards.
type Topology struct {
	Particles []Particle
	Strands   int
}

// New returns a topology of n monomers with no bonds.
func New(n int) *Topology {
	t := &Topology{
		Particles: make([]Particle, n),
		Strands:   n,
	}
	for i := range t.Particles {
		t.Particles[i].Index = i
	}
	return t
}

// Len returns the number of particles.
func (t *Topology) Len() int {
	return len(t.Particles)
}

// Chemistry returns the chemistry of particle i.
func (t *Topology) Chemistry(i int) Chemistry {
	return t.Particles[i].Chemistry
}

// Neighbors returns the bonded neighbors of particle i. The slice must not be modified.
func (t *Topology) Neighbors(i int) []int {
	return t.Particles[i].Neighbors
}

// IsBonded reports whether p and q share a bond.
func (t *Topology) IsBonded(p, q int) bool {
	ns := t.Particles[p].Neighbors
	k := sort.SearchInts(ns, q)
	return k < len(ns) && ns[k] == q
}

// AddBond records the p-q bond on both endpoints. Adding an existing bond is a no-op.
func (t *Topology) AddBond(p, q int) {
	t.Particles[p].Neighbors = insertSorted(t.Particles[p].Neighbors, q)
	t.Particles[q].Neighbors = insertSorted(t.Particles[q].Neighbors, p)
}

func insertSorted(s []int, v int) []int {
	k := sort.SearchInts(s, v)
	if k < len(s) && s[k] == v {
		return s
	}
	s = append(s, 0)
	copy(s[k+1:], s[k:])
	s[k] = v
	return s
}

// Bonds returns every bond once, as (p, q) with p < q, ordered by p then q.
func (t *Topology) Bonds() [][2]int {
	var bonds [][2]int
	for i := range t.Particles {
		for _, q := range t.Particles[i].Neighbors {
			if q > i {
				bonds = append(bonds, [2]int{i, q})
			}
		}
	}
	return bonds
}

// StickyCount returns the number of sticky particles.
func (t *Topology) StickyCount() int {
	n := 0
	for i := range t.Particles {
		if t.Particles[i].Chemistry == Sticky {
			n++
		}
	}
	return n
}

// Clusters returns the number of connected components of the bond graph,
// isolated particles included.
func (t *Topology) Clusters() int {
	g := simple.NewUndirectedGraph()
	for i := range t.Particles {
		g.AddNode(simple.Node(i))
	}
	for _, b := range t.Bonds() {
		g.SetEdge(simple.Edge{F: simple.Node(b[0]), T: simple.Node(b[1])})
	}
	return len(topo.ConnectedComponents(g))
}

// Validate checks the bond graph invariants: every edge is recorded on both
// endpoints and each particle has exactly as many neighbors as it declares.
func (t *Topology) Validate() error {
	for i := range t.Particles {
		p := &t.Particles[i]
		for _, q := range p.Neighbors {
			if q == i {
				return fmt.Errorf("particle %d is bonded to itself", i)
			}
			if !t.IsBonded(q, i) {
				return fmt.Errorf("bond %d-%d is not recorded on particle %d", i, q, q)
			}
		}
		if len(p.Neighbors) != p.Multiplicity {
			return fmt.Errorf("particle %d declares %d bonds but has %d bonded neighbors", i, p.Multiplicity, len(p.Neighbors))
		}
	}
	return nil
}
