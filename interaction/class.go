package interaction

import "github.com/pthm-cable/polyswap/topology"

// Class selects the constants governing a pair, one per unordered
// chemistry pair.
type Class uint8

const (
	MonomerMonomer Class = iota
	MonomerSticky
	StickySticky
)

var classTable = [2][2]Class{
	topology.Monomer: {topology.Monomer: MonomerMonomer, topology.Sticky: MonomerSticky},
	topology.Sticky:  {topology.Monomer: MonomerSticky, topology.Sticky: StickySticky},
}

// ClassOf returns the class of a pair of chemistries.
func ClassOf(a, b topology.Chemistry) Class {
	return classTable[a][b]
}

func (c Class) String() string {
	switch c {
	case MonomerMonomer:
		return "monomer-monomer"
	case MonomerSticky:
		return "monomer-sticky"
	case StickySticky:
		return "sticky-sticky"
	}
	return "unknown"
}
