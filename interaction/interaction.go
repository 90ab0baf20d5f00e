package interaction

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/polyswap/topology"
)

// OverlapEnergy is the energy reported for an overstretched bond during
// energy-only evaluation. It is large but finite.
const OverlapEnergy = 1e11

// DefaultEnergyWarnThreshold is used when no threshold is configured.
const DefaultEnergyWarnThreshold = 100.

// Box supplies minimum-image displacements.
type Box interface {
	// MinImage returns the shortest vector from a to b.
	MinImage(a, b r3.Vec) r3.Vec
}

// Graph is the read-only view of the bond graph used during evaluation.
type Graph interface {
	IsBonded(p, q int) bool
	Chemistry(i int) topology.Chemistry
}

// Kind selects which potential path handles a pair.
type Kind uint8

const (
	Nonbonded Kind = iota
	Bonded
)

func (k Kind) String() string {
	if k == Bonded {
		return "bonded"
	}
	return "nonbonded"
}

// Frame holds particle positions and the force accumulators written by
// force evaluations. Force may be nil for energy-only evaluation.
type Frame struct {
	Pos   []r3.Vec
	Force []r3.Vec
}

// PairContext holds the transient inputs of one pair evaluation.
type PairContext struct {
	P, Q int
	// ComputeR requests a fresh minimum-image displacement. When false,
	// R from a previous evaluation of the same pair is reused.
	ComputeR bool
	// UpdateForces accumulates forces into the frame. When false the
	// evaluation has no side effects.
	UpdateForces bool
	// R is the displacement from P to Q.
	R r3.Vec
}

// Result is the outcome of an energy evaluation.
type Result struct {
	Energy float64
	// Overlap is set when a bond is overstretched in energy-only mode.
	// Energy then holds OverlapEnergy and the state should be rejected.
	Overlap bool
}

// Add combines two results.
func (r Result) Add(o Result) Result {
	return Result{Energy: r.Energy + o.Energy, Overlap: r.Overlap || o.Overlap}
}

// Interaction evaluates pair energies and forces.
// Energy-only evaluations may run concurrently. Force evaluations write to
// the frame's accumulators of both particles; callers must not let two
// concurrent evaluations share a force slice entry.
type Interaction struct {
	params *Params
	graph  Graph
	box    Box

	// EnergyWarnThreshold bounds pair energies before a warning is logged.
	EnergyWarnThreshold float64
}

// New returns an Interaction over the given constants, bond graph and box.
func New(params *Params, graph Graph, box Box) *Interaction {
	return &Interaction{
		params:              params,
		graph:               graph,
		box:                 box,
		EnergyWarnThreshold: DefaultEnergyWarnThreshold,
	}
}

// Params returns the model constants.
func (in *Interaction) Params() *Params {
	return in.params
}

// Classify returns the potential path for the pair p, q.
func (in *Interaction) Classify(p, q int) Kind {
	if in.graph.IsBonded(p, q) {
		return Bonded
	}
	return Nonbonded
}

// PairInteraction evaluates a pair through the path its bond state selects.
func (in *Interaction) PairInteraction(pc *PairContext, fr Frame) (Result, error) {
	switch in.Classify(pc.P, pc.Q) {
	case Bonded:
		return in.PairInteractionBonded(pc, fr)
	default:
		return in.PairInteractionNonbonded(pc, fr), nil
	}
}

// PairInteractionBonded evaluates the FENE bond plus the short-range term of
// a bonded pair. It returns a zero Result if the pair is not bonded.
func (in *Interaction) PairInteractionBonded(pc *PairContext, fr Frame) (Result, error) {
	if !in.graph.IsBonded(pc.P, pc.Q) {
		return Result{}, nil
	}
	if pc.ComputeR {
		pc.R = in.box.MinImage(fr.Pos[pc.P], fr.Pos[pc.Q])
	}

	res, err := in.fene(pc, fr)
	if err != nil || res.Overlap {
		return res, err
	}
	res.Energy += in.nonbonded(pc, fr, true)
	return res, nil
}

// PairInteractionNonbonded evaluates the short-range term of a non-bonded
// pair. It returns a zero Result if the pair is bonded.
func (in *Interaction) PairInteractionNonbonded(pc *PairContext, fr Frame) Result {
	if in.graph.IsBonded(pc.P, pc.Q) {
		return Result{}
	}
	if pc.ComputeR {
		pc.R = in.box.MinImage(fr.Pos[pc.P], fr.Pos[pc.Q])
	}
	return Result{Energy: in.nonbonded(pc, fr, false)}
}

// accumulate applies the pair force f·R: -f·R on P and +f·R on Q.
func accumulate(pc *PairContext, fr Frame, f float64) {
	d := r3.Scale(f, pc.R)
	fr.Force[pc.P] = r3.Sub(fr.Force[pc.P], d)
	fr.Force[pc.Q] = r3.Add(fr.Force[pc.Q], d)
}

func (in *Interaction) class(p, q int) Class {
	return ClassOf(in.graph.Chemistry(p), in.graph.Chemistry(q))
}
