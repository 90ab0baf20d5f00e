package evaluate

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/polyswap/box"
	"github.com/pthm-cable/polyswap/interaction"
	"github.com/pthm-cable/polyswap/telemetry"
	"github.com/pthm-cable/polyswap/topology"
)

// Pair is a candidate pair with its precomputed minimum-image displacement.
type Pair struct {
	P, Q   int
	R      r3.Vec
	Bonded bool
}

// Options configures an Evaluator.
type Options struct {
	Workers           int     // goroutines for large passes, < 1 means 1
	ParallelThreshold int     // pair count below which passes run sequentially
	CellSize          float64 // minimum cell width, never below the interaction cutoff
	Perf              *telemetry.PerfCollector
}

// Totals aggregates the result of a pass.
type Totals struct {
	Energy      float64
	Bonded      float64 // bonded pairs, FENE plus short-range term
	Nonbonded   float64
	Pairs       int
	BondedPairs int
	Overlap     bool
}

func (t *Totals) add(o Totals) {
	t.Energy += o.Energy
	t.Bonded += o.Bonded
	t.Nonbonded += o.Nonbonded
	t.Pairs += o.Pairs
	t.BondedPairs += o.BondedPairs
	t.Overlap = t.Overlap || o.Overlap
}

// LogValue implements slog.LogValuer for structured logging.
func (t Totals) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("energy", t.Energy),
		slog.Float64("bonded", t.Bonded),
		slog.Float64("nonbonded", t.Nonbonded),
		slog.Int("pairs", t.Pairs),
		slog.Int("bonded_pairs", t.BondedPairs),
		slog.Bool("overlap", t.Overlap),
	)
}

// ToCSV converts Totals to an energy.csv row for n particles.
func (t Totals) ToCSV(pass, n int) telemetry.EnergyRecord {
	rec := telemetry.EnergyRecord{
		Pass:      pass,
		Energy:    t.Energy,
		Bonded:    t.Bonded,
		Nonbonded: t.Nonbonded,
		Pairs:     t.Pairs,
		Overlap:   t.Overlap,
	}
	if n > 0 {
		rec.EnergyPerParticle = t.Energy / float64(n)
	}
	return rec
}

// Evaluator runs energy and force passes over all interacting pairs.
// An Evaluator is driven from a single goroutine; it parallelizes internally.
type Evaluator struct {
	in   *interaction.Interaction
	top  *topology.Topology
	box  *box.Cubic
	opts Options

	cells   *CellList
	pairs   []Pair
	buffers [][]r3.Vec // per-worker force accumulators
}

// New creates an evaluator.
func New(in *interaction.Interaction, top *topology.Topology, b *box.Cubic, opts Options) *Evaluator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	// cells narrower than the cutoff would miss pairs two cells apart
	cellSize := math.Max(opts.CellSize, in.Params().Cutoff())
	return &Evaluator{
		in:    in,
		top:   top,
		box:   b,
		opts:  opts,
		cells: NewCellList(b, cellSize),
	}
}

// PairList returns every bonded pair plus every non-bonded pair within the
// interaction cutoff, each once with p < q. The slice is reused by the next call.
func (e *Evaluator) PairList(pos []r3.Vec) []Pair {
	e.pairs = e.pairs[:0]
	for _, b := range e.top.Bonds() {
		r := e.box.MinImage(pos[b[0]], pos[b[1]])
		e.pairs = append(e.pairs, Pair{P: b[0], Q: b[1], R: r, Bonded: true})
	}

	sqrRcut := e.in.Params().SqrCutoff()
	e.cells.Build(pos)
	e.cells.ForEachPair(func(p, q int) {
		if e.top.IsBonded(p, q) {
			return
		}
		r := e.box.MinImage(pos[p], pos[q])
		if r3.Norm2(r) <= sqrRcut {
			e.pairs = append(e.pairs, Pair{P: p, Q: q, R: r})
		}
	})
	return e.pairs
}

// Energy evaluates the total energy without touching any force state.
// An overstretched bond is reported through Totals.Overlap.
func (e *Evaluator) Energy(pos []r3.Vec) (Totals, error) {
	return e.pass(pos, nil)
}

// Forces resets force and accumulates the forces of all pairs into it.
// An overstretched bond aborts the pass with a *interaction.PhysicalViolationError.
func (e *Evaluator) Forces(pos, force []r3.Vec) (Totals, error) {
	for i := range force {
		force[i] = r3.Vec{}
	}
	return e.pass(pos, force)
}

func (e *Evaluator) pass(pos, force []r3.Vec) (Totals, error) {
	perf := e.opts.Perf
	perf.StartPass()
	defer perf.EndPass()

	perf.StartPhase(telemetry.PhasePairList)
	pairs := e.PairList(pos)

	perf.StartPhase(telemetry.PhaseEvaluate)
	workers := e.opts.Workers
	if len(pairs) < e.opts.ParallelThreshold || workers == 1 {
		return e.evalChunk(pairs, interaction.Frame{Pos: pos, Force: force}, nil)
	}

	e.ensureBuffers(workers, len(pos), force != nil)

	results := make([]Totals, workers)
	errs := make([]error, workers)
	var stop atomic.Bool
	var wg sync.WaitGroup

	chunk := (len(pairs) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, len(pairs))
		if start >= end {
			continue
		}
		fr := interaction.Frame{Pos: pos}
		if force != nil {
			fr.Force = e.buffers[w]
		}
		wg.Add(1)
		go func(w int, fr interaction.Frame) {
			defer wg.Done()
			results[w], errs[w] = e.evalChunk(pairs[start:end], fr, &stop)
		}(w, fr)
	}
	wg.Wait()

	perf.StartPhase(telemetry.PhaseReduce)
	var total Totals
	for w := 0; w < workers; w++ {
		if errs[w] != nil {
			return Totals{}, errs[w]
		}
		total.add(results[w])
	}
	if force != nil {
		for w := 0; w < workers; w++ {
			buf := e.buffers[w]
			for i := range force {
				force[i] = r3.Add(force[i], buf[i])
			}
		}
	}
	return total, nil
}

// ensureBuffers allocates and zeroes one force buffer per worker.
func (e *Evaluator) ensureBuffers(workers, n int, withForces bool) {
	if !withForces {
		return
	}
	for len(e.buffers) < workers {
		e.buffers = append(e.buffers, nil)
	}
	for w := 0; w < workers; w++ {
		if len(e.buffers[w]) != n {
			e.buffers[w] = make([]r3.Vec, n)
			continue
		}
		for i := range e.buffers[w] {
			e.buffers[w][i] = r3.Vec{}
		}
	}
}

// evalChunk evaluates pairs sequentially into fr. A non-nil stop is raised
// on error and checked between pairs so sibling workers bail out early.
func (e *Evaluator) evalChunk(pairs []Pair, fr interaction.Frame, stop *atomic.Bool) (Totals, error) {
	var t Totals
	pc := interaction.PairContext{UpdateForces: fr.Force != nil}
	for i := range pairs {
		if stop != nil && stop.Load() {
			return t, nil
		}
		pr := &pairs[i]
		pc.P, pc.Q, pc.R = pr.P, pr.Q, pr.R

		res, err := e.in.PairInteraction(&pc, fr)
		if err != nil {
			if stop != nil {
				stop.Store(true)
			}
			return t, err
		}
		t.Energy += res.Energy
		t.Overlap = t.Overlap || res.Overlap
		t.Pairs++
		if pr.Bonded {
			t.Bonded += res.Energy
			t.BondedPairs++
		} else {
			t.Nonbonded += res.Energy
		}
	}
	return t, nil
}
