package interaction

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/polyswap/box"
	"github.com/pthm-cable/polyswap/topology"
)

// newPair builds a two-particle system with the given chemistries.
func newPair(t *testing.T, alpha float64, a, b topology.Chemistry, bonded bool) *Interaction {
	t.Helper()
	params, err := NewParams(testSettings(alpha))
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	top := topology.New(2)
	top.Particles[0].Chemistry = a
	top.Particles[1].Chemistry = b
	if bonded {
		top.AddBond(0, 1)
	}
	return New(params, top, box.Open{})
}

// evalAt evaluates the pair at separation r along x. It returns the result
// and the x component of the force on the second particle.
func evalAt(in *Interaction, r float64, updateForces bool) (Result, float64, error) {
	fr := Frame{Force: make([]r3.Vec, 2)}
	pc := &PairContext{P: 0, Q: 1, UpdateForces: updateForces, R: r3.Vec{X: r}}
	res, err := in.PairInteraction(pc, fr)
	return res, fr.Force[1].X, err
}

func energyAt(t *testing.T, in *Interaction) func(float64) float64 {
	return func(r float64) float64 {
		res, _, err := evalAt(in, r, false)
		if err != nil {
			t.Fatalf("energy at %v: %v", r, err)
		}
		return res.Energy
	}
}

func TestFENEEnergyIncreasing(t *testing.T) {
	in := newPair(t, 0, topology.Monomer, topology.Monomer, true)

	prev := math.Inf(-1)
	// beyond the repulsive cutoff only the FENE term contributes
	for r := 1.13; r < 1.5; r += 0.01 {
		res, _, err := evalAt(in, r, false)
		if err != nil {
			t.Fatalf("r=%v: %v", r, err)
		}
		if math.IsInf(res.Energy, 0) || math.IsNaN(res.Energy) {
			t.Fatalf("r=%v: energy not finite: %v", r, res.Energy)
		}
		if res.Energy <= prev {
			t.Errorf("r=%v: energy %v not increasing (prev %v)", r, res.Energy, prev)
		}
		if res.Overlap {
			t.Errorf("r=%v: unexpected overlap", r)
		}
		prev = res.Energy
	}
}

func TestFENEEnergyValue(t *testing.T) {
	in := newPair(t, 0, topology.Monomer, topology.Monomer, true)
	res, _, err := evalAt(in, 1.2, false)
	if err != nil {
		t.Fatal(err)
	}
	want := -15 * 2.25 * math.Log(1-1.44/2.25)
	if !scalar.EqualWithinAbsOrRel(res.Energy, want, 1e-12, 1e-12) {
		t.Errorf("energy = %v, want %v", res.Energy, want)
	}
}

func TestFENEOverstretchEnergyOnly(t *testing.T) {
	in := newPair(t, 0, topology.Monomer, topology.Monomer, true)
	for _, r := range []float64{1.5, 1.5001, 3} {
		res, fx, err := evalAt(in, r, false)
		if err != nil {
			t.Fatalf("r=%v: unexpected error %v", r, err)
		}
		if !res.Overlap {
			t.Errorf("r=%v: expected overlap signal", r)
		}
		if res.Energy != OverlapEnergy {
			t.Errorf("r=%v: energy = %v, want sentinel", r, res.Energy)
		}
		if fx != 0 {
			t.Errorf("r=%v: energy-only evaluation wrote a force", r)
		}
	}
}

func TestOverlapEnergyValue(t *testing.T) {
	if OverlapEnergy != 1e11 {
		t.Errorf("OverlapEnergy = %v, want 1e11", OverlapEnergy)
	}
}

// captureWarnings routes warnings of the default logger into a buffer for
// the rest of the test.
func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var recs []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decoding log line %q: %v", sc.Text(), err)
		}
		recs = append(recs, rec)
	}
	return recs
}

// TestLargeEnergyWarning verifies a pair above the warning threshold is
// logged once and evaluated exactly as without the threshold.
func TestLargeEnergyWarning(t *testing.T) {
	quiet := newPair(t, 0, topology.Monomer, topology.Monomer, false)
	quiet.EnergyWarnThreshold = math.Inf(1)
	loud := newPair(t, 0, topology.Monomer, topology.Monomer, false)
	if loud.EnergyWarnThreshold != 100 {
		t.Fatalf("default threshold = %v, want 100", loud.EnergyWarnThreshold)
	}

	buf := captureWarnings(t)

	want, wantFx, err := evalAt(quiet, 0.6, true)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected warning with infinite threshold: %s", buf.String())
	}

	got, gotFx, err := evalAt(loud, 0.6, true)
	if err != nil {
		t.Fatalf("warning must not turn into an error: %v", err)
	}
	if got != want || gotFx != wantFx {
		t.Errorf("warning changed the result: %+v %v, want %+v %v", got, gotFx, want, wantFx)
	}
	if got.Energy <= 100 {
		t.Fatalf("energy at r=0.6 = %v, expected above the threshold", got.Energy)
	}

	recs := decodeRecords(t, buf)
	if len(recs) != 1 {
		t.Fatalf("got %d log records, want 1: %s", len(recs), buf.String())
	}
	rec := recs[0]
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", rec["level"])
	}
	if rec["p"] != 0.0 || rec["q"] != 1.0 {
		t.Errorf("pair = %v-%v, want 0-1", rec["p"], rec["q"])
	}
	if r, ok := rec["r"].(float64); !ok || !scalar.EqualWithinAbsOrRel(r, 0.6, 1e-12, 1e-12) {
		t.Errorf("r = %v, want 0.6", rec["r"])
	}
	if rec["class"] != "monomer-monomer" {
		t.Errorf("class = %v, want monomer-monomer", rec["class"])
	}
	if e, ok := rec["energy"].(float64); !ok || e != got.Energy {
		t.Errorf("logged energy = %v, want %v", rec["energy"], got.Energy)
	}

	// below the threshold nothing is logged
	buf.Reset()
	if _, _, err := evalAt(loud, 1.0, true); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected warning at r=1: %s", buf.String())
	}
}

// TestFENEOverstretchWithForces verifies a force evaluation of an
// overstretched bond reports the pair instead of a sentinel.
func TestFENEOverstretchWithForces(t *testing.T) {
	params, err := NewParams(testSettings(0))
	if err != nil {
		t.Fatal(err)
	}
	top := topology.New(3)
	top.Particles[2].Chemistry = topology.Sticky
	top.AddBond(0, 2)
	in := New(params, top, box.Open{})

	fr := Frame{Force: make([]r3.Vec, 3)}
	pc := &PairContext{P: 0, Q: 2, UpdateForces: true, R: r3.Vec{Y: 2}}
	_, err = in.PairInteraction(pc, fr)

	var pv *PhysicalViolationError
	if !errors.As(err, &pv) {
		t.Fatalf("expected PhysicalViolationError, got %v", err)
	}
	if pv.P != 0 || pv.Q != 2 || pv.Class != MonomerSticky || pv.R != 2 || pv.RFENE != 1.5 {
		t.Errorf("unexpected violation details: %+v", pv)
	}
}

// TestForceMatchesEnergyDerivative compares each branch's force with -dE/dr.
func TestForceMatchesEnergyDerivative(t *testing.T) {
	tests := []struct {
		name   string
		alpha  float64
		a, b   topology.Chemistry
		bonded bool
		rMin   float64
		rMax   float64
	}{
		{"bonded monomers", 0, topology.Monomer, topology.Monomer, true, 0.9, 1.45},
		{"bonded monomers attraction", 0.5, topology.Monomer, topology.Monomer, true, 0.9, 1.45},
		{"bonded sticky", 0.5, topology.Sticky, topology.Monomer, true, 0.9, 1.45},
		{"repulsion", 0, topology.Monomer, topology.Monomer, false, 0.85, 1.12},
		{"repulsion and attraction", 0.5, topology.Monomer, topology.Monomer, false, 0.85, 1.49},
		{"sticky pair repulsion", 0, topology.Sticky, topology.Sticky, true, 0.85, 1.12},
	}

	settings := &fd.Settings{Formula: fd.Central, Step: 1e-6}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := newPair(t, tc.alpha, tc.a, tc.b, tc.bonded)
			energy := energyAt(t, in)

			const samples = 40
			for i := 0; i <= samples; i++ {
				r := tc.rMin + (tc.rMax-tc.rMin)*float64(i)/samples
				_, fx, err := evalAt(in, r, true)
				if err != nil {
					t.Fatalf("r=%v: %v", r, err)
				}
				want := -fd.Derivative(energy, r, settings)
				if !scalar.EqualWithinAbsOrRel(fx, want, 1e-5, 1e-5) {
					t.Errorf("r=%v: force %v, -dE/dr %v", r, fx, want)
				}
			}
		})
	}
}

func TestForcesEqualAndOpposite(t *testing.T) {
	in := newPair(t, 0.5, topology.Monomer, topology.Monomer, true)
	fr := Frame{Force: make([]r3.Vec, 2)}
	pc := &PairContext{P: 0, Q: 1, UpdateForces: true, R: r3.Vec{X: 0.8, Y: -0.6, Z: 0.5}}
	if _, err := in.PairInteraction(pc, fr); err != nil {
		t.Fatal(err)
	}
	if r3.Norm(r3.Add(fr.Force[0], fr.Force[1])) > 1e-12 {
		t.Errorf("forces do not cancel: %v %v", fr.Force[0], fr.Force[1])
	}
	if r3.Norm(fr.Force[0]) == 0 {
		t.Error("expected a nonzero force")
	}
	// FENE pulls the pair together at this separation
	if r3.Dot(fr.Force[1], pc.R) >= 0 {
		t.Errorf("force on Q points away from P: %v", fr.Force[1])
	}
}

func TestNonbondedZeroBeyondCutoff(t *testing.T) {
	for _, alpha := range []float64{0, 0.5} {
		in := newPair(t, alpha, topology.Monomer, topology.Monomer, false)
		rc := in.Params().Cutoff()
		for _, r := range []float64{rc * (1 + 1e-9), rc + 0.01, 2 * rc, 10} {
			res, fx, err := evalAt(in, r, true)
			if err != nil {
				t.Fatal(err)
			}
			if res.Energy != 0 || fx != 0 {
				t.Errorf("alpha=%v r=%v: energy %v force %v, want 0", alpha, r, res.Energy, fx)
			}
		}
	}
}

// TestCrossChemistryGating verifies unlike chemistries interact only through a bond.
func TestCrossChemistryGating(t *testing.T) {
	tests := []struct {
		name string
		a, b topology.Chemistry
	}{
		{"monomer-sticky", topology.Monomer, topology.Sticky},
		{"sticky-monomer", topology.Sticky, topology.Monomer},
		{"sticky-sticky", topology.Sticky, topology.Sticky},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := newPair(t, 0.5, tc.a, tc.b, false)
			for r := 0.5; r < 2; r += 0.05 {
				res, fx, err := evalAt(in, r, true)
				if err != nil {
					t.Fatal(err)
				}
				if res.Energy != 0 || fx != 0 {
					t.Errorf("r=%v: energy %v force %v, want 0", r, res.Energy, fx)
				}
			}

			bonded := newPair(t, 0.5, tc.a, tc.b, true)
			res, _, err := evalAt(bonded, 0.9, false)
			if err != nil {
				t.Fatal(err)
			}
			fene := -15 * 2.25 * math.Log(1-0.81/2.25)
			if res.Energy <= fene {
				t.Errorf("bonded pair at r=0.9 lacks repulsion: %v <= %v", res.Energy, fene)
			}
		})
	}
}

func TestCrossChemistryNoAttraction(t *testing.T) {
	// bonded monomer-sticky pairs repel but never attract
	in := newPair(t, 0.5, topology.Monomer, topology.Sticky, true)
	r := 1.3
	res, _, err := evalAt(in, r, false)
	if err != nil {
		t.Fatal(err)
	}
	fene := -15 * 2.25 * math.Log(1-r*r/2.25)
	if !scalar.EqualWithinAbsOrRel(res.Energy, fene, 1e-12, 1e-12) {
		t.Errorf("energy = %v, want FENE only %v", res.Energy, fene)
	}
}

// TestRepulsiveMinimum checks the repulsive branch at r = σ and at its minimum.
func TestRepulsiveMinimum(t *testing.T) {
	for _, alpha := range []float64{0, 0.3} {
		in := newPair(t, alpha, topology.Monomer, topology.Monomer, false)

		// part = 1 at r = sigma
		res, _, err := evalAt(in, 1, false)
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(res.Energy, 1-alpha, 1e-12) {
			t.Errorf("alpha=%v: energy at sigma = %v, want %v", alpha, res.Energy, 1-alpha)
		}

		// minimum of the repulsive branch, where attraction takes over
		rMin := math.Pow(2, 1./6.)
		res, fx, err := evalAt(in, rMin, true)
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(res.Energy, -alpha, 1e-9) {
			t.Errorf("alpha=%v: energy at minimum = %v, want %v", alpha, res.Energy, -alpha)
		}
		if !scalar.EqualWithinAbs(fx, 0, 1e-9) {
			t.Errorf("alpha=%v: force at minimum = %v, want 0", alpha, fx)
		}
	}
}

func TestAttractionDecaysToCutoff(t *testing.T) {
	in := newPair(t, 0.5, topology.Monomer, topology.Monomer, false)
	res, _, err := evalAt(in, 1.5, false)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(res.Energy, 0, 1e-12) {
		t.Errorf("energy at cutoff = %v, want 0", res.Energy)
	}
	res, _, err = evalAt(in, 1.3, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Energy >= 0 || res.Energy < -0.5 {
		t.Errorf("energy at 1.3 = %v, want in [-alpha, 0)", res.Energy)
	}
}

func TestMutualExclusivity(t *testing.T) {
	unbonded := newPair(t, 0.5, topology.Monomer, topology.Monomer, false)
	bonded := newPair(t, 0.5, topology.Monomer, topology.Monomer, true)

	fr := Frame{Force: make([]r3.Vec, 2)}
	pc := &PairContext{P: 0, Q: 1, UpdateForces: true, R: r3.Vec{X: 1.05}}

	res, err := unbonded.PairInteractionBonded(pc, fr)
	if err != nil || res != (Result{}) {
		t.Errorf("bonded entry on unbonded pair = %+v, %v", res, err)
	}
	if res := bonded.PairInteractionNonbonded(pc, fr); res != (Result{}) {
		t.Errorf("nonbonded entry on bonded pair = %+v", res)
	}
	if fr.Force[0] != (r3.Vec{}) || fr.Force[1] != (r3.Vec{}) {
		t.Errorf("rejected evaluations wrote forces: %v", fr.Force)
	}

	if res := unbonded.PairInteractionNonbonded(pc, fr); res.Energy == 0 {
		t.Error("nonbonded entry on unbonded pair returned 0")
	}
	if res, err := bonded.PairInteractionBonded(pc, fr); err != nil || res.Energy == 0 {
		t.Errorf("bonded entry on bonded pair = %+v, %v", res, err)
	}
}

func TestClassify(t *testing.T) {
	in := newPair(t, 0, topology.Monomer, topology.Monomer, true)
	if in.Classify(0, 1) != Bonded || in.Classify(1, 0) != Bonded {
		t.Error("bonded pair not classified as bonded")
	}
	in = newPair(t, 0, topology.Monomer, topology.Monomer, false)
	if in.Classify(0, 1) != Nonbonded {
		t.Error("unbonded pair not classified as nonbonded")
	}
}

func TestComputeRUsesBox(t *testing.T) {
	params, err := NewParams(testSettings(0))
	if err != nil {
		t.Fatal(err)
	}
	top := topology.New(2)
	in := New(params, top, box.NewCubic(10, 10, 10))

	fr := Frame{Pos: []r3.Vec{{X: 9.5}, {X: 0.5}}}
	pc := &PairContext{P: 0, Q: 1, ComputeR: true}
	res, err := in.PairInteraction(pc, fr)
	if err != nil {
		t.Fatal(err)
	}
	if pc.R != (r3.Vec{X: 1}) {
		t.Errorf("R = %v, want minimum image (1,0,0)", pc.R)
	}
	if !scalar.EqualWithinAbs(res.Energy, 1, 1e-12) {
		t.Errorf("energy = %v, want 1 at r = sigma", res.Energy)
	}

	// the cached displacement is reused when ComputeR is false
	pc.ComputeR = false
	fr.Pos[1] = r3.Vec{X: 5}
	again, err := in.PairInteraction(pc, fr)
	if err != nil {
		t.Fatal(err)
	}
	if again != res {
		t.Errorf("reused displacement gave %+v, want %+v", again, res)
	}
}
