package interaction

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// nonbonded evaluates the WCA repulsion and, for monomer-monomer pairs, the
// cosine attraction. Pairs of different chemistries interact only if bonded.
func (in *Interaction) nonbonded(pc *PairContext, fr Frame, bonded bool) float64 {
	sqrR := r3.Norm2(pc.R)
	if sqrR > in.params.sqrRcut {
		return 0
	}

	c := in.class(pc.P, pc.Q)
	if !bonded && c != MonomerMonomer {
		return 0
	}

	p := in.params
	var energy, forceMod float64
	if sqrR < p.sqrRepRcut[c] {
		ratio := p.wcaSigma[c] * p.wcaSigma[c] / sqrR
		part := 1.
		for i := 0; i < p.n/2; i++ {
			part *= ratio
		}
		energy = 4*part*(part-1) + 1 - p.alpha
		forceMod = 4 * float64(p.n) * part * (2*part - 1) / sqrR
	} else if c == MonomerMonomer && p.alpha != 0 {
		phase := p.gamma*sqrR + p.beta
		energy = 0.5 * p.alpha * (math.Cos(phase) - 1)
		forceMod = p.alpha * p.gamma * math.Sin(phase)
	}

	if pc.UpdateForces {
		accumulate(pc, fr, forceMod)
	}

	if energy > in.EnergyWarnThreshold {
		slog.Warn("large nonbonded energy",
			"p", pc.P,
			"q", pc.Q,
			"r", math.Sqrt(sqrR),
			"class", c.String(),
			"energy", energy,
		)
	}

	return energy
}
