package interaction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

func (in *Interaction) fene(pc *PairContext, fr Frame) (Result, error) {
	sqrR := r3.Norm2(pc.R)
	c := in.class(pc.P, pc.Q)
	sqrRFENE := in.params.sqrRFENE[c]

	if sqrR >= sqrRFENE {
		if pc.UpdateForces {
			return Result{}, &PhysicalViolationError{
				P:     pc.P,
				Q:     pc.Q,
				Class: c,
				R:     math.Sqrt(sqrR),
				RFENE: math.Sqrt(sqrRFENE),
			}
		}
		return Result{Energy: OverlapEnergy, Overlap: true}, nil
	}

	k := in.params.kFENE[c]
	energy := -k * sqrRFENE * math.Log(1-sqrR/sqrRFENE)

	if pc.UpdateForces {
		// force modulus over r, applied to the unnormalized displacement
		forceMod := -2 * k * sqrRFENE / (sqrRFENE - sqrR)
		accumulate(pc, fr, forceMod)
	}

	return Result{Energy: energy}, nil
}
