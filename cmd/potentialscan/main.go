// Potential scan tool - tabulates pair energy and radial force against
// separation for every pair class and locates the equilibrium bond length.
//
// Usage: go run ./cmd/potentialscan -config config.yaml -out scan.csv
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/polyswap/box"
	"github.com/pthm-cable/polyswap/config"
	"github.com/pthm-cable/polyswap/interaction"
	"github.com/pthm-cable/polyswap/topology"
)

// ScanRow is one sample of the pair potential.
type ScanRow struct {
	Class   string  `csv:"class"`
	Bonded  bool    `csv:"bonded"`
	R       float64 `csv:"r"`
	Energy  float64 `csv:"energy"`
	Force   float64 `csv:"force"` // radial force on the second particle
	Overlap bool    `csv:"overlap"`
}

var chemistries = map[interaction.Class][2]topology.Chemistry{
	interaction.MonomerMonomer: {topology.Monomer, topology.Monomer},
	interaction.MonomerSticky:  {topology.Monomer, topology.Sticky},
	interaction.StickySticky:   {topology.Sticky, topology.Sticky},
}

// probe is a two-particle system of a given class.
type probe struct {
	in *interaction.Interaction
}

func newProbe(params *interaction.Params, c interaction.Class, bonded bool) probe {
	top := topology.New(2)
	chem := chemistries[c]
	top.Particles[0].Chemistry = chem[0]
	top.Particles[1].Chemistry = chem[1]
	if bonded {
		top.AddBond(0, 1)
	}
	in := interaction.New(params, top, box.Open{})
	in.EnergyWarnThreshold = math.Inf(1)
	return probe{in: in}
}

// at returns the energy and radial force at separation r.
func (p probe) at(r float64) (interaction.Result, float64) {
	fr := interaction.Frame{Force: make([]r3.Vec, 2)}
	pc := &interaction.PairContext{P: 0, Q: 1, UpdateForces: true, R: r3.Vec{X: r}}
	res, err := p.in.PairInteraction(pc, fr)
	if err != nil {
		// overstretched bond: report the energy-only sentinel instead
		pc.UpdateForces = false
		res, _ = p.in.PairInteraction(pc, interaction.Frame{})
		return res, 0
	}
	return res, fr.Force[1].X
}

// equilibrium minimizes the bonded pair energy over r.
func (p probe) equilibrium(start float64) (float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			res, _ := p.at(x[0])
			return res.Energy
		},
		Grad: func(grad, x []float64) {
			_, f := p.at(x[0])
			grad[0] = -f
		},
	}
	result, err := optimize.Minimize(problem, []float64{start}, nil, &optimize.BFGS{})
	if err != nil {
		return 0, err
	}
	return result.X[0], nil
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	out := flag.String("out", "potential_scan.csv", "Output CSV path")
	rMin := flag.Float64("rmin", 0.8, "Smallest separation")
	rMax := flag.Float64("rmax", 2.0, "Largest separation")
	steps := flag.Int("steps", 240, "Number of samples per class")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(*configPath, *out, *rMin, *rMax, *steps); err != nil {
		slog.Error("scan failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, out string, rMin, rMax float64, steps int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	params, err := interaction.NewParams(cfg.PolymerSwap)
	if err != nil {
		return err
	}
	if steps < 2 || rMax <= rMin {
		return fmt.Errorf("invalid scan range [%v, %v] with %d steps", rMin, rMax, steps)
	}

	var rows []ScanRow
	for c := interaction.MonomerMonomer; c <= interaction.StickySticky; c++ {
		for _, bonded := range []bool{false, true} {
			p := newProbe(params, c, bonded)
			for i := 0; i < steps; i++ {
				r := rMin + (rMax-rMin)*float64(i)/float64(steps-1)
				res, f := p.at(r)
				rows = append(rows, ScanRow{
					Class:   c.String(),
					Bonded:  bonded,
					R:       r,
					Energy:  res.Energy,
					Force:   f,
					Overlap: res.Overlap,
				})
			}
			if bonded {
				r0, err := p.equilibrium(1)
				if err != nil {
					slog.Warn("equilibrium search failed", "class", c.String(), "error", err)
					continue
				}
				res, _ := p.at(r0)
				slog.Info("equilibrium bond length", "class", c.String(), "r0", r0, "energy", res.Energy)
			}
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	slog.Info("scan written", "path", out, "rows", len(rows))
	return nil
}
