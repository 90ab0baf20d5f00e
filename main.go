package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/polyswap/box"
	"github.com/pthm-cable/polyswap/conf"
	"github.com/pthm-cable/polyswap/config"
	"github.com/pthm-cable/polyswap/evaluate"
	"github.com/pthm-cable/polyswap/interaction"
	"github.com/pthm-cable/polyswap/telemetry"
	"github.com/pthm-cable/polyswap/topology"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	topologyPath := flag.String("topology", "", "Topology file (overrides files.topology)")
	confPath := flag.String("conf", "", "Configuration file (overrides files.conf)")
	n := flag.Int("n", 0, "Expected number of particles (0 = take it from the configuration)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	energyOnly := flag.Bool("energy-only", false, "Skip force evaluation")
	repeat := flag.Int("repeat", 1, "Number of evaluation passes (for timing)")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *topologyPath != "" {
		cfg.Files.Topology = *topologyPath
	}
	if *confPath != "" {
		cfg.Files.Conf = *confPath
	}

	if err := run(cfg, *n, *outputDir, *energyOnly, *repeat); err != nil {
		var pv *interaction.PhysicalViolationError
		if errors.As(err, &pv) {
			slog.Error("simulation state diverged", "error", err)
		} else {
			slog.Error("run failed", "error", err)
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config, expectN int, outputDir string, energyOnly bool, repeat int) error {
	c, err := conf.Read(cfg.Files.Conf, 0)
	if err != nil {
		return err
	}
	n := len(c.Pos)
	if expectN > 0 && expectN != n {
		return fmt.Errorf("configuration %s holds %d particles, expected %d", cfg.Files.Conf, n, expectN)
	}
	b := &box.Cubic{L: c.Box}

	params, err := interaction.NewParams(cfg.PolymerSwap)
	if err != nil {
		return err
	}

	loader := &topology.Loader{
		BondFile:  cfg.PolymerSwap.BondFile,
		OnlyLinks: cfg.PolymerSwap.OnlyLinksInBondFile,
	}
	top, err := loader.Load(n, cfg.Files.Topology)
	if err != nil {
		return err
	}

	in := interaction.New(params, top, b)
	if cfg.PolymerSwap.EnergyWarnThreshold > 0 {
		in.EnergyWarnThreshold = cfg.PolymerSwap.EnergyWarnThreshold
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	ev := evaluate.New(in, top, b, evaluate.Options{
		Workers:           cfg.Derived.Workers,
		ParallelThreshold: cfg.Evaluation.ParallelThreshold,
		CellSize:          cfg.Evaluation.CellSize,
		Perf:              perf,
	})

	om, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	slog.Info("starting evaluation",
		"particles", n,
		"sticky", top.StickyCount(),
		"params", params,
		"workers", cfg.Derived.Workers,
		"energy_only", energyOnly,
	)

	force := make([]r3.Vec, n)
	for pass := 0; pass < max(repeat, 1); pass++ {
		var tot evaluate.Totals
		if energyOnly {
			tot, err = ev.Energy(c.Pos)
		} else {
			tot, err = ev.Forces(c.Pos, force)
		}
		if err != nil {
			return err
		}
		if tot.Overlap {
			slog.Warn("configuration contains an overstretched bond", "pass", pass)
		}
		rec := tot.ToCSV(pass, n)
		if energyOnly {
			slog.Info("evaluation pass", "pass", pass, "totals", tot)
		} else {
			mags := make([]float64, n)
			for i, f := range force {
				mags[i] = r3.Norm(f)
			}
			fs := telemetry.ComputeForceStats(mags)
			rec = rec.WithForces(fs)
			slog.Info("evaluation pass", "pass", pass, "totals", tot, "forces", fs)
		}

		if err := om.WriteEnergy(rec); err != nil {
			return err
		}
	}

	stats := perf.Stats()
	slog.Info("perf", "stats", stats)
	return om.WritePerf(stats, repeat)
}
