package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/polyswap/config"
)

// EnergyRecord is one row of energy.csv.
type EnergyRecord struct {
	Pass              int     `csv:"pass"`
	Energy            float64 `csv:"energy"`
	Bonded            float64 `csv:"bonded"`
	Nonbonded         float64 `csv:"nonbonded"`
	EnergyPerParticle float64 `csv:"energy_per_particle"`
	Pairs             int     `csv:"pairs"`
	Overlap           bool    `csv:"overlap"`
	ForceMean         float64 `csv:"force_mean"` // zero for energy-only passes
	ForceP90          float64 `csv:"force_p90"`
	ForceMax          float64 `csv:"force_max"`
}

// WithForces copies the force summary into the record.
func (r EnergyRecord) WithForces(s ForceStats) EnergyRecord {
	r.ForceMean = s.Mean
	r.ForceP90 = s.P90
	r.ForceMax = s.Max
	return r
}

// OutputManager handles run output: energy.csv, perf.csv and a config snapshot.
type OutputManager struct {
	dir        string
	energyFile *os.File
	perfFile   *os.File

	energyHeaderWritten bool
	perfHeaderWritten   bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "energy.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating energy.csv: %w", err)
	}
	om.energyFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.energyFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteEnergy appends an energy record to energy.csv.
func (om *OutputManager) WriteEnergy(rec EnergyRecord) error {
	if om == nil {
		return nil
	}
	if err := writeRecords([]EnergyRecord{rec}, om.energyFile, &om.energyHeaderWritten); err != nil {
		return fmt.Errorf("writing energy: %w", err)
	}
	return nil
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, pass int) error {
	if om == nil {
		return nil
	}
	if err := writeRecords([]PerfStatsCSV{stats.ToCSV(pass)}, om.perfFile, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// writeRecords writes the header only on the first call for a file.
func writeRecords(records interface{}, f *os.File, headerWritten *bool) error {
	if *headerWritten {
		return gocsv.MarshalWithoutHeaders(records, f)
	}
	if err := gocsv.Marshal(records, f); err != nil {
		return err
	}
	*headerWritten = true
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.energyFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
