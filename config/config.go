// Package config provides configuration loading and access for the potential engine.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// NumClasses is the number of chemistry-pair classes (monomer-monomer,
// monomer-sticky, sticky-sticky).
const NumClasses = 3

// Config holds all engine configuration parameters.
type Config struct {
	PolymerSwap PolymerSwapConfig `yaml:"polymer_swap"`
	Files       FilesConfig       `yaml:"files"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PolymerSwapConfig holds the raw constants of the FENE + WCA + sticky model.
// The three-slot arrays are indexed by chemistry-pair class.
type PolymerSwapConfig struct {
	Alpha               float64             `yaml:"alpha"`                   // Attraction strength (0 disables the cosine branch)
	N                   int                 `yaml:"n"`                       // Repulsion exponent, positive and even
	BondFile            string              `yaml:"bond_file"`               // Path of the bond-list file
	OnlyLinksInBondFile bool                `yaml:"only_links_in_bond_file"` // Bond file has no preamble
	RFENE               [NumClasses]float64 `yaml:"rfene"`                   // FENE maximum extension
	KFENE               [NumClasses]float64 `yaml:"kfene"`                   // FENE stiffness
	WCASigma            [NumClasses]float64 `yaml:"wca_sigma"`               // Repulsive diameter
	EnergyWarnThreshold float64             `yaml:"energy_warn_threshold"`   // Pair energies above this are logged
}

// FilesConfig holds input file locations.
type FilesConfig struct {
	Topology string `yaml:"topology"`
	Conf     string `yaml:"conf"`
}

// EvaluationConfig holds pair evaluation settings.
type EvaluationConfig struct {
	Workers           int     `yaml:"workers"`            // 0 = GOMAXPROCS
	ParallelThreshold int     `yaml:"parallel_threshold"` // Pair count below which evaluation is sequential
	CellSize          float64 `yaml:"cell_size"`          // 0 = interaction cutoff
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow int `yaml:"perf_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers int // Evaluation.Workers resolved against GOMAXPROCS
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a configuration built from the embedded defaults only.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Workers = c.Evaluation.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Telemetry.PerfWindow < 1 {
		c.Telemetry.PerfWindow = 1
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
