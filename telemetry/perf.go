// Package telemetry collects evaluation timings and writes CSV output.
package telemetry

import (
	"log/slog"
	"time"
)

// Phase names of an evaluation pass.
const (
	PhasePairList = "pair_list"
	PhaseEvaluate = "evaluate"
	PhaseReduce   = "reduce"
)

var phases = []string{PhasePairList, PhaseEvaluate, PhaseReduce}

// PerfSample holds timing data for a single evaluation pass.
type PerfSample struct {
	PassDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks pass timings over a rolling window.
// It is not safe for concurrent use; the evaluator drives it from one goroutine.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	passStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a collector averaging over windowSize passes.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 10
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartPass begins timing a new evaluation pass.
func (p *PerfCollector) StartPass() {
	if p == nil {
		return
	}
	p.passStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndPass finishes the current pass and records the sample.
func (p *PerfCollector) EndPass() {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		PassDuration: now.Sub(p.passStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated timing statistics.
type PerfStats struct {
	Passes          int
	AvgPassDuration time.Duration
	MinPassDuration time.Duration
	MaxPassDuration time.Duration

	// Phase breakdown (average durations and share of the pass)
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p == nil || p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.PassDuration
		if i == 0 || s.PassDuration < stats.MinPassDuration {
			stats.MinPassDuration = s.PassDuration
		}
		if s.PassDuration > stats.MaxPassDuration {
			stats.MaxPassDuration = s.PassDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	stats.Passes = p.sampleCount
	stats.AvgPassDuration = total / time.Duration(p.sampleCount)
	for phase, sum := range phaseSum {
		stats.PhaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if stats.AvgPassDuration > 0 {
			stats.PhasePct[phase] = float64(stats.PhaseAvg[phase]) / float64(stats.AvgPassDuration) * 100
		}
	}
	return stats
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("passes", s.Passes),
		slog.Int64("avg_pass_us", s.AvgPassDuration.Microseconds()),
		slog.Int64("min_pass_us", s.MinPassDuration.Microseconds()),
		slog.Int64("max_pass_us", s.MaxPassDuration.Microseconds()),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Pass        int     `csv:"pass"`
	AvgPassUS   int64   `csv:"avg_pass_us"`
	MinPassUS   int64   `csv:"min_pass_us"`
	MaxPassUS   int64   `csv:"max_pass_us"`
	PairListPct float64 `csv:"pair_list_pct"`
	EvaluatePct float64 `csv:"evaluate_pct"`
	ReducePct   float64 `csv:"reduce_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(pass int) PerfStatsCSV {
	return PerfStatsCSV{
		Pass:        pass,
		AvgPassUS:   s.AvgPassDuration.Microseconds(),
		MinPassUS:   s.MinPassDuration.Microseconds(),
		MaxPassUS:   s.MaxPassDuration.Microseconds(),
		PairListPct: s.PhasePct[PhasePairList],
		EvaluatePct: s.PhasePct[PhaseEvaluate],
		ReducePct:   s.PhasePct[PhaseReduce],
	}
}
