// Package interaction evaluates the pair potential of the sticky-polymer
// model: a FENE bond between bonded neighbors plus a generalized WCA
// repulsion with an optional cosine attraction between same-chemistry pairs.
package interaction

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/polyswap/config"
)

// attractionInnerSqr is the squared separation at which the cosine
// attraction meets the repulsive branch.
var attractionInnerSqr = math.Pow(2, 1./3.)

// Params holds the model constants derived from configuration.
// It is immutable after NewParams and safe for concurrent reads.
type Params struct {
	alpha float64
	n     int

	sqrRFENE   [config.NumClasses]float64
	kFENE      [config.NumClasses]float64
	wcaSigma   [config.NumClasses]float64
	sqrRepRcut [config.NumClasses]float64

	rcut    float64
	sqrRcut float64

	// cosine phase slope and offset
	gamma float64
	beta  float64
}

// NewParams derives the model constants. Invalid values yield a *ConfigError.
func NewParams(c config.PolymerSwapConfig) (*Params, error) {
	if c.N <= 0 || c.N%2 != 0 {
		return nil, &ConfigError{Field: "n", Msg: "repulsion exponent must be a positive even integer"}
	}

	p := &Params{
		alpha:    c.Alpha,
		n:        c.N,
		kFENE:    c.KFENE,
		wcaSigma: c.WCASigma,
	}

	for i, r := range c.RFENE {
		p.sqrRFENE[i] = r * r
	}
	maxRep := 0.
	for i, sigma := range c.WCASigma {
		p.sqrRepRcut[i] = math.Pow(2*sigma, 2/float64(p.n))
		maxRep = math.Max(maxRep, p.sqrRepRcut[i])
	}
	p.rcut = math.Sqrt(maxRep)

	if p.alpha > 0 && c.RFENE[0] > p.rcut {
		p.rcut = c.RFENE[0]
	}
	p.sqrRcut = p.rcut * p.rcut

	slog.Info("polymer swap cutoff", "rcut", p.rcut, "sqr_rcut", p.sqrRcut)

	if p.alpha != 0 {
		if p.alpha < 0 {
			return nil, &ConfigError{Field: "alpha", Msg: "attraction strength may not be negative"}
		}
		width := p.sqrRFENE[0] - attractionInnerSqr
		if width <= 0 {
			return nil, &ConfigError{Field: "rfene[0]", Msg: "attraction range is empty: rfene[0]^2 must exceed 2^(1/3)"}
		}
		p.gamma = math.Pi / width
		p.beta = 2*math.Pi - p.sqrRFENE[0]*p.gamma
		slog.Info("polymer swap attraction", "alpha", p.alpha, "beta", p.beta, "gamma", p.gamma)
	}

	return p, nil
}

// Alpha returns the attraction strength.
func (p *Params) Alpha() float64 { return p.alpha }

// Exponent returns the repulsion exponent.
func (p *Params) Exponent() int { return p.n }

// Cutoff returns the global interaction cutoff.
func (p *Params) Cutoff() float64 { return p.rcut }

// SqrCutoff returns the squared global interaction cutoff.
func (p *Params) SqrCutoff() float64 { return p.sqrRcut }

// Gamma returns the cosine phase slope.
func (p *Params) Gamma() float64 { return p.gamma }

// Beta returns the cosine phase offset.
func (p *Params) Beta() float64 { return p.beta }

// SqrFENECutoff returns the squared FENE maximum extension of class c.
func (p *Params) SqrFENECutoff(c Class) float64 { return p.sqrRFENE[c] }

// SqrRepulsiveCutoff returns the squared repulsive cutoff of class c.
func (p *Params) SqrRepulsiveCutoff(c Class) float64 { return p.sqrRepRcut[c] }

// LogValue implements slog.LogValuer for structured logging.
func (p *Params) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("alpha", p.alpha),
		slog.Int("n", p.n),
		slog.Float64("rcut", p.rcut),
		slog.Float64("gamma", p.gamma),
		slog.Float64("beta", p.beta),
	)
}
