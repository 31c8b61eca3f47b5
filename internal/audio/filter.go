package audio

import (
	"math"

	"github.com/dooshek/decibender/internal/types"
)

// Filter is a Chamberlin-style state-variable filter. It keeps two
// integrator states between calls, so one Filter belongs to one stream.
type Filter struct {
	mode types.FilterMode
	k    float64
	a1   float64
	a2   float64
	a3   float64
	ic1  float64
	ic2  float64
}

// NewFilter returns nil for mode none, meaning the stage is skipped.
func NewFilter(cfg types.FilterConfig, sampleRate int) *Filter {
	if cfg.Mode == "" || cfg.Mode == types.FilterNone {
		return nil
	}

	resonance := math.Max(0, math.Min(1, cfg.Resonance))
	g := math.Tan(math.Pi * cfg.Cutoff / float64(sampleRate))
	k := 2 - 1.9*resonance
	a1 := 1 / (1 + g*(g+k))
	a2 := g * a1
	a3 := g * a2

	return &Filter{
		mode: cfg.Mode,
		k:    k,
		a1:   a1,
		a2:   a2,
		a3:   a3,
	}
}

// Process filters one sample.
func (f *Filter) Process(x float64) float64 {
	v3 := x - f.ic2
	v1 := f.a1*f.ic1 + f.a2*v3
	v2 := f.ic2 + f.a2*f.ic1 + f.a3*v3
	f.ic1 = 2*v1 - f.ic1
	f.ic2 = 2*v2 - f.ic2

	switch f.mode {
	case types.FilterLowPass:
		return v2
	case types.FilterBandPass:
		return v1
	case types.FilterHighPass:
		return x - f.k*v1 - v2
	case types.FilterNotch:
		return x - f.k*v1
	default:
		return x
	}
}

// MeanSquare filters frame in place when f is non-nil and returns the mean
// of the squared samples.
func (f *Filter) MeanSquare(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for i, s := range frame {
		x := float64(s)
		if f != nil {
			x = f.Process(x)
			frame[i] = float32(x)
		}
		sum += x * x
	}
	return sum / float64(len(frame))
}

// Reset clears the integrator states.
func (f *Filter) Reset() {
	f.ic1 = 0
	f.ic2 = 0
}
