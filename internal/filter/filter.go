// Package filter provides the temporal prefilter and the spatial smoother
// applied to volume data before decomposition.
package filter

import (
	"fmt"
	"math"

	"github.com/jfcg/butter"
)

// TemporalFilter filters one voxel time course sampled at sampleRate Hz.
type TemporalFilter interface {
	Apply(sampleRate float64, series []float64) []float64
}

// Bandpass keeps frequencies between LowHz and HighHz using first order
// Butterworth sections. A zero LowHz disables the high-pass edge; a zero
// HighHz disables the low-pass edge.
type Bandpass struct {
	LowHz  float64
	HighHz float64
}

// Apply runs the series through the band edges in a forward pass. Each
// voxel gets fresh filter state. The butter sections accept normalized
// corner frequencies wc = 2*pi*f/fs in (0.0001, pi); a corner outside that
// range degrades to pass-through for that edge.
func (b *Bandpass) Apply(sampleRate float64, series []float64) []float64 {
	var hp, lp butter.Filter
	if b.LowHz > 0.0 && sampleRate > 0.0 {
		hp = butter.NewHighPass1(2.0 * math.Pi * b.LowHz / sampleRate)
	}
	if b.HighHz > 0.0 && sampleRate > 0.0 {
		lp = butter.NewLowPass1(2.0 * math.Pi * b.HighHz / sampleRate)
	}

	out := make([]float64, len(series))
	for i, v := range series {
		if lp != nil {
			v = lp.Next(v)
		}
		if hp != nil {
			v = hp.Next(v)
		}
		out[i] = v
	}
	return out
}

// Physiological band presets carried over from the original nuisance bands:
// very low frequency, low frequency oscillations, respiration, cardiac.
var bandPresets = map[string]*Bandpass{
	"vlf":     {LowHz: 0.0, HighHz: 0.009},
	"lfo":     {LowHz: 0.009, HighHz: 0.15},
	"resp":    {LowHz: 0.2, HighHz: 0.5},
	"cardiac": {LowHz: 0.66, HighHz: 3.0},
}

// NewBandFilter returns the preset prefilter for a named band, or nil for
// "none". Unknown names are rejected.
func NewBandFilter(name string) (TemporalFilter, error) {
	if name == "" || name == "none" {
		return nil, nil
	}
	band, ok := bandPresets[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter band %q", name)
	}
	return band, nil
}
