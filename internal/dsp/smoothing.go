package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/austinkregel/dualscope/internal/types"
)

// Smooth applies fractional-octave smoothing to a magnitude spectrum
// already expressed in dB, returning a new slice of the same length. When
// kind is SmoothingNone the input is returned unchanged (a copy, since
// engine results are always owned copies — see spec.md §3 "Ownership").
//
// sampleRate and n (the FFT size the spectrum was computed at) are needed
// to map bin index to center frequency. bins must equal n/2+1.
func Smooth(dB []float32, kind types.SmoothingKind, sampleRate, n int) []float32 {
	out := make([]float32, len(dB))
	k := kind.Fraction()
	if k == 0 {
		copy(out, dB)
		return out
	}

	bins := len(dB)
	p := make([]float64, bins)
	for i, v := range dB {
		p[i] = math.Pow(10, float64(v)/10)
	}

	binHz := float64(sampleRate) / float64(n)
	ratio := math.Pow(2, 1/(2*float64(k)))

	for i := 0; i < bins; i++ {
		fi := float64(i) * binHz
		if fi < 20 {
			out[i] = dB[i]
			continue
		}
		lowHz := fi / ratio
		highHz := fi * ratio

		lo := int(math.Round(lowHz / binHz))
		hi := int(math.Round(highHz / binHz))
		if lo < 0 {
			lo = 0
		}
		if hi > bins-1 {
			hi = bins - 1
		}
		if hi < lo {
			hi = lo
		}

		mean := floats.Sum(p[lo:hi+1]) / float64(hi-lo+1)
		out[i] = float32(10 * math.Log10(mean))
	}
	return out
}
