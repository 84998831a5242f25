package engine

import (
	"math"

	"github.com/austinkregel/dualscope/internal/types"
)

// bandFor returns the MTW band whose frequency range contains f; anything at
// or above 2 kHz maps to the high band (2 kHz .. Nyquist), and so does any
// frequency below the low band's 20 Hz lower edge.
func bandFor(f float64) mtwBand {
	for _, b := range mtwBands {
		if b.highHz == 0 { // high band: up to Nyquist
			if f >= b.lowHz {
				return b
			}
			continue
		}
		if f >= b.lowHz && f < b.highHz {
			return b
		}
	}
	return mtwBands[len(mtwBands)-1]
}

// TransferFunctionMTW computes the composite Multi-Time-Window transfer
// function at the primary FFT size's bin resolution, per spec.md §4.5: for
// each output bin frequency, the source accumulator whose band contains
// that frequency supplies the bin, mapped via round(f*N_src/sampleRate).
// Out-of-range bins (missing source data) emit zeros. Phase unwrap and
// delay compensation are applied to the composite output identically to
// TransferFunction.
//
// This composite feeds only the visual magnitude curve — do not use it as
// input to the delay finder or to coherence-thresholded TF consumers
// (spec.md §9 "MTW seam").
func (e *Engine) TransferFunctionMTW(smoothing types.SmoothingKind) types.TransferFunctionResult {
	n := e.primaryFFTSize
	bins := n/2 + 1
	binHz := float64(e.sampleRate) / float64(n)

	sxx := make([]float64, bins)
	syy := make([]float64, bins)
	sxyRe := make([]float64, bins)
	sxyIm := make([]float64, bins)

	for i := 0; i < bins; i++ {
		f := float64(i) * binHz
		band := bandFor(f)
		acc, ok := e.accumulators[band.fftSize]
		if !ok || acc.Count() == 0 {
			continue
		}
		srcBins := band.fftSize/2 + 1
		j := int(math.Round(f * float64(band.fftSize) / float64(e.sampleRate)))
		if j < 0 || j >= srcBins {
			continue
		}
		sxx[i] = acc.Sxx[j]
		syy[i] = acc.Syy[j]
		sxyRe[i] = acc.SxyRe[j]
		sxyIm[i] = acc.SxyIm[j]
	}

	return e.transferFunctionFromBins(sxx, syy, sxyRe, sxyIm, n, smoothing)
}
