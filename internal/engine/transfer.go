package engine

import (
	"math"

	"github.com/austinkregel/dualscope/internal/dsp"
	"github.com/austinkregel/dualscope/internal/types"
)

// tfMagnitudeFloorDB is the clamp applied when Sxx is near zero, per
// spec.md §4.4.
const tfMagnitudeFloorDB = -120

// TransferFunction computes H(f) = Sxy/Sxx, delay-compensated phase
// (re-wrapped into (-180, 180] for display), coherence, and group delay
// for the primary FFT size, per spec.md §4.4. Returns empty
// arrays if the primary accumulator has no data.
func (e *Engine) TransferFunction(smoothing types.SmoothingKind) types.TransferFunctionResult {
	acc, ok := e.accumulators[e.primaryFFTSize]
	if !ok || acc.Count() == 0 {
		return types.TransferFunctionResult{}
	}
	return e.transferFunctionFromBins(acc.Sxx, acc.Syy, acc.SxyRe, acc.SxyIm, e.primaryFFTSize, smoothing)
}

// transferFunctionFromBins implements the per-bin math shared by
// TransferFunction and TransferFunctionMTW.
func (e *Engine) transferFunctionFromBins(sxx, syy, sxyRe, sxyIm []float64, n int, smoothing types.SmoothingKind) types.TransferFunctionResult {
	bins := len(sxx)
	magDB := make([]float32, bins)
	phaseDeg := make([]float64, bins)
	coherence := make([]float32, bins)

	for i := 0; i < bins; i++ {
		if sxx[i] < 1e-30 {
			magDB[i] = tfMagnitudeFloorDB
			phaseDeg[i] = 0
			coherence[i] = 0
			continue
		}

		hRe := sxyRe[i] / sxx[i]
		hIm := sxyIm[i] / sxx[i]
		magSq := hRe*hRe + hIm*hIm

		if magSq < 1e-30 {
			magDB[i] = tfMagnitudeFloorDB
		} else {
			db := 10 * math.Log10(magSq)
			if db < tfMagnitudeFloorDB {
				db = tfMagnitudeFloorDB
			}
			magDB[i] = float32(db)
		}
		phaseDeg[i] = math.Atan2(hIm, hRe) * 180 / math.Pi

		denom := sxx[i] * syy[i]
		if denom < 1e-30 {
			coherence[i] = 0
		} else {
			c := (sxyRe[i]*sxyRe[i] + sxyIm[i]*sxyIm[i]) / denom
			if c > 1 {
				c = 1
			}
			coherence[i] = float32(c)
		}
	}

	unwrapPhase(phaseDeg)
	e.applyDelayCompensation(phaseDeg, n)
	groupDelayMs := computeGroupDelay(phaseDeg, n, e.sampleRate)
	rewrapPhase(phaseDeg)

	phaseOut := make([]float32, bins)
	for i, p := range phaseDeg {
		phaseOut[i] = float32(p)
	}

	if smoothing != types.SmoothingNone {
		magDB = dsp.Smooth(magDB, smoothing, e.sampleRate, n)
	}

	return types.TransferFunctionResult{
		MagnitudeDB:  magDB,
		PhaseDeg:     phaseOut,
		Coherence:    coherence,
		GroupDelayMs: groupDelayMs,
	}
}

// unwrapPhase walks the phase array in place, adding/subtracting 360°
// whenever a consecutive jump exceeds 180° in magnitude, per spec.md §4.4.
func unwrapPhase(phaseDeg []float64) {
	if len(phaseDeg) == 0 {
		return
	}
	offset := 0.0
	prev := phaseDeg[0]
	for i := 1; i < len(phaseDeg); i++ {
		raw := phaseDeg[i]
		diff := raw - prev
		if diff > 180 {
			offset -= 360
		} else if diff < -180 {
			offset += 360
		}
		prev = raw
		phaseDeg[i] = raw + offset
	}
}

// rewrapPhase folds the (already delay-compensated) unwrapped phase back
// into (-180, 180] for display, per spec.md §4.4.
func rewrapPhase(phaseDeg []float64) {
	for i, p := range phaseDeg {
		wrapped := math.Mod(p+180, 360)
		if wrapped <= 0 {
			wrapped += 360
		}
		phaseDeg[i] = wrapped - 180
	}
}

// applyDelayCompensation adds 360*f_i*tau_total degrees to every bin, where
// tau_total combines the GCC-PHAT delay estimate and the user phase offset,
// per spec.md §4.4.
func (e *Engine) applyDelayCompensation(phaseDeg []float64, n int) {
	tauTotal := (float64(e.peakSamples)+e.fractionalSamples)/float64(e.sampleRate) + e.PhaseOffsetMs/1000
	if tauTotal == 0 {
		return
	}
	binHz := float64(e.sampleRate) / float64(n)
	for i := range phaseDeg {
		f := float64(i) * binHz
		phaseDeg[i] += 360 * f * tauTotal
	}
}

// computeGroupDelay derives group delay in ms from central differences of
// the unwrapped phase, per spec.md §4.4. Endpoints copy their neighbors.
func computeGroupDelay(unwrappedPhaseDeg []float64, n, sampleRate int) []float32 {
	bins := len(unwrappedPhaseDeg)
	out := make([]float32, bins)
	if bins < 3 {
		return out
	}
	df := float64(sampleRate) / float64(n)

	for i := 1; i < bins-1; i++ {
		delta := unwrappedPhaseDeg[i+1] - unwrappedPhaseDeg[i-1]
		// Normalize any wrap excursion of the two-step delta into
		// [-180, 180] before differentiating, per spec.md §4.4.
		for delta > 180 {
			delta -= 360
		}
		for delta < -180 {
			delta += 360
		}
		gd := -(delta / (2 * df)) * (1.0 / 360) * 1000
		out[i] = float32(gd)
	}
	out[0] = out[1]
	out[bins-1] = out[bins-2]
	return out
}
