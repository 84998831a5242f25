package engine

import (
	"math"

	"github.com/austinkregel/dualscope/internal/dsp"
	"github.com/austinkregel/dualscope/internal/types"
)

// phatEpsilon is the magnitude floor below which a cross-spectrum bin is
// zeroed rather than PHAT-weighted, per spec.md §4.6.
const phatEpsilon = 1e-20

// ComputeAutoDelay runs GCC-PHAT over the most recent delayFinderFFTSize
// samples of both channels, per spec.md §4.6: Hann-windowed forward FFT,
// PHAT-weighted cross-spectrum, inverse FFT, positive-lag peak search with
// parabolic sub-sample refinement. On success it updates the engine's delay,
// impulse-response and acoustic-metrics state and returns the delay in
// milliseconds and meters (343 m/s). If either channel holds fewer than
// delayFinderFFTSize samples, the engine's state is left untouched and a
// zero DelayResult is returned.
func (e *Engine) ComputeAutoDelay() types.DelayResult {
	m := delayFinderFFTSize

	refReal := make([]float32, m)
	measReal := make([]float32, m)
	if err := e.refBuf.ReadLast(m, refReal); err != nil {
		return types.DelayResult{}
	}
	if err := e.measBuf.ReadLast(m, measReal); err != nil {
		return types.DelayResult{}
	}

	win := dsp.Window(m, types.WindowHann)
	x := make([]complex128, m)
	y := make([]complex128, m)
	dsp.RealToComplex(refReal, win, x)
	dsp.RealToComplex(measReal, win, y)

	fft := dsp.Get(m)
	fft.Forward(x)
	fft.Forward(y)

	r := make([]complex128, m)
	for i := 0; i < m; i++ {
		xr, xi := real(x[i]), imag(x[i])
		yr, yi := real(y[i]), imag(y[i])

		// R[i] = conj(X[i]) * Y[i]
		reR := xr*yr + xi*yi
		imR := xr*yi - xi*yr

		mag := math.Hypot(reR, imR)
		if mag <= phatEpsilon {
			r[i] = 0
			continue
		}
		w := 0.7/mag + 0.3
		r[i] = complex(reR*w, imR*w)
	}

	fft.Inverse(r)

	mags := make([]float64, m)
	for i, v := range r {
		mags[i] = math.Hypot(real(v), imag(v))
	}

	peak := 0
	peakMag := -1.0
	for t := 0; t < m/2; t++ {
		if mags[t] > peakMag {
			peakMag = mags[t]
			peak = t
		}
	}

	alpha := mags[(peak-1+m)%m]
	beta := mags[peak]
	gamma := mags[(peak+1)%m]
	delta := 0.0
	denom := 2 * (2*beta - alpha - gamma)
	if math.Abs(denom) > 1e-10 {
		delta = (alpha - gamma) / denom
		if delta > 1 {
			delta = 1
		}
		if delta < -1 {
			delta = -1
		}
	}

	globalMax := 0.0
	for _, v := range mags {
		if v > globalMax {
			globalMax = v
		}
	}

	impulse := make([]float32, m)
	if globalMax > 0 {
		for i, v := range mags {
			impulse[i] = float32(v / globalMax)
		}
	}

	e.peakSamples = peak
	e.fractionalSamples = delta
	e.impulseResponse = impulse
	e.CurrentDelaySamples = float64(peak) + delta

	ms := e.CurrentDelaySamples / float64(e.sampleRate) * 1000
	meters := ms / 1000 * 343

	e.acousticMetrics = computeAcousticMetrics(impulse, peak, e.sampleRate)

	return types.DelayResult{Ms: ms, Meters: meters}
}
