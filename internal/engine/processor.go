package engine

import (
	"math"

	"github.com/austinkregel/dualscope/internal/dsp"
	"github.com/austinkregel/dualscope/internal/types"
)

// PushSamples appends equal-length ref and meas sample blocks to the ring
// buffers. Returns ErrChannelLengthMismatch if the lengths differ. If a
// sweep peak-hold capture is active, the RTA peak buffer is opportunistically
// refreshed from whatever rta_meas the primary-size accumulator currently
// holds, per spec.md §4.10.
func (e *Engine) PushSamples(ref, meas []float32) error {
	if len(ref) != len(meas) {
		return ErrChannelLengthMismatch
	}
	e.refBuf.Push(ref)
	e.measBuf.Push(meas)

	if e.sweepCapturing {
		e.refreshSweepPeak()
	}
	return nil
}

// ProcessBlock attempts to read the most recent N samples from each ring
// buffer and, if both have enough data, performs a windowed FFT pair and
// folds the result into the accumulator for size N. Returns false (and
// leaves all state untouched) if either channel has fewer than N samples.
func (e *Engine) ProcessBlock(n int) bool {
	refTime := e.complexScratchFor(e.refScratch, n)
	measTime := e.complexScratchFor(e.measScratch, n)

	refReal := make([]float32, n)
	measReal := make([]float32, n)
	if err := e.refBuf.ReadLast(n, refReal); err != nil {
		return false
	}
	if err := e.measBuf.ReadLast(n, measReal); err != nil {
		return false
	}

	win := dsp.Window(n, e.windowKind)
	dsp.RealToComplex(refReal, win, refTime)
	dsp.RealToComplex(measReal, win, measTime)

	fft := dsp.Get(n)
	fft.Forward(refTime)
	fft.Forward(measTime)

	inst := e.instantaneousFor(n)
	bins := n/2 + 1
	for i := 0; i < bins; i++ {
		xr, xi := real(refTime[i]), imag(refTime[i])
		yr, yi := real(measTime[i]), imag(measTime[i])

		sxx := xr*xr + xi*xi
		syy := yr*yr + yi*yi
		sxyRe := xr*yr + xi*yi
		sxyIm := xr*yi - xi*yr

		inst.Sxx[i] = sxx
		inst.Syy[i] = syy
		inst.SxyRe[i] = sxyRe
		inst.SxyIm[i] = sxyIm
		inst.RtaRef[i] = sxx
		inst.RtaMeas[i] = syy
	}

	acc := e.accumulatorFor(n)
	acc.Update(inst, e.averagingKind, e.averagingCount)

	if e.sweepCapturing {
		e.refreshSweepPeak()
	}
	return true
}

// ProcessAllMTW invokes ProcessBlock for each of the three Multi-Time-Window
// sizes and also for the primary FFT size if it falls outside that set.
// Missing data for any size silently yields no update at that size.
func (e *Engine) ProcessAllMTW() {
	seen := make(map[int]bool, 4)
	for _, band := range mtwBands {
		e.ProcessBlock(band.fftSize)
		seen[band.fftSize] = true
	}
	if !seen[e.primaryFFTSize] {
		e.ProcessBlock(e.primaryFFTSize)
	}
}

// RTA converts the rta_ref or rta_meas accumulator (selected by isRef) to
// dB, adds visualGainDB to every bin, and applies smoothing. Returns an
// empty slice if the primary-size accumulator has no data yet.
func (e *Engine) RTA(smoothing types.SmoothingKind, isRef bool, visualGainDB float64) []float32 {
	acc, ok := e.accumulators[e.primaryFFTSize]
	if !ok || acc.Count() == 0 {
		return []float32{}
	}

	src := acc.RtaMeas
	if isRef {
		src = acc.RtaRef
	}

	dB := rtaToDB(src, visualGainDB)
	return dsp.Smooth(dB, smoothing, e.sampleRate, e.primaryFFTSize)
}

// rtaFloorDB is the clamp applied to near-zero RTA power per spec.md §4.9.
const rtaFloorDB float32 = -150

func rtaToDB(power []float64, visualGainDB float64) []float32 {
	out := make([]float32, len(power))
	for i, p := range power {
		db := float64(rtaFloorDB)
		if p >= 1e-30 {
			db = 10 * math.Log10(p)
			if db < float64(rtaFloorDB) {
				db = float64(rtaFloorDB)
			}
		}
		out[i] = float32(db) + float32(visualGainDB)
	}
	return out
}

// StartSweepCapture allocates a peak buffer filled with the dB floor and
// enters the capturing state, per spec.md §4.10.
func (e *Engine) StartSweepCapture() {
	bins := e.primaryFFTSize/2 + 1
	peak := make([]float32, bins)
	for i := range peak {
		peak[i] = rtaFloorDB
	}
	e.sweepPeak = peak
	e.sweepCapturing = true
}

// StopSweepCapture exits the capturing state and returns the peak buffer as
// an owned copy. If called without a matching Start, returns an empty
// slice.
func (e *Engine) StopSweepCapture() []float32 {
	e.sweepCapturing = false
	if e.sweepPeak == nil {
		return []float32{}
	}
	out := make([]float32, len(e.sweepPeak))
	copy(out, e.sweepPeak)
	e.sweepPeak = nil
	return out
}

func (e *Engine) refreshSweepPeak() {
	acc, ok := e.accumulators[e.primaryFFTSize]
	if !ok || acc.Count() == 0 {
		return
	}
	if len(e.sweepPeak) != len(acc.RtaMeas) {
		return
	}
	// visual_gain_dB is applied only at RTA query time, matching the
	// reference behavior this spec adopts (spec.md §9, open question c):
	// the peak buffer stores raw dB.
	dB := rtaToDB(acc.RtaMeas, 0)
	for i, v := range dB {
		if v > e.sweepPeak[i] {
			e.sweepPeak[i] = v
		}
	}
}
