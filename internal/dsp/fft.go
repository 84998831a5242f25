// Package dsp implements the engine's FFT core and analysis windows: a
// cached complex FFT plan and the window-function family used before every
// forward transform. The caching strategy follows the same per-size
// memoization idiom the wider audio-DSP example pack uses for FFT state
// (compare gopus's celt.KissFFT64State, which memoizes factors/twiddles/
// bit-reversal per N behind a package-level map and mutex); here the
// underlying transform itself is gonum's own complex FFT, the same
// dsp/fourier package the teacher imports for its spectrum analyzer
// (internal/audio/analyzer.go), rather than a hand-rolled butterfly
// network.
package dsp

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT wraps a memoized gonum complex FFT plan for a fixed size N (a power
// of two). Instances are immutable after construction; fourier.CmplxFFT's
// Coefficients and Sequence methods only read the plan's precomputed
// tables, so an *FFT is safe for concurrent read-only use.
type FFT struct {
	n    int
	plan *fourier.CmplxFFT
}

var (
	cacheMu sync.Mutex
	cache   = make(map[int]*FFT)
)

// Get returns the cached FFT state for size n, creating and memoizing it on
// first use. n must be a power of two; Get panics otherwise, since this is
// only ever called with sizes already validated by the engine's
// SetPrimaryFFTSize / MTW band table.
func Get(n int) *FFT {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if f, ok := cache[n]; ok {
		return f
	}
	f := newFFT(n)
	cache[n] = f
	return f
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func newFFT(n int) *FFT {
	if !IsPowerOfTwo(n) {
		panic(fmt.Sprintf("dsp: fft size %d is not a power of two", n))
	}
	return &FFT{n: n, plan: fourier.NewCmplxFFT(n)}
}

// N returns the transform size.
func (f *FFT) N() int {
	return f.n
}

// Forward computes the DFT of x in place using gonum's standard sign
// convention Xk = sum_n xn * exp(-2*pi*i*k*n/N). len(x) must equal f.N().
func (f *FFT) Forward(x []complex128) {
	if len(x) != f.n {
		panic(fmt.Sprintf("dsp: fft input length %d does not match size %d", len(x), f.n))
	}
	out := f.plan.Coefficients(nil, x)
	copy(x, out)
}

// Inverse computes the inverse DFT of x in place. gonum's Sequence is
// unnormalized, so its output is divided by N here; Inverse(Forward(x))
// therefore reproduces x to within numerical precision.
func (f *FFT) Inverse(x []complex128) {
	if len(x) != f.n {
		panic(fmt.Sprintf("dsp: fft input length %d does not match size %d", len(x), f.n))
	}
	out := f.plan.Sequence(nil, x)
	scale := complex(1/float64(f.n), 0)
	for i, v := range out {
		x[i] = v * scale
	}
}

// RealToComplex converts a real-valued, single-precision signal into a
// double-precision complex buffer suitable for Forward, optionally
// multiplying by a window. win may be nil to leave the signal unwindowed.
// out must have length >= len(x); only the first len(x) entries are
// written.
func RealToComplex(x []float32, win []float64, out []complex128) {
	if win == nil {
		for i, v := range x {
			out[i] = complex(float64(v), 0)
		}
		return
	}
	for i, v := range x {
		out[i] = complex(float64(v)*win[i], 0)
	}
}
