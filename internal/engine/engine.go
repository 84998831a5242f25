// Package engine implements the dual-channel acoustic measurement core:
// ring buffers, windowed FFT, spectral averaging, transfer-function and
// delay extraction, and impulse-response acoustic metrics, all owned by a
// single Engine value per spec.md.
package engine

import (
	"sync"

	"github.com/austinkregel/dualscope/internal/ring"
	"github.com/austinkregel/dualscope/internal/types"
)

// mtwBand describes one Multi-Time-Window frequency band and the FFT size
// used to analyze it (spec.md §4.5).
type mtwBand struct {
	lowHz, highHz float64
	fftSize       int
}

var mtwBands = [3]mtwBand{
	{lowHz: 20, highHz: 200, fftSize: 16384},
	{lowHz: 200, highHz: 2000, fftSize: 4096},
	{lowHz: 2000, highHz: 0, fftSize: 1024}, // highHz 0 means "up to Nyquist"
}

// delayFinderFFTSize is M in spec.md §4.6.
const delayFinderFFTSize = 16384

// Engine is the process-wide owner of both ring buffers, the per-FFT-size
// spectral accumulators, and the derived transfer-function/delay/metrics
// state. It is single-threaded for DSP computation; per spec.md §5, a
// caller splitting producer and consumer across goroutines must serialize
// all access with an external mutex (or reuse Mu below).
type Engine struct {
	// Mu is exposed so a host driver that calls PushSamples from one
	// goroutine and Process*/query methods from another can serialize
	// access with a single lock, as spec.md §5 requires. The engine never
	// locks it internally — single-threaded callers pay nothing for it.
	Mu sync.Mutex

	sampleRate     int
	bufferCapacity int

	refBuf  *ring.Buffer
	measBuf *ring.Buffer

	primaryFFTSize int
	windowKind     types.WindowKind
	averagingKind  types.AveragingKind
	averagingCount int

	accumulators   map[int]*Accumulator
	instScratch    map[int]*Instantaneous
	refScratch     map[int][]complex128
	measScratch    map[int][]complex128

	// Delay / phase-compensation state, populated by ComputeAutoDelay.
	peakSamples       int
	fractionalSamples float64
	impulseResponse   []float32
	acousticMetrics   *types.AcousticMetrics

	// CurrentDelaySamples and PhaseOffsetMs are readable/writable scalar
	// fields used by phase compensation, per spec.md §6.
	CurrentDelaySamples float64
	PhaseOffsetMs       float64

	sweepCapturing bool
	sweepPeak      []float32
}

// New constructs an Engine. sampleRate must be positive, bufferCapacity
// should be at least as large as the largest FFT size the caller intends to
// use (typically >= delayFinderFFTSize), and primaryFFTSize must be a
// supported power of two (see ErrInvalidFFTSize).
func New(sampleRate, bufferCapacity, primaryFFTSize int) (*Engine, error) {
	if !validFFTSize(primaryFFTSize) {
		return nil, ErrInvalidFFTSize
	}
	if bufferCapacity < primaryFFTSize {
		bufferCapacity = primaryFFTSize
	}

	e := &Engine{
		sampleRate:     sampleRate,
		bufferCapacity: bufferCapacity,
		refBuf:         ring.New(bufferCapacity),
		measBuf:        ring.New(bufferCapacity),
		primaryFFTSize: primaryFFTSize,
		windowKind:     types.WindowHann,
		averagingKind:  types.AveragingExponential,
		averagingCount: 8,
		accumulators:   make(map[int]*Accumulator),
		instScratch:    make(map[int]*Instantaneous),
		refScratch:     make(map[int][]complex128),
		measScratch:    make(map[int][]complex128),
	}
	return e, nil
}

// SampleRate returns the engine's fixed sample rate.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// PrimaryFFTSize returns the currently selected primary FFT size.
func (e *Engine) PrimaryFFTSize() int {
	return e.primaryFFTSize
}

// SetAveraging configures the averaging policy and its count parameter
// (smoothing time-constant for Exponential, FIFO depth for Linear).
// Returns ErrInvalidAveragingCount if count is non-positive for a policy
// that requires one.
func (e *Engine) SetAveraging(kind types.AveragingKind, count int) error {
	if (kind == types.AveragingExponential || kind == types.AveragingLinear) && count <= 0 {
		return ErrInvalidAveragingCount
	}
	e.averagingKind = kind
	e.averagingCount = count
	return nil
}

// SetWindow selects the analysis window applied before every forward FFT.
func (e *Engine) SetWindow(kind types.WindowKind) {
	e.windowKind = kind
}

// SetPrimaryFFTSize changes the primary analysis FFT size. Returns
// ErrInvalidFFTSize if n is not a supported power of two.
func (e *Engine) SetPrimaryFFTSize(n int) error {
	if !validFFTSize(n) {
		return ErrInvalidFFTSize
	}
	e.primaryFFTSize = n
	return nil
}

// ResetAveraging zeroes every accumulator, clears FIFOs, nulls the impulse
// response and metrics, and resets delay/phase-offset fields — but keeps
// ring-buffer contents, per spec.md §3 "Lifecycle".
func (e *Engine) ResetAveraging() {
	for _, acc := range e.accumulators {
		acc.Reset()
	}
	e.peakSamples = 0
	e.fractionalSamples = 0
	e.impulseResponse = nil
	e.acousticMetrics = nil
	e.CurrentDelaySamples = 0
	e.PhaseOffsetMs = 0
}

// LastImpulseResponse returns a copy of the most recently computed impulse
// response, or nil if ComputeAutoDelay has never succeeded since
// construction or the last ResetAveraging.
func (e *Engine) LastImpulseResponse() []float32 {
	if e.impulseResponse == nil {
		return nil
	}
	out := make([]float32, len(e.impulseResponse))
	copy(out, e.impulseResponse)
	return out
}

// AcousticMetrics returns a copy of the most recently computed acoustic
// metrics, or nil if none are available yet.
func (e *Engine) AcousticMetrics() *types.AcousticMetrics {
	if e.acousticMetrics == nil {
		return nil
	}
	out := *e.acousticMetrics
	return &out
}

// ReadMeasSamples returns the most recent n measurement-channel samples,
// zero-padded at the front if fewer than n are available.
func (e *Engine) ReadMeasSamples(n int) []float32 {
	out := make([]float32, n)
	avail := e.measBuf.Available()
	if avail >= n {
		_ = e.measBuf.ReadLast(n, out)
		return out
	}
	if avail == 0 {
		return out
	}
	tail := make([]float32, avail)
	_ = e.measBuf.ReadLast(avail, tail)
	copy(out[n-avail:], tail)
	return out
}

func (e *Engine) accumulatorFor(n int) *Accumulator {
	acc, ok := e.accumulators[n]
	if !ok {
		acc = NewAccumulator(n/2 + 1)
		e.accumulators[n] = acc
	}
	return acc
}

func (e *Engine) instantaneousFor(n int) *Instantaneous {
	inst, ok := e.instScratch[n]
	if !ok {
		inst = newInstantaneous(n/2 + 1)
		e.instScratch[n] = inst
	}
	return inst
}

func (e *Engine) complexScratchFor(m map[int][]complex128, n int) []complex128 {
	buf, ok := m[n]
	if !ok {
		buf = make([]complex128, n)
		m[n] = buf
	}
	return buf
}
