package engine

import "github.com/austinkregel/dualscope/internal/types"

// Instantaneous holds the six per-bin arrays computed from a single
// windowed FFT pair, before any averaging is applied. All arrays have
// length bins = N/2 + 1.
type Instantaneous struct {
	Sxx     []float64
	Syy     []float64
	SxyRe   []float64
	SxyIm   []float64
	RtaRef  []float64
	RtaMeas []float64
}

func newInstantaneous(bins int) *Instantaneous {
	return &Instantaneous{
		Sxx:     make([]float64, bins),
		Syy:     make([]float64, bins),
		SxyRe:   make([]float64, bins),
		SxyIm:   make([]float64, bins),
		RtaRef:  make([]float64, bins),
		RtaMeas: make([]float64, bins),
	}
}

// fieldPairs returns the six (accumulator, instantaneous) array pairs so
// that the averaging dispatch below can apply one formula uniformly instead
// of repeating it six times, per spec.md's design note that averaging is
// "applied per bin, independently for Sxx/Syy/Sxy_re/Sxy_im/rta_*" using the
// same policy for all six.
func (a *Accumulator) fieldPairs(inst *Instantaneous) [6][2][]float64 {
	return [6][2][]float64{
		{a.Sxx, inst.Sxx},
		{a.Syy, inst.Syy},
		{a.SxyRe, inst.SxyRe},
		{a.SxyIm, inst.SxyIm},
		{a.RtaRef, inst.RtaRef},
		{a.RtaMeas, inst.RtaMeas},
	}
}

func (inst *Instantaneous) fields() [6][]float64 {
	return [6][]float64{inst.Sxx, inst.Syy, inst.SxyRe, inst.SxyIm, inst.RtaRef, inst.RtaMeas}
}

func (a *Accumulator) ownFields() [6][]float64 {
	return [6][]float64{a.Sxx, a.Syy, a.SxyRe, a.SxyIm, a.RtaRef, a.RtaMeas}
}

// Accumulator is the per-FFT-size running average of Sxx/Syy/Sxy/rta_*
// described in spec.md §3 ("SpectralAccumulator"). count == 0 implies every
// array is zero.
type Accumulator struct {
	bins int

	Sxx     []float64
	Syy     []float64
	SxyRe   []float64
	SxyIm   []float64
	RtaRef  []float64
	RtaMeas []float64

	count int
	fifo  []*Instantaneous // Linear-averaging FIFO of deep-copied frames
}

// NewAccumulator allocates a zeroed accumulator for the given bin count.
func NewAccumulator(bins int) *Accumulator {
	return &Accumulator{
		bins:    bins,
		Sxx:     make([]float64, bins),
		Syy:     make([]float64, bins),
		SxyRe:   make([]float64, bins),
		SxyIm:   make([]float64, bins),
		RtaRef:  make([]float64, bins),
		RtaMeas: make([]float64, bins),
	}
}

// Count returns the number of blocks folded into the accumulator (FIFO
// depth for Linear averaging).
func (a *Accumulator) Count() int {
	return a.count
}

// Reset zeroes every array, clears the FIFO, and resets the block count.
func (a *Accumulator) Reset() {
	for _, f := range a.ownFields() {
		for i := range f {
			f[i] = 0
		}
	}
	a.fifo = nil
	a.count = 0
}

// Update folds a new instantaneous block into the accumulator under the
// given averaging policy, per spec.md §4.3.
func (a *Accumulator) Update(inst *Instantaneous, kind types.AveragingKind, averagingCount int) {
	switch kind {
	case types.AveragingExponential:
		a.updateExponential(inst, averagingCount)
	case types.AveragingLinear:
		a.updateLinear(inst, averagingCount)
	case types.AveragingInfinite:
		a.updateInfinite(inst)
	default:
		a.updateNone(inst)
	}
}

func (a *Accumulator) updateNone(inst *Instantaneous) {
	for _, pair := range a.fieldPairs(inst) {
		copy(pair[0], pair[1])
	}
	a.count = 1
}

func (a *Accumulator) updateExponential(inst *Instantaneous, averagingCount int) {
	if a.count == 0 {
		a.updateNone(inst)
		return
	}
	if averagingCount <= 0 {
		averagingCount = 1
	}
	alpha := 2.0 / (float64(averagingCount) + 1)
	for _, pair := range a.fieldPairs(inst) {
		acc, instField := pair[0], pair[1]
		for i := range acc {
			acc[i] = alpha*instField[i] + (1-alpha)*acc[i]
		}
	}
	a.count++
}

func (a *Accumulator) updateLinear(inst *Instantaneous, averagingCount int) {
	if averagingCount <= 0 {
		averagingCount = 1
	}

	snap := newInstantaneous(a.bins)
	for i, f := range snap.fields() {
		copy(f, inst.fields()[i])
	}
	a.fifo = append(a.fifo, snap)
	if len(a.fifo) > averagingCount {
		a.fifo = a.fifo[len(a.fifo)-averagingCount:]
	}

	n := float64(len(a.fifo))
	own := a.ownFields()
	for _, f := range own {
		for i := range f {
			f[i] = 0
		}
	}
	for _, frame := range a.fifo {
		frameFields := frame.fields()
		for fieldIdx := range own {
			src := frameFields[fieldIdx]
			dst := own[fieldIdx]
			for i := range dst {
				dst[i] += src[i]
			}
		}
	}
	for _, f := range own {
		for i := range f {
			f[i] /= n
		}
	}
	a.count = len(a.fifo)
}

func (a *Accumulator) updateInfinite(inst *Instantaneous) {
	n := float64(a.count)
	for _, pair := range a.fieldPairs(inst) {
		acc, instField := pair[0], pair[1]
		for i := range acc {
			acc[i] = (acc[i]*n + instField[i]) / (n + 1)
		}
	}
	a.count++
}
