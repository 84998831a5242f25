package engine

import (
	"math"
	"testing"

	"github.com/austinkregel/dualscope/internal/types"
)

func constInstantaneous(bins int, v float64) *Instantaneous {
	inst := newInstantaneous(bins)
	for _, f := range inst.fields() {
		for i := range f {
			f[i] = v
		}
	}
	return inst
}

func TestAccumulatorNoneOverwrites(t *testing.T) {
	a := NewAccumulator(4)
	a.Update(constInstantaneous(4, 2), types.AveragingNone, 0)
	a.Update(constInstantaneous(4, 5), types.AveragingNone, 0)

	for _, v := range a.Sxx {
		if v != 5 {
			t.Errorf("Sxx = %v, want 5", v)
		}
	}
	if a.Count() != 1 {
		t.Errorf("Count() = %d, want 1", a.Count())
	}
}

func TestAccumulatorExponentialFirstBlockIsDirect(t *testing.T) {
	a := NewAccumulator(4)
	a.Update(constInstantaneous(4, 3), types.AveragingExponential, 8)
	for _, v := range a.Sxx {
		if v != 3 {
			t.Errorf("first block Sxx = %v, want 3", v)
		}
	}
}

func TestAccumulatorExponentialConverges(t *testing.T) {
	a := NewAccumulator(1)
	a.Update(constInstantaneous(1, 0), types.AveragingExponential, 8)
	for i := 0; i < 500; i++ {
		a.Update(constInstantaneous(1, 10), types.AveragingExponential, 8)
	}
	if math.Abs(a.Sxx[0]-10) > 1e-6 {
		t.Errorf("Sxx converged to %v, want ~10", a.Sxx[0])
	}
}

func TestAccumulatorLinearIsMeanOfFIFO(t *testing.T) {
	a := NewAccumulator(1)
	vals := []float64{1, 2, 3, 4}
	for _, v := range vals {
		a.Update(constInstantaneous(1, v), types.AveragingLinear, 4)
	}
	want := (1.0 + 2 + 3 + 4) / 4
	if math.Abs(a.Sxx[0]-want) > 1e-12 {
		t.Errorf("Sxx = %v, want %v", a.Sxx[0], want)
	}
	if a.Count() != 4 {
		t.Errorf("Count() = %d, want 4", a.Count())
	}
}

func TestAccumulatorLinearDropsOldest(t *testing.T) {
	a := NewAccumulator(1)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		a.Update(constInstantaneous(1, v), types.AveragingLinear, 3)
	}
	// FIFO depth 3 retains the last 3 pushes: 3, 4, 5.
	want := (3.0 + 4 + 5) / 3
	if math.Abs(a.Sxx[0]-want) > 1e-12 {
		t.Errorf("Sxx = %v, want %v", a.Sxx[0], want)
	}
	if a.Count() != 3 {
		t.Errorf("Count() = %d, want 3", a.Count())
	}
}

func TestAccumulatorInfiniteRunningMean(t *testing.T) {
	a := NewAccumulator(1)
	vals := []float64{10, 20, 30}
	for _, v := range vals {
		a.Update(constInstantaneous(1, v), types.AveragingInfinite, 0)
	}
	want := (10.0 + 20 + 30) / 3
	if math.Abs(a.Sxx[0]-want) > 1e-9 {
		t.Errorf("Sxx = %v, want %v", a.Sxx[0], want)
	}
	if a.Count() != 3 {
		t.Errorf("Count() = %d, want 3", a.Count())
	}
}

func TestAccumulatorResetZeroes(t *testing.T) {
	a := NewAccumulator(4)
	a.Update(constInstantaneous(4, 7), types.AveragingLinear, 4)
	a.Reset()

	for _, f := range a.ownFields() {
		for _, v := range f {
			if v != 0 {
				t.Errorf("field value = %v after reset, want 0", v)
			}
		}
	}
	if a.Count() != 0 {
		t.Errorf("Count() = %d after reset, want 0", a.Count())
	}
	if len(a.fifo) != 0 {
		t.Errorf("fifo length = %d after reset, want 0", len(a.fifo))
	}
}

func TestAccumulatorCountZeroMeansAllZero(t *testing.T) {
	a := NewAccumulator(8)
	if a.Count() != 0 {
		t.Fatalf("fresh accumulator Count() = %d, want 0", a.Count())
	}
	for _, f := range a.ownFields() {
		for _, v := range f {
			if v != 0 {
				t.Errorf("fresh accumulator has nonzero field value %v", v)
			}
		}
	}
}

func TestAccumulatorLinearFIFOIsDeepCopy(t *testing.T) {
	a := NewAccumulator(1)
	inst := constInstantaneous(1, 1)
	a.Update(inst, types.AveragingLinear, 4)

	// Mutating the caller's instantaneous buffer after Update must not
	// affect the FIFO snapshot already stored.
	inst.Sxx[0] = 999

	a.Update(constInstantaneous(1, 1), types.AveragingLinear, 4)
	if a.Sxx[0] != 1 {
		t.Errorf("Sxx = %v, want 1 (FIFO snapshot must be a deep copy)", a.Sxx[0])
	}
}
