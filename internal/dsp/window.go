package dsp

import (
	"math"
	"sync"

	"github.com/austinkregel/dualscope/internal/types"
)

// windowCacheKey identifies a cached window by size and kind.
type windowCacheKey struct {
	size int
	kind types.WindowKind
}

var (
	windowCacheMu sync.Mutex
	windowCache   = make(map[windowCacheKey][]float64)
)

// Window returns the precomputed analysis window of the given size and
// kind, computing and memoizing it on first use. All windows are defined
// over i = 0..size-1 with normalization denominator size-1, matching the
// teacher's Hann-window construction in internal/audio/analyzer.go
// generalized to the full window family spec.md requires.
func Window(size int, kind types.WindowKind) []float64 {
	key := windowCacheKey{size: size, kind: kind}

	windowCacheMu.Lock()
	defer windowCacheMu.Unlock()

	if w, ok := windowCache[key]; ok {
		return w
	}
	w := buildWindow(size, kind)
	windowCache[key] = w
	return w
}

func buildWindow(size int, kind types.WindowKind) []float64 {
	w := make([]float64, size)
	if size <= 1 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	denom := float64(size - 1)

	switch kind {
	case types.WindowHann:
		for i := range w {
			w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/denom))
		}
	case types.WindowHamming:
		for i := range w {
			w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/denom)
		}
	case types.WindowBlackmanHarris:
		const (
			a0 = 0.35875
			a1 = 0.48829
			a2 = 0.14128
			a3 = 0.01168
		)
		for i := range w {
			x := 2 * math.Pi * float64(i) / denom
			w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
		}
	case types.WindowFlatTop:
		const (
			a0 = 0.21557895
			a1 = 0.41663158
			a2 = 0.277263158
			a3 = 0.083578947
			a4 = 0.006947368
		)
		for i := range w {
			x := 2 * math.Pi * float64(i) / denom
			w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x) + a4*math.Cos(4*x)
		}
	default: // WindowRectangular
		for i := range w {
			w[i] = 1
		}
	}
	return w
}
