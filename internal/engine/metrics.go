package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/austinkregel/dualscope/internal/types"
)

// computeAcousticMetrics derives C80, D50 and RT60 from the impulse
// response and the direct-arrival sample index d, per spec.md §4.7. Returns
// nil only when called with an empty impulse response; otherwise it always
// returns a populated (possibly all-zero) AcousticMetrics, matching the
// spec's "never surface a numerical degeneracy as an error" policy.
func computeAcousticMetrics(ir []float32, d, sampleRate int) *types.AcousticMetrics {
	if len(ir) == 0 {
		return nil
	}
	if d < 0 {
		d = 0
	}
	if d >= len(ir) {
		return &types.AcousticMetrics{}
	}

	energy := make([]float64, len(ir))
	for i, v := range ir {
		energy[i] = float64(v) * float64(v)
	}

	eTot := floats.Sum(energy[d:])
	if eTot < 1e-20 {
		return &types.AcousticMetrics{}
	}

	c80 := computeC80(energy, d, sampleRate, eTot)
	d50 := computeD50(energy, d, sampleRate, eTot)
	rt60 := computeRT60(energy, d, sampleRate)

	return &types.AcousticMetrics{
		C80dB:       round(c80, 1),
		D50Percent:  round(d50, 0),
		RT60Seconds: round(rt60, 2),
	}
}

func windowEnd(start, n, limit int) int {
	end := start + n
	if end > limit {
		end = limit
	}
	return end
}

func computeC80(energy []float64, d, sampleRate int, eTot float64) float64 {
	n80 := int(math.Round(0.080 * float64(sampleRate)))
	earlyEnd := windowEnd(d, n80, len(energy))
	eEarly := floats.Sum(energy[d:earlyEnd])
	eLate := floats.Sum(energy[earlyEnd:])

	if eLate < 1e-20 {
		return 99
	}
	return 10 * math.Log10(eEarly/eLate)
}

func computeD50(energy []float64, d, sampleRate int, eTot float64) float64 {
	n50 := int(math.Round(0.050 * float64(sampleRate)))
	earlyEnd := windowEnd(d, n50, len(energy))
	eEarly := floats.Sum(energy[d:earlyEnd])
	return 100 * eEarly / eTot
}

// computeRT60 performs Schroeder backward integration and an ordinary
// least-squares fit of the T20 (-25..-5 dB) decay region, per spec.md §4.7.
func computeRT60(energy []float64, d, sampleRate int) float64 {
	n := len(energy) - d
	if n <= 0 {
		return 0
	}

	// S[t] = sum_{u>=t} e[u] for t >= d, built by backward cumulative sum.
	s := make([]float64, n)
	var running float64
	for i := n - 1; i >= 0; i-- {
		running += energy[d+i]
		s[i] = running
	}
	if s[0] < 1e-300 {
		return 0
	}

	var xs, ys []float64
	for i := 0; i < n; i++ {
		l := 10 * math.Log10(s[i]/s[0])
		if l < -100 {
			l = -100
		}
		if l <= -5 && l >= -25 {
			xs = append(xs, float64(d+i)/float64(sampleRate))
			ys = append(ys, l)
		}
	}
	if len(xs) < 10 {
		return 0
	}

	_, b := stat.LinearRegression(xs, ys, nil, false)
	if b >= 0 {
		return 0
	}

	rt60 := -60 / b
	if rt60 < 0 {
		rt60 = 0
	}
	if rt60 > 10 {
		rt60 = 10
	}
	return rt60
}

func round(x float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(x*scale) / scale
}
