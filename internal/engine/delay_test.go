package engine

import (
	"math"
	"math/rand"
	"testing"
)

func TestComputeAutoDelayInsufficientData(t *testing.T) {
	e, err := New(48000, 16384, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.PushSamples(make([]float32, 100), make([]float32, 100))

	got := e.ComputeAutoDelay()
	if got.Ms != 0 || got.Meters != 0 {
		t.Errorf("ComputeAutoDelay with insufficient data = %+v, want zero value", got)
	}
	if e.LastImpulseResponse() != nil {
		t.Error("impulse response should remain nil when data is insufficient")
	}
}

func TestComputeAutoDelayKnownShift(t *testing.T) {
	const sampleRate = 48000
	const shift = 50
	const m = delayFinderFFTSize
	total := m + shift + 4096

	rng := rand.New(rand.NewSource(1))
	noise := make([]float32, total)
	for i := range noise {
		noise[i] = float32(rng.NormFloat64())
	}

	ref := make([]float32, total)
	meas := make([]float32, total)
	copy(ref, noise)
	for i := shift; i < total; i++ {
		meas[i] = noise[i-shift]
	}

	e, err := New(sampleRate, total, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.PushSamples(ref, meas); err != nil {
		t.Fatalf("PushSamples: %v", err)
	}

	got := e.ComputeAutoDelay()

	if math.Abs(got.Ms-e.CurrentDelaySamples/sampleRate*1000) > 1e-9 {
		t.Errorf("returned Ms does not match CurrentDelaySamples-derived value")
	}
	if math.Abs(e.CurrentDelaySamples-shift) > 2 {
		t.Errorf("CurrentDelaySamples = %v, want within 2 samples of %v", e.CurrentDelaySamples, shift)
	}

	ir := e.LastImpulseResponse()
	if len(ir) != m {
		t.Fatalf("impulse response length = %d, want %d", len(ir), m)
	}
	maxVal := float32(0)
	for _, v := range ir {
		if v > maxVal {
			maxVal = v
		}
		if v < 0 {
			t.Fatalf("impulse response must be non-negative, got %v", v)
		}
	}
	if math.Abs(float64(maxVal)-1) > 1e-6 {
		t.Errorf("impulse response peak = %v, want 1 (peak-normalized)", maxVal)
	}
}

func TestComputeAutoDelayZeroShift(t *testing.T) {
	const sampleRate = 48000
	const m = delayFinderFFTSize
	total := m + 1024

	rng := rand.New(rand.NewSource(2))
	noise := make([]float32, total)
	for i := range noise {
		noise[i] = float32(rng.NormFloat64())
	}

	e, err := New(sampleRate, total, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.PushSamples(noise, noise); err != nil {
		t.Fatalf("PushSamples: %v", err)
	}

	got := e.ComputeAutoDelay()
	if math.Abs(got.Ms) > 0.1 {
		t.Errorf("identical channels: Ms = %v, want ~0", got.Ms)
	}
	if e.peakSamples != 0 {
		t.Errorf("identical channels: peakSamples = %d, want 0", e.peakSamples)
	}
}

func TestPushSamplesRejectsUnequalBlockLengths(t *testing.T) {
	e, err := New(48000, 16384, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.PushSamples(make([]float32, 10), make([]float32, 20)); err != ErrChannelLengthMismatch {
		t.Errorf("PushSamples length mismatch error = %v, want ErrChannelLengthMismatch", err)
	}
}
