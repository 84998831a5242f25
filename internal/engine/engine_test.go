package engine

import (
	"math"
	"testing"

	"github.com/austinkregel/dualscope/internal/types"
)

func TestNewRejectsInvalidFFTSize(t *testing.T) {
	if _, err := New(48000, 16384, 1000); err != ErrInvalidFFTSize {
		t.Errorf("New with non-power-of-two size: err = %v, want ErrInvalidFFTSize", err)
	}
}

func TestNewBumpsBufferCapacity(t *testing.T) {
	e, err := New(48000, 64, 1024)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// bufferCapacity (64) is less than primaryFFTSize (1024); the engine
	// should bump it so ProcessBlock(1024) can eventually succeed.
	samples := make([]float32, 1024)
	if err := e.PushSamples(samples, samples); err != nil {
		t.Fatalf("PushSamples: %v", err)
	}
	if !e.ProcessBlock(1024) {
		t.Error("ProcessBlock(1024) = false, want true after bufferCapacity bump")
	}
}

func TestPushSamplesChannelLengthMismatch(t *testing.T) {
	e, _ := New(48000, 16384, 1024)
	err := e.PushSamples(make([]float32, 10), make([]float32, 11))
	if err != ErrChannelLengthMismatch {
		t.Errorf("err = %v, want ErrChannelLengthMismatch", err)
	}
}

func sineWave(n, sampleRate int, freqHz, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestTransferFunctionIdenticalSignalsUnityGainZeroPhase(t *testing.T) {
	const sampleRate = 48000
	const n = 4096

	e, err := New(sampleRate, n, n)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.SetAveraging(types.AveragingNone, 0); err != nil {
		t.Fatalf("SetAveraging: %v", err)
	}

	sig := sineWave(n, sampleRate, 1000, 1.0)
	if err := e.PushSamples(sig, sig); err != nil {
		t.Fatalf("PushSamples: %v", err)
	}
	if !e.ProcessBlock(n) {
		t.Fatal("ProcessBlock returned false")
	}

	tf := e.TransferFunction(types.SmoothingNone)
	binHz := float64(sampleRate) / float64(n)
	bin1k := int(math.Round(1000 / binHz))

	if math.Abs(float64(tf.MagnitudeDB[bin1k])) > 0.5 {
		t.Errorf("identical-signal magnitude at 1kHz = %v dB, want ~0", tf.MagnitudeDB[bin1k])
	}
	if tf.Coherence[bin1k] < 0.99 {
		t.Errorf("identical-signal coherence at 1kHz = %v, want ~1", tf.Coherence[bin1k])
	}
	if math.Abs(float64(tf.PhaseDeg[bin1k])) > 2 {
		t.Errorf("identical-signal phase at 1kHz = %v deg, want ~0", tf.PhaseDeg[bin1k])
	}
}

func TestTransferFunctionDoubleGainSixDB(t *testing.T) {
	const sampleRate = 48000
	const n = 4096

	e, err := New(sampleRate, n, n)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.SetAveraging(types.AveragingNone, 0); err != nil {
		t.Fatalf("SetAveraging: %v", err)
	}

	ref := sineWave(n, sampleRate, 1000, 1.0)
	meas := sineWave(n, sampleRate, 1000, 2.0)
	if err := e.PushSamples(ref, meas); err != nil {
		t.Fatalf("PushSamples: %v", err)
	}
	if !e.ProcessBlock(n) {
		t.Fatal("ProcessBlock returned false")
	}

	tf := e.TransferFunction(types.SmoothingNone)
	binHz := float64(sampleRate) / float64(n)
	bin1k := int(math.Round(1000 / binHz))

	got := float64(tf.MagnitudeDB[bin1k])
	want := 20 * math.Log10(2)
	if math.Abs(got-want) > 0.5 {
		t.Errorf("2x-gain magnitude at 1kHz = %v dB, want ~%v dB", got, want)
	}
}

func TestTransferFunctionNoDataIsEmpty(t *testing.T) {
	e, _ := New(48000, 16384, 1024)
	tf := e.TransferFunction(types.SmoothingNone)
	if len(tf.MagnitudeDB) != 0 {
		t.Errorf("expected empty transfer function before any data, got %d bins", len(tf.MagnitudeDB))
	}
}

func TestResetAveragingKeepsRingBuffersClearsAccumulators(t *testing.T) {
	const n = 1024
	e, _ := New(48000, n, n)
	sig := sineWave(n, 48000, 500, 1.0)
	e.PushSamples(sig, sig)
	e.ProcessBlock(n)

	e.ResetAveraging()

	tf := e.TransferFunction(types.SmoothingNone)
	if len(tf.MagnitudeDB) != 0 {
		t.Error("expected empty transfer function immediately after ResetAveraging")
	}
	if e.LastImpulseResponse() != nil {
		t.Error("expected nil impulse response after ResetAveraging")
	}

	// Ring buffer contents should survive: reprocessing the same size
	// should succeed immediately without another PushSamples call.
	if !e.ProcessBlock(n) {
		t.Error("ProcessBlock after ResetAveraging should still succeed (ring buffer retained)")
	}
}

func TestRTAEmptyBeforeData(t *testing.T) {
	e, _ := New(48000, 16384, 1024)
	rta := e.RTA(types.SmoothingNone, false, 0)
	if len(rta) != 0 {
		t.Errorf("expected empty RTA before data, got %d bins", len(rta))
	}
}

func TestSweepCaptureTracksPeak(t *testing.T) {
	const n = 1024
	e, _ := New(48000, n, n)
	e.StartSweepCapture()

	loud := sineWave(n, 48000, 1000, 1.0)
	quiet := sineWave(n, 48000, 1000, 0.01)

	e.PushSamples(loud, loud)
	e.ProcessBlock(n)
	e.PushSamples(quiet, quiet)
	e.ProcessBlock(n)

	peak := e.StopSweepCapture()
	if len(peak) == 0 {
		t.Fatal("expected non-empty peak buffer")
	}

	binHz := float64(48000) / float64(n)
	bin1k := int(math.Round(1000 / binHz))
	if peak[bin1k] < -40 {
		t.Errorf("peak-hold at 1kHz = %v dB, expected it to retain the loud block's level", peak[bin1k])
	}
}

func TestSweepCaptureEmptyWithoutStart(t *testing.T) {
	e, _ := New(48000, 16384, 1024)
	if peak := e.StopSweepCapture(); len(peak) != 0 {
		t.Errorf("expected empty peak buffer without a matching StartSweepCapture, got %d bins", len(peak))
	}
}
