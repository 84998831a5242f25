// Package main is the entry point for the dualscope measurement daemon.
// dualscope is a headless dual-channel acoustic measurement engine that
// accepts reference/measurement sample blocks from a capture driver and
// serves transfer-function, RTA, delay and room-acoustic queries to clients
// over IPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/austinkregel/dualscope/internal/config"
	"github.com/austinkregel/dualscope/internal/engine"
	"github.com/austinkregel/dualscope/internal/ipc"
	"github.com/austinkregel/dualscope/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config holds process-level daemon configuration (not to be confused with
// the persisted engine config in internal/config).
type Config struct {
	SocketPath string
	ConfigDir  string
	Demo       bool
	Verbose    bool
}

func main() {
	cfg := parseFlags()

	if cfg.Verbose {
		log.Printf("dualscope version %s starting...", Version)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.SocketPath, "socket", "", "IPC socket path (default: auto-generated based on UID)")
	flag.StringVar(&cfg.ConfigDir, "config", "", "Configuration directory (default: ~/.config/dualscope)")
	flag.BoolVar(&cfg.Demo, "demo", false, "Drive the engine from a synthetic reference/measurement signal pair instead of waiting for external pushSamples calls")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	if cfg.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		cfg.ConfigDir = homeDir + "/.config/dualscope"
	}

	if cfg.SocketPath == "" {
		cfg.SocketPath = fmt.Sprintf("/tmp/dualscope-%d.sock", os.Getuid())
	}

	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	if err := os.MkdirAll(cfg.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configMgr := config.NewManager(cfg.ConfigDir)
	if err := configMgr.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	engCfg := configMgr.Get()

	eng, err := engine.New(engCfg.Capture.SampleRate, engCfg.Capture.BufferCapacitySamples, engCfg.Analysis.PrimaryFFTSize)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	eng.SetWindow(types.ParseWindowKind(engCfg.Analysis.Window))
	if err := eng.SetAveraging(types.ParseAveragingKind(engCfg.Analysis.Averaging), engCfg.Analysis.AveragingCount); err != nil {
		return fmt.Errorf("failed to apply averaging config: %w", err)
	}
	if engCfg.Behavior.PersistPhaseOffset {
		eng.PhaseOffsetMs = engCfg.Behavior.PhaseOffsetMs
	}

	if cfg.Demo {
		log.Printf("[DEMO] Driving engine from a synthetic signal pair")
		go runDemoDriver(ctx, eng)
	}

	server := ipc.NewServer(cfg.SocketPath, configMgr, eng)

	log.Printf("Starting IPC server on %s", cfg.SocketPath)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("IPC server error: %w", err)
	}

	return nil
}

// runDemoDriver pushes a synthetic multi-tone reference signal and a
// fixed-delay, attenuated (0.8x) measurement signal into the engine at a
// realistic block cadence, periodically re-processing the primary and
// Multi-Time-Window accumulators. This exercises the full engine without
// requiring a real audio capture backend.
func runDemoDriver(ctx context.Context, eng *engine.Engine) {
	const blockSize = 512
	const demoDelaySamples = 37

	sampleRate := eng.SampleRate()
	rng := rand.New(rand.NewSource(1))

	ticker := time.NewTicker(time.Duration(float64(blockSize) / float64(sampleRate) * float64(time.Second)))
	defer ticker.Stop()

	var sampleIndex int64
	history := make([]float32, 0, demoDelaySamples+blockSize)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ref := make([]float32, blockSize)
		for i := 0; i < blockSize; i++ {
			t := float64(sampleIndex+int64(i)) / float64(sampleRate)
			v := 0.6*math.Sin(2*math.Pi*1000*t) + 0.3*math.Sin(2*math.Pi*4000*t)
			v += 0.02 * rng.NormFloat64()
			ref[i] = float32(v)
		}
		sampleIndex += int64(blockSize)

		history = append(history, ref...)
		if len(history) > demoDelaySamples+blockSize*4 {
			history = history[len(history)-(demoDelaySamples+blockSize*4):]
		}

		meas := make([]float32, blockSize)
		for i := 0; i < blockSize; i++ {
			srcIdx := len(history) - blockSize + i - demoDelaySamples
			if srcIdx >= 0 && srcIdx < len(history) {
				meas[i] = 0.8 * history[srcIdx]
			}
		}

		eng.Mu.Lock()
		err := eng.PushSamples(ref, meas)
		if err == nil {
			eng.ProcessAllMTW()
		}
		eng.Mu.Unlock()
		if err != nil {
			log.Printf("[DEMO] PushSamples error: %v", err)
			continue
		}
	}
}
