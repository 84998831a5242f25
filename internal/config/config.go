// Package config handles measurement engine configuration file management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/austinkregel/dualscope/internal/types"
)

// Config represents the persisted engine configuration.
type Config struct {
	// Capture settings
	Capture CaptureConfig `json:"capture"`

	// Analysis settings
	Analysis AnalysisConfig `json:"analysis"`

	// Behavior settings
	Behavior BehaviorConfig `json:"behavior"`
}

// CaptureConfig contains sample-rate and buffering settings.
type CaptureConfig struct {
	// SampleRate of both input channels, in Hz (default: 48000)
	SampleRate int `json:"sampleRate"`

	// BufferCapacitySamples is the ring buffer depth per channel (default:
	// at least the delay finder's FFT size, 16384)
	BufferCapacitySamples int `json:"bufferCapacitySamples"`
}

// AnalysisConfig contains spectral-analysis settings.
type AnalysisConfig struct {
	// PrimaryFFTSize for the single-window transfer function and RTA
	// (default: 8192)
	PrimaryFFTSize int `json:"primaryFFTSize"`

	// Window selects the analysis window (default: "hann")
	Window string `json:"window"`

	// Averaging selects the spectral averaging policy (default:
	// "exponential")
	Averaging string `json:"averaging"`

	// AveragingCount is the smoothing time-constant (Exponential) or FIFO
	// depth (Linear) parameter (default: 8)
	AveragingCount int `json:"averagingCount"`

	// Smoothing records a fractional-octave smoothing choice (default:
	// "none"). It is persisted only: the IPC handlers take smoothing from
	// each request (none when omitted) and do not read this value.
	Smoothing string `json:"smoothing"`
}

// BehaviorConfig contains measurement-workflow settings.
type BehaviorConfig struct {
	// AutoDelayOnStart is persisted with the rest of the config but is not
	// read by the daemon; ComputeAutoDelay runs only when a client issues
	// computeAutoDelay.
	AutoDelayOnStart bool `json:"autoDelayOnStart"`

	// PersistPhaseOffset keeps the user phase-offset trim across restarts
	PersistPhaseOffset bool `json:"persistPhaseOffset"`

	PhaseOffsetMs float64 `json:"phaseOffsetMs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate:            48000,
			BufferCapacitySamples: 16384,
		},
		Analysis: AnalysisConfig{
			PrimaryFFTSize: 8192,
			Window:         types.WindowHann.String(),
			Averaging:      types.AveragingExponential.String(),
			AveragingCount: 8,
			Smoothing:      types.SmoothingNone.String(),
		},
		Behavior: BehaviorConfig{
			AutoDelayOnStart:   true,
			PersistPhaseOffset: true,
		},
	}
}

// Manager handles loading and saving configuration.
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager.
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk, writing out defaults if no
// config file exists yet.
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = DefaultConfig()
		return m.Save()
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.config = config
	return nil
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path.
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update replaces the configuration and saves it.
func (m *Manager) Update(config *Config) error {
	m.config = config
	return m.Save()
}

// SetPhaseOffset updates and persists the user phase-offset trim.
func (m *Manager) SetPhaseOffset(ms float64) error {
	m.config.Behavior.PhaseOffsetMs = ms
	return m.Save()
}
