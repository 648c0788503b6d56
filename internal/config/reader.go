package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical reader defaults file.
const DefaultConfigPath = "config/reader.defaults.json"

// Built-in fallbacks used by the Get* accessors when a field is unset.
const (
	defaultInitialCapacity     = 200
	defaultGrowBy              = 100
	defaultPCAPUDPPort         = 20002
	defaultWindowPulses        = 10000
	defaultWaveformDiagRecords = 1
)

// ReaderConfig holds the scan reader settings. Every field is optional so a
// partial JSON file only overrides what it names.
type ReaderConfig struct {
	// Record buffer sizing
	InitialCapacity *int `json:"initial_capacity,omitempty"`
	GrowBy          *int `json:"grow_by,omitempty"`

	// Capture replay: UDP port that carries decoded units
	PCAPUDPPort *int `json:"pcap_udp_port,omitempty"`

	// Default window length used by cmd/scanread
	WindowPulses *int `json:"window_pulses,omitempty"`

	// Number of waveform records enumerated by the diagnostic read
	WaveformDiagRecords *int `json:"waveform_diag_records,omitempty"`

	Debug *bool `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrInt(v int) *int    { return &v }
func ptrBool(v bool) *bool { return &v }

// EmptyReaderConfig returns a ReaderConfig with all fields set to nil.
func EmptyReaderConfig() *ReaderConfig {
	return &ReaderConfig{}
}

// DefaultReaderConfig returns a ReaderConfig with every field populated
// from the built-in defaults.
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		InitialCapacity:     ptrInt(defaultInitialCapacity),
		GrowBy:              ptrInt(defaultGrowBy),
		PCAPUDPPort:         ptrInt(defaultPCAPUDPPort),
		WindowPulses:        ptrInt(defaultWindowPulses),
		WaveformDiagRecords: ptrInt(defaultWaveformDiagRecords),
		Debug:               ptrBool(false),
	}
}

// LoadReaderConfig loads a ReaderConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
// Fields omitted from the JSON file fall back to defaults through the Get*
// accessors, so partial configs are safe.
func LoadReaderConfig(path string) (*ReaderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyReaderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ReaderConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/scanfile/
		"../../../../" + DefaultConfigPath, // from internal/lidar/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadReaderConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ReaderConfig) Validate() error {
	if c.InitialCapacity != nil && *c.InitialCapacity <= 0 {
		return fmt.Errorf("initial_capacity must be positive, got %d", *c.InitialCapacity)
	}
	if c.GrowBy != nil && *c.GrowBy <= 0 {
		return fmt.Errorf("grow_by must be positive, got %d", *c.GrowBy)
	}
	if c.PCAPUDPPort != nil && (*c.PCAPUDPPort <= 0 || *c.PCAPUDPPort > 65535) {
		return fmt.Errorf("pcap_udp_port must be between 1 and 65535, got %d", *c.PCAPUDPPort)
	}
	if c.WindowPulses != nil && *c.WindowPulses <= 0 {
		return fmt.Errorf("window_pulses must be positive, got %d", *c.WindowPulses)
	}
	if c.WaveformDiagRecords != nil && *c.WaveformDiagRecords < 0 {
		return fmt.Errorf("waveform_diag_records must be non-negative, got %d", *c.WaveformDiagRecords)
	}
	return nil
}

// GetInitialCapacity returns the initial_capacity value or the default.
func (c *ReaderConfig) GetInitialCapacity() int {
	if c == nil || c.InitialCapacity == nil {
		return defaultInitialCapacity
	}
	return *c.InitialCapacity
}

// GetGrowBy returns the grow_by value or the default.
func (c *ReaderConfig) GetGrowBy() int {
	if c == nil || c.GrowBy == nil {
		return defaultGrowBy
	}
	return *c.GrowBy
}

// GetPCAPUDPPort returns the pcap_udp_port value or the default.
func (c *ReaderConfig) GetPCAPUDPPort() int {
	if c == nil || c.PCAPUDPPort == nil {
		return defaultPCAPUDPPort
	}
	return *c.PCAPUDPPort
}

// GetWindowPulses returns the window_pulses value or the default.
func (c *ReaderConfig) GetWindowPulses() int {
	if c == nil || c.WindowPulses == nil {
		return defaultWindowPulses
	}
	return *c.WindowPulses
}

// GetWaveformDiagRecords returns the waveform_diag_records value or the default.
func (c *ReaderConfig) GetWaveformDiagRecords() int {
	if c == nil || c.WaveformDiagRecords == nil {
		return defaultWaveformDiagRecords
	}
	return *c.WaveformDiagRecords
}

// GetDebug returns the debug value or the default.
func (c *ReaderConfig) GetDebug() bool {
	if c == nil || c.Debug == nil {
		return false
	}
	return *c.Debug
}
