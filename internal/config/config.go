package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type DefinitionsConfig struct {
	Boards []BoardDefinition `mapstructure:"boards" yaml:"boards"`
}

// BoardDefinition declares a reusable board under definitions.boards.
// Profiles reference definitions by ID and may override connection
// parameters.
type BoardDefinition struct {
	ID         string  `mapstructure:"id" yaml:"id"`
	Name       string  `mapstructure:"name" yaml:"name"`
	Type       string  `mapstructure:"type" yaml:"type"` // "synthetic", "cyton", "playback"
	Port       string  `mapstructure:"port" yaml:"port"`
	Gain       float64 `mapstructure:"gain" yaml:"gain"`
	SampleRate int     `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type BoardReference struct {
	Ref  string   `mapstructure:"ref" yaml:"ref"`
	Port *string  `mapstructure:"port,omitempty" yaml:"port,omitempty"` // Override allowed
	Gain *float64 `mapstructure:"gain,omitempty" yaml:"gain,omitempty"` // Override allowed
}

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	RecordingsDirectory string `mapstructure:"recordings_directory" yaml:"recordings_directory"`
}

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Definitions  *DefinitionsConfig        `mapstructure:"definitions,omitempty" yaml:"definitions,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

// Config is a fully resolved profile: board reference expanded against the
// definitions, default-profile fallbacks and globals applied.
type Config struct {
	Board   BoardSettings `mapstructure:"board" yaml:"board"`
	Stream  StreamConfig  `mapstructure:"stream" yaml:"stream"`
	Filters FilterConfig  `mapstructure:"filters" yaml:"filters"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`

	// Whether the source profile defined its own filters section
	filtersSet bool
}

type ConfigProfile struct {
	Board   BoardReference `mapstructure:"board" yaml:"board"`
	Stream  StreamConfig   `mapstructure:"stream" yaml:"stream"`
	Filters *FilterConfig  `mapstructure:"filters" yaml:"filters,omitempty"`
	Output  OutputConfig   `mapstructure:"output" yaml:"output"`
}

type InheritanceInfo struct {
	Board struct {
		Selection string // "inherited" or "profile-specific"
		Port      string
		Gain      string
	}
	Stream struct {
		Duration string
		Buffer   string
	}
	Filters string
	Output  struct {
		Directory string
		Format    string
	}
}

// BoardSettings is the resolved board selection of a profile.
type BoardSettings struct {
	Ref        string  `mapstructure:"ref" yaml:"ref"`
	Name       string  `mapstructure:"name" yaml:"name"`
	Type       string  `mapstructure:"type" yaml:"type"`
	Port       string  `mapstructure:"port" yaml:"port"`
	Gain       float64 `mapstructure:"gain" yaml:"gain"`
	SampleRate int     `mapstructure:"sample_rate" yaml:"sample_rate"`
}

type StreamConfig struct {
	DurationSeconds int `mapstructure:"duration_seconds" yaml:"duration_seconds"`
	BufferSamples   int `mapstructure:"buffer_samples" yaml:"buffer_samples"`
}

// Band is a frequency range in Hz.
type Band struct {
	Low  float64 `mapstructure:"low" yaml:"low"`
	High float64 `mapstructure:"high" yaml:"high"`
}

type FilterConfig struct {
	DCOffset bool  `mapstructure:"dc_offset" yaml:"dc_offset"`
	Bandpass *Band `mapstructure:"bandpass,omitempty" yaml:"bandpass,omitempty"`
	Notch    *Band `mapstructure:"notch,omitempty" yaml:"notch,omitempty"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Format    string `mapstructure:"format" yaml:"format"`
}

var validBoardTypes = map[string]bool{
	"synthetic": true,
	"cyton":     true,
	"playback":  true,
}

var defaultConfig = Config{
	Board: BoardSettings{
		Ref:  "builtin",
		Name: "Synthetic board",
		Type: "synthetic",
		Gain: 24,
	},
	Stream: StreamConfig{
		DurationSeconds: 5,
	},
	Filters: FilterConfig{
		DCOffset: true,
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Recordings", "NeuroStream"),
		Format:    "csv",
	},
}

// Default returns a copy of the built-in configuration, used when no config
// file is given.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	// Validate configuration format first
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Determine which config to use
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	// Get the requested config profile
	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Convert profile to Config by resolving the board reference
	selectedConfig, err := convertProfileToConfig(selectedProfile, rootConfig.Definitions)
	if err != nil {
		return nil, fmt.Errorf("error resolving configuration profile '%s': %w", configName, err)
	}

	// Merge with default config if it exists and we're not already using default
	if configName != "default" {
		if defaultProfile, exists := rootConfig.Configs["default"]; exists {
			baseConfig, err := convertProfileToConfig(defaultProfile, rootConfig.Definitions)
			if err != nil {
				return nil, fmt.Errorf("error resolving default configuration: %w", err)
			}
			selectedConfig = mergeConfigs(baseConfig, selectedConfig)
		}
	}

	// Global recordings directory takes priority over profile-specific directory
	if rootConfig.Globals != nil && rootConfig.Globals.Output.RecordingsDirectory != "" {
		selectedConfig.Output.Directory = rootConfig.Globals.Output.RecordingsDirectory
	}

	// Fill remaining gaps from the built-in defaults
	applyDefaults(selectedConfig)

	// Expand tilde in paths
	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)
	if selectedConfig.Board.Type == "playback" {
		selectedConfig.Board.Port = expandPath(selectedConfig.Board.Port)
	}

	if err := validateResolvedConfig(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with the global one
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// convertProfileToConfig converts a ConfigProfile to Config by resolving the
// board reference against the definitions
func convertProfileToConfig(profile *ConfigProfile, definitions *DefinitionsConfig) (*Config, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile cannot be nil")
	}

	config := &Config{
		Stream: profile.Stream,
		Output: profile.Output,
	}
	if profile.Filters != nil {
		config.Filters = *profile.Filters
		config.filtersSet = true
	}

	if profile.Board.Ref == "" {
		return nil, fmt.Errorf("board: 'ref' is required")
	}

	// Find the board definition
	var definition *BoardDefinition
	if definitions != nil {
		for i := range definitions.Boards {
			if definitions.Boards[i].ID == profile.Board.Ref {
				definition = &definitions.Boards[i]
				break
			}
		}
	}

	if definition == nil {
		return nil, fmt.Errorf("board: reference '%s' not found in definitions", profile.Board.Ref)
	}

	config.Board = BoardSettings{
		Ref:        definition.ID,
		Name:       definition.Name,
		Type:       definition.Type,
		Port:       definition.Port,
		Gain:       definition.Gain,
		SampleRate: definition.SampleRate,
	}

	// Apply overrides
	if profile.Board.Port != nil {
		config.Board.Port = *profile.Board.Port
	}
	if profile.Board.Gain != nil {
		config.Board.Gain = *profile.Board.Gain
	}

	return config, nil
}

// mergeConfigs implements the "Selection & Fallback" inheritance model:
// - Board: the profile's board selection always wins when it names a ref
// - Stream and output settings use the profile value or fall back to default
// - Filters: replaced wholesale when the profile defines the section
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}

	// Initialize inheritance tracking
	result.Inheritance = &InheritanceInfo{}

	// Start with base config
	if base != nil {
		result.Board = base.Board
		result.Stream = base.Stream
		result.Filters = base.Filters
		result.Output = base.Output

		// Mark as inherited by default
		result.Inheritance.Board.Selection = "inherited"
		result.Inheritance.Board.Port = "inherited"
		result.Inheritance.Board.Gain = "inherited"
		result.Inheritance.Stream.Duration = "inherited"
		result.Inheritance.Stream.Buffer = "inherited"
		result.Inheritance.Filters = "inherited"
		result.Inheritance.Output.Directory = "inherited"
		result.Inheritance.Output.Format = "inherited"
	}

	if profile == nil {
		return result
	}

	if profile.Board.Ref != "" {
		if base == nil || profile.Board.Ref != base.Board.Ref {
			result.Inheritance.Board.Selection = "profile-specific"
		}
		if base == nil || profile.Board.Port != base.Board.Port {
			result.Inheritance.Board.Port = "profile-specific"
		}
		if base == nil || profile.Board.Gain != base.Board.Gain {
			result.Inheritance.Board.Gain = "profile-specific"
		}
		result.Board = profile.Board
	}

	if profile.Stream.DurationSeconds != 0 {
		result.Stream.DurationSeconds = profile.Stream.DurationSeconds
		result.Inheritance.Stream.Duration = "profile-specific"
	}
	if profile.Stream.BufferSamples != 0 {
		result.Stream.BufferSamples = profile.Stream.BufferSamples
		result.Inheritance.Stream.Buffer = "profile-specific"
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
		result.Inheritance.Output.Directory = "profile-specific"
	}
	if profile.Output.Format != "" {
		result.Output.Format = profile.Output.Format
		result.Inheritance.Output.Format = "profile-specific"
	}

	// Filters carry a bool that is meaningful as false, so a profile that
	// defines the section replaces the base wholesale instead of merging
	// per field. A profile without a filters section inherits the base.
	if profile.filtersSet {
		result.Filters = profile.Filters
		result.filtersSet = true
		result.Inheritance.Filters = "profile-specific"
	}

	return result
}

// applyDefaults fills unset fields from the built-in default configuration.
func applyDefaults(cfg *Config) {
	if cfg.Board.Type == "" {
		cfg.Board = defaultConfig.Board
	}
	if cfg.Board.Gain == 0 {
		cfg.Board.Gain = defaultConfig.Board.Gain
	}
	if cfg.Stream.DurationSeconds == 0 {
		cfg.Stream.DurationSeconds = defaultConfig.Stream.DurationSeconds
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultConfig.Output.Directory
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = defaultConfig.Output.Format
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// validateResolvedConfig ensures the fully resolved profile is usable.
func validateResolvedConfig(cfg *Config) error {
	if !validBoardTypes[cfg.Board.Type] {
		return fmt.Errorf("board type must be 'synthetic', 'cyton' or 'playback', got: %s", cfg.Board.Type)
	}

	// Boards that talk to something outside the process need a port
	if cfg.Board.Type == "cyton" && cfg.Board.Port == "" {
		return fmt.Errorf("board '%s': cyton boards require a serial port", cfg.Board.Ref)
	}
	if cfg.Board.Type == "playback" && cfg.Board.Port == "" {
		return fmt.Errorf("board '%s': playback boards require a recording path as port", cfg.Board.Ref)
	}

	if cfg.Stream.DurationSeconds < 0 {
		return fmt.Errorf("stream duration_seconds must be >= 0, got %d", cfg.Stream.DurationSeconds)
	}
	if cfg.Stream.BufferSamples < 0 {
		return fmt.Errorf("stream buffer_samples must be >= 0, got %d", cfg.Stream.BufferSamples)
	}

	if err := validateBand("filters.bandpass", cfg.Filters.Bandpass); err != nil {
		return err
	}
	if err := validateBand("filters.notch", cfg.Filters.Notch); err != nil {
		return err
	}

	if cfg.Output.Format != "" && cfg.Output.Format != "csv" {
		return fmt.Errorf("output format must be 'csv', got: %s", cfg.Output.Format)
	}

	return nil
}

func validateBand(prefix string, band *Band) error {
	if band == nil {
		return nil
	}
	if band.Low <= 0 {
		return fmt.Errorf("%s: 'low' must be > 0, got: %.2f", prefix, band.Low)
	}
	if band.High <= band.Low {
		return fmt.Errorf("%s: 'high' must be above 'low', got: low=%.2f high=%.2f", prefix, band.Low, band.High)
	}
	return nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	// Set environment variable prefix
	v.SetEnvPrefix("NEUROSTREAM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate definitions section
	if err := validateDefinitions(rootConfig.Definitions); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	// Validate that all board references in configs are valid
	for configName, configProfile := range rootConfig.Configs {
		if err := validateBoardReference(configProfile.Board, rootConfig.Definitions); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	return &rootConfig, nil
}

// validateDefinitions validates the definitions section
func validateDefinitions(definitions *DefinitionsConfig) error {
	if definitions == nil {
		return fmt.Errorf("definitions section is required")
	}

	if len(definitions.Boards) == 0 {
		return fmt.Errorf("definitions.boards cannot be empty")
	}

	seenIDs := make(map[string]bool)

	for i, def := range definitions.Boards {
		prefix := fmt.Sprintf("definitions.boards[%d]", i)

		if def.ID == "" {
			return fmt.Errorf("%s: 'id' is required", prefix)
		}
		if seenIDs[def.ID] {
			return fmt.Errorf("%s: duplicate ID '%s'", prefix, def.ID)
		}
		seenIDs[def.ID] = true

		if def.Type == "" {
			return fmt.Errorf("%s: 'type' is required", prefix)
		}
		if !validBoardTypes[def.Type] {
			return fmt.Errorf("%s: 'type' must be 'synthetic', 'cyton' or 'playback', got: %s", prefix, def.Type)
		}

		if def.Gain < 0 {
			return fmt.Errorf("%s: 'gain' must be >= 0, got: %.2f", prefix, def.Gain)
		}
		if def.SampleRate < 0 {
			return fmt.Errorf("%s: 'sample_rate' must be >= 0, got: %d", prefix, def.SampleRate)
		}
	}

	return nil
}

// validateBoardReference validates the board reference in a config profile
func validateBoardReference(ref BoardReference, definitions *DefinitionsConfig) error {
	if ref.Ref == "" {
		return fmt.Errorf("board: 'ref' is required")
	}

	// Verify the reference exists
	found := false
	if definitions != nil {
		for _, def := range definitions.Boards {
			if def.ID == ref.Ref {
				found = true
				break
			}
		}
	}

	if !found {
		return fmt.Errorf("board: references undefined board definition '%s'", ref.Ref)
	}

	// Validate overrides
	if ref.Gain != nil && *ref.Gain <= 0 {
		return fmt.Errorf("board: gain override must be > 0, got %.2f", *ref.Gain)
	}

	return nil
}
