package config

import (
	"strings"
	"testing"
)

func TestValidateConfigurationFormat_ValidConfig(t *testing.T) {
	validConfig := `
active_config: test

definitions:
  boards:
    - id: test_synthetic
      name: Bench board
      type: synthetic
      gain: 24

    - id: test_cyton
      name: Headset
      type: cyton
      port: /dev/ttyUSB0
      gain: 24
      sample_rate: 250

configs:
  test:
    board:
      ref: test_cyton
      gain: 8
    output:
      directory: ~/Recordings/Test
`

	configFile := writeConfigFile(t, validConfig)

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if rootConfig.Definitions == nil {
		t.Fatal("Expected definitions section")
	}
	if len(rootConfig.Definitions.Boards) != 2 {
		t.Errorf("Expected 2 board definitions, got %d", len(rootConfig.Definitions.Boards))
	}

	def := rootConfig.Definitions.Boards[1]
	if def.ID != "test_cyton" || def.Type != "cyton" || def.Port != "/dev/ttyUSB0" {
		t.Errorf("Invalid second definition: %+v", def)
	}
	if def.SampleRate != 250 {
		t.Errorf("Expected sample rate 250, got %d", def.SampleRate)
	}

	testConfig := rootConfig.Configs["test"]
	if testConfig == nil {
		t.Fatal("Expected test config")
	}
	if testConfig.Board.Ref != "test_cyton" {
		t.Errorf("Expected ref 'test_cyton', got '%s'", testConfig.Board.Ref)
	}
	if testConfig.Board.Gain == nil || *testConfig.Board.Gain != 8 {
		t.Errorf("Expected gain override 8, got %v", testConfig.Board.Gain)
	}
}

func TestValidateConfigurationFormat_MissingDefinitions(t *testing.T) {
	invalidConfig := `
active_config: test

configs:
  test:
    board:
      ref: missing_definition
`

	configFile := writeConfigFile(t, invalidConfig)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for missing definitions section")
	}
	if !strings.Contains(err.Error(), "definitions section is required") {
		t.Errorf("Expected error about missing definitions, got: %v", err)
	}
}

func TestValidateConfigurationFormat_UndefinedReference(t *testing.T) {
	invalidConfig := `
active_config: test

definitions:
  boards:
    - id: bench
      type: synthetic

configs:
  test:
    board:
      ref: no_such_board
`

	configFile := writeConfigFile(t, invalidConfig)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for undefined board reference")
	}
	if !strings.Contains(err.Error(), "no_such_board") {
		t.Errorf("Expected error naming the undefined reference, got: %v", err)
	}
}

func TestValidateConfigurationFormat_DuplicateIDs(t *testing.T) {
	invalidConfig := `
definitions:
  boards:
    - id: bench
      type: synthetic
    - id: bench
      type: cyton
      port: /dev/ttyUSB0

configs:
  test:
    board:
      ref: bench
`

	configFile := writeConfigFile(t, invalidConfig)

	_, err := ValidateConfigurationFormat(configFile)
	if err == nil {
		t.Fatal("Expected error for duplicate board IDs")
	}
	if !strings.Contains(err.Error(), "duplicate ID") {
		t.Errorf("Expected duplicate ID error, got: %v", err)
	}
}

func TestValidateConfigurationFormat_BadBoardType(t *testing.T) {
	invalidConfig := `
definitions:
  boards:
    - id: mystery
      type: telepathy

configs:
  test:
    board:
      ref: mystery
`

	configFile := writeConfigFile(t, invalidConfig)

	if _, err := ValidateConfigurationFormat(configFile); err == nil {
		t.Error("Expected error for unknown board type")
	}
}

func TestValidateConfigurationFormat_BadGainOverride(t *testing.T) {
	invalidConfig := `
definitions:
  boards:
    - id: bench
      type: synthetic

configs:
  test:
    board:
      ref: bench
      gain: -1
`

	configFile := writeConfigFile(t, invalidConfig)

	if _, err := ValidateConfigurationFormat(configFile); err == nil {
		t.Error("Expected error for negative gain override")
	}
}

func TestLoadWithProfile_CytonRequiresPort(t *testing.T) {
	invalidConfig := `
active_config: test

definitions:
  boards:
    - id: headless
      type: cyton

configs:
  test:
    board:
      ref: headless
`

	configFile := writeConfigFile(t, invalidConfig)

	_, err := LoadWithProfile(configFile, "test")
	if err == nil {
		t.Fatal("Expected error for cyton board without a port")
	}
	if !strings.Contains(err.Error(), "serial port") {
		t.Errorf("Expected serial port error, got: %v", err)
	}
}

func TestLoadWithProfile_BadBandRanges(t *testing.T) {
	cases := []struct {
		name    string
		filters string
	}{
		{"inverted bandpass", "bandpass: {low: 50.0, high: 1.0}"},
		{"zero low", "bandpass: {low: 0, high: 30.0}"},
		{"inverted notch", "notch: {low: 52.0, high: 48.0}"},
	}

	for _, tc := range cases {
		content := `
active_config: test

definitions:
  boards:
    - id: bench
      type: synthetic

configs:
  test:
    board:
      ref: bench
    filters:
      dc_offset: true
      ` + tc.filters + `
`
		configFile := writeConfigFile(t, content)
		if _, err := LoadWithProfile(configFile, "test"); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
