package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/logging"
)

// Settings represents the file-loadable configuration of an optimization
// run: the problem shape plus logging. Algorithm-specific knobs live on the
// optimizer config structs, which carry yaml tags of their own and can be
// embedded in the same file by callers.
type Settings struct {
	// Problem describes the search space and evaluation plan
	Problem core.Params `yaml:"problem" validate:"required"`

	// Logging configuration
	Logging LoggingSettings `yaml:"logging,omitempty" validate:"omitempty"`
}

// LoggingSettings holds configuration for the run logger.
type LoggingSettings struct {
	// Severity threshold (DEBUG, INFO, WARN, ERROR, FATAL)
	// Default: INFO
	Level string `yaml:"level,omitempty" validate:"omitempty,loglevel"`

	// Whether console output uses ANSI colors
	// Default: false
	Color bool `yaml:"color,omitempty"`

	// Optional JSON-lines file that receives every entry in addition to
	// the console
	JSONFile string `yaml:"json_file,omitempty"`
}

// Parse decodes Settings from YAML, applies defaults, and validates.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.Problem.ApplyDefaults()
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads Settings from a YAML file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// BuildLogger constructs a logger from the logging settings. The returned
// logger is not installed globally; pass it to logging.SetLogger if the run
// should use it everywhere.
func (s *LoggingSettings) BuildLogger() (*logging.Logger, error) {
	outputs := []logging.Output{
		logging.NewConsoleOutput(true, logging.WithColor(s.Color)),
	}
	if s.JSONFile != "" {
		fileOut, err := logging.NewFileOutput(s.JSONFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		outputs = append(outputs, fileOut)
	}

	level := s.Level
	if level == "" {
		level = "INFO"
	}

	return logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(strings.ToUpper(level)),
		Outputs:  outputs,
	}), nil
}
