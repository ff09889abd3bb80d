package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/NicolasDenoyelle/starbind/internal/logging"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, expands and validates a yaml configuration file.
// Missing fields fall back to DefaultConfig values.
func LoadConfig(filepath string) (*BindConfig, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to parse config file")
		return nil, err
	}
	applyDefaults(config)

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func applyDefaults(config *BindConfig) {
	def := DefaultConfig()
	if config.Binding.Method == "" {
		config.Binding.Method = def.Binding.Method
	}
	if config.Binding.ResourceKind == "" {
		config.Binding.ResourceKind = def.Binding.ResourceKind
	}
	if config.Binding.CounterFile == "" {
		config.Binding.CounterFile = def.Binding.CounterFile
	}
	if config.Binding.LogLevel == "" {
		config.Binding.LogLevel = def.Binding.LogLevel
	}
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

// Validate checks a configuration regardless of whether it came from a
// file or from command line flags.
func Validate(config *BindConfig) error {
	if !validMethods[config.Binding.Method] {
		return fmt.Errorf("invalid method %q (valid: auto, mpi, openmp, ptrace)", config.Binding.Method)
	}

	switch strings.ToLower(config.Binding.ResourceKind) {
	case "pu", "core", "l3", "cache", "package", "socket", "numa", "node":
	default:
		return fmt.Errorf("invalid resource kind %q (valid: pu, core, l3, package, numa)", config.Binding.ResourceKind)
	}

	if config.Binding.CounterFile == "" {
		return fmt.Errorf("counter file path is required")
	}

	return nil
}
