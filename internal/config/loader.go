package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := DefaultConfig()

	// Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Perform environment variable substitution
	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.Store.Host = expandEnvVar(cfg.Store.Host)
	cfg.Store.User = expandEnvVar(cfg.Store.User)
	cfg.Store.Password = expandEnvVar(cfg.Store.Password)
	cfg.Store.Database = expandEnvVar(cfg.Store.Database)

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetWorkload retrieves a specific workload configuration by name.
func (c *Config) GetWorkload(name string) (*WorkloadConfig, error) {
	wc, exists := c.Workloads[name]
	if !exists {
		return nil, fmt.Errorf("workload %q not found in configuration", name)
	}
	return &wc, nil
}

// ListWorkloads returns all workload names defined in the configuration,
// sorted for deterministic output.
func (c *Config) ListWorkloads() []string {
	names := make([]string, 0, len(c.Workloads))
	for name := range c.Workloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, deleteBatchSize int, pollInterval, pollTimeout float64) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if deleteBatchSize > 0 {
		c.Processing.DeleteBatchSize = deleteBatchSize
	}
	if pollInterval > 0 {
		c.Processing.PollIntervalSeconds = pollInterval
	}
	if pollTimeout > 0 {
		c.Processing.PollTimeoutSeconds = pollTimeout
	}
}

// ApplyWorkloadOverrides merges CLI flag values onto a workload copy.
// Only explicitly set flags should be passed as non-zero values; records
// uses -1 to mean "not set" so that 0 records stays expressible.
func ApplyWorkloadOverrides(wc *WorkloadConfig, records, parallelism int, tag string, elastic, bypassChangelog bool) {
	if records >= 0 {
		wc.Records = records
	}
	if parallelism > 0 {
		if wc.Processing == nil {
			wc.Processing = &ProcessingConfig{}
		}
		wc.Processing.Parallelism = parallelism
	}
	if tag != "" {
		wc.Tag = tag
	}
	if elastic {
		wc.Elastic = true
	}
	if bypassChangelog {
		wc.BypassChangelog = true
	}
}
