// Package config provides configuration structures and loading for gobulk.
package config

// Config represents the complete application configuration.
type Config struct {
	Store      StoreConfig               `yaml:"store" mapstructure:"store"`
	Workloads  map[string]WorkloadConfig `yaml:"workloads" mapstructure:"workloads"`
	Processing ProcessingConfig          `yaml:"processing" mapstructure:"processing"`
	Logging    LoggingConfig             `yaml:"logging" mapstructure:"logging"`
}

// StoreConfig represents the MySQL connection descriptor for the target store.
type StoreConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	// BypassChangelog disables changelog writes for every mutation issued over
	// this connection, regardless of per-request hints.
	BypassChangelog bool `yaml:"bypass_changelog" mapstructure:"bypass_changelog"`
}

// WorkloadConfig represents one named mutation workload.
type WorkloadConfig struct {
	Table   string   `yaml:"table" mapstructure:"table"`
	Columns []string `yaml:"columns" mapstructure:"columns"`
	Records int      `yaml:"records" mapstructure:"records"`
	// Elastic provisions the table with a set-based (hash partitioned) layout
	// and selects the synchronous bulk deletion strategy.
	Elastic         bool              `yaml:"elastic" mapstructure:"elastic"`
	Tag             string            `yaml:"tag" mapstructure:"tag"`
	BypassChangelog bool              `yaml:"bypass_changelog" mapstructure:"bypass_changelog"`
	Processing      *ProcessingConfig `yaml:"processing,omitempty" mapstructure:"processing"`
}

// ProcessingConfig represents batch processing settings.
type ProcessingConfig struct {
	// Parallelism caps in-flight mutation calls. Zero means "use the
	// parallelism recommended by the store at connect time".
	Parallelism         int     `yaml:"parallelism" mapstructure:"parallelism"`
	DeleteBatchSize     int     `yaml:"delete_batch_size" mapstructure:"delete_batch_size"`
	PollIntervalSeconds float64 `yaml:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
	PollTimeoutSeconds  float64 `yaml:"poll_timeout_seconds" mapstructure:"poll_timeout_seconds"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     16,
			MaxIdleConnections: 4,
		},
		Processing: ProcessingConfig{
			Parallelism:         0,
			DeleteBatchSize:     500,
			PollIntervalSeconds: 0.5,
			PollTimeoutSeconds:  300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DefaultColumns is the column set provisioned when a workload does not
// declare its own.
var DefaultColumns = []string{"name", "description"}

// EffectiveColumns returns the workload's columns, falling back to
// DefaultColumns when none are configured.
func (wc *WorkloadConfig) EffectiveColumns() []string {
	if len(wc.Columns) == 0 {
		return append([]string(nil), DefaultColumns...)
	}
	return wc.Columns
}

// EffectiveProcessing merges the workload's processing override onto the
// global settings. Only positive override values take effect.
func (wc *WorkloadConfig) EffectiveProcessing(global ProcessingConfig) ProcessingConfig {
	if wc.Processing == nil {
		return global
	}

	result := global
	if wc.Processing.Parallelism > 0 {
		result.Parallelism = wc.Processing.Parallelism
	}
	if wc.Processing.DeleteBatchSize > 0 {
		result.DeleteBatchSize = wc.Processing.DeleteBatchSize
	}
	if wc.Processing.PollIntervalSeconds > 0 {
		result.PollIntervalSeconds = wc.Processing.PollIntervalSeconds
	}
	if wc.Processing.PollTimeoutSeconds > 0 {
		result.PollTimeoutSeconds = wc.Processing.PollTimeoutSeconds
	}
	return result
}

// EffectiveProcessing returns the processing config for a workload by name,
// falling back to the global settings when the workload has no override or
// does not exist.
func (c *Config) EffectiveProcessing(workload string) ProcessingConfig {
	wc, err := c.GetWorkload(workload)
	if err != nil {
		return c.Processing
	}
	return wc.EffectiveProcessing(c.Processing)
}
