// Package config handles YAML configuration parsing with environment
// overrides. Components receive explicit config structs; there is no
// process-wide settings singleton.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces environment overrides (APIDIFF_API_URL and so on).
const envPrefix = "apidiff"

// Config is the root configuration structure.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Execution ExecutionConfig `yaml:"execution"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Data      DataConfig      `yaml:"data"`
	Compare   CompareConfig   `yaml:"compare"`
	Report    ReportConfig    `yaml:"report"`
}

// APIConfig describes the decisioning endpoint and per-request behavior.
type APIConfig struct {
	URL               string            `yaml:"url" envconfig:"api_url"`
	Host              string            `yaml:"host" envconfig:"api_host"`
	Headers           map[string]string `yaml:"headers" ignored:"true"`
	Timeout           time.Duration     `yaml:"timeout" envconfig:"api_timeout"`
	MaxRetries        int               `yaml:"max_retries" envconfig:"api_max_retries"`
	RetryDelay        time.Duration     `yaml:"retry_delay" envconfig:"api_retry_delay"`
	MaxRetryDelay     time.Duration     `yaml:"max_retry_delay" envconfig:"api_max_retry_delay"`
	RetryableStatuses []int             `yaml:"retryable_statuses" ignored:"true"`
	InsecureSkipTLS   bool              `yaml:"insecure_skip_tls" envconfig:"api_insecure_skip_tls"`
}

// ExecutionConfig controls batch dispatch behavior.
type ExecutionConfig struct {
	Parallel  int `yaml:"parallel" envconfig:"parallel"`
	BatchSize int `yaml:"batch_size" envconfig:"batch_size"`
	RPS       int `yaml:"rps" envconfig:"rps"`
}

// BreakerConfig controls the circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" envconfig:"breaker_failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown" envconfig:"breaker_cooldown"`
}

// DataConfig controls synthetic request generation.
type DataConfig struct {
	TemplateDir           string `yaml:"template_dir" envconfig:"template_dir"`
	AppIDStart            int64  `yaml:"appid_start" envconfig:"appid_start"`
	AppIDIncrement        int64  `yaml:"appid_increment" envconfig:"appid_increment"`
	PrequalAppIDStart     string `yaml:"prequal_appid_start" envconfig:"prequal_appid_start"`
	PrequalAppIDIncrement int64  `yaml:"prequal_appid_increment" envconfig:"prequal_appid_increment"`
	Prequal               bool   `yaml:"prequal" envconfig:"prequal"`
	Sources               []SourceConfig `yaml:"sources" ignored:"true"`
}

// SourceConfig names a CSV or JSON data file whose rows are injected into
// templates as ${data.<name>.<field>}.
type SourceConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	Mode string `yaml:"mode"` // sequential (default) or random
}

// CompareConfig controls the structural comparator.
type CompareConfig struct {
	IgnoreKeys       []string `yaml:"ignore_keys" ignored:"true"`
	NumericTolerance float64  `yaml:"numeric_tolerance" envconfig:"numeric_tolerance"`
	CaseSensitive    *bool    `yaml:"case_sensitive" envconfig:"case_sensitive"`
}

// ReportConfig controls run summary evaluation and decision extraction.
type ReportConfig struct {
	// DecisionPath is a JSONPath into response bodies whose values are
	// tallied in the run summary (for example $.decision.status).
	DecisionPath string `yaml:"decision_path" envconfig:"decision_path"`
	// Extract maps field names to JSONPaths; each resolved value is
	// tallied per field in the run summary, alongside the decision
	// distribution.
	Extract    map[string]string `yaml:"extract" ignored:"true"`
	Thresholds *Thresholds       `yaml:"thresholds" ignored:"true"`
}

// Thresholds defines pass/fail criteria for a run.
type Thresholds struct {
	Duration   *DurationThresholds   `yaml:"req_duration"`
	Failed     *FailureThresholds    `yaml:"req_failed"`
	Comparison *ComparisonThresholds `yaml:"comparison"`
}

// DurationThresholds defines latency limits.
type DurationThresholds struct {
	Avg time.Duration `yaml:"avg"`
	P50 time.Duration `yaml:"p50"`
	P90 time.Duration `yaml:"p90"`
	P95 time.Duration `yaml:"p95"`
	P99 time.Duration `yaml:"p99"`
}

// FailureThresholds defines error rate limits, e.g. "1%".
type FailureThresholds struct {
	Rate string `yaml:"rate"`
}

// ComparisonThresholds bounds acceptable drift against the baseline.
type ComparisonThresholds struct {
	MaxCritical   int    `yaml:"max_critical"`
	MaxErrors     int    `yaml:"max_errors"`
	MaxWarnings   int    `yaml:"max_warnings"`
	MinSimilarity string `yaml:"min_similarity"` // percentage, e.g. "95%"
}

// Default returns a Config with all defaults applied.
func Default() Config {
	caseSensitive := true
	return Config{
		API: APIConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RetryDelay:        1 * time.Second,
			MaxRetryDelay:     30 * time.Second,
			RetryableStatuses: []int{429, 500, 502, 503, 504},
		},
		Execution: ExecutionConfig{
			Parallel:  10,
			BatchSize: 100,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         60 * time.Second,
		},
		Data: DataConfig{
			AppIDStart:            1000000,
			AppIDIncrement:        1,
			PrequalAppIDStart:     "10000000000000000000",
			PrequalAppIDIncrement: 1,
		},
		Compare: CompareConfig{
			IgnoreKeys:       []string{"timestamp", "created_at", "updated_at", "request_id"},
			NumericTolerance: 0.001,
			CaseSensitive:    &caseSensitive,
		},
	}
}

// Load reads the YAML file at path, layers it over the defaults, applies
// APIDIFF_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be >= 0, got %d", c.API.MaxRetries)
	}
	if c.Execution.Parallel < 1 {
		return fmt.Errorf("execution.parallel must be >= 1, got %d", c.Execution.Parallel)
	}
	if c.Execution.BatchSize < 1 {
		return fmt.Errorf("execution.batch_size must be >= 1, got %d", c.Execution.BatchSize)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be >= 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Data.AppIDIncrement < 1 {
		return fmt.Errorf("data.appid_increment must be >= 1, got %d", c.Data.AppIDIncrement)
	}
	if p := c.Data.PrequalAppIDStart; p != "" {
		if len(p) != 20 {
			return fmt.Errorf("data.prequal_appid_start must be exactly 20 digits, got %d", len(p))
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return fmt.Errorf("data.prequal_appid_start must contain only digits")
			}
		}
	}
	for _, s := range c.Data.Sources {
		if s.Name == "" || s.Path == "" {
			return fmt.Errorf("data.sources entries need both name and path")
		}
	}
	return nil
}

// CaseSensitive resolves the comparator case flag (default true).
func (c CompareConfig) IsCaseSensitive() bool {
	if c.CaseSensitive == nil {
		return true
	}
	return *c.CaseSensitive
}
