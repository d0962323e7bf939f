// Package daemon manages the Loka gateway's lifecycle and configuration,
// wiring every subsystem package into one running process.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration, loaded from ~/.loka/config.yaml.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	API       APIConfig       `yaml:"api"`
	Router    RouterConfig    `yaml:"router"`
	Providers ProvidersConfig `yaml:"providers"`
	Budget    BudgetConfig    `yaml:"budget"`
	Memory    MemoryConfig    `yaml:"memory"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// NodeConfig identifies this node on the mesh.
type NodeConfig struct {
	ID     string `yaml:"id"`
	Region string `yaml:"region"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host    string   `yaml:"host"`
	Port    int      `yaml:"port"`
	APIKeys []string `yaml:"api_keys"`
}

// RouterConfig controls routing policy.
type RouterConfig struct {
	LocalComplexityCeiling      float64 `yaml:"local_complexity_ceiling"`
	SpecialistComplexityCeiling float64 `yaml:"specialist_complexity_ceiling"`
	MaxInputTokens              int     `yaml:"max_input_tokens"`
	FallbackToLocal             bool    `yaml:"fallback_to_local"`
	PrivacyMode                 bool    `yaml:"privacy_mode"`
}

// ProvidersConfig configures every completion backend.
type ProvidersConfig struct {
	Local      LocalProviderConfig   `yaml:"local"`
	Specialist *LocalProviderConfig  `yaml:"specialist"`
	Cloud      []CloudProviderConfig `yaml:"cloud"`
}

// LocalProviderConfig points at a local inference server already running
// on this machine; provider.LocalProvider posts to its /v1/chat endpoint
// and reads newline-delimited JSON replies.
type LocalProviderConfig struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// CloudProviderConfig configures one paid vendor. APIKeyEnv names the
// environment variable the key is read from — keys are never written to
// the config file on disk.
type CloudProviderConfig struct {
	Vendor     string  `yaml:"vendor"`
	Model      string  `yaml:"model"`
	Endpoint   string  `yaml:"endpoint"`
	APIKeyEnv  string  `yaml:"api_key_env"`
	AuthHeader string  `yaml:"auth_header"`
	AuthPrefix string  `yaml:"auth_prefix"`
	CostInEUR  float64 `yaml:"cost_per_1k_input_eur"`
	CostOutEUR float64 `yaml:"cost_per_1k_output_eur"`
}

// BudgetConfig configures the spend ledger's caps.
type BudgetConfig struct {
	DailyCapEUR   float64 `yaml:"daily_cap_eur"`
	MonthlyCapEUR float64 `yaml:"monthly_cap_eur"`
	WarnAtPercent float64 `yaml:"warn_at_percent"`
}

// MemoryConfig controls conversation recall.
type MemoryConfig struct {
	Enabled bool `yaml:"enabled"`
	TopK    int  `yaml:"top_k"`
}

// SearchConfig controls web/academic search augmentation.
type SearchConfig struct {
	Enabled          bool    `yaml:"enabled"`
	WebAPIKeyEnv     string  `yaml:"web_api_key_env"`
	AcademicAPIKeyEnv string `yaml:"academic_api_key_env"`
	MaxResults       int     `yaml:"max_results"`
	ScoreThreshold   float64 `yaml:"score_threshold"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// TelemetryConfig controls observability.
type TelemetryConfig struct {
	Prometheus     bool `yaml:"prometheus"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// DefaultConfig returns a sensible default configuration: local-only,
// privacy mode off, no cloud providers configured.
func DefaultConfig() Config {
	home := lokaHome()
	return Config{
		Node: NodeConfig{Region: "auto"},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Router: RouterConfig{
			LocalComplexityCeiling:      0.35,
			SpecialistComplexityCeiling: 0.65,
			MaxInputTokens:              8000,
			FallbackToLocal:             true,
		},
		Providers: ProvidersConfig{
			Local: LocalProviderConfig{
				Name:    "local",
				Model:   "llama3.2",
				BaseURL: "http://127.0.0.1:11434",
			},
		},
		Budget: BudgetConfig{
			DailyCapEUR:   2.0,
			MonthlyCapEUR: 30.0,
			WarnAtPercent: 80,
		},
		Memory: MemoryConfig{
			Enabled: true,
			TopK:    3,
		},
		Search: SearchConfig{
			Enabled:        false,
			MaxResults:     5,
			ScoreThreshold: 5.0,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(home, "loka.log"),
			MaxSizeMB: 10,
		},
		Telemetry: TelemetryConfig{
			Prometheus:     false,
			PrometheusPort: 9090,
		},
	}
}

// LoadConfig reads config from ~/.loka/config.yaml, falling back to
// defaults when no file exists yet.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(lokaHome(), "config.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.loka/config.yaml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(lokaHome(), "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// lokaHome returns the gateway's data directory.
func lokaHome() string {
	if env := os.Getenv("LOKA_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".loka")
}

// LokaHome is exported for use by other packages.
func LokaHome() string {
	return lokaHome()
}
