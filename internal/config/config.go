package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apierrors "macpulse/internal/errors"
	"macpulse/internal/transmission"
)

// EnvPrefix namespaces every environment variable, e.g. MACPULSE_SERVER_PORT
const EnvPrefix = "MACPULSE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Estimator EstimatorConfig `yaml:"estimator" envconfig:"ESTIMATOR"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// MaxBodyBytes caps estimation request bodies
	MaxBodyBytes int64 `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration. Relative directories
// resolve against BaseDir.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// EstimatorConfig carries the transmission estimator tunables
type EstimatorConfig struct {
	Ordering        []string      `yaml:"ordering" envconfig:"ORDERING"`
	Horizon         int           `yaml:"horizon" envconfig:"HORIZON"`
	CandidateLags   []int         `yaml:"candidate_lags" envconfig:"CANDIDATE_LAGS"`
	RegimeThreshold float64       `yaml:"regime_threshold" envconfig:"REGIME_THRESHOLD"`
	MinRegimeObs    int           `yaml:"min_regime_obs" envconfig:"MIN_REGIME_OBS"`
	MaxPermutations int           `yaml:"max_permutations" envconfig:"MAX_PERMUTATIONS"`
	CausalityLags   int           `yaml:"causality_lags" envconfig:"CAUSALITY_LAGS"`
	Significance    float64       `yaml:"significance" envconfig:"SIGNIFICANCE"`
	PValueMethod    string        `yaml:"p_value_method" envconfig:"P_VALUE_METHOD"`
	RunRobustness   bool          `yaml:"run_robustness" envconfig:"RUN_ROBUSTNESS"`
	RunCausality    bool          `yaml:"run_causality" envconfig:"RUN_CAUSALITY"`
	MaxWorkers      int           `yaml:"max_workers" envconfig:"MAX_WORKERS"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// TelemetryConfig controls OpenTelemetry setup
type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	ServiceVersion string  `yaml:"service_version" envconfig:"SERVICE_VERSION"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Params converts the estimator section into validated estimator parameters
func (e EstimatorConfig) Params() (transmission.Params, error) {
	p := transmission.DefaultParams()

	if len(e.Ordering) > 0 {
		ordering := make([]transmission.Pillar, len(e.Ordering))
		for i, name := range e.Ordering {
			pillar, err := transmission.ParsePillar(strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				return p, fmt.Errorf("estimator ordering: %w", err)
			}
			ordering[i] = pillar
		}
		p.Ordering = ordering
	}
	if len(e.CandidateLags) > 0 {
		p.CandidateLags = append([]int(nil), e.CandidateLags...)
	}
	p.Horizon = e.Horizon
	p.RegimeThreshold = e.RegimeThreshold
	p.MinRegimeObs = e.MinRegimeObs
	p.MaxPermutations = e.MaxPermutations
	p.CausalityLags = e.CausalityLags
	p.Significance = e.Significance
	p.PValueMethod = transmission.PValueMethod(e.PValueMethod)
	p.RunRobustness = e.RunRobustness
	p.RunCausality = e.RunCausality
	p.MaxWorkers = e.MaxWorkers

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("estimator parameters: %w", err)
	}
	return p, nil
}

// Load builds the configuration from defaults, an optional YAML file and
// MACPULSE_* environment variables, in increasing order of precedence.
// An empty path searches the usual config locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apierrors.NewConfigError("failed to load config from file", err).WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apierrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, apierrors.NewConfigError("config validation failed", err)
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max body bytes must be positive")
	}
	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/macpulse.log"
	}

	if _, err := c.Estimator.Params(); err != nil {
		return err
	}
	if c.Estimator.Timeout <= 0 {
		return fmt.Errorf("estimator timeout must be positive")
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	params := transmission.DefaultParams()
	ordering := make([]string, len(params.Ordering))
	for i, p := range params.Ordering {
		ordering[i] = string(p)
	}

	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    8 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/macpulse.log",
		},
		Paths: PathsConfig{
			BaseDir:    ".",
			DataDir:    "data",
			ReportsDir: "data/reports",
			LogsDir:    "logs",
		},
		Estimator: EstimatorConfig{
			Ordering:        ordering,
			Horizon:         params.Horizon,
			CandidateLags:   params.CandidateLags,
			RegimeThreshold: params.RegimeThreshold,
			MinRegimeObs:    params.MinRegimeObs,
			MaxPermutations: params.MaxPermutations,
			CausalityLags:   params.CausalityLags,
			Significance:    params.Significance,
			PValueMethod:    string(params.PValueMethod),
			RunRobustness:   params.RunRobustness,
			RunCausality:    params.RunCausality,
			MaxWorkers:      params.MaxWorkers,
			Timeout:         2 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Enabled:        true,
			ServiceName:    "macpulse",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
