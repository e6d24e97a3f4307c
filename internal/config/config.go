package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "DFOLKS"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Registry  RegistryConfig  `yaml:"registry" envconfig:"REGISTRY"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/dfolks.log"`
}

// StorageConfig locates the data hive and the project root used for file:// parameters
type StorageConfig struct {
	HiveRoot    string `yaml:"hive_root" envconfig:"HIVE_ROOT"`
	ProjectRoot string `yaml:"project_root" envconfig:"PROJECT_ROOT"`
	CacheDir    string `yaml:"cache_dir" envconfig:"CACHE_DIR" default:"cache"`
}

// RegistryConfig controls component registration
type RegistryConfig struct {
	AllowOverwrite bool `yaml:"allow_overwrite" envconfig:"ALLOW_OVERWRITE" default:"false"`
}

// TelemetryConfig contains tracing and metrics export settings
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"dfolks"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	MetricExporter string `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus"`
	MetricsFile    string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL"`
	JobName        string `yaml:"job_name" envconfig:"JOB_NAME" default:"dfolks"`
}

// Load layers defaults, the YAML file at path (if any) and explicitly set
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		fileConfig, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs lets file values win over defaults but not over explicitly set env vars
func mergeConfigs(fileConfig, envConfig Config) Config {
	str := func(dst *string, fileVal, key string) {
		if _, set := os.LookupEnv(EnvPrefix + "_" + key); !set && fileVal != "" {
			*dst = fileVal
		}
	}
	flag := func(dst *bool, fileVal bool, key string) {
		if _, set := os.LookupEnv(EnvPrefix + "_" + key); !set && fileVal {
			*dst = true
		}
	}

	str(&envConfig.Logging.Level, fileConfig.Logging.Level, "LOGGING_LEVEL")
	str(&envConfig.Logging.Output, fileConfig.Logging.Output, "LOGGING_OUTPUT")
	str(&envConfig.Logging.FilePath, fileConfig.Logging.FilePath, "LOGGING_FILE_PATH")

	str(&envConfig.Storage.HiveRoot, fileConfig.Storage.HiveRoot, "STORAGE_HIVE_ROOT")
	str(&envConfig.Storage.ProjectRoot, fileConfig.Storage.ProjectRoot, "STORAGE_PROJECT_ROOT")
	str(&envConfig.Storage.CacheDir, fileConfig.Storage.CacheDir, "STORAGE_CACHE_DIR")

	flag(&envConfig.Registry.AllowOverwrite, fileConfig.Registry.AllowOverwrite, "REGISTRY_ALLOW_OVERWRITE")

	str(&envConfig.Telemetry.ServiceName, fileConfig.Telemetry.ServiceName, "TELEMETRY_SERVICE_NAME")
	str(&envConfig.Telemetry.TraceExporter, fileConfig.Telemetry.TraceExporter, "TELEMETRY_TRACE_EXPORTER")
	str(&envConfig.Telemetry.MetricExporter, fileConfig.Telemetry.MetricExporter, "TELEMETRY_METRIC_EXPORTER")
	str(&envConfig.Telemetry.MetricsFile, fileConfig.Telemetry.MetricsFile, "TELEMETRY_METRICS_FILE")
	str(&envConfig.Telemetry.PushgatewayURL, fileConfig.Telemetry.PushgatewayURL, "TELEMETRY_PUSHGATEWAY_URL")
	str(&envConfig.Telemetry.JobName, fileConfig.Telemetry.JobName, "TELEMETRY_JOB_NAME")

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/dfolks.log"
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter: %s", c.Telemetry.MetricExporter)
	}

	return nil
}

// getConfigFilePath returns the first config file found in the usual locations
func getConfigFilePath() string {
	locations := []string{
		"dfolks.yaml",
		"configs/dfolks.yaml",
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
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/dfolks.log",
		},
		Storage: StorageConfig{
			CacheDir: "cache",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "dfolks",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			JobName:        "dfolks",
		},
	}
}
