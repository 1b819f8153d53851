package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the colorsweep pipeline configuration.
type Config struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	S3            S3Config            `yaml:"s3"`
	LocalStore    LocalStoreConfig    `yaml:"local_data_store"`
	Trial         TrialConfig         `yaml:"trial"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// ElasticsearchConfig holds document-store connection settings.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	CACert    string   `yaml:"ca_cert"`
	AggSize   int      `yaml:"agg_size"`
}

// S3Config holds object-store connection settings.
type S3Config struct {
	Region          string `yaml:"region"`
	EndpointURL     string `yaml:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
}

// LocalStoreConfig holds the local image cache location.
type LocalStoreConfig struct {
	Path string `yaml:"path"`
}

// TrialConfig holds query-runner settings.
type TrialConfig struct {
	RunnerImage     string `yaml:"runner_image"`
	VectorizerImage string `yaml:"vectorizer_image"`
	Endpoint        string `yaml:"endpoint"`
	MaxImages       int    `yaml:"max_images"`
	QueryTimeoutSec int    `yaml:"query_timeout_sec"`
	Attempts        int    `yaml:"attempts"`
	TermsDir        string `yaml:"terms_dir"`
}

// ServerConfig holds web-service settings.
type ServerConfig struct {
	Port            int               `yaml:"port"`
	Users           map[string]string `yaml:"users"`
	ReadTimeoutSec  int               `yaml:"read_timeout_sec"`
	WriteTimeoutSec int               `yaml:"write_timeout_sec"`
	ShutdownSec     int               `yaml:"shutdown_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.LocalStore.Path == "" {
		c.LocalStore.Path = filepath.Join("data", "store")
	}
	if c.Trial.MaxImages <= 0 {
		c.Trial.MaxImages = 100
	}
	if c.Trial.QueryTimeoutSec <= 0 {
		c.Trial.QueryTimeoutSec = 600
	}
	if c.Trial.Attempts <= 0 {
		c.Trial.Attempts = 3
	}
	if c.Trial.VectorizerImage == "" {
		c.Trial.VectorizerImage = "colorsweep/vectorizer:latest"
	}
	if c.Trial.TermsDir == "" {
		c.Trial.TermsDir = filepath.Join("config", "experiments")
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 10
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 10
	}
	if c.Server.ShutdownSec <= 0 {
		c.Server.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses is required")
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if c.S3.Region == "" && c.S3.EndpointURL == "" {
		return fmt.Errorf("one of s3.region or s3.endpoint_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
