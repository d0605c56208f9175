package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. SCHOOLPULSE_SERVER_PORT
const EnvPrefix = "SCHOOLPULSE"

// ConfigFileEnv names the variable pointing at an optional YAML file
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Upload    UploadConfig    `yaml:"upload" envconfig:"UPLOAD"`
	Sheets    SheetsConfig    `yaml:"sheets" envconfig:"SHEETS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// StoreConfig selects the snapshot store
type StoreConfig struct {
	Driver         string `yaml:"driver" envconfig:"DRIVER"`
	Path           string `yaml:"path" envconfig:"DATA_PATH"` // envconfig falls back to the bare tag, so not "PATH"
	RestoreOnStart bool   `yaml:"restore_on_start" envconfig:"RESTORE_ON_START"`
}

// UploadConfig limits workbook uploads
type UploadConfig struct {
	MaxBytes int64   `yaml:"max_bytes" envconfig:"MAX_BYTES"`
	RPS      float64 `yaml:"rps" envconfig:"RPS"`
	Burst    int     `yaml:"burst" envconfig:"BURST"`
}

// SheetsConfig enables the Google Sheets workbook source
type SheetsConfig struct {
	Enabled         bool          `yaml:"enabled" envconfig:"ENABLED"`
	CredentialsFile string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
	WriteWait       time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT"`
}

// Load builds the configuration from defaults, then the optional YAML file named
// by SCHOOLPULSE_CONFIG (or ./config.yaml), then environment variables.
// Later sources override earlier ones field by field.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
	}

	// Unset variables leave the file and default values in place
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate checks and normalizes the configuration
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

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	if c.Upload.RPS <= 0 || c.Upload.Burst <= 0 {
		return fmt.Errorf("upload rate limit must be positive")
	}

	if c.Sheets.Enabled && c.Sheets.CredentialsFile == "" {
		return fmt.Errorf("sheets credentials file is required when sheets is enabled")
	}

	// Logs are always JSON
	c.Logging.Format = "json"

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/schoolpulse.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	for _, location := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:8080"},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/schoolpulse.log",
		},
		Store: StoreConfig{
			Driver:         "file",
			Path:           "data",
			RestoreOnStart: true,
		},
		Upload: UploadConfig{
			MaxBytes: 20 << 20, // 20MB
			RPS:      1,
			Burst:    5,
		},
		Sheets: SheetsConfig{
			Timeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "schoolpulse",
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
		},
	}
}
