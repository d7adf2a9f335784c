package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "WQDASH"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"DASHBOARD"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/wqdash.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	ExecutableDir string `yaml:"executable_dir" envconfig:"EXECUTABLE_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// DataConfig names the artifacts produced by the offline cleaning step.
// Relative names are resolved against the data directory.
type DataConfig struct {
	RecordsFile    string        `yaml:"records_file" envconfig:"RECORDS_FILE" default:"cleaned_water_quality_data.csv"`
	StatisticsFile string        `yaml:"statistics_file" envconfig:"STATISTICS_FILE" default:"water_quality_statistics.csv"`
	SummaryFile    string        `yaml:"summary_file" envconfig:"SUMMARY_FILE" default:"analysis_summary.txt"`
	AssetsDir      string        `yaml:"assets_dir" envconfig:"ASSETS_DIR" default:"visualizations"`
	LoadTimeout    time.Duration `yaml:"load_timeout" envconfig:"LOAD_TIMEOUT" default:"30s"`
}

// DashboardConfig controls the interactive dashboard
type DashboardConfig struct {
	DefaultRange   string        `yaml:"default_range" envconfig:"DEFAULT_RANGE" default:"all"`
	RenderDebounce time.Duration `yaml:"render_debounce" envconfig:"RENDER_DEBOUNCE" default:"150ms"`
	ChartsDir      string        `yaml:"charts_dir" envconfig:"CHARTS_DIR" default:"charts"`
	ChartWidth     int           `yaml:"chart_width" envconfig:"CHART_WIDTH" default:"1024"`
	ChartHeight    int           `yaml:"chart_height" envconfig:"CHART_HEIGHT" default:"480"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1.0"`
}

// SchedulerConfig controls periodic artifact refresh. An empty spec
// disables the scheduler.
type SchedulerConfig struct {
	ReloadSpec string `yaml:"reload_spec" envconfig:"RELOAD_SPEC"`
}

// Load loads configuration from environment variables and config file.
// Precedence is environment, then file, then built-in defaults.
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg, *Default())
	}

	// Resolve relative paths
	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file on top of the defaults
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeConfigs merges file config with env config. A field keeps its env
// value unless that value is still the built-in default, in which case the
// file value wins.
func mergeConfigs(fileConfig, envConfig, defaults Config) Config {
	mergeValue(
		reflect.ValueOf(&envConfig).Elem(),
		reflect.ValueOf(fileConfig),
		reflect.ValueOf(defaults),
	)
	return envConfig
}

func mergeValue(dst, file, def reflect.Value) {
	if dst.Kind() == reflect.Struct {
		for i := 0; i < dst.NumField(); i++ {
			mergeValue(dst.Field(i), file.Field(i), def.Field(i))
		}
		return
	}
	if reflect.DeepEqual(dst.Interface(), def.Interface()) {
		dst.Set(file)
	}
}

// resolvePaths sets up the executable directory and makes relative paths absolute
func (c *Config) resolvePaths() error {
	if c.Paths.ExecutableDir != "" {
		return nil
	}
	dir, err := ExecutableDir()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}
	c.Paths.ExecutableDir = dir
	return nil
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	return c.resolve(c.Paths.DataDir)
}

// GetLogsDir returns the resolved logs directory path
func (c *Config) GetLogsDir() string {
	return c.resolve(c.Paths.LogsDir)
}

// RecordsPath returns the absolute path of the records artifact
func (c *Config) RecordsPath() string {
	return c.dataFile(c.Data.RecordsFile)
}

// StatisticsPath returns the absolute path of the statistics artifact
func (c *Config) StatisticsPath() string {
	return c.dataFile(c.Data.StatisticsFile)
}

// SummaryPath returns the absolute path of the narrative summary artifact
func (c *Config) SummaryPath() string {
	return c.dataFile(c.Data.SummaryFile)
}

// AssetsPath returns the directory holding pre-rendered visual assets
func (c *Config) AssetsPath() string {
	return c.dataFile(c.Data.AssetsDir)
}

// ChartsPath returns the directory PNG charts are written to
func (c *Config) ChartsPath() string {
	return c.dataFile(c.Dashboard.ChartsDir)
}

func (c *Config) dataFile(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.GetDataDir(), name)
}

func (c *Config) resolve(dir string) string {
	if filepath.IsAbs(dir) || c.Paths.ExecutableDir == "" {
		return dir
	}
	return filepath.Join(c.Paths.ExecutableDir, dir)
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

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Data.RecordsFile == "" {
		return fmt.Errorf("records file must be specified")
	}

	switch c.Dashboard.DefaultRange {
	case "all", "1y", "2y", "3y":
	default:
		return fmt.Errorf("invalid default range: %q", c.Dashboard.DefaultRange)
	}

	if c.Dashboard.RenderDebounce < 0 {
		return fmt.Errorf("render debounce must not be negative")
	}

	if c.Dashboard.ChartWidth <= 0 || c.Dashboard.ChartHeight <= 0 {
		return fmt.Errorf("chart dimensions must be positive")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be between 0 and 1")
	}

	// Always JSON
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/wqdash.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG"); explicit != "" {
		return explicit
	}

	// Check for config file in common locations
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

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: DefaultHTTPTimeout,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/wqdash.log",
		},
		Paths: PathsConfig{
			DataDir: DefaultDataDir,
			LogsDir: DefaultLogsDir,
		},
		Data: DataConfig{
			RecordsFile:    "cleaned_water_quality_data.csv",
			StatisticsFile: "water_quality_statistics.csv",
			SummaryFile:    "analysis_summary.txt",
			AssetsDir:      "visualizations",
			LoadTimeout:    DefaultHTTPTimeout,
		},
		Dashboard: DashboardConfig{
			DefaultRange:   "all",
			RenderDebounce: 150 * time.Millisecond,
			ChartsDir:      "charts",
			ChartWidth:     1024,
			ChartHeight:    480,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
