package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // print timezone must resolve without system zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Redis     RedisConfig
	Print     PrintConfig
	Chrome    ChromeConfig
	Spool     SpoolConfig
	S3        S3Config
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development testing staging production"`
	Port string `validate:"required,numeric"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// RedisConfig holds the dialog session store connection. When disabled,
// sessions live in process memory.
type RedisConfig struct {
	Enabled    bool
	Host       string
	Port       int `validate:"min=1,max=65535"`
	Password   string
	DB         int `validate:"min=0"`
	KeyPrefix  string
	SessionTTL time.Duration
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PrintConfig holds document layout and print timing settings
type PrintConfig struct {
	GracePeriod     time.Duration `validate:"min=0"`
	FallbackTimeout time.Duration `validate:"gt=0"`
	CloseDelay      time.Duration `validate:"min=0"`
	PaperSize       string        `validate:"oneof=A4 A5 LETTER"`
	Orientation     string        `validate:"oneof=PORTRAIT LANDSCAPE"`
	MarginTop       int           `validate:"min=0,max=100"`
	MarginRight     int           `validate:"min=0,max=100"`
	MarginBottom    int           `validate:"min=0,max=100"`
	MarginLeft      int           `validate:"min=0,max=100"`
	Scale           float64       `validate:"gt=0,lte=2"`
	TemplateDir     string        // optional directory overriding embedded layouts
	SystemName      string
	Timezone        string
	// Barcode geometry in print pixels
	BarcodeModuleWidth int `validate:"min=1"`
	BarcodeHeight      int `validate:"min=1"`
	BarcodeMargin      int `validate:"min=0"`
	BarcodeSupersample int `validate:"min=1,max=8"`
}

// ChromeConfig holds the headless browser settings
type ChromeConfig struct {
	RemoteURL   string
	NoSandbox   bool
	Timeout     time.Duration
	MaxContexts int64 `validate:"min=1"`
}

// SpoolConfig selects where printed output is handed off
type SpoolConfig struct {
	Backend         string `validate:"oneof=none filesystem s3"`
	BasePath        string
	BaseURL         string
	Retention       time.Duration
	CleanupInterval time.Duration
}

// S3Config holds S3-compatible object storage settings for the s3 spool backend
type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	Prefix            string
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled               bool    // Whether to enable tracing
	CollectorEndpoint     string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio         float64 `validate:"min=0,max=1"`
	ServiceName           string
	Insecure              bool // Use insecure (non-TLS) connection (development only)
	MetricsEnabled        bool
	MetricsExportInterval time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CWMS_ prefix (e.g., CWMS_PRINT_FALLBACK_TIMEOUT)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}
	return load(v)
}

// LoadFile loads configuration from an explicit file path, still honouring
// environment overrides
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CWMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Redis: RedisConfig{
			Enabled:    v.GetBool("redis.enabled"),
			Host:       v.GetString("redis.host"),
			Port:       v.GetInt("redis.port"),
			Password:   v.GetString("redis.password"),
			DB:         v.GetInt("redis.db"),
			KeyPrefix:  v.GetString("redis.key_prefix"),
			SessionTTL: v.GetDuration("redis.session_ttl"),
		},
		Print: PrintConfig{
			GracePeriod:        v.GetDuration("print.grace_period"),
			FallbackTimeout:    v.GetDuration("print.fallback_timeout"),
			CloseDelay:         v.GetDuration("print.close_delay"),
			PaperSize:          strings.ToUpper(v.GetString("print.paper_size")),
			Orientation:        strings.ToUpper(v.GetString("print.orientation")),
			MarginTop:          v.GetInt("print.margin_top"),
			MarginRight:        v.GetInt("print.margin_right"),
			MarginBottom:       v.GetInt("print.margin_bottom"),
			MarginLeft:         v.GetInt("print.margin_left"),
			Scale:              v.GetFloat64("print.scale"),
			TemplateDir:        v.GetString("print.template_dir"),
			SystemName:         v.GetString("print.system_name"),
			Timezone:           v.GetString("print.timezone"),
			BarcodeModuleWidth: v.GetInt("print.barcode_module_width"),
			BarcodeHeight:      v.GetInt("print.barcode_height"),
			BarcodeMargin:      v.GetInt("print.barcode_margin"),
			BarcodeSupersample: v.GetInt("print.barcode_supersample"),
		},
		Chrome: ChromeConfig{
			RemoteURL:   v.GetString("chrome.remote_url"),
			NoSandbox:   v.GetBool("chrome.no_sandbox"),
			Timeout:     v.GetDuration("chrome.timeout"),
			MaxContexts: v.GetInt64("chrome.max_contexts"),
		},
		Spool: SpoolConfig{
			Backend:         strings.ToLower(v.GetString("spool.backend")),
			BasePath:        v.GetString("spool.base_path"),
			BaseURL:         v.GetString("spool.base_url"),
			Retention:       v.GetDuration("spool.retention"),
			CleanupInterval: v.GetDuration("spool.cleanup_interval"),
		},
		S3: S3Config{
			Endpoint:          v.GetString("s3.endpoint"),
			Region:            v.GetString("s3.region"),
			Bucket:            v.GetString("s3.bucket"),
			AccessKey:         v.GetString("s3.access_key"),
			SecretKey:         v.GetString("s3.secret_key"),
			UseSSL:            v.GetBool("s3.use_ssl"),
			UsePathStyle:      v.GetBool("s3.use_path_style"),
			Prefix:            v.GetString("s3.prefix"),
			PresignExpiration: v.GetDuration("s3.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:               v.GetBool("telemetry.enabled"),
			CollectorEndpoint:     v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:         v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:           v.GetString("telemetry.service_name"),
			Insecure:              v.GetBool("telemetry.insecure"),
			MetricsEnabled:        v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "loadorder"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// printing waits up to the fallback timeout, so writes need headroom
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Accept", "X-Request-ID"}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "loadorder:dialog:"
	}
	if cfg.Redis.SessionTTL == 0 {
		cfg.Redis.SessionTTL = 2 * time.Hour
	}

	if cfg.Print.GracePeriod == 0 {
		cfg.Print.GracePeriod = 500 * time.Millisecond
	}
	if cfg.Print.FallbackTimeout == 0 {
		cfg.Print.FallbackTimeout = 4 * time.Second
	}
	if cfg.Print.CloseDelay == 0 {
		cfg.Print.CloseDelay = time.Second
	}
	if cfg.Print.PaperSize == "" {
		cfg.Print.PaperSize = "A4"
	}
	if cfg.Print.Orientation == "" {
		cfg.Print.Orientation = "PORTRAIT"
	}
	// 2cm top/bottom, 1.5cm sides
	if cfg.Print.MarginTop == 0 && cfg.Print.MarginRight == 0 && cfg.Print.MarginBottom == 0 && cfg.Print.MarginLeft == 0 {
		cfg.Print.MarginTop, cfg.Print.MarginRight, cfg.Print.MarginBottom, cfg.Print.MarginLeft = 20, 15, 20, 15
	}
	if cfg.Print.Scale == 0 {
		cfg.Print.Scale = 1.0
	}
	if cfg.Print.Timezone == "" {
		cfg.Print.Timezone = "America/Sao_Paulo"
	}
	if cfg.Print.BarcodeModuleWidth == 0 {
		cfg.Print.BarcodeModuleWidth = 1
	}
	if cfg.Print.BarcodeHeight == 0 {
		cfg.Print.BarcodeHeight = 25
	}
	if cfg.Print.BarcodeMargin == 0 {
		cfg.Print.BarcodeMargin = 5
	}
	if cfg.Print.BarcodeSupersample == 0 {
		cfg.Print.BarcodeSupersample = 4
	}

	if cfg.Chrome.Timeout == 0 {
		cfg.Chrome.Timeout = 30 * time.Second
	}
	if cfg.Chrome.MaxContexts == 0 {
		cfg.Chrome.MaxContexts = 4
	}

	if cfg.Spool.Backend == "" {
		cfg.Spool.Backend = "none"
	}
	if cfg.Spool.BasePath == "" {
		cfg.Spool.BasePath = "/var/spool/loadorder"
	}
	if cfg.Spool.BaseURL == "" {
		cfg.Spool.BaseURL = "/spool"
	}
	if cfg.Spool.Retention == 0 {
		cfg.Spool.Retention = 72 * time.Hour
	}
	if cfg.Spool.CleanupInterval == 0 {
		cfg.Spool.CleanupInterval = time.Hour
	}

	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.Prefix == "" {
		cfg.S3.Prefix = "spool/"
	}
	if cfg.S3.PresignExpiration == 0 {
		cfg.S3.PresignExpiration = 15 * time.Minute
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
}

var validate = validator.New()

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Print.FallbackTimeout <= c.Print.GracePeriod {
		return fmt.Errorf("print.fallback_timeout (%s) must exceed print.grace_period (%s)",
			c.Print.FallbackTimeout, c.Print.GracePeriod)
	}
	if _, err := time.LoadLocation(c.Print.Timezone); err != nil {
		return fmt.Errorf("print.timezone: %w", err)
	}

	if c.Spool.Backend == "s3" {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when spool.backend is s3")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return fmt.Errorf("s3.access_key and s3.secret_key are required when spool.backend is s3")
		}
	}

	if c.App.Env == "production" {
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Redis.Enabled && c.Redis.Password == "" {
			return fmt.Errorf("redis.password is required in production")
		}
	}
	return nil
}

// Location returns the configured print timezone
func (p *PrintConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the app runs in production
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}
