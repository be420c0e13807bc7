package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	CRM       CRMConfig
	ERP       ERPConfig
	Payload   PayloadConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string `validate:"numeric"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxBodySize     int64 `validate:"gt=0"`
	ShutdownTimeout time.Duration
	// DedupTTL enables redelivery detection by Idempotency-Key when positive
	DedupTTL time.Duration `validate:"gte=0"`
	// RateLimit caps webhook requests per sender IP per minute; 0 disables it
	RateLimit int `validate:"gte=0"`
}

// CRMConfig holds the CRM (Zoho) OAuth client and endpoint settings.
// Credentials are not required here; the accounts client reports them
// missing when it first needs them.
type CRMConfig struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	AccountsBaseURL string `validate:"omitempty,url"`
	APIBaseURL      string `validate:"omitempty,url"`
	DisableLookup   bool
	Timeout         time.Duration
}

// ERPConfig holds the ERP gateway credentials and endpoints
type ERPConfig struct {
	Username     string
	Password     string
	AuthBaseURL  string `validate:"omitempty,url"`
	OfferBaseURL string `validate:"omitempty,url"`
	SessionTTL   time.Duration
	Timeout      time.Duration
}

// PayloadConfig holds the literal header values sent to the ERP
type PayloadConfig struct {
	ClientCode  string
	ClientName  string
	WebScenario string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int `validate:"gte=0,lte=65535"`
	Password string
	DB       int `validate:"gte=0"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64 `validate:"gte=0,lte=1"`
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration
	// LogsEnabled additionally ships zap entries to the collector
	LogsEnabled bool
}

// envBindings maps config keys to the environment variables the bridge
// has always been deployed with
var envBindings = map[string]string{
	"app.name":                     "APP_NAME",
	"app.env":                      "APP_ENV",
	"app.port":                     "APP_PORT",
	"log.level":                    "LOG_LEVEL",
	"log.format":                   "LOG_FORMAT",
	"log.output":                   "LOG_OUTPUT",
	"http.read_timeout":            "HTTP_READ_TIMEOUT",
	"http.write_timeout":           "HTTP_WRITE_TIMEOUT",
	"http.idle_timeout":            "HTTP_IDLE_TIMEOUT",
	"http.max_body_size":           "HTTP_MAX_BODY_SIZE",
	"http.shutdown_timeout":        "HTTP_SHUTDOWN_TIMEOUT",
	"http.dedup_ttl":               "WEBHOOK_DEDUP_TTL",
	"http.rate_limit":              "WEBHOOK_RATE_LIMIT",
	"crm.client_id":                "ZOHO_CLIENT_ID",
	"crm.client_secret":            "ZOHO_CLIENT_SECRET",
	"crm.refresh_token":            "ZOHO_REFRESH_TOKEN",
	"crm.accounts_base_url":        "ZOHO_ACCOUNTS_BASE_URL",
	"crm.api_base_url":             "ZOHO_API_BASE_URL",
	"crm.disable_lookup":           "DISABLE_ZOHO_LOOKUP",
	"crm.timeout":                  "ZOHO_TIMEOUT",
	"erp.username":                 "AUTH_USERNAME",
	"erp.password":                 "AUTH_PASSWORD",
	"erp.base_url":                 "BASE_URL",
	"erp.auth_base_url":            "BASE_URL_AUTH",
	"erp.offer_base_url":           "BASE_URL_OFFER",
	"erp.session_ttl":              "ERP_SESSION_TTL",
	"erp.timeout":                  "ERP_TIMEOUT",
	"payload.client_code":          "ERP_CLIENT_CODE",
	"payload.client_name":          "ERP_CLIENT_NAME",
	"payload.web_scenario":         "ERP_WEB_SCENARIO",
	"redis.enabled":                "REDIS_ENABLED",
	"redis.host":                   "REDIS_HOST",
	"redis.port":                   "REDIS_PORT",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"telemetry.enabled":            "TELEMETRY_ENABLED",
	"telemetry.collector_endpoint": "TELEMETRY_COLLECTOR_ENDPOINT",
	"telemetry.sampling_ratio":     "TELEMETRY_SAMPLING_RATIO",
	"telemetry.service_name":       "TELEMETRY_SERVICE_NAME",
	"telemetry.insecure":           "TELEMETRY_INSECURE",
	"telemetry.export_interval":    "TELEMETRY_EXPORT_INTERVAL",
	"telemetry.logs_enabled":       "TELEMETRY_LOGS_ENABLED",
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables (e.g., ZOHO_CLIENT_ID, BASE_URL_OFFER)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	baseURL := v.GetString("erp.base_url")

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			DedupTTL:        v.GetDuration("http.dedup_ttl"),
			RateLimit:       v.GetInt("http.rate_limit"),
		},
		CRM: CRMConfig{
			ClientID:        v.GetString("crm.client_id"),
			ClientSecret:    v.GetString("crm.client_secret"),
			RefreshToken:    v.GetString("crm.refresh_token"),
			AccountsBaseURL: v.GetString("crm.accounts_base_url"),
			APIBaseURL:      v.GetString("crm.api_base_url"),
			DisableLookup:   IsTruthy(v.GetString("crm.disable_lookup")),
			Timeout:         v.GetDuration("crm.timeout"),
		},
		ERP: ERPConfig{
			Username:     v.GetString("erp.username"),
			Password:     v.GetString("erp.password"),
			AuthBaseURL:  firstNonEmpty(v.GetString("erp.auth_base_url"), baseURL),
			OfferBaseURL: firstNonEmpty(v.GetString("erp.offer_base_url"), baseURL),
			SessionTTL:   v.GetDuration("erp.session_ttl"),
			Timeout:      v.GetDuration("erp.timeout"),
		},
		Payload: PayloadConfig{
			ClientCode:  v.GetString("payload.client_code"),
			ClientName:  v.GetString("payload.client_name"),
			WebScenario: v.GetString("payload.web_scenario"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsTruthy interprets flag-style environment values: any non-empty value
// other than "0" enables the flag
func IsTruthy(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "0"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dealbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Handling a webhook waits on up to four sequential outbound calls
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 2 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.CRM.AccountsBaseURL == "" {
		cfg.CRM.AccountsBaseURL = "https://accounts.zoho.eu"
	}
	if cfg.CRM.APIBaseURL == "" {
		cfg.CRM.APIBaseURL = "https://www.zohoapis.eu"
	}
	if cfg.CRM.Timeout == 0 {
		cfg.CRM.Timeout = 30 * time.Second
	}
	if cfg.ERP.SessionTTL == 0 {
		cfg.ERP.SessionTTL = 25 * time.Minute
	}
	if cfg.ERP.Timeout == 0 {
		cfg.ERP.Timeout = 20 * time.Second
	}
	if cfg.Payload.ClientCode == "" {
		cfg.Payload.ClientCode = "1"
	}
	if cfg.Payload.ClientName == "" {
		cfg.Payload.ClientName = "CRM"
	}
	if cfg.Payload.WebScenario == "" {
		cfg.Payload.WebScenario = "WEB"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "dealbridge"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.ERP.SessionTTL < 0 {
		return fmt.Errorf("erp.session_ttl cannot be negative")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Telemetry.Insecure && c.Telemetry.Enabled {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
		if strings.HasPrefix(c.ERP.OfferBaseURL, "http://") || strings.HasPrefix(c.ERP.AuthBaseURL, "http://") {
			return fmt.Errorf("ERP base URLs must use https in production (credentials are sent in the query string)")
		}
	}

	return nil
}
