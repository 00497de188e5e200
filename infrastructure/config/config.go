package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`
	LogLevel      string `yaml:"log_level"`

	// Storage
	DatabasePath string `yaml:"database_path"`

	// Analysis provider
	ProviderBaseURL         string        `yaml:"provider_base_url"`
	ProviderTimeout         time.Duration `yaml:"provider_timeout"`
	BreakerMinRequests      int           `yaml:"provider_breaker_min_requests"`
	BreakerFailureThreshold float64       `yaml:"provider_breaker_failure_threshold"`
	BreakerInterval         time.Duration `yaml:"provider_breaker_interval"`
	BreakerOpenTimeout      time.Duration `yaml:"provider_breaker_open_timeout"`
	AnalysisRateLimit       int           `yaml:"analysis_rate_limit"`

	// Domain rules
	WeekStart       string `yaml:"week_start"`
	ReanalyzeOnEdit bool   `yaml:"reanalyze_on_edit"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region"`
	SessionLock   string `yaml:"session_lock"`
	LockTableName string `yaml:"lock_table_name"`
	EnableEvents  bool   `yaml:"enable_events"`
	EventBusName  string `yaml:"event_bus_name"`

	// Lambda configuration
	IsLambda bool `yaml:"-"`

	// Observability and HTTP
	EnableMetrics      bool     `yaml:"enable_metrics"`
	EnableTracing      bool     `yaml:"enable_tracing"`
	OTLPEndpoint       string   `yaml:"otlp_endpoint"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// Session lock backends
const (
	SessionLockNone     = "none"
	SessionLockDynamoDB = "dynamodb"
)

// Defaults returns the configuration used before any file or variable
func Defaults() *Config {
	return &Config{
		ServerAddress:           ":8080",
		Environment:             "development",
		LogLevel:                "info",
		DatabasePath:            "diary.db",
		ProviderBaseURL:         "http://localhost:8000",
		ProviderTimeout:         5 * time.Second,
		BreakerMinRequests:      5,
		BreakerFailureThreshold: 0.6,
		BreakerInterval:         30 * time.Second,
		BreakerOpenTimeout:      30 * time.Second,
		AnalysisRateLimit:       30,
		WeekStart:               "sunday",
		JWTIssuer:               "diary-backend",
		AWSRegion:               "us-west-2",
		SessionLock:             SessionLockNone,
		LockTableName:           "diary-locks",
		EventBusName:            "diary-events",
		EnableMetrics:           true,
		OTLPEndpoint:            "localhost:4317",
		CORSAllowedOrigins:      []string{"*"},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by CONFIG_FILE if set, then environment variables
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)

	c.ProviderBaseURL = getEnv("PROVIDER_BASE_URL", c.ProviderBaseURL)
	c.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.BreakerMinRequests = getEnvInt("PROVIDER_BREAKER_MIN_REQUESTS", c.BreakerMinRequests)
	c.BreakerFailureThreshold = getEnvFloat("PROVIDER_BREAKER_FAILURE_THRESHOLD", c.BreakerFailureThreshold)
	c.BreakerInterval = getEnvDuration("PROVIDER_BREAKER_INTERVAL", c.BreakerInterval)
	c.BreakerOpenTimeout = getEnvDuration("PROVIDER_BREAKER_OPEN_TIMEOUT", c.BreakerOpenTimeout)
	c.AnalysisRateLimit = getEnvInt("ANALYSIS_RATE_LIMIT", c.AnalysisRateLimit)

	c.WeekStart = getEnv("WEEK_START", c.WeekStart)
	c.ReanalyzeOnEdit = getEnvBool("REANALYZE_ON_EDIT", c.ReanalyzeOnEdit)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.SessionLock = getEnv("SESSION_LOCK", c.SessionLock)
	c.LockTableName = getEnv("LOCK_TABLE_NAME", c.LockTableName)
	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.IsLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORSAllowedOrigins = splitList(origins)
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.ProviderBaseURL == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.BreakerFailureThreshold <= 0 || c.BreakerFailureThreshold > 1 {
		return fmt.Errorf("PROVIDER_BREAKER_FAILURE_THRESHOLD must be in (0, 1]")
	}
	if c.AnalysisRateLimit < 0 {
		return fmt.Errorf("ANALYSIS_RATE_LIMIT must not be negative")
	}
	switch strings.ToLower(c.WeekStart) {
	case "sunday", "monday":
	default:
		return fmt.Errorf("WEEK_START must be sunday or monday, got %q", c.WeekStart)
	}
	switch c.SessionLock {
	case SessionLockNone:
	case SessionLockDynamoDB:
		if c.LockTableName == "" {
			return fmt.Errorf("LOCK_TABLE_NAME is required when SESSION_LOCK=dynamodb")
		}
	default:
		return fmt.Errorf("SESSION_LOCK must be none or dynamodb, got %q", c.SessionLock)
	}
	if c.EnableEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when ENABLE_EVENTS is set")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds ("5")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
