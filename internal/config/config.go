package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config holds all configuration for the scenecast server
type Config struct {
	Server    ServerConfig
	Network   NetworkConfig
	Notify    NotifyConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig

	// PublishSampleChunk publishes a small textured chunk at id 0 on boot.
	PublishSampleChunk bool
}

// ServerConfig holds data-plane listener configuration
type ServerConfig struct {
	Host         string        `validate:"required"`
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gte=0"`
	WriteTimeout time.Duration `validate:"gte=0"`
	IdleTimeout  time.Duration `validate:"gte=0"`
	Environment  string        `validate:"oneof=development staging production test"`
}

// NetworkConfig holds the address this process advertises to consumers
type NetworkConfig struct {
	// AdvertiseAddress is the host:port placed into chunk and texture URLs.
	AdvertiseAddress string `validate:"required,ipv4endpoint"`
}

// NotifyConfig holds push-notification configuration
type NotifyConfig struct {
	// Address of the remote PULL socket. Empty disables push notifications.
	Address   string        `validate:"omitempty,ipv4endpoint"`
	Timeout   time.Duration `validate:"gt=0"`
	DialRetry time.Duration `validate:"gt=0"`
}

// CacheConfig holds chunk store configuration
type CacheConfig struct {
	// MaxChunks bounds the store with LRU eviction. Zero keeps every chunk.
	MaxChunks int `validate:"gte=0"`
}

// RateLimitConfig holds per-IP rate limit configuration
type RateLimitConfig struct {
	// Requests per Window. Zero disables rate limiting.
	Requests int           `validate:"gte=0"`
	Window   time.Duration `validate:"required_with=Requests"`
}

// CORSConfig holds cross-origin configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// MetricsConfig holds metrics exposition configuration
type MetricsConfig struct {
	Enabled bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `validate:"oneof=trace debug info warn warning error fatal panic"`
	Format     string `validate:"oneof=json text"`
	OutputPath string
}

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// Load reads configuration from environment variables and .env file
// It returns a Config struct with all settings populated
func Load() (*Config, error) {
	// A missing .env is fine; variables can be set directly.
	if err := godotenv.Load(); err != nil {
		log.Debugf(".env file not found (this is OK if using environment variables): %v", err)
	}

	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Network: NetworkConfig{
			AdvertiseAddress: getEnv("ADVERTISE_ADDRESS", "127.0.0.1:8080"),
		},
		Notify: NotifyConfig{
			Address:   getEnv("NOTIFY_ADDRESS", ""),
			Timeout:   getDurationEnv("NOTIFY_TIMEOUT", 500*time.Millisecond),
			DialRetry: getDurationEnv("NOTIFY_DIAL_RETRY", 100*time.Millisecond),
		},
		Cache: CacheConfig{
			MaxChunks: getIntEnv("CACHE_MAX_CHUNKS", 0),
		},
		RateLimit: RateLimitConfig{
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 0),
			Window:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT_PATH", ""),
		},
		PublishSampleChunk: getBoolEnv("PUBLISH_SAMPLE_CHUNK", false),
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("ipv4endpoint", func(fl validator.FieldLevel) bool {
		return ValidateEndpoint(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// ListenAddress returns the host:port the data plane binds to
func (c *ServerConfig) ListenAddress() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// NotifyEnabled reports whether push notifications have a target
func (c *NotifyConfig) NotifyEnabled() bool {
	return c.Address != ""
}

// AllowsAnyOrigin reports whether the origin list contains the "*" wildcard
func (c *CORSConfig) AllowsAnyOrigin() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// AllowsOrigin reports whether a request Origin header is accepted
func (c *CORSConfig) AllowsOrigin(origin string) bool {
	if c.AllowsAnyOrigin() {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ValidateEndpoint checks that addr is an IPv4 host:port pair usable by the
// control and data planes.
func ValidateEndpoint(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Wrapf(err, "invalid endpoint %q", addr)
	}
	if ip := net.ParseIP(host); ip == nil || ip.To4() == nil || strings.Contains(host, ":") {
		return errors.Errorf("endpoint %q: host must be an IPv4 address", addr)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return errors.Errorf("endpoint %q has invalid port", addr)
	}
	return nil
}

// Helper functions for environment variable access

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Warnf("invalid boolean value for %s: %s, using default: %t", key, value, defaultValue)
		return defaultValue
	}
	return boolValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Warnf("invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return duration
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
