package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8080",
			Environment: "test",
		},
		Network: NetworkConfig{AdvertiseAddress: "10.0.0.9:8080"},
		Notify: NotifyConfig{
			Address:   "10.0.0.5:5555",
			Timeout:   500 * time.Millisecond,
			DialRetry: 100 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{Window: time.Minute},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("ADVERTISE_ADDRESS", "192.168.1.75:8080")
	t.Setenv("NOTIFY_ADDRESS", "192.168.1.75:5555")
	t.Setenv("CACHE_MAX_CHUNKS", "16")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	config, err := Load()
	require.NoError(t, err)

	// Test default values
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", config.Server.ListenAddress())
	assert.Equal(t, 500*time.Millisecond, config.Notify.Timeout)
	assert.True(t, config.Metrics.Enabled)
	assert.False(t, config.PublishSampleChunk)

	// Overridden values
	assert.Equal(t, "192.168.1.75:8080", config.Network.AdvertiseAddress)
	assert.True(t, config.Notify.NotifyEnabled())
	assert.Equal(t, 16, config.Cache.MaxChunks)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, config.CORS.AllowedOrigins)
}

func TestLoadInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("NOTIFY_TIMEOUT", "soon")
	t.Setenv("CACHE_MAX_CHUNKS", "many")
	t.Setenv("METRICS_ENABLED", "maybe")

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, config.Notify.Timeout)
	assert.Equal(t, 0, config.Cache.MaxChunks)
	assert.True(t, config.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "notify disabled", mutate: func(c *Config) { c.Notify.Address = "" }},
		{name: "hostname advertise address", mutate: func(c *Config) { c.Network.AdvertiseAddress = "localhost:8080" }, wantErr: true},
		{name: "missing advertise address", mutate: func(c *Config) { c.Network.AdvertiseAddress = "" }, wantErr: true},
		{name: "IPv6 notify address", mutate: func(c *Config) { c.Notify.Address = "[::1]:5555" }, wantErr: true},
		{name: "notify address without port", mutate: func(c *Config) { c.Notify.Address = "10.0.0.5" }, wantErr: true},
		{name: "zero notify timeout", mutate: func(c *Config) { c.Notify.Timeout = 0 }, wantErr: true},
		{name: "negative cache size", mutate: func(c *Config) { c.Cache.MaxChunks = -1 }, wantErr: true},
		{name: "unknown log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "non-numeric port", mutate: func(c *Config) { c.Server.Port = "http" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	valid := []string{"10.0.0.5:5555", "127.0.0.1:1", "0.0.0.0:65535"}
	for _, addr := range valid {
		assert.NoError(t, ValidateEndpoint(addr), addr)
	}

	invalid := []string{"", "10.0.0.5", ":5555", "10.0.0.5:0", "10.0.0.5:70000", "[fe80::1]:5555", "[::ffff:10.0.0.5]:5555", "10.0.0.5:http", "unity.local:8080", "localhost:5555", "10.0.0:5555"}
	for _, addr := range invalid {
		assert.Error(t, ValidateEndpoint(addr), addr)
	}
}

func TestCORSConfig(t *testing.T) {
	c := CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}}
	assert.True(t, c.AllowsOrigin("http://localhost:5173"))
	assert.False(t, c.AllowsOrigin("http://evil.test"))

	c.AllowedOrigins = append(c.AllowedOrigins, "*")
	assert.True(t, c.AllowsAnyOrigin())
	assert.True(t, c.AllowsOrigin("http://evil.test"))
}
