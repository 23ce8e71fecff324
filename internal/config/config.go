// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upload    UploadConfig
	TTS       TTSConfig
	Generate  GenerateConfig
	Export    ExportConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// BodyField is the column whose text is spoken and whose presence
	// retains a row (default: text)
	BodyField string `env:"UPLOAD_BODY_FIELD" default:"text"`

	// AuthorField is the column used to derive record identifiers (default: author)
	AuthorField string `env:"UPLOAD_AUTHOR_FIELD" default:"author"`

	// NumericFields are columns coerced to integers (comma-separated)
	NumericFields []string `env:"UPLOAD_NUMERIC_FIELDS" default:"likes,shares"`

	// FlagFields are columns coerced to booleans (comma-separated)
	FlagFields []string `env:"UPLOAD_FLAG_FIELDS" default:"verified"`
}

// TTSConfig holds hosted speech API settings.
type TTSConfig struct {
	// APIKey authenticates against the hosted speech API.
	// Required before any generation can start, but not at boot so the
	// decode/preview surface works without one.
	APIKey string `env:"TTS_API_KEY" envAlt:"GEMINI_API_KEY"`

	// Model is the speech model name (default: gemini-2.5-flash-preview-tts)
	Model string `env:"TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`

	// Voice is the prebuilt voice name (default: Kore)
	Voice string `env:"TTS_VOICE" default:"Kore"`

	// BaseURL overrides the API root, mainly for testing against a stub
	BaseURL string `env:"TTS_BASE_URL"`
}

// GenerateConfig holds audio generation pipeline settings.
type GenerateConfig struct {
	// MaxConcurrent is the maximum number of parallel generation jobs (default: 2)
	MaxConcurrent int `env:"GENERATE_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for a job slot (default: 30s)
	MaxWaitTime time.Duration `env:"GENERATE_MAX_WAIT_TIME" default:"30s"`

	// CallDelay is the fixed pause between consecutive speech API calls
	// within a job (default: 3s)
	CallDelay time.Duration `env:"GENERATE_CALL_DELAY" default:"3s"`

	// Timeout is the maximum duration for a whole generation job (default: 30m)
	Timeout time.Duration `env:"GENERATE_TIMEOUT" default:"30m"`
}

// ExportConfig holds audio storage settings.
type ExportConfig struct {
	// AudioDir is the directory generated WAV clips are stored under (default: audio)
	AudioDir string `env:"EXPORT_AUDIO_DIR" default:"audio"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key auth on API routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig holds batch retention settings.
type RetentionConfig struct {
	// BatchTTL is how long decoded batches and their audio are kept (default: 720h)
	BatchTTL time.Duration `env:"RETENTION_BATCH_TTL" default:"720h"`

	// CheckInterval is how often the retention sweeper runs (default: 24h)
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
