// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database path, the SMTP relay, the
// shop API credentials, the reward pool file locations, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SMTPConfig defines the outbound mail relay settings. The gateway speaks
// implicit TLS on the configured port and authenticates with PLAIN.
type SMTPConfig struct {
	Sender         string        // SMTP_SENDER (also used as the From address)
	Password       string        // SMTP_PASSWORD (app password)
	Host           string        // SMTP_HOST
	Port           int           // SMTP_PORT (465 for implicit TLS)
	ConnectTimeout time.Duration // SMTP_CONNECT_TIMEOUT
	SendTimeout    time.Duration // SMTP_SEND_TIMEOUT (overall budget per send)
}

// ShopConfig defines the external shop API settings.
type ShopConfig struct {
	URL        string        // SHOP_URL (e.g. "https://example.myshopify.com")
	Token      string        // SHOP_TOKEN (admin access token)
	APIVersion string        // SHOP_API_VERSION (e.g. "2024-01")
	Timeout    time.Duration // SHOP_TIMEOUT
}

// RewardConfig locates the reward pool file and its claimed-codes sidecar.
type RewardConfig struct {
	CodesPath   string // WELCOME_CODES_PATH (LF-separated unused codes)
	ClaimedPath string // CLAIMED_CODES_PATH (JSON {chat_id: {code, date}})
}

// SecurityConfig defines HTTP security header settings.
type SecurityConfig struct {
	EnableHSTS bool          // SECURITY_ENABLE_HSTS (only behind end-to-end HTTPS)
	HSTSMaxAge time.Duration // SECURITY_HSTS_MAX_AGE
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath     string        // SQLite path
	APISecret  string        // shared bearer secret for privileged endpoints
	CodeTTL    time.Duration // verification code lifetime
	MaxComment int           // max rune length of a rating comment

	// External collaborators
	SMTP   SMTPConfig
	Shop   ShopConfig
	Reward RewardConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "5000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:     getenv("DB_PATH", "lafoncedalle.db"),
		APISecret:  getenv("API_SECRET", ""),
		CodeTTL:    getdur("CODE_TTL", 10*time.Minute),
		MaxComment: getint("MAX_COMMENT_LENGTH", 500),

		SMTP: SMTPConfig{
			Sender:         getenv("SMTP_SENDER", ""),
			Password:       getenv("SMTP_PASSWORD", ""),
			Host:           getenv("SMTP_HOST", "smtp.gmail.com"),
			Port:           getint("SMTP_PORT", 465),
			ConnectTimeout: getdur("SMTP_CONNECT_TIMEOUT", 10*time.Second),
			SendTimeout:    getdur("SMTP_SEND_TIMEOUT", 30*time.Second),
		},

		Shop: ShopConfig{
			URL:        strings.TrimRight(getenv("SHOP_URL", ""), "/"),
			Token:      getenv("SHOP_TOKEN", ""),
			APIVersion: getenv("SHOP_API_VERSION", "2024-01"),
			Timeout:    getdur("SHOP_TIMEOUT", 10*time.Second),
		},

		Reward: RewardConfig{
			CodesPath:   getenv("WELCOME_CODES_PATH", "welcome_codes.txt"),
			ClaimedPath: getenv("CLAIMED_CODES_PATH", "claimed_welcome_codes.json"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 10.0),
		RateBurst: getint("RATE_BURST", 20),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("SECURITY_ENABLE_HSTS", false),
			HSTSMaxAge: getdur("SECURITY_HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "lafoncedalle-api"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.CodeTTL <= 0 {
		return cfg, errors.New("CODE_TTL must be > 0")
	}
	if cfg.MaxComment <= 0 {
		return cfg, errors.New("MAX_COMMENT_LENGTH must be > 0")
	}
	if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
		return cfg, errors.New("SMTP_PORT must be a valid TCP port")
	}
	if cfg.SMTP.ConnectTimeout <= 0 || cfg.SMTP.SendTimeout <= 0 {
		return cfg, errors.New("SMTP timeouts must be positive durations")
	}
	if cfg.Shop.Timeout <= 0 {
		return cfg, errors.New("SHOP_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Reward.CodesPath) == "" || strings.TrimSpace(cfg.Reward.ClaimedPath) == "" {
		return cfg, errors.New("WELCOME_CODES_PATH and CLAIMED_CODES_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
