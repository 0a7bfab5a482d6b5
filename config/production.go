// Package config provides configuration management and environment variable handling for the backoffice service
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for the backoffice service
type ProductionConfig struct {
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Upstream   UpstreamConfig   `json:"upstream"`
	Database   DatabaseConfig   `json:"database"`
	Cache      CacheConfig      `json:"cache"`
	Drafts     DraftConfig      `json:"drafts"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Deployment DeploymentConfig `json:"deployment"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
	EnableSwagger     bool          `json:"enable_swagger"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	WriteRateLimit  int           `json:"write_rate_limit"`  // mutating requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy           string `json:"csp_policy"`
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	ReferrerPolicy      string `json:"referrer_policy"`
}

// JWTConfig controls local inspection of operator tokens. Tokens are issued by the
// segmentation backend; when no key is configured they are only decoded.
type JWTConfig struct {
	VerifySignature bool   `json:"verify_signature"`
	SecretKey       string `json:"secret_key"`
	PublicKey       string `json:"public_key"` // RSA public key in PEM format
	Algorithm       string `json:"algorithm"`
	Issuer          string `json:"issuer"`
	Audience        string `json:"audience"`
	RequireExpiry   bool   `json:"require_expiry"`
}

type UpstreamConfig struct {
	BaseURL      string        `json:"base_url"`
	PathPrefix   string        `json:"path_prefix"`
	Prefix       string        `json:"prefix"`
	Timeout      time.Duration `json:"timeout"`
	HistoryLimit int           `json:"history_limit"`
	UserAgent    string        `json:"user_agent"`
}

type DatabaseConfig struct {
	Enabled         bool          `json:"enabled"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	RedisPassword  string        `json:"redis_password"`
	RedisPrefix    string        `json:"redis_prefix"`
	TagListTTL     time.Duration `json:"tag_list_ttl"`
	SegmentListTTL time.Duration `json:"segment_list_ttl"`
	SetupLockTTL   time.Duration `json:"setup_lock_ttl"`
}

type DraftConfig struct {
	TTL       time.Duration `json:"ttl"`
	MaxGroups int           `json:"max_groups"`
	MaxRules  int           `json:"max_rules"`
}

type LoggingConfig struct {
	Level           string `json:"level"`  // debug, info, warn, error
	Output          string `json:"output"` // stdout, file, both
	FilePath        string `json:"file_path"`
	MaxSize         int    `json:"max_size"` // MB
	MaxBackups      int    `json:"max_backups"`
	MaxAge          int    `json:"max_age"` // days
	Compress        bool   `json:"compress"`
	EnableAccessLog bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// IsDevelopment reports whether the service runs outside production
func (c *ProductionConfig) IsDevelopment() bool {
	return c.Deployment.Environment == "development" || c.Deployment.Environment == "local"
}

// UpstreamURL returns the base URL joined with the backoffice path prefix
func (c UpstreamConfig) UpstreamURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.PathPrefix, "/")
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 2*1024*1024), // 2MB
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 1),
			EnableSwagger:     getEnvBool("SERVER_ENABLE_SWAGGER", false),
		},
		Security: SecurityConfig{
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:     getEnvInt("GLOBAL_RATE_LIMIT", 600),
			WriteRateLimit:      getEnvInt("WRITE_RATE_LIMIT", 60),
			RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:           getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
		},
		JWT: JWTConfig{
			VerifySignature: getEnvBool("JWT_VERIFY_SIGNATURE", false),
			SecretKey:       getEnvString("JWT_SECRET_KEY", ""),
			PublicKey:       getEnvString("JWT_PUBLIC_KEY", ""),
			Algorithm:       getEnvString("JWT_ALGORITHM", "HS256"),
			Issuer:          getEnvString("JWT_ISSUER", ""),
			Audience:        getEnvString("JWT_AUDIENCE", ""),
			RequireExpiry:   getEnvBool("JWT_REQUIRE_EXPIRY", false),
		},
		Upstream: UpstreamConfig{
			BaseURL:      getEnvString("UPSTREAM_BASE_URL", "http://localhost:3000"),
			PathPrefix:   getEnvString("UPSTREAM_PATH_PREFIX", "/api/backoffice"),
			Prefix:       getEnvString("UPSTREAM_PREFIX", "gtestbet"),
			Timeout:      getEnvDuration("UPSTREAM_TIMEOUT", 20*time.Second),
			HistoryLimit: getEnvInt("UPSTREAM_HISTORY_LIMIT", 5000),
			UserAgent:    getEnvString("UPSTREAM_USER_AGENT", "segment-backoffice/1.0"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "backoffice"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", false),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			RedisPassword:  getEnvString("REDIS_PASSWORD", ""),
			RedisPrefix:    getEnvString("CACHE_REDIS_PREFIX", "backoffice:"),
			TagListTTL:     getEnvDuration("CACHE_TAG_LIST_TTL", 30*time.Second),
			SegmentListTTL: getEnvDuration("CACHE_SEGMENT_LIST_TTL", 60*time.Second),
			SetupLockTTL:   getEnvDuration("CACHE_SETUP_LOCK_TTL", 2*time.Minute),
		},
		Drafts: DraftConfig{
			TTL:       getEnvDuration("DRAFT_TTL", 12*time.Hour),
			MaxGroups: getEnvInt("DRAFT_MAX_GROUPS", 20),
			MaxRules:  getEnvInt("DRAFT_MAX_RULES", 50),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/backoffice/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from the given file if it exists.
// Variables already set to a non-empty value win.
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	values, err := godotenv.Read(envFile)
	if err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	for key, value := range values {
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the configuration and reports every problem at once
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.RequestTimeout <= 0 {
		errors = append(errors, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// Upstream
	if cfg.Upstream.BaseURL == "" {
		errors = append(errors, "UPSTREAM_BASE_URL is required")
	} else if u, err := url.Parse(cfg.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, "UPSTREAM_BASE_URL must be an absolute URL")
	}
	if cfg.Upstream.Prefix == "" {
		errors = append(errors, "UPSTREAM_PREFIX is required")
	}
	if cfg.Upstream.Timeout <= 0 {
		errors = append(errors, "UPSTREAM_TIMEOUT must be positive")
	}
	if cfg.Upstream.HistoryLimit <= 0 {
		errors = append(errors, "UPSTREAM_HISTORY_LIMIT must be positive")
	}

	// JWT
	if cfg.JWT.VerifySignature {
		switch cfg.JWT.Algorithm {
		case "HS256", "HS384", "HS512":
			if len(cfg.JWT.SecretKey) < 32 {
				errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long when signature verification is enabled")
			}
		case "RS256", "RS384", "RS512":
			if cfg.JWT.PublicKey == "" {
				errors = append(errors, "JWT_PUBLIC_KEY is required for RSA algorithms")
			}
		default:
			errors = append(errors, fmt.Sprintf("JWT_ALGORITHM %q is not supported", cfg.JWT.Algorithm))
		}
	}

	// Database
	if cfg.Database.Enabled {
		if cfg.Database.Host == "" {
			errors = append(errors, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errors = append(errors, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			errors = append(errors, "DB_USER is required")
		}
	}

	// Cache
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}
	if cfg.Cache.SetupLockTTL <= 0 {
		errors = append(errors, "CACHE_SETUP_LOCK_TTL must be positive")
	}

	// Drafts
	if cfg.Drafts.TTL <= 0 {
		errors = append(errors, "DRAFT_TTL must be positive")
	}
	if cfg.Drafts.MaxGroups <= 0 || cfg.Drafts.MaxRules <= 0 {
		errors = append(errors, "DRAFT_MAX_GROUPS and DRAFT_MAX_RULES must be positive")
	}

	// Logging
	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !slices.Contains(validOutputs, cfg.Logging.Output) {
		errors = append(errors, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
