package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Env             string
	AllowedOrigins  []string
	BodyLimit       string
	ShutdownTimeout time.Duration
	// TrustProxy takes the client IP from X-Forwarded-For when the peer is a private address
	TrustProxy      bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
	Issuer          string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// RateLimitConfig holds the per-client request budget
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	ExpiresIn         time.Duration
}

// TokenCacheConfig controls the verified-token cache used by the auth middleware
type TokenCacheConfig struct {
	TTL        time.Duration
	MaxEntries int64
}

// SLAConfig controls the SLA monitor
type SLAConfig struct {
	Schedule     string
	WarningRatio float64
	RunOnStartup bool
}

// StorageConfig selects where avatars are stored
type StorageConfig struct {
	Driver             string
	LocalDir           string
	PublicBaseURL      string
	SupabaseURL        string
	SupabaseServiceKey string
	Bucket             string
	MaxAvatarBytes     int64
}

// TwoFactorConfig holds TOTP settings
type TwoFactorConfig struct {
	Issuer string
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	RetentionDays    int
	RetentionJobSpec string
	PushEnabled      bool
	EmailEnabled     bool
}

// Config holds all configuration
type Config struct {
	ServiceName   string
	DB            DBConfig
	Server        ServerConfig
	JWT           JWTConfig
	Log           LogConfig
	Metrics       MetricsConfig
	RateLimit     RateLimitConfig
	TokenCache    TokenCacheConfig
	SLA           SLAConfig
	Storage       StorageConfig
	TwoFactor     TwoFactorConfig
	Notifications NotificationConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: getEnv("SERVICE_NAME", "helpdesk-service"),
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "helpdesk"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "development"),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			BodyLimit:       getEnv("SERVER_BODY_LIMIT", "4M"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustProxy:      getEnvAsBool("SERVER_TRUST_PROXY", false),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "helpdesksecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
			Issuer:          getEnv("JWT_ISSUER", "helpdesk-service"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "helpdesk"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
			ExpiresIn:         getEnvAsDuration("RATE_LIMIT_EXPIRES_IN", 3*time.Minute),
		},
		TokenCache: TokenCacheConfig{
			TTL:        getEnvAsDuration("TOKEN_CACHE_TTL", 5*time.Minute),
			MaxEntries: int64(getEnvAsInt("TOKEN_CACHE_MAX_ENTRIES", 10000)),
		},
		SLA: SLAConfig{
			Schedule:     getEnv("SLA_CHECK_SCHEDULE", "@every 30m"),
			WarningRatio: getEnvAsFloat("SLA_WARNING_RATIO", 0.8),
			RunOnStartup: getEnvAsBool("SLA_RUN_ON_STARTUP", true),
		},
		Storage: StorageConfig{
			Driver:             getEnv("STORAGE_DRIVER", "local"),
			LocalDir:           getEnv("STORAGE_LOCAL_DIR", "./uploads"),
			PublicBaseURL:      getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
			SupabaseURL:        getEnv("SUPABASE_URL", ""),
			SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			Bucket:             getEnv("STORAGE_BUCKET", "avatars"),
			MaxAvatarBytes:     int64(getEnvAsInt("STORAGE_MAX_AVATAR_BYTES", 2<<20)),
		},
		TwoFactor: TwoFactorConfig{
			Issuer: getEnv("TWO_FACTOR_ISSUER", "SENAI Helpdesk"),
		},
		Notifications: NotificationConfig{
			RetentionDays:    getEnvAsInt("NOTIFICATION_RETENTION_DAYS", 30),
			RetentionJobSpec: getEnv("NOTIFICATION_RETENTION_SCHEDULE", "@daily"),
			PushEnabled:      getEnvAsBool("NOTIFICATION_PUSH_ENABLED", false),
			EmailEnabled:     getEnvAsBool("NOTIFICATION_EMAIL_ENABLED", false),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects combinations the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Env == "production" && c.JWT.SigningKey == "helpdesksecretkey" {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	if c.SLA.WarningRatio <= 0 || c.SLA.WarningRatio >= 1 {
		return fmt.Errorf("SLA_WARNING_RATIO must be between 0 and 1, got %v", c.SLA.WarningRatio)
	}
	switch c.Storage.Driver {
	case "local":
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.String("storage_driver", c.Storage.Driver),
		zap.String("sla_schedule", c.SLA.Schedule),
		zap.Bool("rate_limit_enabled", c.RateLimit.Enabled),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get comma separated environment variables
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
