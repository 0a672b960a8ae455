package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Portal        PortalConfig        `mapstructure:"portal"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// PortalConfig drives the browser-facing server.
type PortalConfig struct {
	Port               int           `mapstructure:"port"`
	APIBaseURL         string        `mapstructure:"api_base_url"`
	APITimeout         time.Duration `mapstructure:"api_timeout"`
	CookieName         string        `mapstructure:"cookie_name"`
	CookieSecure       bool          `mapstructure:"cookie_secure"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	SessionBackend     string        `mapstructure:"session_backend"`
	LoginRatePerMinute int           `mapstructure:"login_rate_per_minute"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	DB        int           `mapstructure:"db"`
	Password  string        `mapstructure:"password"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration"`
	BCryptCost          int           `mapstructure:"bcrypt_cost"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// LoadConfigFromEnv builds the configuration for container deployments where no
// config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:           getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:        getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins: getEnv("HTTP_ALLOWED_ORIGINS", "*"),
			OpenAPIPath:    getEnv("HTTP_OPENAPI_PATH", "./api/openapi.yml"),
			ReadTimeout:    getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		Portal: PortalConfig{
			Port:               getEnvAsInt("PORTAL_PORT", 3000),
			APIBaseURL:         getEnv("PORTAL_API_BASE_URL", "http://localhost:8080"),
			APITimeout:         getEnvAsDuration("PORTAL_API_TIMEOUT", 10*time.Second),
			CookieName:         getEnv("PORTAL_COOKIE_NAME", "portal_sid"),
			CookieSecure:       getEnv("PORTAL_COOKIE_SECURE", "true") == "true",
			SessionTTL:         getEnvAsDuration("PORTAL_SESSION_TTL", 24*time.Hour),
			SessionBackend:     getEnv("PORTAL_SESSION_BACKEND", SessionBackendMemory),
			LoginRatePerMinute: getEnvAsInt("PORTAL_LOGIN_RATE_PER_MINUTE", 10),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Password:  getEnv("REDIS_PASSWORD", ""),
			Timeout:   getEnvAsDuration("REDIS_TIMEOUT", 5*time.Second),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "portal:session"),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTSecret:           getEnv("JWT_SECRET", ""),
			AccessTokenDuration: getEnvAsDuration("ACCESS_TOKEN_DURATION", time.Hour),
			BCryptCost:          getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values left by a sparse config file.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Portal.Port == 0 {
		c.Portal.Port = 3000
	}
	if c.Portal.APITimeout <= 0 {
		c.Portal.APITimeout = 10 * time.Second
	}
	if c.Portal.CookieName == "" {
		c.Portal.CookieName = "portal_sid"
	}
	if c.Portal.SessionTTL <= 0 {
		c.Portal.SessionTTL = 24 * time.Hour
	}
	if c.Portal.SessionBackend == "" {
		c.Portal.SessionBackend = SessionBackendMemory
	}
	if c.Portal.LoginRatePerMinute <= 0 {
		c.Portal.LoginRatePerMinute = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "portal:session"
	}
	if c.Security.AccessTokenDuration <= 0 {
		c.Security.AccessTokenDuration = time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Portal.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("portal config: %v", err))
	}

	if c.Portal.SessionBackend == SessionBackendRedis && c.Redis.Addr == "" {
		errs = append(errs, "redis config: addr is required when portal.session_backend is redis")
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *PortalConfig) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_base_url must be an absolute URL, got %q", c.APIBaseURL)
	}
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("session_backend must be one of memory, redis; got %q", c.SessionBackend)
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return fmt.Errorf("bcrypt_cost must be between 4 and 31, got %d", c.BCryptCost)
	}
	return nil
}
