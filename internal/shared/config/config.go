package config

import (
	"fmt"
	"strconv"
	"time"

	"domino-community/internal/shared/utils"

	"github.com/joho/godotenv"
)

type BackendMode string

const (
	BackendModeREST     BackendMode = "rest"
	BackendModePostgres BackendMode = "postgres"
)

type TokenStoreKind string

const (
	TokenStoreFile  TokenStoreKind = "file"
	TokenStoreRedis TokenStoreKind = "redis"
)

type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	UI        UIConfig
}

type AppConfig struct {
	Environment string
}

type BackendConfig struct {
	Mode           BackendMode
	URL            string
	AnonKey        string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	Store     TokenStoreKind
	FilePath  string
	KeyPrefix string
	Key       string
	TTL       time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	TokenExpiration time.Duration
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
}

type UIConfig struct {
	DebounceWindow  time.Duration
	MaxDistanceKm   float64
	OriginLatitude  float64
	OriginLongitude float64
}

var GlobalConfig *Config

func Init() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	config, err := Load()
	if err != nil {
		return err
	}

	GlobalConfig = config
	return nil
}

// Load reads the configuration from the environment without touching GlobalConfig.
func Load() (*Config, error) {
	config := &Config{
		App:       loadAppConfig(),
		Backend:   loadBackendConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Session:   loadSessionConfig(),
		Auth:      loadAuthConfig(),
		Logging:   loadLoggingConfig(),
		RateLimit: loadRateLimitConfig(),
		UI:        loadUIConfig(),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadAppConfig() AppConfig {
	return AppConfig{
		Environment: utils.GetEnv("ENVIRONMENT", "development"),
	}
}

func loadBackendConfig() BackendConfig {
	timeout, _ := strconv.Atoi(utils.GetEnv("BACKEND_REQUEST_TIMEOUT_SECONDS", "15"))

	return BackendConfig{
		Mode:           BackendMode(utils.GetEnv("BACKEND_MODE", string(BackendModeREST))),
		URL:            utils.GetEnv("SUPABASE_URL", ""),
		AnonKey:        utils.GetEnv("SUPABASE_ANON_KEY", ""),
		RequestTimeout: time.Duration(timeout) * time.Second,
	}
}

func loadDatabaseConfig() DatabaseConfig {
	maxOpenConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_OPEN_CONNS", "10"))
	maxIdleConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_IDLE_CONNS", "2"))
	connMaxLifetime, _ := strconv.Atoi(utils.GetEnv("DB_CONN_MAX_LIFETIME_MINUTES", "5"))

	return DatabaseConfig{
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "domino"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: time.Duration(connMaxLifetime) * time.Minute,
		MigrationsPath:  utils.GetEnv("DB_MIGRATIONS_PATH", ""),
	}
}

func loadRedisConfig() RedisConfig {
	enabled := utils.GetEnv("REDIS_ENABLED", "false") == "true"
	db, _ := strconv.Atoi(utils.GetEnv("REDIS_DB", "0"))

	return RedisConfig{
		Enabled:  enabled,
		URL:      utils.GetEnv("REDIS_URL", ""),
		Host:     utils.GetEnv("REDIS_HOST", "localhost"),
		Port:     utils.GetEnv("REDIS_PORT", "6379"),
		Password: utils.GetEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func loadSessionConfig() SessionConfig {
	ttlDays, _ := strconv.Atoi(utils.GetEnv("SESSION_TTL_DAYS", "30"))

	return SessionConfig{
		Store:     TokenStoreKind(utils.GetEnv("SESSION_STORE", string(TokenStoreFile))),
		FilePath:  utils.GetEnv("SESSION_FILE", ".domino-session.json"),
		KeyPrefix: utils.GetEnv("SESSION_KEY_PREFIX", "domino:session"),
		Key:       utils.GetEnv("SESSION_KEY", "default"),
		TTL:       time.Duration(ttlDays) * 24 * time.Hour,
	}
}

func loadAuthConfig() AuthConfig {
	tokenExpiration, _ := strconv.Atoi(utils.GetEnv("AUTH_TOKEN_EXPIRATION_MINUTES", "60"))

	return AuthConfig{
		JWTSecret:       utils.GetEnv("AUTH_JWT_SECRET", ""),
		TokenExpiration: time.Duration(tokenExpiration) * time.Minute,
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")
	jsonFormat := environment == "production"

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "info"),
		Format:     utils.GetEnv("LOG_FORMAT", "text"),
		JSONFormat: jsonFormat,
	}
}

func loadRateLimitConfig() RateLimitConfig {
	enabled := utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true"
	requestsPerSecond, _ := strconv.ParseFloat(utils.GetEnv("RATE_LIMIT_REQUESTS_PER_SECOND", "10"), 64)
	burstSize, _ := strconv.Atoi(utils.GetEnv("RATE_LIMIT_BURST_SIZE", "20"))

	return RateLimitConfig{
		Enabled:           enabled,
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burstSize,
	}
}

func loadUIConfig() UIConfig {
	debounceMillis, _ := strconv.Atoi(utils.GetEnv("UI_DEBOUNCE_MILLIS", "50"))
	maxDistance, _ := strconv.ParseFloat(utils.GetEnv("UI_MAX_DISTANCE_KM", "50"), 64)
	originLat, _ := strconv.ParseFloat(utils.GetEnv("UI_ORIGIN_LATITUDE", "0"), 64)
	originLng, _ := strconv.ParseFloat(utils.GetEnv("UI_ORIGIN_LONGITUDE", "0"), 64)

	return UIConfig{
		DebounceWindow:  time.Duration(debounceMillis) * time.Millisecond,
		MaxDistanceKm:   maxDistance,
		OriginLatitude:  originLat,
		OriginLongitude: originLng,
	}
}

func (c *Config) validate() error {
	switch c.Backend.Mode {
	case BackendModeREST:
		if c.Backend.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.Backend.AnonKey == "" {
			return fmt.Errorf("SUPABASE_ANON_KEY is required")
		}
	case BackendModePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters long")
		}
	default:
		return fmt.Errorf("unknown BACKEND_MODE %q", c.Backend.Mode)
	}

	switch c.Session.Store {
	case TokenStoreFile:
		if c.Session.FilePath == "" {
			return fmt.Errorf("SESSION_FILE is required")
		}
	case TokenStoreRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("SESSION_STORE=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store)
	}

	if c.UI.DebounceWindow < 0 {
		return fmt.Errorf("UI_DEBOUNCE_MILLIS must not be negative")
	}

	if c.UI.MaxDistanceKm < 1 || c.UI.MaxDistanceKm > 100 {
		return fmt.Errorf("UI_MAX_DISTANCE_KM must be between 1 and 100")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
