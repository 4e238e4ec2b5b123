package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/yukikurage/task-tracker-api/internal/constants"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`
	GinMode  string `env:"GIN_MODE" env-default:"debug"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	LogFile  string `env:"LOG_FILE"`

	DBDriver   string `env:"DB_DRIVER" env-default:"sqlite"`
	DBDSN      string `env:"DB_DSN"`
	DBHost     string `env:"DB_HOST" env-default:"localhost"`
	DBPort     string `env:"DB_PORT"`
	DBUser     string `env:"DB_USER" env-default:"taskuser"`
	DBPassword string `env:"DB_PASSWORD" env-default:"taskpassword"`
	DBName     string `env:"DB_NAME" env-default:"task_tracker"`
	SQLitePath string `env:"SQLITE_PATH" env-default:"task_tracker.db"`

	JWTSecret          string `env:"JWT_SECRET"`
	JWTIssuer          string `env:"JWT_ISSUER" env-default:"TaskManagementSystem"`
	JWTAudience        string `env:"JWT_AUDIENCE" env-default:"TaskManagementSystem"`
	AccessTokenMinutes int    `env:"JWT_ACCESS_TOKEN_MINUTES" env-default:"60"`
	RefreshTokenDays   int    `env:"REFRESH_TOKEN_DAYS" env-default:"7"`
	BcryptCost         int    `env:"BCRYPT_COST" env-default:"10"`
	InvitationCode     string `env:"INVITATION_CODE"`
	AdminUserID        uint64 `env:"ADMIN_USER_ID" env-default:"0"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	TaskCacheTTL  time.Duration `env:"TASK_CACHE_TTL" env-default:"30s"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL" env-default:"gpt-4o"`
}

// Load reads an optional .env file, then the process environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is not configured")
	}
	if len(c.JWTSecret) < constants.MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", constants.MinJWTSecretLength)
	}
	if c.AccessTokenMinutes <= 0 {
		return errors.New("JWT_ACCESS_TOKEN_MINUTES must be positive")
	}
	if c.RefreshTokenDays <= 0 {
		return errors.New("REFRESH_TOKEN_DAYS must be positive")
	}
	if c.BcryptCost < constants.MinBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be at least %d", constants.MinBcryptCost)
	}

	switch c.DBDriver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	return nil
}

// AccessTokenTTL is the lifetime of issued access tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// RefreshTokenTTL is the lifetime of issued refresh tokens.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// DatabaseDSN returns DB_DSN when set, otherwise a DSN assembled for the selected driver.
func (c *Config) DatabaseDSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}

	switch c.DBDriver {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.DBUser,
			c.DBPassword,
			c.DBHost,
			c.portOrDefault("3306"),
			c.DBName,
		)
	case DriverPostgres:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			c.DBHost,
			c.DBUser,
			c.DBPassword,
			c.DBName,
			c.portOrDefault("5432"),
		)
	default:
		return c.SQLitePath
	}
}

func (c *Config) portOrDefault(port string) string {
	if c.DBPort == "" {
		return port
	}
	return c.DBPort
}
