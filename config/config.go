package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Port     int
	Env      string
	GinMode  string
	DB       Database
	Auth     Auth
	Rules    Rules
	Distance Distance
	Realtime Realtime
	AMQP     AMQP
	Admin    Admin
	Log      Log
}

type Database struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

type Auth struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Rules are the business constants applied by the order and auth services.
type Rules struct {
	CommissionRate       float64
	MinNameLength        int
	MinAddressLength     int
	MinDescriptionLength int
	MinPasswordLength    int
}

type Distance struct {
	MinKm float64
	MaxKm float64
}

type Realtime struct {
	SendBuffer     int
	AllowedOrigins []string
}

// AMQP enables the cross-instance event relay when URL is set.
type AMQP struct {
	URL      string
	Exchange string
}

// Admin bootstraps an administrator account when both fields are set.
type Admin struct {
	Email    string
	Password string
}

type Log struct {
	Level  string
	Format string
}

// IsProduction reports whether internal error details must be redacted.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// String masks secrets.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Env: %s, DB: %s, JWT: ***, AMQP: %t, Admin: %t}",
		c.Port, c.Env, c.DB.Driver, c.AMQP.URL != "", c.Admin.Email != "")
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := Default()
	var err error
	cfg.Port, err = getEnvInt("PORT", cfg.Port)
	if err != nil {
		return nil, err
	}
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.DB.Driver = getEnv("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = getEnv("DB_DSN", cfg.DB.DSN)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	if cfg.Auth.TokenTTL, err = getEnvDuration("JWT_TTL", cfg.Auth.TokenTTL); err != nil {
		return nil, err
	}
	if cfg.Rules.CommissionRate, err = getEnvFloat("COMMISSION_RATE", cfg.Rules.CommissionRate); err != nil {
		return nil, err
	}
	if cfg.Rules.MinNameLength, err = getEnvInt("MIN_NAME_LENGTH", cfg.Rules.MinNameLength); err != nil {
		return nil, err
	}
	if cfg.Rules.MinAddressLength, err = getEnvInt("MIN_ADDRESS_LENGTH", cfg.Rules.MinAddressLength); err != nil {
		return nil, err
	}
	if cfg.Rules.MinDescriptionLength, err = getEnvInt("MIN_DESCRIPTION_LENGTH", cfg.Rules.MinDescriptionLength); err != nil {
		return nil, err
	}
	if cfg.Rules.MinPasswordLength, err = getEnvInt("MIN_PASSWORD_LENGTH", cfg.Rules.MinPasswordLength); err != nil {
		return nil, err
	}
	if cfg.Distance.MinKm, err = getEnvFloat("DISTANCE_MIN_KM", cfg.Distance.MinKm); err != nil {
		return nil, err
	}
	if cfg.Distance.MaxKm, err = getEnvFloat("DISTANCE_MAX_KM", cfg.Distance.MaxKm); err != nil {
		return nil, err
	}
	if cfg.Realtime.SendBuffer, err = getEnvInt("WS_SEND_BUFFER", cfg.Realtime.SendBuffer); err != nil {
		return nil, err
	}
	if v := getEnv("WS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.Realtime.AllowedOrigins = splitList(v)
	}
	cfg.AMQP.URL = getEnv("AMQP_URL", cfg.AMQP.URL)
	cfg.AMQP.Exchange = getEnv("AMQP_EXCHANGE", cfg.AMQP.Exchange)
	cfg.Admin.Email = getEnv("ADMIN_EMAIL", cfg.Admin.Email)
	cfg.Admin.Password = getEnv("ADMIN_PASSWORD", cfg.Admin.Password)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	fs := pflag.NewFlagSet("droppers-api", pflag.ContinueOnError)
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "environment (development|production)")
	fs.StringVar(&cfg.DB.Driver, "db-driver", cfg.DB.Driver, "database driver (sqlite|postgres)")
	fs.StringVar(&cfg.DB.DSN, "db-dsn", cfg.DB.DSN, "database DSN")
	fs.StringVar(&cfg.AMQP.URL, "amqp-url", cfg.AMQP.URL, "RabbitMQ URL for the realtime relay (optional)")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and required settings.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.DB.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("DB_DSN must not be empty")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set explicitly in production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("invalid JWT_TTL: %s", c.Auth.TokenTTL)
	}
	if c.Rules.CommissionRate < 0 || c.Rules.CommissionRate > 1 {
		return fmt.Errorf("COMMISSION_RATE must be within [0,1], got %v", c.Rules.CommissionRate)
	}
	if c.Distance.MinKm < 0 || c.Distance.MaxKm < c.Distance.MinKm {
		return fmt.Errorf("invalid distance range [%v, %v)", c.Distance.MinKm, c.Distance.MaxKm)
	}
	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.Realtime.SendBuffer)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
