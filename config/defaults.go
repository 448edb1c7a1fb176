package config

import "time"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultJWTSecret = "droppers_dev_secret_change_me"

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Port:    8080,
		Env:     "development",
		GinMode: "debug",
		DB: Database{
			Driver: DriverSQLite,
			DSN:    "droppers.db",
		},
		Auth: Auth{
			JWTSecret: defaultJWTSecret,
			TokenTTL:  7 * 24 * time.Hour,
		},
		Rules: DefaultRules(),
		Distance: Distance{
			MinKm: 1,
			MaxKm: 20,
		},
		Realtime: Realtime{
			SendBuffer: 64,
		},
		AMQP: AMQP{
			Exchange: "droppers.events",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultRules returns the stock business constants: 20% partner commission and
// the minimum field lengths enforced on registration and order creation.
func DefaultRules() Rules {
	return Rules{
		CommissionRate:       0.20,
		MinNameLength:        2,
		MinAddressLength:     5,
		MinDescriptionLength: 3,
		MinPasswordLength:    6,
	}
}
