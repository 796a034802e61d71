package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL   string
	ServerAddr    string
	MigrationsDir string
	// CreatePolicy is an optional boolean expression gating stream creation,
	// evaluated with sender, recipient, amount, units, and duration bound.
	// Empty allows everything.
	CreatePolicy string
	LogLevel     string
	LogPretty    bool
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "streampay")
		pass := getenv("POSTGRES_PASSWORD", "streampay_pass")
		db := getenv("POSTGRES_DB", "streampay")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	return &Config{
		DatabaseURL:   dsn,
		ServerAddr:    getenv("SERVER_ADDR", "0.0.0.0:8080"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "internal/migrations"),
		CreatePolicy:  os.Getenv("CREATE_POLICY"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogPretty:     parseBool(getenv("LOG_PRETTY", "false"), false),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}
