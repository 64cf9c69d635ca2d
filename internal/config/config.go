// Package config loads server settings from the environment, then lets flags override them.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr           string        `env:"ADDR"             envDefault:":5000"`
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTTTL         time.Duration `env:"JWT_TTL"          envDefault:"0s"`
	DBDriver       string        `env:"DB_DRIVER"        envDefault:"sqlite3"`
	DBDSN          string        `env:"DB_DSN"           envDefault:"chatapp.db"`
	MongoURI       string        `env:"MONGODB_URI"      envDefault:"mongodb://localhost:27017"`
	MongoDatabase  string        `env:"MONGODB_DATABASE" envDefault:"chat-app"`
	LogLevel       string        `env:"LOG_LEVEL"        envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT"       envDefault:"console"`
	CORSOrigins    []string      `env:"CORS_ORIGINS"     envDefault:"*" envSeparator:","`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES"   envDefault:"4194304"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_PERIOD"  envDefault:"10s"`
}

// Parse reads the environment and then args into a Config.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	origins := strings.Join(cfg.CORSOrigins, ",")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http service address")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret for session tokens")
	fs.DurationVar(&cfg.JWTTTL, "jwt-ttl", cfg.JWTTTL, "session token lifetime (0 = no expiry)")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "store backend: sqlite3, postgres or mongo")
	fs.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "sqlite3/postgres data source name")
	fs.StringVar(&cfg.MongoURI, "mongodb-uri", cfg.MongoURI, "MongoDB connection URI")
	fs.StringVar(&cfg.MongoDatabase, "mongodb-database", cfg.MongoDatabase, "MongoDB database name")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	fs.StringVar(&origins, "cors-origins", origins, "comma separated allowed origins")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "request body limit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.CORSOrigins = splitList(origins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "sqlite3", "postgres", "mongo":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
