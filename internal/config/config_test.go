package config

import (
	"flag"
	"reflect"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Parse(flag.NewFlagSet("chatapp", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":5000" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.DBDriver != "sqlite3" || cfg.DBDSN != "chatapp.db" {
		t.Fatalf("expected sqlite defaults, got %q %q", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.JWTTTL != 0 {
		t.Fatalf("expected tokens to never expire by default, got %v", cfg.JWTTTL)
	}
	if cfg.MaxBodyBytes != 4<<20 {
		t.Fatalf("expected 4MB body limit, got %d", cfg.MaxBodyBytes)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"*"}) {
		t.Fatalf("expected wildcard CORS, got %v", cfg.CORSOrigins)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("ADDR", ":7000")
	t.Setenv("JWT_TTL", "24h")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	args := []string{"-addr", ":8000", "-db-driver", "mongo"}
	cfg, err := Parse(flag.NewFlagSet("chatapp", flag.ContinueOnError), args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8000" {
		t.Fatalf("expected flag addr, got %q", cfg.Addr)
	}
	if cfg.JWTSecret != "env-secret" || cfg.JWTTTL != 24*time.Hour {
		t.Fatalf("expected env jwt settings, got %q %v", cfg.JWTSecret, cfg.JWTTTL)
	}
	if cfg.DBDriver != "mongo" {
		t.Fatalf("expected flag driver, got %q", cfg.DBDriver)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestParseRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Parse(flag.NewFlagSet("chatapp", flag.ContinueOnError), nil); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestParseRejectsDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Parse(flag.NewFlagSet("chatapp", flag.ContinueOnError), nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
