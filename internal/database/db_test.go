package database

import (
	"strings"
	"testing"

	"github.com/iliyamo/ticket-inventory-sync/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.Config{
		DBUser: "tickets",
		DBPass: "s3cret",
		DBHost: "db.internal",
		DBPort: "3306",
		DBName: "inventory",
	}
	got := DSN(cfg)
	want := "tickets:s3cret@tcp(db.internal:3306)/inventory?charset=utf8mb4&parseTime=true&loc=UTC"
	if got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}

func TestDSNEmptyPassword(t *testing.T) {
	cfg := config.Config{
		DBUser: "tickets",
		DBHost: "localhost",
		DBPort: "3306",
		DBName: "inventory",
	}
	got := DSN(cfg)
	if !strings.HasPrefix(got, "tickets@tcp(") {
		t.Fatalf("dsn with empty password must omit the colon, got %q", got)
	}
	if !strings.Contains(got, "parseTime=true") || !strings.Contains(got, "loc=UTC") {
		t.Fatalf("dsn missing time options: %q", got)
	}
}
