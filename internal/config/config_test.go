package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("TOKEN_SECRET", "s3cret")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)
	cfg := Load()

	if cfg.PoolTotal != 10000 {
		t.Errorf("PoolTotal = %d, want 10000", cfg.PoolTotal)
	}
	if cfg.DBMaxConns != 25 {
		t.Errorf("DBMaxConns = %d, want 25", cfg.DBMaxConns)
	}
	if cfg.ReservationTTL != 900*time.Second {
		t.Errorf("ReservationTTL = %v, want 15m", cfg.ReservationTTL)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval)
	}
	if cfg.DebounceWindow != time.Second {
		t.Errorf("DebounceWindow = %v, want 1s", cfg.DebounceWindow)
	}
	if cfg.Scarcity.MinPercent != 8 || cfg.Scarcity.FixedAdditive != 1200 {
		t.Errorf("Scarcity = %+v, want defaults", cfg.Scarcity)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TICKET_POOL_TOTAL", "500")
	t.Setenv("RESERVATION_TTL_SECONDS", "60")
	t.Setenv("CHANGE_DEBOUNCE_WINDOW", "250ms")
	t.Setenv("SCARCITY_DISABLE_PERCENT", "75.5")
	t.Setenv("SCARCITY_RAMP", "2h")

	cfg := Load()
	if cfg.PoolTotal != 500 {
		t.Errorf("PoolTotal = %d, want 500", cfg.PoolTotal)
	}
	if cfg.ReservationTTL != time.Minute {
		t.Errorf("ReservationTTL = %v, want 1m", cfg.ReservationTTL)
	}
	if cfg.DebounceWindow != 250*time.Millisecond {
		t.Errorf("DebounceWindow = %v, want 250ms", cfg.DebounceWindow)
	}
	if cfg.Scarcity.DisablePercent != 75.5 {
		t.Errorf("DisablePercent = %v, want 75.5", cfg.Scarcity.DisablePercent)
	}
	if cfg.Scarcity.Ramp != 2*time.Hour {
		t.Errorf("Ramp = %v, want 2h", cfg.Scarcity.Ramp)
	}
}
