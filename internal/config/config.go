package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses the engine's interval settings
)

// ScarcityConfig parameterizes the display overlay.  The growth curve is
// deliberately configuration, not code: the engine consumes the policy and
// never invents synthetic values of its own.
type ScarcityConfig struct {
	MinPercent     float64       // floor applied early in the sale, e.g. 8 (%)
	DisablePercent float64       // real sold percentage above which the overlay turns off
	FixedAdditive  int           // constant synthetic ticket count added to real sold
	Ramp           time.Duration // optional ramp over which the additive scales in; 0 = immediate
}

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Strings are used for identifiers and secrets,
// durations for the engine's timing knobs.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	DBUser      string // database username
	DBPass      string // database password (optional)
	DBHost      string // database host address
	DBPort      string // database port number
	DBName      string // database name
	DBMaxConns  int    // connection pool cap for the backing store
	TokenSecret string // secret used to sign reservation claim tokens

	PoolTotal      int           // fixed size of the ticket pool
	ReservationTTL time.Duration // how long an unconfirmed reservation lives
	SweepInterval  time.Duration // period of the expiry sweep backstop
	PollInterval   time.Duration // fallback poll period of the broadcaster
	DebounceWindow time.Duration // coalescing window for store change bursts

	Scarcity ScarcityConfig // display overlay policy
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message.  Database variables are only
// required outside the "dev" environment, where the in-memory store is used.
func Load() Config {
	env := must("APP_ENV")
	cfg := Config{
		Env:         env,
		Port:        must("APP_PORT"),
		TokenSecret: must("TOKEN_SECRET"),

		DBMaxConns:     envInt("DB_MAX_CONNS", 25),
		PoolTotal:      envInt("TICKET_POOL_TOTAL", 10000),
		ReservationTTL: time.Duration(envInt("RESERVATION_TTL_SECONDS", 900)) * time.Second,
		SweepInterval:  envDur("EXPIRY_SWEEP_INTERVAL", 30*time.Second),
		PollInterval:   envDur("INVENTORY_POLL_INTERVAL", 15*time.Second),
		DebounceWindow: envDur("CHANGE_DEBOUNCE_WINDOW", time.Second),

		Scarcity: ScarcityConfig{
			MinPercent:     envFloat("SCARCITY_MIN_PERCENT", 8),
			DisablePercent: envFloat("SCARCITY_DISABLE_PERCENT", 90),
			FixedAdditive:  envInt("SCARCITY_FIXED_ADDITIVE", 1200),
			Ramp:           envDur("SCARCITY_RAMP", 0),
		},
	}
	if env == "dev" {
		// dev runs against the in-memory store; DB settings are optional
		cfg.DBUser = os.Getenv("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = os.Getenv("DB_HOST")
		cfg.DBPort = os.Getenv("DB_PORT")
		cfg.DBName = os.Getenv("DB_NAME")
	} else {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty password allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envInt reads an optional integer variable, falling back to def when the
// variable is unset.  A malformed value is a configuration error and fatal.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// envFloat reads an optional float variable with a default.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("invalid float for %s: %q", key, v)
	}
	return f
}

// envDur reads an optional duration variable ("1s", "500ms", ...) with a default.
func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
