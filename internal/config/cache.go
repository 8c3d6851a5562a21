package config

import (
	"os"
	"time"
)

// CacheConfig defines settings for the public read-model response cache.
// When Enabled is false or no Redis client is configured, caching is
// disabled.  TTL should stay below the broadcaster's poll interval so cached
// display counts never outlive a scheduled recompute.  Prefix namespaces the
// cache keys in Redis.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: getenv("CACHE_ENABLED", "true") == "true",
		TTL:     parseDur(getenv("CACHE_TTL", "5s")),
		Prefix:  getenv("CACHE_PREFIX", "inventory"),
	}
}

// getenv returns the value of key or def when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
