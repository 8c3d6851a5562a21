package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-inventory-sync/internal/config"
)

// cachedResponse is the serialized form stored in Redis.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseCache caches successful GET responses in Redis for a short TTL.
// It shields the public read model from request bursts: the cached display
// counts can lag the live snapshot by at most the cache TTL, which is kept
// below the broadcaster's poll interval.  When caching is disabled or the
// Redis client is nil, the middleware is a pass-through.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			key := cfg.Prefix + ":" + c.Path()
			if q := c.Request().URL.RawQuery; q != "" {
				key += "?" + q
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 200*time.Millisecond)
			defer cancel()
			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var cached cachedResponse
				if json.Unmarshal(raw, &cached) == nil {
					c.Response().Header().Set(echo.HeaderContentType, cached.ContentType)
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(cached.Status, cached.ContentType, cached.Body)
				}
			}

			rec := newRecorder(c.Response().Writer)
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}
			// Only successful responses are worth caching.
			if rec.status == http.StatusOK {
				entry, err := json.Marshal(cachedResponse{
					Status:      rec.status,
					ContentType: rec.Header().Get(echo.HeaderContentType),
					Body:        rec.body,
				})
				if err == nil {
					storeCtx, storeCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
					defer storeCancel()
					_ = rdb.Set(storeCtx, key, entry, cfg.TTL).Err()
				}
			}
			return nil
		}
	}
}

// recorder tees the response body so it can be cached after being sent.
type recorder struct {
	http.ResponseWriter
	status int
	body   []byte
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
