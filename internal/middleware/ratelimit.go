package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds the token-bucket parameters for the limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type clientBucket struct {
	limiter *rate.Limiter
	// lastSeen holds unix nanos; atomic because request goroutines update
	// it while the eviction goroutine reads it.
	lastSeen atomic.Int64
}

// RateLimiter enforces a per-client-IP token-bucket limit. Exceeding it
// yields 429 with a Retry-After header. Stale client entries are evicted in
// the background.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	var clients sync.Map // map[string]*clientBucket

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			clients.Range(func(key, value any) bool {
				lastSeen := time.Unix(0, value.(*clientBucket).lastSeen.Load())
				if time.Since(lastSeen) > 10*time.Minute {
					clients.Delete(key)
				}
				return true
			})
		}
	}()

	bucketFor := func(ip string) *rate.Limiter {
		if v, ok := clients.Load(ip); ok {
			b := v.(*clientBucket)
			b.lastSeen.Store(time.Now().UnixNano())
			return b.limiter
		}
		b := &clientBucket{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
		b.lastSeen.Store(time.Now().UnixNano())
		if prev, loaded := clients.LoadOrStore(ip, b); loaded {
			return prev.(*clientBucket).limiter
		}
		return b.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !bucketFor(clientIP(r)).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
