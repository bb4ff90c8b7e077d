package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
)

// ClientLimiter hands out one token bucket per client key. The least
// recently seen clients are forgotten once MaxClients is reached.
type ClientLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

func NewClientLimiter(cfg config.RateLimit) (*ClientLimiter, error) {
	size := cfg.MaxClients
	if size <= 0 {
		size = 10000
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Ceil(cfg.RequestsPerSecond))
	}
	limiters, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, fmt.Errorf("creating client limiter: %w", err)
	}
	return &ClientLimiter{
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    burst,
		limiters: limiters,
	}, nil
}

// Allow consumes one token of key's bucket.
func (l *ClientLimiter) Allow(key string) bool {
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		if prev, found, _ := l.limiters.PeekOrAdd(key, lim); found {
			lim = prev
		}
	}
	return lim.Allow()
}

// RateLimit rejects requests over the client's rate with 429. Clients are
// keyed by X-API-Key when present, otherwise by remote IP. Health probes
// are never limited.
func RateLimit(l *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(clientKey(r)) {
				retry := 1
				if l.limit > 0 {
					retry = int(math.Ceil(1 / float64(l.limit)))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
