package utils

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imvestor",
		Name:      "rate_limited_total",
		Help:      "Requests refused by a client limiter, by scope.",
	}, []string{"scope"})

	RateLimitClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "imvestor",
		Name:      "rate_limit_clients",
		Help:      "Clients currently tracked by a limiter, by scope.",
	}, []string{"scope"})
)

// ClientLimiter gives every client key its own token bucket within a named
// scope. Clients idle for longer than idleTTL are forgotten.
type ClientLimiter struct {
	scope   string
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter returns nil (allow everything) when rps or burst is not positive.
func NewClientLimiter(scope string, rps float64, burst int, idleTTL time.Duration) *ClientLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &ClientLimiter{
		scope:   scope,
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		clients: make(map[string]*client),
	}
}

// Allow spends one token from key's bucket at now.
func (l *ClientLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastSweep.IsZero() {
		l.lastSweep = now
	}
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}

	cl, ok := l.clients[key]
	if !ok {
		cl = &client{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cl
		RateLimitClients.WithLabelValues(l.scope).Set(float64(len(l.clients)))
	}
	cl.lastSeen = now

	if !cl.bucket.AllowN(now, 1) {
		RateLimited.WithLabelValues(l.scope).Inc()
		return false
	}
	return true
}

// sweep drops clients not seen within idleTTL. l.mu must be held.
func (l *ClientLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for key, cl := range l.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
	RateLimitClients.WithLabelValues(l.scope).Set(float64(len(l.clients)))
}

func (l *ClientLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
