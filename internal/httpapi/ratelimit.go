package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"qms/ticket-queue/internal/telemetry"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

const (
	classAPI   = "api"
	classIssue = "issue"

	limiterIdleTTL = 10 * time.Minute
)

// RateLimitConfig sets per-address budgets. Issuing tickets has its own,
// tighter budget so a kiosk script cannot burn through the daily numbers.
type RateLimitConfig struct {
	IPPerMinute    int
	IPBurst        int
	IssuePerMinute int
	IssueBurst     int
}

type RateLimiter struct {
	api   *addressLimiter
	issue *addressLimiter
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		api:   newAddressLimiter(cfg.IPPerMinute, cfg.IPBurst, 120, 30),
		issue: newAddressLimiter(cfg.IssuePerMinute, cfg.IssueBurst, 6, 3),
	}
}

// Middleware limits requests per client address. Live transports and health
// checks are not counted. Ticket issuance is charged against both budgets.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptFromLimit(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if ip == "" {
			next.ServeHTTP(w, r)
			return
		}
		if isTicketIssue(r) && !l.issue.allow(ip) {
			rejectLimited(w, r, classIssue)
			return
		}
		if !l.api.allow(ip) {
			rejectLimited(w, r, classAPI)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rejectLimited(w http.ResponseWriter, r *http.Request, class string) {
	telemetry.RateLimited.WithLabelValues(class).Inc()
	w.Header().Set("Retry-After", "1")
	writeError(w, r.Header.Get(middleware.RequestIDHeader), http.StatusTooManyRequests, "rate_limited", "too many requests")
}

func isTicketIssue(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.TrimSuffix(r.URL.Path, "/") == "/api/tickets"
}

func exemptFromLimit(path string) bool {
	switch {
	case path == "/healthz", path == "/metrics", path == "/ws":
		return true
	case strings.HasPrefix(path, "/realtime/"):
		return true
	default:
		return false
	}
}

// addressLimiter keeps one token bucket per client address and forgets
// addresses idle for longer than limiterIdleTTL.
type addressLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entries   map[string]*addressEntry
	lastSweep time.Time
	now       func() time.Time
}

type addressEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newAddressLimiter(perMinute, burst, defaultPerMinute, defaultBurst int) *addressLimiter {
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &addressLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		entries: make(map[string]*addressEntry),
		now:     time.Now,
	}
}

func (l *addressLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)
	entry, ok := l.entries[key]
	if !ok {
		entry = &addressEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.seen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *addressLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for key, entry := range l.entries {
		if now.Sub(entry.seen) > limiterIdleTTL {
			delete(l.entries, key)
		}
	}
}

func (l *addressLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
