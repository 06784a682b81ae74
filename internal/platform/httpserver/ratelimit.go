package httpserver

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	loginAttempts = 20
	loginWindow   = 10 * time.Minute
)

// clientLimiter hands out one token bucket per client IP. Buckets idle for a
// full window are full again and get dropped on the next sweep.
type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	window    time.Duration
	clients   map[string]*clientBucket
	lastSweep time.Time
	now       func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(attempts int, window time.Duration) *clientLimiter {
	return &clientLimiter{
		limit:   rate.Every(window / time.Duration(attempts)),
		burst:   attempts,
		window:  window,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (l *clientLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		for client, bucket := range l.clients {
			if now.Sub(bucket.lastSeen) >= l.window {
				delete(l.clients, client)
			}
		}
		l.lastSweep = now
	}

	bucket, ok := l.clients[key]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = bucket
	}
	bucket.lastSeen = now

	reservation := bucket.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// middleware rejects a client with 429 once its bucket is empty.
func (l *clientLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(clientIP(r))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)+1))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts; try again later")
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
