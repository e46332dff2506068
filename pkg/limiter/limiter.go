// Package limiter throttles requests per client with token buckets.
package limiter

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// New returns a limiter that restores one token every interval
// and allows bursts of up to burst requests per key.
func New(interval time.Duration, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(interval),
		burst:    burst,
		now:      time.Now,
	}
}

// allow reports whether a request of key may happen now.
func (l *KeyedRateLimiter) allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take consumes a token of key. When none is left it reports how long
// the client should wait for the next one.
func (l *KeyedRateLimiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}

	if delay := r.DelayFrom(now); delay > 0 {
		// The request is rejected rather than delayed, so the token goes back.
		r.CancelAt(now)
		return false, delay
	}

	return true, 0
}

// Evict forgets the keys not seen for longer than idle.
func (l *KeyedRateLimiter) Evict(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	now := l.now()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(l.visitors, key)
			evicted++
		}
	}

	return evicted
}

// Run evicts idle keys every interval until ctx is done.
func (l *KeyedRateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict(interval)
		}
	}
}

// Middleware rejects requests over the limit of the client IP
// with 429 Too Many Requests. The IP is the one recorded by Peer.
func (l *KeyedRateLimiter) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := l.take(clientIP(r))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", strconv.Itoa(int(math.Max(math.Ceil(retryAfter.Seconds()), 1))))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)

		_ = json.NewEncoder(w).Encode(struct {
			Error string `json:"error"`
		}{Error: "rate limit exceeded"})
	}

	return http.HandlerFunc(f)
}

type peerKey struct{}

// Peer records the transport address of the connection. It must run before
// any middleware that rewrites RemoteAddr from request headers, such as
// chi's RealIP, so that clients cannot pick their own rate limit key.
func Peer(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(f)
}

// clientIP prefers the address recorded by Peer over RemoteAddr.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if peer, ok := r.Context().Value(peerKey{}).(string); ok {
		addr = peer
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
