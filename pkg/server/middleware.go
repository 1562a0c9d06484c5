package server

import (
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/voicegate/pkg/kv"
)

// withMiddleware wraps the mux with API-key auth and rate limiting.
// /healthz bypasses both so load balancers can probe without credentials.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if s.apiKey != "" {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				s.writeError(w, r, http.StatusUnauthorized, errors.New("invalid API key"))
				return
			}
		}

		if s.limiter != nil {
			ok, err := s.limiter.allow(r.Context(), clientIP(r))
			if err != nil {
				s.log.Error("rate limiter", "err", err)
				// Fail open: a broken counter store should not take
				// authentication down with it.
			} else if !ok {
				s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimiter is a fixed-window counter per client IP. The window start is
// part of the key, so counters roll over naturally and the store's TTL
// reaps stale windows. The read-modify-write is serialized in-process; a
// multi-process deployment over one store may slightly overshoot the limit.
type rateLimiter struct {
	store  kv.Store
	limit  int
	window time.Duration

	mu sync.Mutex
}

func (l *rateLimiter) allow(ctx context.Context, ip string) (bool, error) {
	windowID := time.Now().UnixNano() / int64(l.window)
	key := kv.Key{"ratelimit", ip, strconv.FormatInt(windowID, 10)}

	l.mu.Lock()
	defer l.mu.Unlock()

	var count uint64
	raw, err := l.store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return false, err
	default:
		count = binary.BigEndian.Uint64(raw)
	}

	if count >= uint64(l.limit) {
		return false, nil
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count+1)
	if err := l.store.SetTTL(ctx, key, buf[:], 2*l.window); err != nil {
		return false, err
	}
	return true, nil
}
