package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"hookrelay/internal/config"
	"hookrelay/internal/metrics"
)

func metricsHandler() http.Handler {
	metrics.RegisterDefault()
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(dur.Seconds())
		s.Logger.Info("http request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration", dur)
	})
}

// limiterIdle is how long a client's limiter survives without requests.
const limiterIdle = 3 * time.Minute

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterSet holds one token bucket per client and drops idle ones.
type limiterSet struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	return &limiterSet{rps: rate.Limit(rps), burst: burst, clients: map[string]*clientLimiter{}, now: time.Now}
}

func (ls *limiterSet) allow(client string) bool {
	ls.mu.Lock()
	now := ls.now()
	if now.Sub(ls.lastSweep) >= limiterIdle {
		for k, c := range ls.clients {
			if now.Sub(c.seen) >= limiterIdle {
				delete(ls.clients, k)
			}
		}
		ls.lastSweep = now
	}
	c := ls.clients[client]
	if c == nil {
		c = &clientLimiter{lim: rate.NewLimiter(ls.rps, ls.burst)}
		ls.clients[client] = c
	}
	c.seen = now
	ls.mu.Unlock()
	return c.lim.AllowN(now, 1)
}

func (ls *limiterSet) size() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.clients)
}

// rateLimit applies a token bucket per client IP. It is a no-op when
// cfg.RPS <= 0.
func rateLimit(cfg config.Rate, next http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		return next
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiters := newLimiterSet(cfg.RPS, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !limiters.allow(host) {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
