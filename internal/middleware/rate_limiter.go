package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"golang.org/x/time/rate"
)

// Limit is a token bucket expressed in requests per minute.
type Limit struct {
	PerMinute float64
	Burst     int
}

func (l Limit) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(l.PerMinute/60.0), l.Burst)
}

// visitor holds the rate limiter and last seen time for one client or client+path.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-IP limit across all routes and a tighter
// per-IP, per-path limit.
type RateLimiter struct {
	global Limit
	path   Limit
	ttl    time.Duration

	mu             sync.Mutex
	globalVisitors map[string]*visitor            // key: ip
	pathVisitors   map[string]map[string]*visitor // key: ip -> path

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(global, path Limit, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		global:         global,
		path:           path,
		ttl:            ttl,
		globalVisitors: make(map[string]*visitor),
		pathVisitors:   make(map[string]map[string]*visitor),
		stopCh:         make(chan struct{}),
	}
}

// NewRateLimiterFromConfig reads limits from the rate_limiter section.
func NewRateLimiterFromConfig() *RateLimiter {
	gRate, gBurst := config.GetGlobalRateLimiterConfig()
	pRate, pBurst := config.GetPathRateLimiterConfig()
	return NewRateLimiter(
		Limit{PerMinute: gRate, Burst: gBurst},
		Limit{PerMinute: pRate, Burst: pBurst},
		config.GetRateLimiterCleanupTimeout(),
	)
}

func (rl *RateLimiter) getGlobalLimiter(ip string, now time.Time) *rate.Limiter {
	v, exists := rl.globalVisitors[ip]
	if !exists {
		v = &visitor{limiter: rl.global.limiter()}
		rl.globalVisitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) getPathLimiter(ip, path string, now time.Time) *rate.Limiter {
	paths, ok := rl.pathVisitors[ip]
	if !ok {
		paths = make(map[string]*visitor)
		rl.pathVisitors[ip] = paths
	}
	v, exists := paths[path]
	if !exists {
		v = &visitor{limiter: rl.path.limiter()}
		paths[path] = v
	}
	v.lastSeen = now
	return v.limiter
}

// allow reports which limit, if any, rejected the request.
func (rl *RateLimiter) allow(ip, path string) (ok bool, scope string) {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if !rl.getGlobalLimiter(ip, now).Allow() {
		return false, "global"
	}
	if !rl.getPathLimiter(ip, path, now).Allow() {
		return false, "path"
	}
	return true, ""
}

// Cleanup removes visitors not seen within the configured ttl.
func (rl *RateLimiter) Cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.globalVisitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.globalVisitors, ip)
		}
	}
	for ip, paths := range rl.pathVisitors {
		for path, v := range paths {
			if now.Sub(v.lastSeen) > rl.ttl {
				delete(paths, path)
			}
		}
		if len(paths) == 0 {
			delete(rl.pathVisitors, ip)
		}
	}
}

// StartCleanup runs Cleanup every minute until Stop is called.
func (rl *RateLimiter) StartCleanup() {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				rl.Cleanup(now)
			case <-rl.stopCh:
				return
			}
		}
	}()
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// visitors returns the number of tracked clients. Used by tests.
func (rl *RateLimiter) visitors() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.globalVisitors)
}

// getIP extracts the client's IP address from the HTTP request, considering X-Forwarded-For headers.
func getIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr // fallback
	}
	return ip
}

// Middleware responds 429 with a JSON error once either limit is exceeded.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, scope := rl.allow(getIP(r), r.URL.Path)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		var errMsg string
		if scope == "global" {
			errMsg = fmt.Sprintf("Rate limit exceeded: max %g requests per minute per user/IP", rl.global.PerMinute)
		} else {
			errMsg = fmt.Sprintf("Rate limit exceeded: max %g requests per minute per path per user/IP", rl.path.PerMinute)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(model.Response{
			Error:   &errMsg,
			Message: fmt.Sprintf("Too Many Requests (%s limit)", scope),
		})
	})
}
