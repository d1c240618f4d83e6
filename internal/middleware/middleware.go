package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"harbor-server/internal/auth"
	"harbor-server/internal/logger"
	"harbor-server/internal/metrics"
	"harbor-server/internal/user"
)

type contextKey string

const (
	userKey   contextKey = "user"
	userIDKey contextKey = "user_id"
)

type ResponseWriter struct {
	http.ResponseWriter
	bytesWritten int64
	statusCode   int
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	atomic.AddInt64(&rw.bytesWritten, int64(n))
	return n, err
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *ResponseWriter) BytesWritten() int64 {
	return atomic.LoadInt64(&rw.bytesWritten)
}

// TrackOutboundData records per-request byte counts into the metrics
// counters and logs slow or chatty responses.
func TrackOutboundData(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &ResponseWriter{ResponseWriter: w, statusCode: 200}

		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		metrics.AddHTTPOut(rw.BytesWritten())
		logger.Debugf("HTTP %s %s - %d bytes - %d status - %v",
			r.Method, r.URL.Path, rw.BytesWritten(), rw.statusCode, duration)
	}
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			logger.Debugf("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		}

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func GetClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	if colonPos := strings.LastIndex(ip, ":"); colonPos != -1 {
		ip = ip[:colonPos]
	}
	return ip
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// RequireAuth validates the bearer token against the session store and
// attaches the resolved user to the request context.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			http.Error(w, "Missing or invalid token", http.StatusUnauthorized)
			return
		}

		u, err := auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, u)
		ctx = context.WithValue(ctx, userIDKey, u.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUser returns the authenticated user attached by RequireAuth.
func GetUser(r *http.Request) *user.User {
	u, _ := r.Context().Value(userKey).(*user.User)
	return u
}

func GetUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// SetUser injects an identity into a request context, for tests.
func SetUser(ctx context.Context, u *user.User) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, userIDKey, u.ID)
}

type RateLimiter struct {
	tokens     int
	capacity   int
	refillRate time.Duration
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewRateLimiter(capacity int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)

	tokensToAdd := int(elapsed / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// RateLimitStore manages rate limiters keyed by IP or user id.
type RateLimitStore struct {
	limiters   map[string]*RateLimiter
	mutex      sync.RWMutex
	capacity   int
	refillRate time.Duration
	cleanup    time.Duration
}

func NewRateLimitStore(capacity int, refillRate time.Duration) *RateLimitStore {
	store := &RateLimitStore{
		limiters:   make(map[string]*RateLimiter),
		capacity:   capacity,
		refillRate: refillRate,
		cleanup:    time.Minute * 10,
	}

	go store.cleanupRoutine()

	return store
}

func (rls *RateLimitStore) GetLimiter(key string) *RateLimiter {
	rls.mutex.RLock()
	limiter, exists := rls.limiters[key]
	rls.mutex.RUnlock()

	if exists {
		return limiter
	}

	rls.mutex.Lock()
	defer rls.mutex.Unlock()

	if limiter, exists := rls.limiters[key]; exists {
		return limiter
	}

	limiter = NewRateLimiter(rls.capacity, rls.refillRate)
	rls.limiters[key] = limiter
	return limiter
}

func (rls *RateLimitStore) cleanupRoutine() {
	ticker := time.NewTicker(rls.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		rls.mutex.Lock()
		now := time.Now()
		for key, limiter := range rls.limiters {
			limiter.mutex.Lock()
			if now.Sub(limiter.lastRefill) > rls.cleanup {
				delete(rls.limiters, key)
			}
			limiter.mutex.Unlock()
		}
		rls.mutex.Unlock()
	}
}

var (
	GlobalRateLimit  = NewRateLimitStore(100, time.Minute/100)
	MessageRateLimit = NewRateLimitStore(10, time.Minute/10)
	AuthRateLimit    = NewRateLimitStore(5, time.Minute/5)
)

func getClientKey(r *http.Request, useUser bool) string {
	if useUser {
		if token := BearerToken(r); token != "" {
			return "token:" + token
		}
	}
	return "ip:" + GetClientIP(r)
}

// RateLimitFunc middleware factory for handler functions
func RateLimitFunc(store *RateLimitStore, useUser bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getClientKey(r, useUser)
			limiter := store.GetLimiter(key)

			if !limiter.Allow() {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(store.capacity))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", store.refillRate.Seconds()))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			limiter.mutex.Lock()
			remaining := limiter.tokens
			limiter.mutex.Unlock()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(store.capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		}
	}
}

func CacheControl(maxAge time.Duration, cacheType string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch cacheType {
			case "no-cache":
				w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
				w.Header().Set("Pragma", "no-cache")
				w.Header().Set("Expires", "0")
			case "private":
				w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(int(maxAge.Seconds())))
			case "public":
				w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
			}

			next(w, r)
		}
	}
}
