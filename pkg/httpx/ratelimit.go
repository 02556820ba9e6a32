package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

// RateLimitConfig is a token bucket: RequestsPerWindow refill over Window
// with up to Burst available at once. Fields map to RATELIMIT_<PROFILE>_*
// variables when the struct is parsed with an env prefix.
type RateLimitConfig struct {
	RequestsPerWindow int           `env:"REQUESTS"`
	Window            time.Duration `env:"WINDOW"`
	Burst             int           `env:"BURST"`
}

// Profiles. StrictLimit guards credential endpoints against guessing.
var (
	StrictLimit   = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}
	PublicLimit   = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

// Enabled reports whether the config describes a usable limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0 && c.Burst > 0
}

// KeyExtractor groups requests into rate limit buckets. An empty key skips
// limiting for that request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys on the client address. Forwarding headers count only
// when they come from a trusted proxy.
func IPKeyExtractor(trusted TrustedProxies) KeyExtractor {
	return trusted.ClientIP
}

// FormFieldKeyExtractor reads a form or query parameter.
func FormFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return r.FormValue(field)
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, ex := range extractors {
			if k := ex(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	cfg     RateLimitConfig
	limit   rate.Limit
	keyFn   KeyExtractor
	onLimit func(*http.Request)

	mu          sync.Mutex
	buckets     map[string]*bucket
	lastSweep   time.Time
	sweepPeriod time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimitOption customises a RateLimiter.
type RateLimitOption func(*RateLimiter)

// OnLimited registers a callback run for every rejected request.
func OnLimited(fn func(*http.Request)) RateLimitOption {
	return func(rl *RateLimiter) { rl.onLimit = fn }
}

func NewRateLimiter(cfg RateLimitConfig, keyFn KeyExtractor, opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{
		cfg:         cfg,
		limit:       rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		keyFn:       keyFn,
		buckets:     make(map[string]*bucket),
		lastSweep:   time.Now(),
		sweepPeriod: 5 * time.Minute,
	}
	for _, o := range opts {
		o(rl)
	}
	return rl
}

// Allow takes a token from key's bucket. When refused it also returns how
// long until the next token.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.cfg.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	if b.lim.AllowN(now, 1) {
		return true, 0
	}
	r := b.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

// sweep drops buckets idle for longer than a full window refill.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.sweepPeriod {
		return
	}
	rl.lastSweep = now
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.cfg.Window {
			delete(rl.buckets, k)
		}
	}
}

// Middleware rejects over-limit requests with 429 and Retry-After.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if !rl.cfg.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, delay := rl.Allow(key)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(delay.Round(time.Second).Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", rl.cfg.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded", "retry_after", retryAfter)
			if rl.onLimit != nil {
				rl.onLimit(r)
			}

			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "temporarily_unavailable",
				"error_description": "too many requests, retry later",
			})
		})
	}
}

// RateLimitByIP limits per client address.
func RateLimitByIP(cfg RateLimitConfig, trusted TrustedProxies, opts ...RateLimitOption) Middleware {
	return NewRateLimiter(cfg, IPKeyExtractor(trusted), opts...).Middleware()
}

// RateLimitByIPAndFormField limits per client address and form field, such
// as username on the token endpoint.
func RateLimitByIPAndFormField(cfg RateLimitConfig, trusted TrustedProxies, field string, opts ...RateLimitOption) Middleware {
	return NewRateLimiter(cfg, CompositeKeyExtractor(":", IPKeyExtractor(trusted), FormFieldKeyExtractor(field)), opts...).Middleware()
}
