package httpx_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokend/pkg/httpx"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(addr, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = addr
	return req
}

func mustTrust(t *testing.T, cidrs ...string) httpx.TrustedProxies {
	t.Helper()
	trusted, err := httpx.ParseTrustedProxies(cidrs)
	require.NoError(t, err)
	return trusted
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		header  map[string]string
		want    string
	}{
		{"remote addr", nil, nil, "192.168.1.1"},
		{"forwarded for from proxy", []string{"192.168.1.0/24"}, map[string]string{"X-Forwarded-For": "203.0.113.1, 192.168.1.1"}, "203.0.113.1"},
		{"real ip from proxy", []string{"192.168.1.1"}, map[string]string{"X-Real-IP": " 203.0.113.2 "}, "203.0.113.2"},
		{"forwarded for from client", nil, map[string]string{"X-Forwarded-For": "203.0.113.1"}, "192.168.1.1"},
		{"real ip from other network", []string{"10.0.0.0/8"}, map[string]string{"X-Real-IP": "203.0.113.2"}, "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestFrom("192.168.1.1:12345", "/")
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.IPKeyExtractor(mustTrust(t, tt.trusted...))(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	trusted := mustTrust(t, "10.0.0.0/8", " 172.16.0.1 ", "", "::1")
	require.Len(t, trusted, 3)

	require.True(t, trusted.Trusts(requestFrom("10.1.2.3:80", "/")))
	require.True(t, trusted.Trusts(requestFrom("172.16.0.1:80", "/")))
	require.True(t, trusted.Trusts(requestFrom("[::1]:80", "/")))
	require.False(t, trusted.Trusts(requestFrom("172.16.0.2:80", "/")))
	require.False(t, trusted.Trusts(requestFrom("not-an-ip", "/")))

	_, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/33"})
	require.Error(t, err)
	_, err = httpx.ParseTrustedProxies([]string{"proxy.internal"})
	require.Error(t, err)
}

func TestFormFieldKeyExtractor(t *testing.T) {
	form := url.Values{"username": {"bob"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, "bob", httpx.FormFieldKeyExtractor("username")(req))

	// The body stays readable through the parsed form.
	require.Equal(t, "bob", req.PostFormValue("username"))

	require.Equal(t, "", httpx.FormFieldKeyExtractor("username")(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestCompositeKeyExtractor(t *testing.T) {
	ex := httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor(nil), httpx.FormFieldKeyExtractor("username"))

	require.Equal(t, "192.168.1.1:alice", ex(requestFrom("192.168.1.1:1", "/?username=alice")))
	require.Equal(t, "192.168.1.1", ex(requestFrom("192.168.1.1:1", "/")))
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	var limited atomic.Int32
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
	h := httpx.RateLimitByIP(cfg, nil, httpx.OnLimited(func(*http.Request) { limited.Add(1) }))(okHandler)

	for i := range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.1:1", "/"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("192.168.1.1:1", "/"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Contains(t, rec.Body.String(), "temporarily_unavailable")
	require.EqualValues(t, 1, limited.Load())

	// Other clients have their own bucket.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("192.168.1.2:1", "/"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIPAndFormField(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	h := httpx.RateLimitByIPAndFormField(cfg, nil, "username")(okHandler)

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.1:1", "/?username=alice"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("192.168.1.1:1", "/?username=alice"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("192.168.1.1:1", "/?username=bob"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIPAndFormField_IgnoresClientForwardedFor(t *testing.T) {
	h := httpx.RateLimitByIPAndFormField(httpx.StrictLimit, mustTrust(t, "10.0.0.0/8"), "username")(okHandler)

	limited := 0
	for i := range 20 {
		req := requestFrom("198.51.100.7:40000", "/?username=alice")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	require.Equal(t, 20-httpx.StrictLimit.Burst, limited)

	// Behind a trusted proxy each forwarded client has its own bucket.
	proxied := httpx.RateLimitByIPAndFormField(httpx.StrictLimit, mustTrust(t, "10.0.0.0/8"), "username")(okHandler)
	for i := range 20 {
		req := requestFrom("10.0.0.1:40000", "/?username=alice")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		proxied.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_EmptyKeyAndDisabled(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	empty := httpx.NewRateLimiter(cfg, func(*http.Request) string { return "" }).Middleware()(okHandler)
	disabled := httpx.RateLimitByIP(httpx.RateLimitConfig{}, nil)(okHandler)

	for range 3 {
		rec := httptest.NewRecorder()
		empty.ServeHTTP(rec, requestFrom("192.168.1.1:1", "/"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		disabled.ServeHTTP(rec, requestFrom("192.168.1.1:1", "/"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_AllowReportsDelay(t *testing.T) {
	rl := httpx.NewRateLimiter(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}, httpx.IPKeyExtractor(nil))

	ok, _ := rl.Allow("k")
	require.True(t, ok)

	ok, delay := rl.Allow("k")
	require.False(t, ok)
	require.Greater(t, delay, 30*time.Second)
	require.LessOrEqual(t, delay, time.Minute)
}

func TestRateLimitProfiles(t *testing.T) {
	for _, cfg := range []httpx.RateLimitConfig{httpx.StrictLimit, httpx.ModerateLimit, httpx.PublicLimit} {
		require.True(t, cfg.Enabled())
	}
	require.Less(t, httpx.StrictLimit.RequestsPerWindow, httpx.ModerateLimit.RequestsPerWindow)
	require.Less(t, httpx.ModerateLimit.RequestsPerWindow, httpx.PublicLimit.RequestsPerWindow)
}
