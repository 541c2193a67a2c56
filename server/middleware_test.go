package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/openfda-api/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(r.RemoteAddr))
})

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"no headers", nil, "192.0.2.1:1234"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			RealIPMiddleware(okHandler).ServeHTTP(rr, req)
			if rr.Body.String() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, rr.Body.String())
			}
		})
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		header     string
		want       int
	}{
		{"proxied", "203.0.113.7:1234", "X-Real-IP", http.StatusOK},
		{"loopback v4", "127.0.0.1:1234", "", http.StatusOK},
		{"loopback v6", "[::1]:1234", "", http.StatusOK},
		{"direct", "203.0.113.7:1234", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/drug/search", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.header != "" {
				req.Header.Set(tt.header, "203.0.113.7")
			}
			rr := httptest.NewRecorder()
			BlockDirectAccessMiddleware(okHandler).ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 16, MaxHeaderSize: 64}
	h := RequestSizeMiddleware(cfg)(okHandler)

	tests := []struct {
		name string
		req  func() *http.Request
		want int
	}{
		{"small", func() *http.Request { return httptest.NewRequest(http.MethodGet, "/drug/search?item=drug", nil) }, http.StatusOK},
		{"large body", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 32)))
		}, http.StatusRequestEntityTooLarge},
		{"long query", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/drug/search?drugName="+strings.Repeat("a", 80), nil)
		}, http.StatusRequestHeaderFieldsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, tt.req())
			if rr.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rr.Code)
			}
			if tt.want != http.StatusOK && !strings.Contains(rr.Body.String(), `"error"`) {
				t.Errorf("Expected a JSON error body, got %s", rr.Body.String())
			}
		})
	}
}

func TestTokenCost(t *testing.T) {
	tests := []struct {
		target string
		want   int64
	}{
		{"/metrics", 0},
		{"/health", 5},
		{"/drug/schema", 5},
		{"/drug/search?item=drug", 50},
		{"/drug/search?item=drug&format=CSV", 100},
		{"/other", 20},
	}
	for _, tt := range tests {
		if got := tokenCost(httptest.NewRequest(http.MethodGet, tt.target, nil)); got != tt.want {
			t.Errorf("tokenCost(%s) = %d, want %d", tt.target, got, tt.want)
		}
	}
}

func TestRateLimiterExhaustsBucket(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	defer rl.Close()
	h := rl.Middleware(okHandler)

	// 1000 tokens at 100 per export: the eleventh export is refused
	var last int
	for range 11 {
		req := httptest.NewRequest(http.MethodGet, "/drug/search?item=drug&format=csv", nil)
		req.RemoteAddr = "198.51.100.1:1"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", last)
	}

	// Other clients are unaffected
	req := httptest.NewRequest(http.MethodGet, "/drug/search?item=drug", nil)
	req.RemoteAddr = "198.51.100.2:1"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 for another client, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "950" {
		t.Errorf("Expected 950 remaining, got %s", rr.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	defer rl.Close()

	rl.bucket("full")
	rl.bucket("used").TakeAvailable(500)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.clients["full"]; ok {
		t.Error("Expected the idle client to be dropped")
	}
	if _, ok := rl.clients["used"]; !ok {
		t.Error("Expected the active client to be kept")
	}
}
