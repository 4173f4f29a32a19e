package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newSecurityRouter(opt SecurityOptions, setRID bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if setRID {
		r.Use(func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-sec")
			c.Next()
		})
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/probe", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := newSecurityRouter(SecurityOptions{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)

	h := w.Header()
	for hdr, want := range map[string]string{
		"X-Content-Type-Options":            "nosniff",
		"X-Frame-Options":                   "DENY",
		"Referrer-Policy":                   "no-referrer",
		"X-Permitted-Cross-Domain-Policies": "none",
		"Cache-Control":                     "no-store",
		"Pragma":                            "no-cache",
		"Expires":                           "0",
	} {
		if got := h.Get(hdr); got != want {
			t.Fatalf("%s = %q; want %q", hdr, got, want)
		}
	}
	if !strings.Contains(h.Get("Permissions-Policy"), "geolocation=()") {
		t.Fatalf("Permissions-Policy missing: %q", h.Get("Permissions-Policy"))
	}
	// No HSTS over plain HTTP
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected HSTS over plain HTTP: %q", h.Get("Strict-Transport-Security"))
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: 365 * 24 * time.Hour}

	// Plain HTTP: even with EnableHSTS the header must not be emitted.
	r := newSecurityRouter(opt, false)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS emitted for plain HTTP")
	}

	// Proxy-terminated TLS: X-Forwarded-Proto triggers HSTS.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req2.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w2, req2)
	got := w2.Header().Get("Strict-Transport-Security")
	if !strings.Contains(got, "max-age=31536000") || !strings.Contains(got, "includeSubDomains") {
		t.Fatalf("unexpected HSTS value: %q", got)
	}
}

func TestSecurityHeaders_HSTSDefaultMaxAge(t *testing.T) {
	// Zero max-age falls back to 180 days.
	r := newSecurityRouter(SecurityOptions{EnableHSTS: true}, false)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS") // case-insensitive match
	r.ServeHTTP(w, req)

	got := w.Header().Get("Strict-Transport-Security")
	if !strings.Contains(got, "max-age=15552000") {
		t.Fatalf("expected 180-day default, got %q", got)
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	// With an upstream request ID, it must be exposed to browser clients.
	r := newSecurityRouter(SecurityOptions{}, true)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Request-ID") {
		t.Fatalf("Access-Control-Expose-Headers = %q; want X-Request-ID", got)
	}

	// Without one, nothing is exposed.
	r2 := newSecurityRouter(SecurityOptions{}, false)
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r2.ServeHTTP(w2, req2)
	if got := w2.Header().Get("Access-Control-Expose-Headers"); got != "" {
		t.Fatalf("unexpected expose header without request id: %q", got)
	}
}

func TestIsHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://x/", nil)
	if isHTTPS(req) {
		t.Fatalf("plain request reported as HTTPS")
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if !isHTTPS(req) {
		t.Fatalf("forwarded-proto https not detected")
	}
}
