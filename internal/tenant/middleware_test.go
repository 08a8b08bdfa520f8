package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marshymcfloat/service-flow/internal/tenant"
)

func TestResolvePrefersHeader(t *testing.T) {
	resolver := tenant.NewResolver("", "bookings.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/v1/availability", nil)
	req.Host = "glow-spa.bookings.example.com"
	req.Header.Set("X-Business-ID", "acme-salon")

	if got := resolver.Resolve(req); got != "acme-salon" {
		t.Fatalf("expected header value, got %q", got)
	}
}

func TestResolveSubdomain(t *testing.T) {
	resolver := tenant.NewResolver("", "bookings.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/v1/availability", nil)
	req.Host = "glow-spa.bookings.example.com:8080"

	if got := resolver.Resolve(req); got != "glow-spa" {
		t.Fatalf("expected subdomain, got %q", got)
	}
}

func TestResolveRootDomainHasNoBusiness(t *testing.T) {
	resolver := tenant.NewResolver("", "bookings.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Host = "bookings.example.com"

	if got := resolver.Resolve(req); got != "" {
		t.Fatalf("expected empty business, got %q", got)
	}
}

func TestMiddlewareInjectsDefault(t *testing.T) {
	resolver := tenant.NewResolver("", "", "solo-studio")
	var seen string
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = tenant.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/availability", nil)
	req.Host = ""
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "solo-studio" {
		t.Fatalf("expected default business, got %q", seen)
	}
}

func TestPrefixKey(t *testing.T) {
	if got := tenant.PrefixKey("acme", "availability:2026-09-01"); got != "acme:availability:2026-09-01" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := tenant.PrefixKey("", "availability"); got != "availability" {
		t.Fatalf("unexpected key %q", got)
	}
}
