package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const businessContextKey contextKey = "tenant.business-id"

// Resolver resolves the owning business for a request from either a header or
// the request subdomain. Every booking, sale event, and schedule read is scoped
// to the resolved business.
type Resolver struct {
	HeaderName      string
	RootDomain      string
	DefaultBusiness string
}

// NewResolver returns a resolver configured with the provided header name,
// root domain, and default business slug. If headerName is empty,
// "X-Business-ID" is used.
func NewResolver(headerName, rootDomain, defaultBusiness string) *Resolver {
	if headerName == "" {
		headerName = "X-Business-ID"
	}
	return &Resolver{
		HeaderName:      headerName,
		RootDomain:      strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultBusiness: strings.TrimSpace(defaultBusiness),
	}
}

// Middleware resolves the business from the request and injects it into the
// context passed downstream.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		businessID := r.Resolve(req)
		if businessID == "" {
			businessID = r.DefaultBusiness
		}
		if businessID != "" {
			ctx := WithBusiness(req.Context(), businessID)
			req = req.WithContext(ctx)
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve attempts to find the business identifier from the configured header
// or the request subdomain.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if businessID := strings.TrimSpace(req.Header.Get(r.HeaderName)); businessID != "" {
		return businessID
	}

	host := hostWithoutPort(req.Host)
	if host == "" {
		return ""
	}
	return strings.TrimSpace(r.subdomainFromHost(host))
}

func (r *Resolver) subdomainFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}

	if r.RootDomain != "" {
		if host == r.RootDomain {
			return ""
		}
		suffix := "." + r.RootDomain
		if strings.HasSuffix(host, suffix) {
			host = strings.TrimSuffix(host, suffix)
		} else {
			return ""
		}
	}

	parts := strings.Split(host, ".")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if strings.HasPrefix(hostport, "[") {
		if idx := strings.Index(hostport, "]"); idx != -1 {
			host := hostport[1:idx]
			if host != "" {
				return host
			}
		}
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	if idx := strings.Index(hostport, ":"); idx != -1 && strings.Count(hostport, ":") == 1 {
		return hostport[:idx]
	}
	return hostport
}

// WithBusiness stores the business identifier inside the context.
func WithBusiness(ctx context.Context, businessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, businessContextKey, businessID)
}

// FromContext extracts the business identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	businessID, ok := ctx.Value(businessContextKey).(string)
	if !ok {
		return "", false
	}
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return "", false
	}
	return businessID, true
}
