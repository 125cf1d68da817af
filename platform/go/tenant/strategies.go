package tenant

import (
	"net"
	"net/http"
	"strings"
)

// Strategy derives a candidate tenant identifier from one request signal.
// Implementations must be cheap; directory lookups happen in the Resolver.
type Strategy interface {
	Name() string
	Identify(r *http.Request) (identifier string, kind IdentifierKind, ok bool)
}

// DefaultExcludedSubdomains are host labels that never name a tenant.
var DefaultExcludedSubdomains = []string{"www", "api", "admin", "app", "mail", "static"}

// SubdomainStrategy extracts the leftmost host label when the host has at
// least three dot-separated segments and the label is not excluded.
type SubdomainStrategy struct {
	excluded map[string]struct{}
}

// NewSubdomainStrategy builds the strategy with the given excluded labels;
// nil falls back to DefaultExcludedSubdomains.
func NewSubdomainStrategy(excluded []string) *SubdomainStrategy {
	if excluded == nil {
		excluded = DefaultExcludedSubdomains
	}
	set := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		set[strings.ToLower(e)] = struct{}{}
	}
	return &SubdomainStrategy{excluded: set}
}

func (s *SubdomainStrategy) Name() string { return "subdomain" }

func (s *SubdomainStrategy) Identify(r *http.Request) (string, IdentifierKind, bool) {
	host := hostWithoutPort(r.Host)
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return "", "", false
	}
	sub := strings.ToLower(labels[0])
	if sub == "" {
		return "", "", false
	}
	if _, skip := s.excluded[sub]; skip {
		return "", "", false
	}
	return sub, IdentifierSubdomain, true
}

// DomainStrategy matches the full host against tenant custom domains.
type DomainStrategy struct{}

func (DomainStrategy) Name() string { return "custom_domain" }

func (DomainStrategy) Identify(r *http.Request) (string, IdentifierKind, bool) {
	host := hostWithoutPort(r.Host)
	if host == "" {
		return "", "", false
	}
	return strings.ToLower(host), IdentifierDomain, true
}

// DefaultTenantHeader is the explicit tenant slug header.
const DefaultTenantHeader = "X-Tenant"

// HeaderStrategy reads a tenant slug from an explicit request header.
type HeaderStrategy struct {
	Header string
}

func NewHeaderStrategy(header string) *HeaderStrategy {
	if header == "" {
		header = DefaultTenantHeader
	}
	return &HeaderStrategy{Header: header}
}

func (s *HeaderStrategy) Name() string { return "header" }

func (s *HeaderStrategy) Identify(r *http.Request) (string, IdentifierKind, bool) {
	v := strings.TrimSpace(r.Header.Get(s.Header))
	if v == "" {
		return "", "", false
	}
	return strings.ToLower(v), IdentifierSlug, true
}

// QueryStrategy reads a tenant slug from a query parameter.
type QueryStrategy struct {
	Param string
}

func NewQueryStrategy(param string) *QueryStrategy {
	if param == "" {
		param = "tenant"
	}
	return &QueryStrategy{Param: param}
}

func (s *QueryStrategy) Name() string { return "query" }

func (s *QueryStrategy) Identify(r *http.Request) (string, IdentifierKind, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(s.Param))
	if v == "" {
		return "", "", false
	}
	return strings.ToLower(v), IdentifierSlug, true
}

// DefaultSessionCookie stores the slug of the last tenant resolved for this
// client so resolution survives requests without stronger signals.
const DefaultSessionCookie = "gradnet_tenant"

// SessionStrategy falls back to the tenant slug remembered in the session
// cookie written by the resolution pipeline on earlier successes.
type SessionStrategy struct {
	Cookie string
}

func NewSessionStrategy(cookie string) *SessionStrategy {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	return &SessionStrategy{Cookie: cookie}
}

func (s *SessionStrategy) Name() string { return "session" }

func (s *SessionStrategy) Identify(r *http.Request) (string, IdentifierKind, bool) {
	c, err := r.Cookie(s.Cookie)
	if err != nil || c.Value == "" {
		return "", "", false
	}
	return strings.ToLower(c.Value), IdentifierSlug, true
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
