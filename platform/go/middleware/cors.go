package middleware

import (
	"net/http"
	"strings"
)

// Browser clients live on tenant subdomains, so the allow-list echoes the
// origin back for hosts under the product domain instead of using a wildcard.
// Credentials stay enabled for the tenant session cookie.
const corsDomainSuffix = ".gradnet.io"

var corsExtraOrigins = map[string]struct{}{
	"https://gradnet.io":    {},
	"http://localhost:3000": {},
	"http://localhost:5173": {},
}

func DefaultCORS() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); originAllowed(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-Tenant,X-Tenant-Targets")
				h.Set("Access-Control-Expose-Headers", "X-Tenant-ID,X-Tenant-Name,X-Tenant-Schema")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := corsExtraOrigins[origin]; ok {
		return true
	}
	host, ok := strings.CutPrefix(origin, "https://")
	return ok && strings.HasSuffix(host, corsDomainSuffix)
}
