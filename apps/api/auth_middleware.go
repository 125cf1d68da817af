package main

import (
	"net/http"

	"go.uber.org/zap"

	platformauth "github.com/gradnet-io/gradnet/platform/go/auth"
)

// buildAuthMiddleware constructs the JWT middleware for the configured
// provider. Requests without a token pass through unauthenticated; the
// tenancy pipeline decides whether a principal is required.
func buildAuthMiddleware(cfg config, logger *zap.Logger) func(http.Handler) http.Handler {
	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "hmac":
		if cfg.JWTSecret == "" {
			logger.Fatal("JWT_SECRET required when AUTH_PROVIDER=hmac")
		}
		verify = platformauth.HMACTokenVerifier([]byte(cfg.JWTSecret))
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
	}

	return platformauth.JWT(verify, platformauth.DefaultPrincipalExtractor)
}
