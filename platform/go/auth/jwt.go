package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ExtractJWTToken pulls the bearer token out of the Authorization header.
func ExtractJWTToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	// Case-insensitive prefix match.
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(authHeader[len(prefix):]), true
}

// HMACTokenVerifier returns a VerifyFunc that validates HS256-signed tokens
// with the shared secret. This is the default verifier; external IdP
// integration plugs in through the same VerifyFunc seam.
func HMACTokenVerifier(secret []byte) VerifyFunc {
	return func(_ context.Context, token string) (map[string]interface{}, error) {
		if len(secret) == 0 {
			return nil, errors.New("auth secret is not configured")
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return secret, nil
		})
		if err != nil {
			return nil, err
		}
		if !parsed.Valid {
			return nil, errors.New("invalid token")
		}

		return map[string]interface{}(claims), nil
	}
}

// UnsignedTokenVerifier decodes claims without verifying the signature.
// Strictly for local development and tests; never wire it in production.
func UnsignedTokenVerifier() VerifyFunc {
	return func(_ context.Context, token string) (map[string]interface{}, error) {
		return parseUnsignedJWTClaims(token)
	}
}
