package devtoken

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Params captures the claims required to mint a signed dev token for local
// and CI environments. All fields are provided by the caller; no environment
// variables are read so the builder stays deterministic for tooling.
type Params struct {
	UserID        string        // sub claim (required, uuid)
	Email         string        // email claim (required)
	Name          string        // display name (optional)
	EmailVerified bool          // email_verified claim
	SuperAdmin    bool          // super_admin custom claim
	GlobalUser    bool          // global_user custom claim
	DefaultTenant string        // default_tenant claim (optional, uuid)
	ExpiresIn     time.Duration // relative expiry; default 1h if zero
	Issuer        string        // optional override; defaults to "gradnet-dev"
}

// BuildToken returns an HS256-signed JWT accepted by the HMAC verifier used
// in dev deployments.
func BuildToken(p Params, secret []byte, now time.Time) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("userID is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return "", errors.New("email is required")
	}
	if len(secret) == 0 {
		return "", errors.New("secret is required")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}

	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	issuer := p.Issuer
	if strings.TrimSpace(issuer) == "" {
		issuer = "gradnet-dev"
	}

	claims := jwt.MapClaims{
		"iss":            issuer,
		"sub":            p.UserID,
		"iat":            now.Unix(),
		"exp":            now.Add(expiresIn).Unix(),
		"email":          p.Email,
		"email_verified": p.EmailVerified,
		"super_admin":    p.SuperAdmin,
		"global_user":    p.GlobalUser,
	}
	if p.Name != "" {
		claims["name"] = p.Name
	}
	if p.DefaultTenant != "" {
		claims["default_tenant"] = p.DefaultTenant
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
