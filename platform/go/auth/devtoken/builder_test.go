package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuildToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()

	token, err := BuildToken(Params{
		UserID:        "9d2c6d3e-47b2-4b9a-8f2a-1f6a0c4de111",
		Email:         "admin@example.com",
		Name:          "Dev Admin",
		EmailVerified: true,
		SuperAdmin:    true,
		GlobalUser:    true,
		DefaultTenant: "2b1f4c8a-9e3d-4f5b-b6a7-8c9d0e1f2a3b",
		ExpiresIn:     time.Hour,
	}, []byte("dev-secret"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	header, payload := splitToken(t, token)
	if got, want := header["alg"], "HS256"; got != want {
		t.Fatalf("header alg = %v, want %v", got, want)
	}

	if got, want := payload["iss"], "gradnet-dev"; got != want {
		t.Errorf("iss = %v, want %v", got, want)
	}
	if got, want := payload["sub"], "9d2c6d3e-47b2-4b9a-8f2a-1f6a0c4de111"; got != want {
		t.Errorf("sub = %v, want %v", got, want)
	}
	if got, want := payload["email"], "admin@example.com"; got != want {
		t.Errorf("email = %v, want %v", got, want)
	}
	if got, want := payload["email_verified"], true; got != want {
		t.Errorf("email_verified = %v, want %v", got, want)
	}
	if got, want := payload["super_admin"], true; got != want {
		t.Errorf("super_admin = %v, want %v", got, want)
	}
	if got, want := payload["global_user"], true; got != want {
		t.Errorf("global_user = %v, want %v", got, want)
	}
	if got, want := payload["name"], "Dev Admin"; got != want {
		t.Errorf("name = %v, want %v", got, want)
	}
	if got, want := payload["default_tenant"], "2b1f4c8a-9e3d-4f5b-b6a7-8c9d0e1f2a3b"; got != want {
		t.Errorf("default_tenant = %v, want %v", got, want)
	}
	if got, want := payload["iat"], float64(now.Unix()); got != want {
		t.Errorf("iat = %v, want %v", got, want)
	}
	if got, want := payload["exp"], float64(now.Add(time.Hour).Unix()); got != want {
		t.Errorf("exp = %v, want %v", got, want)
	}
}

func TestBuildTokenOptionalClaimsOmitted(t *testing.T) {
	token, err := BuildToken(Params{
		UserID: "9d2c6d3e-47b2-4b9a-8f2a-1f6a0c4de111",
		Email:  "admin@example.com",
	}, []byte("dev-secret"), time.Unix(1_700_000_000, 0).UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, payload := splitToken(t, token)
	if _, present := payload["name"]; present {
		t.Errorf("name claim present, want omitted")
	}
	if _, present := payload["default_tenant"]; present {
		t.Errorf("default_tenant claim present, want omitted")
	}
}

func TestBuildTokenValidation(t *testing.T) {
	testCases := []struct {
		name   string
		params Params
		secret []byte
	}{
		{"missing user id", Params{Email: "a@b.c"}, []byte("s")},
		{"missing email", Params{UserID: "u"}, []byte("s")},
		{"missing secret", Params{UserID: "u", Email: "a@b.c"}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildToken(tc.params, tc.secret, time.Time{}); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func splitToken(t *testing.T, token string) (map[string]interface{}, map[string]interface{}) {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		t.Fatalf("invalid token format: %q", token)
	}

	header := decodeSegment(t, parts[0])
	payload := decodeSegment(t, parts[1])
	return header, payload
}

func decodeSegment(t *testing.T, segment string) map[string]interface{} {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		t.Fatalf("decode segment: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal segment: %v", err)
	}
	return out
}
