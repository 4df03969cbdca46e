package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client can read from a bearer token without the signing key.
type Claims struct {
	Subject     string
	Email       string
	DisplayName string
	Issuer      string
	Scope       []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the token carries an expiry that is before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// DecodeClaims reads the token payload without verifying the signature.
//
// It is best effort: any malformed token yields ok == false and never panics. Tokens with
// a header the JWT parser rejects are decoded from the raw base64url payload instead.
func DecodeClaims(token string) (Claims, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, false
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err == nil {
		return claimsFromMap(mc), true
	}

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return Claims{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return Claims{}, false
	}
	raw := map[string]any{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Claims{}, false
	}
	return claimsFromMap(jwt.MapClaims(raw)), true
}

// UserIDFromToken returns the token subject, or "" when the token cannot be decoded.
func UserIDFromToken(token string) string {
	c, ok := DecodeClaims(token)
	if !ok {
		return ""
	}
	return c.Subject
}

func claimsFromMap(mc jwt.MapClaims) Claims {
	c := Claims{
		Email:       stringClaim(mc, "email"),
		DisplayName: stringClaim(mc, "displayName"),
	}
	c.Subject, _ = mc.GetSubject()
	c.Issuer, _ = mc.GetIssuer()
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}

	switch scope := mc["scope"].(type) {
	case string:
		c.Scope = strings.Fields(scope)
	case []any:
		for _, s := range scope {
			if v, ok := s.(string); ok {
				c.Scope = append(c.Scope, v)
			}
		}
	}
	return c
}

func stringClaim(mc jwt.MapClaims, key string) string {
	v, _ := mc[key].(string)
	return v
}
