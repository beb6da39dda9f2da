package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errInvalidJWT = errors.New("invalid jwt")

// ExtractFromJWT parses an ID token and extracts identity claims without
// validating the signature. Signature checks belong to the issuer; the client
// only needs the claims to label the session.
func ExtractFromJWT(token string) (*Identity, error) {
	claims, err := parseJWTClaims(token)
	if err != nil {
		return nil, err
	}

	ident := &Identity{
		UID:           pickString(claims, "user_id", "uid", "sub"),
		Email:         extractEmailClaim(claims),
		DisplayName:   pickString(claims, "name", "display_name"),
		PhotoURL:      pickString(claims, "picture", "photo_url"),
		EmailVerified: pickBool(claims, "email_verified"),
		IDToken:       token,
	}
	if fb, ok := claims["firebase"].(map[string]interface{}); ok {
		ident.ProviderID = pickString(fb, "sign_in_provider")
	}

	if exp, ok := extractExpiry(claims); ok {
		ident.ExpiresAt = exp
	}

	return ident, nil
}

func parseJWTClaims(token string) (jwt.MapClaims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, fmt.Errorf("%w: expected 3 parts", errInvalidJWT)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithJSONNumber())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJWT, err)
	}
	return claims, nil
}

func extractEmailClaim(claims map[string]interface{}) string {
	emailFields := []string{"email", "preferred_username", "upn", "sub"}
	for _, field := range emailFields {
		if value := valueAsString(claims[field]); value != "" {
			if field == "sub" && !strings.Contains(value, "@") {
				continue
			}
			return value
		}
	}
	return ""
}

func extractExpiry(claims jwt.MapClaims) (time.Time, bool) {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time.UTC(), true
}

func pickString(claims map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value := valueAsString(claims[key]); value != "" {
			return value
		}
	}
	return ""
}

func pickBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func valueAsString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
