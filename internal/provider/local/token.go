package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Dicklesworthstone/authdeck/internal/db"
)

const issuer = "authdeck-local"

type tokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// issue signs an HS256 ID token shaped like the hosted provider's.
func (t *tokenIssuer) issue(acct *db.Account) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl).Truncate(time.Second)

	claims := jwt.MapClaims{
		"iss":            issuer,
		"aud":            issuer,
		"sub":            acct.UID,
		"user_id":        acct.UID,
		"email":          acct.Email,
		"email_verified": acct.EmailVerified,
		"iat":            now.Unix(),
		"exp":            expires.Unix(),
		"firebase": map[string]any{
			"sign_in_provider": "password",
		},
	}
	if acct.DisplayName != "" {
		claims["name"] = acct.DisplayName
	}
	if acct.PhotoURL != "" {
		claims["picture"] = acct.PhotoURL
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// verify checks the signature and issuer, ignoring expiry, and returns the
// subject.
func (t *tokenIssuer) verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	if iss, _ := parsed.Claims.GetIssuer(); iss != issuer {
		return "", fmt.Errorf("unexpected issuer %q", iss)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
