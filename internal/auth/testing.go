package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SetAuthContextForTesting injects an AuthContext into a context for testing purposes
// This should only be used in tests to simulate authenticated requests
func SetAuthContextForTesting(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// SignTestToken signs an HS256 token for subject. Tests only.
func SignTestToken(secret []byte, issuer, audience, subject string, ttl time.Duration) string {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	return token
}
