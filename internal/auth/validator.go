package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator verifies a token signed by one issuer.
type TokenValidator interface {
	Validate(tokenString string, kid string) (*Claims, error)
}

// HS256Validator verifies tokens signed with a shared secret. The parser
// enforces the algorithm, the issuer, a present exp and the iat bound;
// Claims.Validate adds the subject requirement.
type HS256Validator struct {
	keyStore *KeyStore
	issuer   string
	parser   *jwt.Parser
}

func NewHS256Validator(keyStore *KeyStore, issuer string, clockSkew time.Duration) *HS256Validator {
	return &HS256Validator{
		keyStore: keyStore,
		issuer:   issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

// Validate checks the signature and registered claims of tokenString using
// the secret registered under kid. Failures are *AuthError.
func (v *HS256Validator) Validate(tokenString string, kid string) (*Claims, error) {
	secret, ok := v.keyStore.GetHS256Key(v.issuer, kid)
	if !ok {
		return nil, NewAuthError(AuthFailureUnknown, fmt.Sprintf("key not found for issuer %s and kid %s", v.issuer, kid), nil)
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, NewAuthError(failureReason(err), "token rejected", err)
	}
	return claims, nil
}

func failureReason(err error) AuthFailureReason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return AuthFailureTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return AuthFailureInvalidSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return AuthFailureInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return AuthFailureInvalidAudience
	default:
		return AuthFailureUnknown
	}
}
