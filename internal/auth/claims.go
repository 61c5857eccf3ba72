package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the claims of an access token issued by the auth provider.
// The subject is the principal id; the application role is never read from
// the token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims pass.
func (c *Claims) Validate() error {
	if c.Subject == "" {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
