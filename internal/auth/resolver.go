package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// KeyResolver picks the validator for a token by its (unverified) issuer,
// then checks the audience of the verified claims.
type KeyResolver struct {
	validators       map[string]TokenValidator
	allowedIssuers   map[string]bool
	allowedAudiences []string
	peek             *jwt.Parser
}

func NewKeyResolver(allowedIssuers []string, allowedAudiences []string) *KeyResolver {
	issuers := make(map[string]bool, len(allowedIssuers))
	for _, issuer := range allowedIssuers {
		issuers[issuer] = true
	}

	return &KeyResolver{
		validators:       make(map[string]TokenValidator),
		allowedIssuers:   issuers,
		allowedAudiences: allowedAudiences,
		peek:             jwt.NewParser(),
	}
}

// RegisterValidator registers a validator for an issuer. Not safe to call
// once Resolve is in use.
func (kr *KeyResolver) RegisterValidator(issuer string, validator TokenValidator) {
	kr.validators[issuer] = validator
}

// Resolve verifies tokenString and returns its claims. All failures are
// *AuthError.
func (kr *KeyResolver) Resolve(ctx context.Context, tokenString string) (*Claims, error) {
	_, span := otel.Tracer("bmai-api/auth").Start(ctx, "auth.resolve_token")
	defer span.End()

	claims, err := kr.resolve(tokenString, func(issuer, kid string) {
		span.SetAttributes(attribute.String("jwt.issuer", issuer), attribute.String("jwt.kid", kid))
	})
	if err != nil {
		span.SetStatus(codes.Error, "token rejected")
		return nil, err
	}
	return claims, nil
}

func (kr *KeyResolver) resolve(tokenString string, observe func(issuer, kid string)) (*Claims, error) {
	issuer, kid, err := kr.extractHeaderInfo(tokenString)
	if err != nil {
		return nil, NewAuthError(AuthFailureUnknown, "malformed token", err)
	}
	observe(issuer, kid)

	validator, ok := kr.validators[issuer]
	if !ok || !kr.allowedIssuers[issuer] {
		return nil, NewAuthError(AuthFailureInvalidIssuer, fmt.Sprintf("issuer not allowed: %s", issuer), nil)
	}

	claims, err := validator.Validate(tokenString, kid)
	if err != nil {
		return nil, err
	}

	if !slices.ContainsFunc(claims.Audience, kr.audienceAllowed) {
		return nil, NewAuthError(AuthFailureInvalidAudience, fmt.Sprintf("invalid audience: %v", claims.Audience), nil)
	}
	return claims, nil
}

// extractHeaderInfo reads iss and kid without verifying the signature.
// A missing kid means DefaultKID.
func (kr *KeyResolver) extractHeaderInfo(tokenString string) (issuer, kid string, err error) {
	token, _, err := kr.peek.ParseUnverified(tokenString, &jwt.RegisteredClaims{})
	if err != nil {
		return "", "", err
	}

	issuer, err = token.Claims.GetIssuer()
	if err != nil {
		return "", "", err
	}

	kid, _ = token.Header["kid"].(string)
	if kid == "" {
		kid = DefaultKID
	}
	return issuer, kid, nil
}

func (kr *KeyResolver) audienceAllowed(aud string) bool {
	return slices.Contains(kr.allowedAudiences, aud)
}
