/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"fmt"
	"time"
)

// ClaimsPolicy describes what the signed introspection response must contain.
type ClaimsPolicy struct {
	// Issuer is the Authorization Server URL. "iss" must be equal to it exactly.
	Issuer string

	// Audience is the Resource Server's client id. "aud" must contain it.
	Audience string

	// Leeway is applied to "exp" and "nbf" of the response if they are present.
	Leeway time.Duration
}

// Validate checks the claims against the policy.
// Claims that are not required ("iat", "jti" and so on) are allowed.
func (p ClaimsPolicy) Validate(claims *Claims, now time.Time) error {
	if claims == nil {
		return &ClaimsValidationError{Claim: "token_introspection", Inner: ErrTokenIntrospectionMissing}
	}
	if claims.Issuer != p.Issuer {
		return &ClaimsValidationError{Claim: "iss", Inner: fmt.Errorf("%w (got: %q)", ErrIssuerMismatch, claims.Issuer)}
	}
	if !containsExactly(claims.Audience, p.Audience) {
		return &ClaimsValidationError{Claim: "aud", Inner: fmt.Errorf("%w (got: %q)", ErrAudienceMismatch, claims.Audience)}
	}
	if claims.TokenIntrospection == nil {
		return &ClaimsValidationError{Claim: "token_introspection", Inner: ErrTokenIntrospectionMissing}
	}
	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Add(p.Leeway)) {
		return &ClaimsValidationError{Claim: "exp", Inner: ErrExpired}
	}
	if claims.NotBefore != nil && now.Add(p.Leeway).Before(claims.NotBefore.Time) {
		return &ClaimsValidationError{Claim: "nbf", Inner: ErrNotValidYet}
	}
	return nil
}

func containsExactly(values []string, expected string) bool {
	for _, v := range values {
		if v == expected {
			return true
		}
	}
	return false
}
