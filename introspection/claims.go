/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"encoding/json"
	"strings"

	jwtgo "github.com/golang-jwt/jwt/v5"
)

// Claims represents the payload of the signed introspection response.
// RegisteredClaims are the claims of the outer token ("aud" is the Resource Server's client id).
type Claims struct {
	jwtgo.RegisteredClaims
	TokenIntrospection *TokenIntrospection `json:"token_introspection,omitempty"`
}

// TokenIntrospection is the RFC 7662 introspection result nested into the signed response.
// Fields that are not known are kept in Extra.
type TokenIntrospection struct {
	Active    bool               `json:"active"`
	Scope     string             `json:"scope,omitempty"`
	ClientID  string             `json:"client_id,omitempty"`
	Username  string             `json:"username,omitempty"`
	TokenType string             `json:"token_type,omitempty"`
	Subject   string             `json:"sub,omitempty"`
	Audience  jwtgo.ClaimStrings `json:"aud,omitempty"`
	Issuer    string             `json:"iss,omitempty"`
	ID        string             `json:"jti,omitempty"`
	ExpiresAt *jwtgo.NumericDate `json:"exp,omitempty"`
	IssuedAt  *jwtgo.NumericDate `json:"iat,omitempty"`
	NotBefore *jwtgo.NumericDate `json:"nbf,omitempty"`

	Extra map[string]interface{} `json:"-"`
}

type tokenIntrospectionFields TokenIntrospection

var tokenIntrospectionKnownKeys = map[string]struct{}{
	"active": {}, "scope": {}, "client_id": {}, "username": {}, "token_type": {}, "sub": {},
	"aud": {}, "iss": {}, "jti": {}, "exp": {}, "iat": {}, "nbf": {},
}

// Scopes returns the list of space-separated scopes.
func (ti *TokenIntrospection) Scopes() []string {
	return strings.Fields(ti.Scope)
}

// ServiceProviderAudience returns the first audience of the introspected token.
// It identifies the Service Provider the token was issued for.
func (ti *TokenIntrospection) ServiceProviderAudience() string {
	if len(ti.Audience) == 0 {
		return ""
	}
	return ti.Audience[0]
}

func (ti *TokenIntrospection) UnmarshalJSON(data []byte) error {
	var fields tokenIntrospectionFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range tokenIntrospectionKnownKeys {
		delete(all, key)
	}
	*ti = TokenIntrospection(fields)
	if len(all) != 0 {
		ti.Extra = all
	}
	return nil
}

func (ti TokenIntrospection) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(tokenIntrospectionFields(ti))
	if err != nil || len(ti.Extra) == 0 {
		return data, err
	}
	var all map[string]interface{}
	if err = json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for key, val := range ti.Extra {
		if _, known := tokenIntrospectionKnownKeys[key]; !known {
			all[key] = val
		}
	}
	return json.Marshal(all)
}
