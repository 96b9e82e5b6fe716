/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection_test

import (
	"encoding/json"
	"testing"

	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rsauth/introspection"
)

func TestClaims_UnmarshalJSON(t *testing.T) {
	const payload = `{
		"iss": "https://as.example.com",
		"aud": "rs-client-id",
		"iat": 1700000000,
		"jti": "f3f1b6a0",
		"token_introspection": {
			"active": true,
			"scope": "openid  groups profile",
			"client_id": "sp-client-id",
			"username": "alice",
			"token_type": "Bearer",
			"sub": "user-1",
			"aud": ["sp-audience", "another"],
			"iss": "https://as.example.com",
			"exp": 1700003600,
			"tenant_id": "t1",
			"groups": ["admins"]
		}
	}`

	var claims introspection.Claims
	require.NoError(t, json.Unmarshal([]byte(payload), &claims))
	require.Equal(t, "https://as.example.com", claims.Issuer)
	require.Equal(t, jwtgo.ClaimStrings{"rs-client-id"}, claims.Audience)
	require.Equal(t, "f3f1b6a0", claims.ID)
	require.NotNil(t, claims.IssuedAt)

	ti := claims.TokenIntrospection
	require.NotNil(t, ti)
	require.True(t, ti.Active)
	require.Equal(t, []string{"openid", "groups", "profile"}, ti.Scopes())
	require.Equal(t, "sp-client-id", ti.ClientID)
	require.Equal(t, "alice", ti.Username)
	require.Equal(t, "Bearer", ti.TokenType)
	require.Equal(t, "user-1", ti.Subject)
	require.Equal(t, "sp-audience", ti.ServiceProviderAudience())
	require.EqualValues(t, 1700003600, ti.ExpiresAt.Unix())
	require.Equal(t, map[string]interface{}{"tenant_id": "t1", "groups": []interface{}{"admins"}}, ti.Extra)
}

func TestTokenIntrospection_ActiveIsFalseWhenAbsent(t *testing.T) {
	var ti introspection.TokenIntrospection
	require.NoError(t, json.Unmarshal([]byte(`{"sub": "user-1"}`), &ti))
	require.False(t, ti.Active)
	require.Nil(t, ti.Extra)
	require.Empty(t, ti.Scopes())
	require.Empty(t, ti.ServiceProviderAudience())
}

func TestTokenIntrospection_MarshalJSON(t *testing.T) {
	ti := introspection.TokenIntrospection{
		Active:  true,
		Scope:   "openid",
		Subject: "user-1",
		Extra:   map[string]interface{}{"tenant_id": "t1", "sub": "must-not-override"},
	}
	data, err := json.Marshal(ti)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, map[string]interface{}{
		"active": true, "scope": "openid", "sub": "user-1", "tenant_id": "t1",
	}, got)

	data, err = json.Marshal(introspection.TokenIntrospection{})
	require.NoError(t, err)
	require.JSONEq(t, `{"active": false}`, string(data))
}
