/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/acronis/go-appkit/config"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rsauth/astest"
	"github.com/acronis/go-rsauth/keystore"
)

func indentText(text, indent string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := range lines {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}

func makeTestConfigYAML() string {
	return `
rsauth:
  authorizationServer:
    url: https://as.example.com
  client:
    id: rs-client-id
    secret: rs-client-secret
  privateKey:
    pem: |
` + indentText(astest.TestRSPrivateKeyPEM, "      ") + "\n"
}

func TestConfig_Set(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := Config{}
		err := config.NewDefaultLoader("").LoadFromReader(
			bytes.NewBufferString(makeTestConfigYAML()), config.DataTypeYAML, &cfg)
		require.NoError(t, err)
		require.Equal(t, "https://as.example.com", cfg.AuthorizationServer.URL)
		require.Equal(t, "https://as.example.com", cfg.AuthorizationServer.ExpectedIssuer())
		require.Equal(t, "/introspect", cfg.AuthorizationServer.IntrospectionPath)
		require.Equal(t, "/jwks", cfg.AuthorizationServer.JWKSPath)
		require.Equal(t, config.TimeDuration(time.Second*10), cfg.HTTPClient.RequestTimeout)
		require.True(t, cfg.HTTPClient.VerifyTLS)
		require.Equal(t, ClientConfig{ID: "rs-client-id", Secret: "rs-client-secret"}, cfg.Client)
		require.Empty(t, cfg.RequiredScopes)
		require.Equal(t, "RS256", cfg.SigningAlgorithm)
		require.Equal(t, EncryptionConfig{Encoding: "A256GCM"}, cfg.Encryption)
		require.Equal(t, keystore.KeyTypeRSA, cfg.PrivateKey.Type)
		require.Equal(t, strings.TrimSpace(astest.TestRSPrivateKeyPEM), strings.TrimSpace(cfg.PrivateKey.PEM))
		require.Equal(t, JWKSCacheConfig{
			Enabled:           false,
			TTL:               config.TimeDuration(time.Minute * 5),
			UpdateMinInterval: config.TimeDuration(time.Minute),
		}, cfg.JWKS.Cache)
		require.Zero(t, cfg.Claims.Leeway)
	})

	t.Run("ok", func(t *testing.T) {
		cfgData := `
myauth:
  authorizationServer:
    url: http://127.0.0.1:8081/
    issuer: https://as.example.com
    introspectionPath: /oauth2/introspect
    jwksPath: /oauth2/keys
  httpClient:
    requestTimeout: 1m
    verifyTLS: false
    proxy: http://proxy.local:3128
  client:
    id: rs-client-id
    secret: rs-client-secret
  requiredScopes:
    - openid
    - groups:*
  signingAlgorithm: RS512
  encryption:
    algorithm: ecdh-es
    encoding: A128GCM
  privateKey:
    type: EC
    algorithm: ECDH-ES
    kid: rs-key-1
    pem: |
` + indentText(astest.TestRSECPrivateKeyPEM, "      ") + `
  jwks:
    cache:
      enabled: true
      ttl: 10m
      updateMinInterval: 30s
  claims:
    leeway: 5s
`
		cfg := NewConfig(WithKeyPrefix("myauth"))
		err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, AuthorizationServerConfig{
			URL:               "http://127.0.0.1:8081/",
			Issuer:            "https://as.example.com",
			IntrospectionPath: "/oauth2/introspect",
			JWKSPath:          "/oauth2/keys",
		}, cfg.AuthorizationServer)
		require.Equal(t, "https://as.example.com", cfg.AuthorizationServer.ExpectedIssuer())
		require.Equal(t, HTTPClientConfig{
			RequestTimeout: config.TimeDuration(time.Minute),
			VerifyTLS:      false,
			Proxy:          "http://proxy.local:3128",
		}, cfg.HTTPClient)
		require.Equal(t, []string{"openid", "groups:*"}, cfg.RequiredScopes)
		require.Equal(t, "RS512", cfg.SigningAlgorithm)
		require.Equal(t, EncryptionConfig{Algorithm: "ecdh-es", Encoding: "A128GCM"}, cfg.Encryption)
		require.Equal(t, keystore.KeyTypeEC, cfg.PrivateKey.Type)
		require.Equal(t, "ECDH-ES", cfg.PrivateKey.Algorithm)
		require.Equal(t, "rs-key-1", cfg.PrivateKey.KeyID)
		require.Equal(t, JWKSCacheConfig{
			Enabled:           true,
			TTL:               config.TimeDuration(time.Minute * 10),
			UpdateMinInterval: config.TimeDuration(time.Second * 30),
		}, cfg.JWKS.Cache)
		require.Equal(t, config.TimeDuration(time.Second*5), cfg.Claims.Leeway)
	})
}

func TestConfig_SetErrors(t *testing.T) {
	tests := []struct {
		name     string
		replaced string
		replacer string
		errKey   string
		errMsg   string
	}{
		{
			name:     "empty authorization server URL",
			replaced: "url: https://as.example.com",
			replacer: `url: ""`,
			errKey:   cfgKeyAuthorizationServerURL,
			errMsg:   "cannot be empty",
		},
		{
			name:     "authorization server URL with unsupported scheme",
			replaced: "url: https://as.example.com",
			replacer: "url: ftp://as.example.com",
			errKey:   cfgKeyAuthorizationServerURL,
			errMsg:   "scheme should be http or https",
		},
		{
			name:     "invalid authorization server URL",
			replaced: "url: https://as.example.com",
			replacer: "url: ://invalid-url",
			errKey:   cfgKeyAuthorizationServerURL,
			errMsg:   "missing protocol scheme",
		},
		{
			name:     "empty client id",
			replaced: "id: rs-client-id",
			replacer: `id: ""`,
			errKey:   cfgKeyClientID,
			errMsg:   "cannot be empty",
		},
		{
			name:     "empty client secret",
			replaced: "secret: rs-client-secret",
			replacer: `secret: ""`,
			errKey:   cfgKeyClientSecret,
			errMsg:   "cannot be empty",
		},
		{
			name:     "invalid HTTP client timeout",
			replaced: "  client:",
			replacer: "  httpClient:\n    requestTimeout: invalid\n  client:",
			errKey:   cfgKeyHTTPClientRequestTimeout,
			errMsg:   "invalid duration",
		},
		{
			name:     "negative HTTP client timeout",
			replaced: "  client:",
			replacer: "  httpClient:\n    requestTimeout: -1s\n  client:",
			errKey:   cfgKeyHTTPClientRequestTimeout,
			errMsg:   "should be non-negative",
		},
		{
			name:     "unsigned responses",
			replaced: "  client:",
			replacer: "  signingAlgorithm: none\n  client:",
			errKey:   cfgKeySigningAlgorithm,
			errMsg:   "unsigned responses are not allowed",
		},
		{
			name:     "empty private key",
			replaced: "    pem: |",
			replacer: `    pem: ""` + "\n    kid: |",
			errKey:   cfgKeyPrivateKeyPEM,
			errMsg:   "cannot be empty",
		},
		{
			name:     "invalid cache TTL",
			replaced: "  client:",
			replacer: "  jwks:\n    cache:\n      ttl: invalid\n  client:",
			errKey:   cfgKeyJWKSCacheTTL,
			errMsg:   "invalid duration",
		},
		{
			name:     "negative cache update min interval",
			replaced: "  client:",
			replacer: "  jwks:\n    cache:\n      updateMinInterval: -1m\n  client:",
			errKey:   cfgKeyJWKSCacheUpdateMinInterval,
			errMsg:   "should be non-negative",
		},
		{
			name:     "negative claims leeway",
			replaced: "  client:",
			replacer: "  claims:\n    leeway: -5s\n  client:",
			errKey:   cfgKeyClaimsLeeway,
			errMsg:   "should be non-negative",
		},
		{
			name:     "encryption algorithm conflicts with private key algorithm",
			replaced: "  privateKey:",
			replacer: "  encryption:\n    algorithm: RSA-OAEP-256\n  privateKey:\n    algorithm: RSA-OAEP",
			errKey:   cfgKeyEncryptionAlgorithm,
			errMsg:   "conflicts with privateKey.algorithm",
		},
		{
			name:     "invalid required scopes",
			replaced: "  client:",
			replacer: "  requiredScopes: {}\n  client:",
			errKey:   cfgKeyRequiredScopes,
			errMsg:   " unable to cast",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgData := strings.Replace(makeTestConfigYAML(), tt.replaced, tt.replacer, 1)
			cfg := Config{}
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, &cfg)
			require.ErrorContains(t, err, tt.errMsg)
			require.Truef(t, strings.HasPrefix(err.Error(), tt.errKey),
				"expected error starts with %q, got %q", tt.errKey, err.Error())
		})
	}
}
