/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"context"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rsauth/astest"
	"github.com/acronis/go-rsauth/introspection"
	"github.com/acronis/go-rsauth/keystore"
	"github.com/acronis/go-rsauth/principal"
)

func newTestConfig(asURL string) *Config {
	cfg := NewDefaultConfig()
	cfg.AuthorizationServer.URL = asURL
	cfg.Client = ClientConfig{ID: astest.TestClientID, Secret: astest.TestClientSecret}
	cfg.PrivateKey.PEM = astest.TestRSPrivateKeyPEM
	return cfg
}

func TestNewAuthenticatorFromConfig(t *testing.T) {
	tokens := astest.StaticTokenIntrospector{
		"valid-token": {Active: true, Scope: "openid", Subject: "user-1"},
	}
	asSrv := astest.NewHTTPServer(astest.WithHTTPTokenIntrospector(tokens))
	require.NoError(t, asSrv.StartAndWaitForReady(time.Second))
	defer func() { _ = asSrv.Shutdown(context.Background()) }()

	store := principal.NewMemoryStore(principal.User{ID: "42", Subject: "user-1"})
	jwksHandler := asSrv.KeysHandler.(*astest.JWKSHandler)

	t.Run("ok", func(t *testing.T) {
		auth, err := NewAuthenticatorFromConfig(newTestConfig(asSrv.URL()), store)
		require.NoError(t, err)

		jwksServedBefore := jwksHandler.ServedCount()
		for i := 0; i < 2; i++ {
			p, authErr := auth.AuthenticateBearerToken(context.Background(), "valid-token")
			require.NoError(t, authErr)
			require.NotNil(t, p)
			require.Equal(t, "42", p.User.ID)
		}
		require.Equal(t, jwksServedBefore+2, jwksHandler.ServedCount())
	})

	t.Run("ok, keys are cached", func(t *testing.T) {
		cfg := newTestConfig(asSrv.URL())
		cfg.JWKS.Cache.Enabled = true
		auth, err := NewAuthenticatorFromConfig(cfg, store)
		require.NoError(t, err)

		jwksServedBefore := jwksHandler.ServedCount()
		for i := 0; i < 3; i++ {
			p, authErr := auth.AuthenticateBearerToken(context.Background(), "valid-token")
			require.NoError(t, authErr)
			require.NotNil(t, p)
		}
		require.Equal(t, jwksServedBefore+1, jwksHandler.ServedCount())
	})

	t.Run("required scopes", func(t *testing.T) {
		cfg := newTestConfig(asSrv.URL())
		cfg.RequiredScopes = []string{"admin"}
		auth, err := NewAuthenticatorFromConfig(cfg, store)
		require.NoError(t, err)
		_, err = auth.AuthenticateBearerToken(context.Background(), "valid-token")
		require.ErrorIs(t, err, ErrInsufficientScope)
	})

	t.Run("issuer differs from authorization server URL", func(t *testing.T) {
		cfg := newTestConfig(asSrv.URL())
		cfg.AuthorizationServer.Issuer = "https://as.example.com"
		auth, err := NewAuthenticatorFromConfig(cfg, store)
		require.NoError(t, err)
		_, err = auth.AuthenticateBearerToken(context.Background(), "valid-token")
		require.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("client credentials are rejected", func(t *testing.T) {
		cfg := newTestConfig(asSrv.URL())
		cfg.Client.Secret = "wrong-secret"
		auth, err := NewAuthenticatorFromConfig(cfg, store)
		require.NoError(t, err)
		_, err = auth.AuthenticateBearerToken(context.Background(), "valid-token")
		require.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestNewAuthenticatorFromConfig_TimeFunc(t *testing.T) {
	const issuer = "https://as.example.com"
	expiresAt := time.Now().Add(time.Minute)

	introspectionHandler := &astest.IntrospectionHandler{
		Issuer:            issuer,
		TokenIntrospector: astest.StaticTokenIntrospector{"valid-token": {Active: true, Subject: "user-1"}},
		ClaimsModifier: func(claims *introspection.Claims) {
			claims.ExpiresAt = jwtgo.NewNumericDate(expiresAt)
		},
	}
	asSrv := astest.NewHTTPServer(astest.WithHTTPIntrospectionHandler(introspectionHandler))
	require.NoError(t, asSrv.StartAndWaitForReady(time.Second))
	defer func() { _ = asSrv.Shutdown(context.Background()) }()

	store := principal.NewMemoryStore(principal.User{ID: "42", Subject: "user-1"})
	cfg := newTestConfig(asSrv.URL())
	cfg.AuthorizationServer.Issuer = issuer

	auth, err := NewAuthenticatorFromConfig(cfg, store)
	require.NoError(t, err)
	p, err := auth.AuthenticateBearerToken(context.Background(), "valid-token")
	require.NoError(t, err)
	require.NotNil(t, p)

	auth, err = NewAuthenticatorFromConfig(cfg, store, WithAuthenticatorTimeFunc(func() time.Time {
		return expiresAt.Add(time.Minute)
	}))
	require.NoError(t, err)
	_, err = auth.AuthenticateBearerToken(context.Background(), "valid-token")
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestNewAuthenticatorFromConfig_Errors(t *testing.T) {
	store := principal.NewMemoryStore()

	tests := []struct {
		name        string
		modifyCfg   func(cfg *Config)
		store       principal.Store
		expectedKey string
	}{
		{
			name:        "malformed private key",
			modifyCfg:   func(cfg *Config) { cfg.PrivateKey.PEM = "not a pem" },
			expectedKey: cfgKeyPrivateKeyPEM,
		},
		{
			name:        "unsupported private key type",
			modifyCfg:   func(cfg *Config) { cfg.PrivateKey.Type = keystore.KeyType("DSA") },
			expectedKey: cfgKeyPrivateKeyType,
		},
		{
			name:        "unsupported key algorithm",
			modifyCfg:   func(cfg *Config) { cfg.Encryption.Algorithm = "dir" },
			expectedKey: cfgKeyPrivateKeyAlgorithm,
		},
		{
			name:        "unsupported signing algorithm",
			modifyCfg:   func(cfg *Config) { cfg.SigningAlgorithm = "XX256" },
			expectedKey: cfgKeySigningAlgorithm,
		},
		{
			name:        "empty client id",
			modifyCfg:   func(cfg *Config) { cfg.Client.ID = "" },
			expectedKey: cfgKeyClientID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig("https://as.example.com")
			tt.modifyCfg(cfg)
			_, err := NewAuthenticatorFromConfig(cfg, store)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tt.expectedKey, cfgErr.Key)
		})
	}
}

func TestLoadPrivateKeyFromConfig(t *testing.T) {
	tests := []struct {
		name        string
		modifyCfg   func(cfg *Config)
		expectedAlg string
		expectedKey string
	}{
		{
			name:        "default algorithm for RSA key",
			modifyCfg:   func(cfg *Config) {},
			expectedAlg: "RSA-OAEP",
		},
		{
			name: "default algorithm for EC key",
			modifyCfg: func(cfg *Config) {
				cfg.PrivateKey.PEM = astest.TestRSECPrivateKeyPEM
				cfg.PrivateKey.Type = keystore.KeyTypeEC
			},
			expectedAlg: "ECDH-ES",
		},
		{
			name:        "encryption algorithm is used as key algorithm",
			modifyCfg:   func(cfg *Config) { cfg.Encryption.Algorithm = "RSA-OAEP-256" },
			expectedAlg: "RSA-OAEP-256",
		},
		{
			name:        "private key algorithm",
			modifyCfg:   func(cfg *Config) { cfg.PrivateKey.Algorithm = "RSA-OAEP-256" },
			expectedAlg: "RSA-OAEP-256",
		},
		{
			name: "both algorithms are equal",
			modifyCfg: func(cfg *Config) {
				cfg.Encryption.Algorithm = "rsa-oaep-256"
				cfg.PrivateKey.Algorithm = "RSA-OAEP-256"
			},
			expectedAlg: "RSA-OAEP-256",
		},
		{
			name: "algorithms conflict",
			modifyCfg: func(cfg *Config) {
				cfg.Encryption.Algorithm = "RSA-OAEP-256"
				cfg.PrivateKey.Algorithm = "RSA-OAEP"
			},
			expectedKey: cfgKeyEncryptionAlgorithm,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig("https://as.example.com")
			tt.modifyCfg(cfg)
			privateKey, err := LoadPrivateKeyFromConfig(cfg)
			if tt.expectedKey != "" {
				var cfgErr *ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				require.Equal(t, tt.expectedKey, cfgErr.Key)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expectedAlg, string(privateKey.Algorithm()))
		})
	}
}

func TestNewAuthenticatorFromConfig_EncryptionAlgorithm(t *testing.T) {
	asSrv := astest.NewHTTPServer(
		astest.WithHTTPTokenIntrospector(astest.StaticTokenIntrospector{
			"valid-token": {Active: true, Subject: "user-1"},
		}),
		astest.WithHTTPResponseOpts(astest.ResponseOpts{KeyAlgorithm: jose.RSA_OAEP_256}),
	)
	require.NoError(t, asSrv.StartAndWaitForReady(time.Second))
	defer func() { _ = asSrv.Shutdown(context.Background()) }()

	store := principal.NewMemoryStore(principal.User{ID: "42", Subject: "user-1"})

	cfg := newTestConfig(asSrv.URL())
	cfg.Encryption.Algorithm = "RSA-OAEP-256"
	auth, err := NewAuthenticatorFromConfig(cfg, store)
	require.NoError(t, err)
	p, err := auth.AuthenticateBearerToken(context.Background(), "valid-token")
	require.NoError(t, err)
	require.NotNil(t, p)

	cfg.PrivateKey.Algorithm = "RSA-OAEP"
	_, err = NewAuthenticatorFromConfig(cfg, store)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, cfgKeyEncryptionAlgorithm, cfgErr.Key)
}
