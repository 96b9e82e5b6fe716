/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-rsauth/asclient"
	"github.com/acronis/go-rsauth/internal/asutil"
	"github.com/acronis/go-rsauth/introspection"
	"github.com/acronis/go-rsauth/keystore"
	"github.com/acronis/go-rsauth/principal"
)

type authenticatorOptions struct {
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
	timeFunc                   func() time.Time
}

// AuthenticatorOption is an option for creating Authenticator from configuration.
type AuthenticatorOption func(options *authenticatorOptions)

// WithAuthenticatorLoggerProvider sets the logger provider for Authenticator and the Authorization Server client.
func WithAuthenticatorLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) AuthenticatorOption {
	return func(options *authenticatorOptions) {
		options.loggerProvider = loggerProvider
	}
}

// WithAuthenticatorPrometheusLibInstanceLabel sets the Prometheus lib instance label for Authenticator.
func WithAuthenticatorPrometheusLibInstanceLabel(label string) AuthenticatorOption {
	return func(options *authenticatorOptions) {
		options.prometheusLibInstanceLabel = label
	}
}

// WithAuthenticatorTimeFunc sets the clock used for "exp" and "nbf" checks of introspection responses.
func WithAuthenticatorTimeFunc(timeFunc func() time.Time) AuthenticatorOption {
	return func(options *authenticatorOptions) {
		options.timeFunc = timeFunc
	}
}

// NewAuthenticatorFromConfig creates Authenticator with all its dependencies from the given configuration.
// The private key is loaded and validated here, so misconfiguration is reported at startup.
func NewAuthenticatorFromConfig(cfg *Config, store principal.Store, opts ...AuthenticatorOption) (*Authenticator, error) {
	options := authenticatorOptions{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}

	if err := validateClientCredentials(cfg.Client.ID, cfg.Client.Secret); err != nil {
		return nil, err
	}

	privateKey, err := LoadPrivateKeyFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	httpClient, err := asutil.MakeHTTPClient(asutil.HTTPClientOpts{
		RequestTimeout:     time.Duration(cfg.HTTPClient.RequestTimeout),
		InsecureSkipVerify: !cfg.HTTPClient.VerifyTLS,
		ProxyURL:           cfg.HTTPClient.Proxy,
	})
	if err != nil {
		return nil, &ConfigurationError{Key: cfgKeyHTTPClientProxy, Inner: err}
	}
	if !cfg.HTTPClient.VerifyTLS {
		asutil.GetLoggerFromProvider(context.Background(), options.loggerProvider).Warn(
			"TLS verification of the authorization server is disabled")
	}

	clientOpts := asclient.ClientOpts{
		HTTPClient:                 httpClient,
		IntrospectionPath:          cfg.AuthorizationServer.IntrospectionPath,
		JWKSPath:                   cfg.AuthorizationServer.JWKSPath,
		LoggerProvider:             options.loggerProvider,
		PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
	}

	var introspector TokenIntrospector
	var keySetProvider KeySetProvider
	if cfg.JWKS.Cache.Enabled {
		cachingClient, cErr := asclient.NewCachingJWKSClientWithOpts(cfg.AuthorizationServer.URL, asclient.CachingJWKSClientOpts{
			ClientOpts:             clientOpts,
			CacheTTL:               time.Duration(cfg.JWKS.Cache.TTL),
			CacheUpdateMinInterval: time.Duration(cfg.JWKS.Cache.UpdateMinInterval),
		})
		if cErr != nil {
			return nil, &ConfigurationError{Key: cfgKeyAuthorizationServerURL, Inner: cErr}
		}
		introspector, keySetProvider = cachingClient.Client(), cachingClient
	} else {
		client, cErr := asclient.NewClientWithOpts(cfg.AuthorizationServer.URL, clientOpts)
		if cErr != nil {
			return nil, &ConfigurationError{Key: cfgKeyAuthorizationServerURL, Inner: cErr}
		}
		introspector, keySetProvider = client, client
	}

	verifier, err := introspection.NewVerifierWithOpts(introspection.VerifierOpts{
		PrivateKey:        privateKey,
		ContentEncryption: cfg.Encryption.Encoding,
		SigningAlgorithm:  cfg.SigningAlgorithm,
		Policy: introspection.ClaimsPolicy{
			Issuer:   cfg.AuthorizationServer.ExpectedIssuer(),
			Audience: cfg.Client.ID,
			Leeway:   time.Duration(cfg.Claims.Leeway),
		},
		TimeFunc: options.timeFunc,
	})
	if err != nil {
		return nil, &ConfigurationError{Key: cfgKeySigningAlgorithm, Inner: fmt.Errorf("new verifier: %w", err)}
	}

	return NewAuthenticator(introspector, keySetProvider, verifier, store, AuthenticatorOpts{
		ClientID:                   cfg.Client.ID,
		ClientSecret:               cfg.Client.Secret,
		RequiredScopes:             cfg.RequiredScopes,
		LoggerProvider:             options.loggerProvider,
		PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
	})
}

// LoadPrivateKeyFromConfig loads the Resource Server private key.
// The key algorithm is "privateKey.algorithm", or "encryption.algorithm" if the former is empty.
// If both are empty, the default algorithm for the key type is used (RSA-OAEP for RSA, ECDH-ES for EC).
func LoadPrivateKeyFromConfig(cfg *Config) (*keystore.PrivateKey, error) {
	keyAlg := cfg.PrivateKey.Algorithm
	if keyAlg == "" {
		keyAlg = cfg.Encryption.Algorithm
	} else if cfg.Encryption.Algorithm != "" && !strings.EqualFold(cfg.Encryption.Algorithm, keyAlg) {
		return nil, &ConfigurationError{Key: cfgKeyEncryptionAlgorithm, Inner: fmt.Errorf(
			"%q conflicts with %s %q", cfg.Encryption.Algorithm, cfgKeyPrivateKeyAlgorithm, keyAlg)}
	}
	privateKey, err := keystore.LoadPrivateKey(keystore.KeyConfig{
		PEM:       cfg.PrivateKey.PEM,
		Type:      cfg.PrivateKey.Type,
		Algorithm: keyAlg,
		KeyID:     cfg.PrivateKey.KeyID,
	})
	if err != nil {
		cfgKey := cfgKeyPrivateKeyPEM
		var keyCfgErr *keystore.ConfigurationError
		if errors.As(err, &keyCfgErr) && keyCfgErr.Field != "" {
			cfgKey = "privateKey." + keyCfgErr.Field
		}
		return nil, &ConfigurationError{Key: cfgKey, Inner: err}
	}
	return privateKey, nil
}

// SetDefaultLogger sets the default logger for the library.
func SetDefaultLogger(logger log.FieldLogger) {
	asutil.DefaultLogger = logger
}
