/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-appkit/config"

	"github.com/acronis/go-rsauth/asclient"
	"github.com/acronis/go-rsauth/internal/asutil"
	"github.com/acronis/go-rsauth/introspection"
	"github.com/acronis/go-rsauth/keystore"
)

const cfgDefaultKeyPrefix = "rsauth"

const (
	cfgKeyAuthorizationServerURL               = "authorizationServer.url"
	cfgKeyAuthorizationServerIssuer            = "authorizationServer.issuer"
	cfgKeyAuthorizationServerIntrospectionPath = "authorizationServer.introspectionPath"
	cfgKeyAuthorizationServerJWKSPath          = "authorizationServer.jwksPath"
	cfgKeyHTTPClientRequestTimeout             = "httpClient.requestTimeout"
	cfgKeyHTTPClientVerifyTLS                  = "httpClient.verifyTLS"
	cfgKeyHTTPClientProxy                      = "httpClient.proxy"
	cfgKeyClientID                             = "client.id"
	cfgKeyClientSecret                         = "client.secret" // nolint:gosec // it's a key name, not a secret
	cfgKeyRequiredScopes                       = "requiredScopes"
	cfgKeySigningAlgorithm                     = "signingAlgorithm"
	cfgKeyEncryptionAlgorithm                  = "encryption.algorithm"
	cfgKeyEncryptionEncoding                   = "encryption.encoding"
	cfgKeyPrivateKeyPEM                        = "privateKey.pem"
	cfgKeyPrivateKeyType                       = "privateKey.type"
	cfgKeyPrivateKeyAlgorithm                  = "privateKey.algorithm"
	cfgKeyPrivateKeyKID                        = "privateKey.kid"
	cfgKeyJWKSCacheEnabled                     = "jwks.cache.enabled"
	cfgKeyJWKSCacheTTL                         = "jwks.cache.ttl"
	cfgKeyJWKSCacheUpdateMinInterval           = "jwks.cache.updateMinInterval"
	cfgKeyClaimsLeeway                         = "claims.leeway"
)

// Config represents a set of configuration parameters of the Resource Server authentication.
type Config struct {
	AuthorizationServer AuthorizationServerConfig `mapstructure:"authorizationServer" yaml:"authorizationServer" json:"authorizationServer"` // nolint:lll
	HTTPClient          HTTPClientConfig          `mapstructure:"httpClient" yaml:"httpClient" json:"httpClient"`
	Client              ClientConfig              `mapstructure:"client" yaml:"client" json:"client"`
	RequiredScopes      []string                  `mapstructure:"requiredScopes" yaml:"requiredScopes" json:"requiredScopes"`
	SigningAlgorithm    string                    `mapstructure:"signingAlgorithm" yaml:"signingAlgorithm" json:"signingAlgorithm"`
	Encryption          EncryptionConfig          `mapstructure:"encryption" yaml:"encryption" json:"encryption"`
	PrivateKey          PrivateKeyConfig          `mapstructure:"privateKey" yaml:"privateKey" json:"privateKey"`
	JWKS                JWKSConfig                `mapstructure:"jwks" yaml:"jwks" json:"jwks"`
	Claims              ClaimsConfig              `mapstructure:"claims" yaml:"claims" json:"claims"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// AuthorizationServerConfig describes where the Authorization Server is.
type AuthorizationServerConfig struct {
	URL               string `mapstructure:"url" yaml:"url" json:"url"`
	Issuer            string `mapstructure:"issuer" yaml:"issuer" json:"issuer"`
	IntrospectionPath string `mapstructure:"introspectionPath" yaml:"introspectionPath" json:"introspectionPath"`
	JWKSPath          string `mapstructure:"jwksPath" yaml:"jwksPath" json:"jwksPath"`
}

// ExpectedIssuer returns the value the "iss" claim of introspection responses must be equal to.
func (c AuthorizationServerConfig) ExpectedIssuer() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	return c.URL
}

type HTTPClientConfig struct {
	RequestTimeout config.TimeDuration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
	VerifyTLS      bool                `mapstructure:"verifyTLS" yaml:"verifyTLS" json:"verifyTLS"`
	Proxy          string              `mapstructure:"proxy" yaml:"proxy" json:"proxy"`
}

// ClientConfig contains the Resource Server credentials registered at the Authorization Server.
type ClientConfig struct {
	ID     string `mapstructure:"id" yaml:"id" json:"id"`
	Secret string `mapstructure:"secret" yaml:"secret" json:"-"`
}

type EncryptionConfig struct {
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`
	Encoding  string `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
}

// PrivateKeyConfig is the Resource Server private key used to decrypt introspection responses.
type PrivateKeyConfig struct {
	PEM       string           `mapstructure:"pem" yaml:"pem" json:"-"`
	Type      keystore.KeyType `mapstructure:"type" yaml:"type" json:"type"`
	Algorithm string           `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`
	KeyID     string           `mapstructure:"kid" yaml:"kid" json:"kid"`
}

// JWKSConfig is a configuration of how the Authorization Server public keys are cached.
type JWKSConfig struct {
	Cache JWKSCacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`
}

type JWKSCacheConfig struct {
	Enabled           bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TTL               config.TimeDuration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	UpdateMinInterval config.TimeDuration `mapstructure:"updateMinInterval" yaml:"updateMinInterval" json:"updateMinInterval"`
}

type ClaimsConfig struct {
	Leeway config.TimeDuration `mapstructure:"leeway" yaml:"leeway" json:"leeway"`
}

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.AuthorizationServer.IntrospectionPath = asclient.DefaultIntrospectionPath
	cfg.AuthorizationServer.JWKSPath = asclient.DefaultJWKSPath
	cfg.HTTPClient = HTTPClientConfig{
		RequestTimeout: config.TimeDuration(asutil.DefaultHTTPRequestTimeout),
		VerifyTLS:      true,
	}
	cfg.SigningAlgorithm = introspection.DefaultSigningAlgorithm
	cfg.Encryption = EncryptionConfig{Encoding: string(introspection.DefaultContentEncryption)}
	cfg.PrivateKey.Type = keystore.KeyTypeRSA
	cfg.JWKS.Cache = JWKSCacheConfig{
		TTL:               config.TimeDuration(asclient.DefaultCacheTTL),
		UpdateMinInterval: config.TimeDuration(asclient.DefaultCacheUpdateMinInterval),
	}
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAuthorizationServerIntrospectionPath, asclient.DefaultIntrospectionPath)
	dp.SetDefault(cfgKeyAuthorizationServerJWKSPath, asclient.DefaultJWKSPath)
	dp.SetDefault(cfgKeyHTTPClientRequestTimeout, asutil.DefaultHTTPRequestTimeout.String())
	dp.SetDefault(cfgKeyHTTPClientVerifyTLS, true)
	dp.SetDefault(cfgKeySigningAlgorithm, introspection.DefaultSigningAlgorithm)
	dp.SetDefault(cfgKeyEncryptionEncoding, string(introspection.DefaultContentEncryption))
	dp.SetDefault(cfgKeyPrivateKeyType, string(keystore.KeyTypeRSA))
	dp.SetDefault(cfgKeyJWKSCacheTTL, asclient.DefaultCacheTTL.String())
	dp.SetDefault(cfgKeyJWKSCacheUpdateMinInterval, asclient.DefaultCacheUpdateMinInterval.String())
	dp.SetDefault(cfgKeyClaimsLeeway, "0s")
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	if err := c.setAuthorizationServerConfig(dp); err != nil {
		return err
	}
	if err := c.setHTTPClientConfig(dp); err != nil {
		return err
	}
	if err := c.setClientConfig(dp); err != nil {
		return err
	}
	if err := c.setCryptoConfig(dp); err != nil {
		return err
	}
	return c.setCacheAndClaimsConfig(dp)
}

func (c *Config) setAuthorizationServerConfig(dp config.DataProvider) error {
	var err error

	if c.AuthorizationServer.URL, err = dp.GetString(cfgKeyAuthorizationServerURL); err != nil {
		return err
	}
	if c.AuthorizationServer.URL == "" {
		return dp.WrapKeyErr(cfgKeyAuthorizationServerURL, fmt.Errorf("cannot be empty"))
	}
	asURL, err := url.Parse(c.AuthorizationServer.URL)
	if err != nil {
		return dp.WrapKeyErr(cfgKeyAuthorizationServerURL, err)
	}
	if asURL.Scheme != "http" && asURL.Scheme != "https" {
		return dp.WrapKeyErr(cfgKeyAuthorizationServerURL, fmt.Errorf("scheme should be http or https"))
	}
	if c.AuthorizationServer.Issuer, err = dp.GetString(cfgKeyAuthorizationServerIssuer); err != nil {
		return err
	}
	if c.AuthorizationServer.IntrospectionPath, err = dp.GetString(cfgKeyAuthorizationServerIntrospectionPath); err != nil {
		return err
	}
	if c.AuthorizationServer.JWKSPath, err = dp.GetString(cfgKeyAuthorizationServerJWKSPath); err != nil {
		return err
	}
	return nil
}

func (c *Config) setHTTPClientConfig(dp config.DataProvider) error {
	var err error

	var reqTimeout time.Duration
	if reqTimeout, err = dp.GetDuration(cfgKeyHTTPClientRequestTimeout); err != nil {
		return err
	}
	if reqTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyHTTPClientRequestTimeout, fmt.Errorf("should be non-negative"))
	}
	c.HTTPClient.RequestTimeout = config.TimeDuration(reqTimeout)
	if c.HTTPClient.VerifyTLS, err = dp.GetBool(cfgKeyHTTPClientVerifyTLS); err != nil {
		return err
	}
	if c.HTTPClient.Proxy, err = dp.GetString(cfgKeyHTTPClientProxy); err != nil {
		return err
	}
	if c.HTTPClient.Proxy != "" {
		if _, err = url.Parse(c.HTTPClient.Proxy); err != nil {
			return dp.WrapKeyErr(cfgKeyHTTPClientProxy, err)
		}
	}
	return nil
}

func (c *Config) setClientConfig(dp config.DataProvider) error {
	var err error

	if c.Client.ID, err = dp.GetString(cfgKeyClientID); err != nil {
		return err
	}
	if c.Client.ID == "" {
		return dp.WrapKeyErr(cfgKeyClientID, fmt.Errorf("cannot be empty"))
	}
	if c.Client.Secret, err = dp.GetString(cfgKeyClientSecret); err != nil {
		return err
	}
	if c.Client.Secret == "" {
		return dp.WrapKeyErr(cfgKeyClientSecret, fmt.Errorf("cannot be empty"))
	}
	if c.RequiredScopes, err = dp.GetStringSlice(cfgKeyRequiredScopes); err != nil {
		return err
	}
	return nil
}

func (c *Config) setCryptoConfig(dp config.DataProvider) error {
	var err error

	if c.SigningAlgorithm, err = dp.GetString(cfgKeySigningAlgorithm); err != nil {
		return err
	}
	if strings.EqualFold(c.SigningAlgorithm, "none") {
		return dp.WrapKeyErr(cfgKeySigningAlgorithm, fmt.Errorf("unsigned responses are not allowed"))
	}
	if c.Encryption.Algorithm, err = dp.GetString(cfgKeyEncryptionAlgorithm); err != nil {
		return err
	}
	if c.Encryption.Encoding, err = dp.GetString(cfgKeyEncryptionEncoding); err != nil {
		return err
	}

	if c.PrivateKey.PEM, err = dp.GetString(cfgKeyPrivateKeyPEM); err != nil {
		return err
	}
	if strings.TrimSpace(c.PrivateKey.PEM) == "" {
		return dp.WrapKeyErr(cfgKeyPrivateKeyPEM, fmt.Errorf("cannot be empty"))
	}
	var keyType string
	if keyType, err = dp.GetString(cfgKeyPrivateKeyType); err != nil {
		return err
	}
	c.PrivateKey.Type = keystore.KeyType(keyType)
	if c.PrivateKey.Algorithm, err = dp.GetString(cfgKeyPrivateKeyAlgorithm); err != nil {
		return err
	}
	if c.PrivateKey.KeyID, err = dp.GetString(cfgKeyPrivateKeyKID); err != nil {
		return err
	}
	if c.Encryption.Algorithm != "" && c.PrivateKey.Algorithm != "" &&
		!strings.EqualFold(c.Encryption.Algorithm, c.PrivateKey.Algorithm) {
		return dp.WrapKeyErr(cfgKeyEncryptionAlgorithm, fmt.Errorf(
			"conflicts with %s %q", cfgKeyPrivateKeyAlgorithm, c.PrivateKey.Algorithm))
	}
	return nil
}

func (c *Config) setCacheAndClaimsConfig(dp config.DataProvider) error {
	var err error

	if c.JWKS.Cache.Enabled, err = dp.GetBool(cfgKeyJWKSCacheEnabled); err != nil {
		return err
	}
	var dur time.Duration
	if dur, err = dp.GetDuration(cfgKeyJWKSCacheTTL); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyJWKSCacheTTL, fmt.Errorf("should be non-negative"))
	}
	c.JWKS.Cache.TTL = config.TimeDuration(dur)
	if dur, err = dp.GetDuration(cfgKeyJWKSCacheUpdateMinInterval); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyJWKSCacheUpdateMinInterval, fmt.Errorf("should be non-negative"))
	}
	c.JWKS.Cache.UpdateMinInterval = config.TimeDuration(dur)

	if dur, err = dp.GetDuration(cfgKeyClaimsLeeway); err != nil {
		return err
	}
	if dur < 0 {
		return dp.WrapKeyErr(cfgKeyClaimsLeeway, fmt.Errorf("should be non-negative"))
	}
	c.Claims.Leeway = config.TimeDuration(dur)
	return nil
}
