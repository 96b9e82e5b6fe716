/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
	jwtgo "github.com/golang-jwt/jwt/v5"
)

// KeyType is a type of the private key.
type KeyType string

const (
	KeyTypeRSA KeyType = "RSA"
	KeyTypeEC  KeyType = "EC"
)

// KeyUseEncryption is the "use" parameter of the exported public JWK.
const KeyUseEncryption = "enc"

var rsaKeyAlgorithms = []jose.KeyAlgorithm{jose.RSA_OAEP, jose.RSA_OAEP_256, jose.RSA1_5}

var ecKeyAlgorithms = []jose.KeyAlgorithm{jose.ECDH_ES, jose.ECDH_ES_A128KW, jose.ECDH_ES_A192KW, jose.ECDH_ES_A256KW}

// KeyConfig describes the private key material taken from configuration.
type KeyConfig struct {
	// PEM is a PEM-encoded private key (PKCS#1 or PKCS#8 for RSA, SEC 1 or PKCS#8 for EC).
	PEM string

	// Type is a declared key type. KeyTypeRSA is used if it's empty.
	Type KeyType

	// Algorithm is a JWE key management algorithm.
	// RSA-OAEP is used for RSA keys and ECDH-ES for EC keys if it's empty.
	Algorithm string

	// KeyID is an optional key identifier. RFC 7638 thumbprint of the public key is used if it's empty.
	KeyID string
}

// PrivateKey is the Resource Server's private key. It is immutable after loading.
type PrivateKey struct {
	jwk       jose.JSONWebKey
	keyType   KeyType
	algorithm jose.KeyAlgorithm
}

// LoadPrivateKey parses the private key from configuration.
// Any problem with the key material is reported as *ConfigurationError.
func LoadPrivateKey(cfg KeyConfig) (*PrivateKey, error) {
	keyType, err := parseKeyType(cfg.Type)
	if err != nil {
		return nil, &ConfigurationError{Field: "type", Inner: err}
	}
	alg, err := parseAlgorithm(keyType, cfg.Algorithm)
	if err != nil {
		return nil, &ConfigurationError{Field: "algorithm", Inner: err}
	}

	pemData := []byte(strings.TrimSpace(cfg.PEM))
	if len(pemData) == 0 {
		return nil, &ConfigurationError{Field: "pem", Inner: ErrEmptyKey}
	}
	if block, _ := pem.Decode(pemData); block == nil {
		return nil, &ConfigurationError{Field: "pem", Inner: ErrMalformedPEM}
	}

	var key crypto.PrivateKey
	switch keyType {
	case KeyTypeRSA:
		var rsaKey *rsa.PrivateKey
		if rsaKey, err = jwtgo.ParseRSAPrivateKeyFromPEM(pemData); err != nil {
			return nil, &ConfigurationError{Field: "pem", Inner: fmt.Errorf("parse RSA private key: %w", err)}
		}
		key = rsaKey
	case KeyTypeEC:
		var ecKey *ecdsa.PrivateKey
		if ecKey, err = jwtgo.ParseECPrivateKeyFromPEM(pemData); err != nil {
			return nil, &ConfigurationError{Field: "pem", Inner: fmt.Errorf("parse EC private key: %w", err)}
		}
		key = ecKey
	}

	jwk := jose.JSONWebKey{Key: key, KeyID: cfg.KeyID, Algorithm: string(alg), Use: KeyUseEncryption}
	if jwk.KeyID == "" {
		pub := jwk.Public()
		thumbprint, tpErr := pub.Thumbprint(crypto.SHA256)
		if tpErr != nil {
			return nil, &ConfigurationError{Field: "pem", Inner: fmt.Errorf("compute key thumbprint: %w", tpErr)}
		}
		jwk.KeyID = base64.RawURLEncoding.EncodeToString(thumbprint)
	}
	return &PrivateKey{jwk: jwk, keyType: keyType, algorithm: alg}, nil
}

// KeyID returns the key identifier.
func (k *PrivateKey) KeyID() string {
	return k.jwk.KeyID
}

// Type returns the key type.
func (k *PrivateKey) Type() KeyType {
	return k.keyType
}

// Algorithm returns the JWE key management algorithm the key is used with.
func (k *PrivateKey) Algorithm() jose.KeyAlgorithm {
	return k.algorithm
}

// Key returns the underlying *rsa.PrivateKey or *ecdsa.PrivateKey.
func (k *PrivateKey) Key() crypto.PrivateKey {
	return k.jwk.Key
}

// Public returns the public part of the key.
func (k *PrivateKey) Public() crypto.PublicKey {
	return k.jwk.Public().Key
}

// PublicJWKS returns a key set with the public part of the key only.
func (k *PrivateKey) PublicJWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{k.jwk.Public()}}
}

// String never prints the key material.
func (k *PrivateKey) String() string {
	return fmt.Sprintf("PrivateKey{kid: %q, type: %s, alg: %s}", k.jwk.KeyID, k.keyType, k.algorithm)
}

// GoString never prints the key material.
func (k *PrivateKey) GoString() string {
	return k.String()
}

func parseKeyType(t KeyType) (KeyType, error) {
	switch KeyType(strings.ToUpper(string(t))) {
	case "", KeyTypeRSA:
		return KeyTypeRSA, nil
	case KeyTypeEC, "ECDSA":
		return KeyTypeEC, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedKeyType, t)
	}
}

func parseAlgorithm(keyType KeyType, alg string) (jose.KeyAlgorithm, error) {
	supported := rsaKeyAlgorithms
	if keyType == KeyTypeEC {
		supported = ecKeyAlgorithms
	}
	if alg == "" {
		return supported[0], nil
	}
	for _, a := range supported {
		if strings.EqualFold(string(a), alg) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w (algorithm: %q, key type: %s)", ErrIncompatibleAlgorithm, alg, keyType)
}
