/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	jwtgo "github.com/golang-jwt/jwt/v5"

	"github.com/acronis/go-rsauth/asclient"
	"github.com/acronis/go-rsauth/keystore"
)

const (
	DefaultContentEncryption = jose.A256GCM
	DefaultSigningAlgorithm  = "RS256"
)

var supportedContentEncryptions = []jose.ContentEncryption{
	jose.A128CBC_HS256, jose.A192CBC_HS384, jose.A256CBC_HS512, jose.A128GCM, jose.A192GCM, jose.A256GCM,
}

// VerifierOpts contains options for Verifier.
type VerifierOpts struct {
	// PrivateKey is the Resource Server's private key. Its algorithm is used as the JWE key management algorithm.
	PrivateKey *keystore.PrivateKey

	// ContentEncryption is the JWE content encryption. DefaultContentEncryption is used if it's empty.
	ContentEncryption string

	// SigningAlgorithm is the JWS algorithm of the Authorization Server. DefaultSigningAlgorithm is used if it's empty.
	SigningAlgorithm string

	// Policy describes required claims.
	Policy ClaimsPolicy

	// TimeFunc returns the current time for "exp" and "nbf" checks. time.Now is used if it's nil.
	TimeFunc func() time.Time
}

// Verifier decrypts and verifies token introspection responses. It's immutable and safe for concurrent use.
type Verifier struct {
	privateKey        *keystore.PrivateKey
	contentEncryption jose.ContentEncryption
	signingAlg        string
	parser            *jwtgo.Parser
	policy            ClaimsPolicy
	timeFunc          func() time.Time
}

// NewVerifier creates a new Verifier with default algorithms.
func NewVerifier(privateKey *keystore.PrivateKey, policy ClaimsPolicy) (*Verifier, error) {
	return NewVerifierWithOpts(VerifierOpts{PrivateKey: privateKey, Policy: policy})
}

// NewVerifierWithOpts creates a new Verifier with options.
func NewVerifierWithOpts(opts VerifierOpts) (*Verifier, error) {
	if opts.PrivateKey == nil {
		return nil, errors.New("private key is required")
	}
	if opts.Policy.Issuer == "" {
		return nil, errors.New("expected issuer is required")
	}
	if opts.Policy.Audience == "" {
		return nil, errors.New("expected audience is required")
	}

	contentEnc := DefaultContentEncryption
	if opts.ContentEncryption != "" {
		contentEnc = ""
		for _, enc := range supportedContentEncryptions {
			if strings.EqualFold(string(enc), opts.ContentEncryption) {
				contentEnc = enc
				break
			}
		}
		if contentEnc == "" {
			return nil, fmt.Errorf("unsupported content encryption %q", opts.ContentEncryption)
		}
	}

	signingAlg := opts.SigningAlgorithm
	if signingAlg == "" {
		signingAlg = DefaultSigningAlgorithm
	}
	if signingAlg == jwtgo.SigningMethodNone.Alg() || jwtgo.GetSigningMethod(signingAlg) == nil {
		return nil, fmt.Errorf("unsupported signing algorithm %q", signingAlg)
	}

	if opts.TimeFunc == nil {
		opts.TimeFunc = time.Now
	}

	return &Verifier{
		privateKey:        opts.PrivateKey,
		contentEncryption: contentEnc,
		signingAlg:        signingAlg,
		parser:            jwtgo.NewParser(jwtgo.WithValidMethods([]string{signingAlg}), jwtgo.WithoutClaimsValidation()),
		policy:            opts.Policy,
		timeFunc:          opts.TimeFunc,
	}, nil
}

// Policy returns the claims policy of the verifier.
func (v *Verifier) Policy() ClaimsPolicy {
	return v.policy
}

// Verify decrypts the response, verifies its signature and validates claims.
func (v *Verifier) Verify(encrypted asclient.EncryptedIntrospectionResponse, keySet *asclient.PublicKeySet) (*Claims, error) {
	plaintext, err := v.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}
	claims, err := v.Decode(plaintext, keySet)
	if err != nil {
		return nil, err
	}
	if err = v.ValidateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Decrypt decrypts the compact-serialized JWE with the Resource Server's private key.
func (v *Verifier) Decrypt(encrypted asclient.EncryptedIntrospectionResponse) ([]byte, error) {
	jwe, err := jose.ParseEncrypted(string(encrypted),
		[]jose.KeyAlgorithm{v.privateKey.Algorithm()}, []jose.ContentEncryption{v.contentEncryption})
	if err != nil {
		return nil, &DecryptionError{Inner: fmt.Errorf("parse JWE: %w", err)}
	}
	plaintext, err := jwe.Decrypt(v.privateKey.Key())
	if err != nil {
		return nil, &DecryptionError{Inner: err}
	}
	return plaintext, nil
}

// Decode parses the signed token and verifies its signature with keys from the set.
// If the token has "kid" header, only the key with the same ID is tried.
func (v *Verifier) Decode(plaintext []byte, keySet *asclient.PublicKeySet) (*Claims, error) {
	tokenString := strings.TrimSpace(string(plaintext))

	unverified, _, err := v.parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, &SignatureError{Inner: err}
	}
	keyID, _ := unverified.Header["kid"].(string)
	if unverified.Method.Alg() != v.signingAlg {
		return nil, &SignatureError{KeyID: keyID, Inner: fmt.Errorf("%w: unexpected signing method %q",
			jwtgo.ErrTokenSignatureInvalid, unverified.Method.Alg())}
	}

	pubKeys := keySet.SignatureKeys(keyID)
	if len(pubKeys) == 0 {
		return nil, &SignatureError{KeyID: keyID, Inner: ErrNoVerificationKey}
	}
	for _, pubKey := range pubKeys {
		claims := &Claims{}
		if _, err = v.parser.ParseWithClaims(tokenString, claims, func(*jwtgo.Token) (interface{}, error) {
			return pubKey, nil
		}); err == nil {
			return claims, nil
		}
		if errors.Is(err, jwtgo.ErrTokenMalformed) {
			break
		}
	}
	return nil, &SignatureError{KeyID: keyID, Inner: err}
}

// ValidateClaims checks the decoded claims against the policy.
func (v *Verifier) ValidateClaims(claims *Claims) error {
	return v.policy.Validate(claims, v.timeFunc())
}
