/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package astest

import (
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	jwtgo "github.com/golang-jwt/jwt/v5"

	"github.com/acronis/go-rsauth/introspection"
)

// ResponseOpts contains options for making a signed and encrypted introspection response.
type ResponseOpts struct {
	// SigningKey is the Authorization Server private key. GetTestSigningKey() is used if it's nil.
	SigningKey interface{}

	// SigningKeyID is put into the "kid" header. TestSigningKeyID is used if both it and SigningKey are empty.
	SigningKeyID string

	// SigningMethod is jwtgo.SigningMethodRS256 if it's nil.
	SigningMethod jwtgo.SigningMethod

	// RecipientKey is the Resource Server public key the response is encrypted for.
	// The public part of MustLoadTestRSPrivateKey() is used if it's nil.
	RecipientKey interface{}

	// KeyAlgorithm is jose.RSA_OAEP if it's empty.
	KeyAlgorithm jose.KeyAlgorithm

	// ContentEncryption is jose.A256GCM if it's empty.
	ContentEncryption jose.ContentEncryption
}

// SignClaims makes a signed JWT with the claims.
func SignClaims(claims jwtgo.Claims, method jwtgo.SigningMethod, keyID string, key interface{}) (string, error) {
	token := jwtgo.NewWithClaims(method, claims)
	if keyID != "" {
		token.Header["kid"] = keyID
	}
	return token.SignedString(key)
}

// EncryptJWS encrypts the signed token into compact JWE with "cty": "JWT" header.
func EncryptJWS(jws string, recipientKey interface{}, alg jose.KeyAlgorithm, enc jose.ContentEncryption) (string, error) {
	if recipientKey == nil {
		return "", errors.New("recipient key is required")
	}
	encrypter, err := jose.NewEncrypter(enc, jose.Recipient{Algorithm: alg, Key: recipientKey},
		(&jose.EncrypterOptions{}).WithContentType("JWT"))
	if err != nil {
		return "", fmt.Errorf("new encrypter: %w", err)
	}
	obj, err := encrypter.Encrypt([]byte(jws))
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return obj.CompactSerialize()
}

// MakeIntrospectionResponse signs the claims and encrypts the result.
func MakeIntrospectionResponse(claims *introspection.Claims, opts ResponseOpts) (string, error) {
	if opts.SigningKey == nil {
		opts.SigningKey = GetTestSigningKey()
		if opts.SigningKeyID == "" {
			opts.SigningKeyID = TestSigningKeyID
		}
	}
	if opts.SigningMethod == nil {
		opts.SigningMethod = jwtgo.SigningMethodRS256
	}
	if opts.RecipientKey == nil {
		opts.RecipientKey = MustLoadTestRSPrivateKey().Public()
	}
	if opts.KeyAlgorithm == "" {
		opts.KeyAlgorithm = jose.RSA_OAEP
	}
	if opts.ContentEncryption == "" {
		opts.ContentEncryption = jose.A256GCM
	}
	jws, err := SignClaims(claims, opts.SigningMethod, opts.SigningKeyID, opts.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign claims: %w", err)
	}
	return EncryptJWS(jws, opts.RecipientKey, opts.KeyAlgorithm, opts.ContentEncryption)
}

// MustMakeIntrospectionResponse does the same as MakeIntrospectionResponse but panics if error occurs.
func MustMakeIntrospectionResponse(claims *introspection.Claims, opts ResponseOpts) string {
	resp, err := MakeIntrospectionResponse(claims, opts)
	if err != nil {
		panic(err)
	}
	return resp
}
