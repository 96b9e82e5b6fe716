/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"errors"
	"fmt"
)

// ErrVerificationFailed is matched by every error returned from the verification steps.
var ErrVerificationFailed = errors.New("introspection response verification failed")

var (
	ErrNoVerificationKey         = errors.New("no public key to verify signature")
	ErrIssuerMismatch            = errors.New("issuer mismatch")
	ErrAudienceMismatch          = errors.New("audience mismatch")
	ErrTokenIntrospectionMissing = errors.New("token_introspection claim is missing")
	ErrExpired                   = errors.New("introspection response is expired")
	ErrNotValidYet               = errors.New("introspection response is not valid yet")
)

// Verification stages.
const (
	StageDecrypt   = "decrypt"
	StageSignature = "signature"
	StageClaims    = "claims"
)

// VerificationError is implemented by the errors of the verification steps.
type VerificationError interface {
	error
	Stage() string
}

// DecryptionError is returned when the introspection response cannot be decrypted:
// wrong key, malformed ciphertext or algorithm mismatch.
type DecryptionError struct {
	Inner error
}

func (e *DecryptionError) Error() string {
	return "decrypt introspection response: " + e.Inner.Error()
}

func (e *DecryptionError) Unwrap() error {
	return e.Inner
}

func (e *DecryptionError) Is(target error) bool {
	return target == ErrVerificationFailed
}

func (e *DecryptionError) Stage() string {
	return StageDecrypt
}

// SignatureError is returned when the decrypted token is malformed
// or its signature cannot be verified with any of the Authorization Server's keys.
type SignatureError struct {
	KeyID string
	Inner error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("verify introspection response signature (kid: %q): %s", e.KeyID, e.Inner.Error())
}

func (e *SignatureError) Unwrap() error {
	return e.Inner
}

func (e *SignatureError) Is(target error) bool {
	return target == ErrVerificationFailed
}

func (e *SignatureError) Stage() string {
	return StageSignature
}

// ClaimsValidationError is returned when the claims of the introspection response violate ClaimsPolicy.
type ClaimsValidationError struct {
	Claim string
	Inner error
}

func (e *ClaimsValidationError) Error() string {
	return fmt.Sprintf("invalid %q claim of introspection response: %s", e.Claim, e.Inner.Error())
}

func (e *ClaimsValidationError) Unwrap() error {
	return e.Inner
}

func (e *ClaimsValidationError) Is(target error) bool {
	return target == ErrVerificationFailed
}

func (e *ClaimsValidationError) Stage() string {
	return StageClaims
}
