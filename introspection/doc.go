/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

/*
Package introspection verifies token introspection responses returned by the Authorization Server
in the signed and encrypted JWT form.

Verification consists of three strictly ordered steps, each with its own error type:

  - Decrypt: the compact JWE is decrypted with the Resource Server's private key (*DecryptionError).
  - Decode: the plaintext JWS signature is verified with the Authorization Server's public keys (*SignatureError).
  - ValidateClaims: "iss", "aud" and the presence of "token_introspection" are checked (*ClaimsValidationError).

All three errors match ErrVerificationFailed with errors.Is.
*/
package introspection
