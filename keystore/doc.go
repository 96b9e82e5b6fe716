/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package keystore loads the Resource Server's own private key from PEM-encoded configuration.
// The key is used for decrypting token introspection responses, and its public part may be published
// as a JWKS so the Authorization Server can encrypt responses for this Resource Server.
package keystore
