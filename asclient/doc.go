/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package asclient provides a client for the Authorization Server endpoints used by a Resource Server:
// the JWKS endpoint with the Authorization Server's public signing keys
// and the token introspection endpoint that responds with signed and encrypted JWT (RFC 7662 extension).
//
// Client makes a request on each call. CachingJWKSClient should be used
// in a typical service to avoid fetching JWKS on each introspection response verification.
package asclient
