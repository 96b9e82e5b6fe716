/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package astest provides helper primitives for testing Resource Servers:
// pre-defined keys, functions for making signed and encrypted introspection responses,
// and a simple HTTP server with JWKS and token introspection endpoints of the Authorization Server.
package astest
