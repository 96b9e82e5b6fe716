/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package asutil provides helpers shared by the code that talks to the Authorization Server.
// It's used in the internal code and not exposed to the public API.
package asutil
