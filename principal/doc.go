/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package principal resolves the verified token subject to a local user.
package principal
