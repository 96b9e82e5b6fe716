/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"errors"
	"fmt"
)

// Errors returned by Authenticator. Verification details are never exposed to the caller.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInsufficientScope    = errors.New("insufficient scope")
	ErrMissingSubject       = errors.New("token introspection has no subject")
)

// ConfigurationError is returned when Authenticator cannot be created because of invalid configuration.
type ConfigurationError struct {
	Key   string
	Inner error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration (key: %s): %s", e.Key, e.Inner.Error())
}

func (e *ConfigurationError) Unwrap() error {
	return e.Inner
}
