/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package keystore

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyKey              = errors.New("private key is empty")
	ErrMalformedPEM          = errors.New("private key is not PEM-encoded")
	ErrUnsupportedKeyType    = errors.New("unsupported private key type")
	ErrIncompatibleAlgorithm = errors.New("algorithm is incompatible with the key type")
)

// ConfigurationError is returned when the private key cannot be loaded from configuration.
// It's a startup-time error and should not be recovered.
type ConfigurationError struct {
	Field string
	Inner error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid private key configuration (field: %s): %s", e.Field, e.Inner.Error())
}

func (e *ConfigurationError) Unwrap() error {
	return e.Inner
}
