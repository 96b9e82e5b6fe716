/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package asclient

import (
	"fmt"
	"net/http"
)

// UnexpectedResponseError represents an error that occurs when an unexpected HTTP response is received.
// It captures the HTTP status code and response headers for further analysis.
type UnexpectedResponseError struct {
	StatusCode int
	Header     http.Header
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected HTTP status code %d", e.StatusCode)
}

// UpstreamError is an error that occurs when the Authorization Server is unreachable
// or responds with non-2xx status code.
type UpstreamError struct {
	Method string
	URL    string
	Inner  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("authorization server request failed (%s %s): %s", e.Method, e.URL, e.Inner.Error())
}

func (e *UpstreamError) Unwrap() error {
	return e.Inner
}

// StatusCode returns HTTP status code of the response or 0 if there was no response.
func (e *UpstreamError) StatusCode() int {
	if respErr, ok := e.Inner.(*UnexpectedResponseError); ok {
		return respErr.StatusCode
	}
	return 0
}

// KeySetFormatError is an error that occurs when JWKS cannot be parsed or contains a structurally invalid key.
// Index is -1 when the whole document is malformed.
type KeySetFormatError struct {
	URL   string
	Index int
	Inner error
}

func (e *KeySetFormatError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed JWKS (URL: %q): %s", e.URL, e.Inner.Error())
	}
	return fmt.Sprintf("invalid key #%d in JWKS (URL: %q): %s", e.Index, e.URL, e.Inner.Error())
}

func (e *KeySetFormatError) Unwrap() error {
	return e.Inner
}
