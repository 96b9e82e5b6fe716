/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"encoding/base64"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// HeaderAuthorization contains the name of HTTP header with data that is used for authentication.
const HeaderAuthorization = "Authorization"

const bearerScheme = "bearer"

// GetBearerTokenFromRequest extracts the bearer token from the "Authorization" HTTP header.
func GetBearerTokenFromRequest(r *http.Request) string {
	return ParseBearerToken(r.Header.Get(HeaderAuthorization))
}

// ParseBearerToken extracts the token from the "Authorization" header value. The scheme is case-insensitive.
func ParseBearerToken(headerValue string) string {
	headerValue = strings.TrimSpace(headerValue)
	if len(headerValue) <= len(bearerScheme) || !strings.EqualFold(headerValue[:len(bearerScheme)], bearerScheme) {
		return ""
	}
	rest := headerValue[len(bearerScheme):]
	if rest[0] != ' ' && rest[0] != '\t' {
		return ""
	}
	return strings.TrimSpace(rest)
}

// UnwrapBase64Token decodes the token if some Service Provider wrapped it into base64.
// The decoded value is used only if it's printable text. Otherwise, the token is returned as is.
func UnwrapBase64Token(token string) string {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		decoded := make([]byte, enc.DecodedLen(len(token)))
		n, err := enc.Decode(decoded, []byte(token))
		if err != nil {
			continue
		}
		if isPrintableToken(decoded[:n]) {
			return string(decoded[:n])
		}
	}
	return token
}

func isPrintableToken(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
