/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"encoding/json"
	"net/http"

	"github.com/acronis/go-rsauth/keystore"
)

// NewPublicJWKSHandler creates an HTTP handler that serves the public part of the Resource Server key
// as a JWKS document. The Authorization Server uses it to encrypt introspection responses.
func NewPublicJWKSHandler(privateKey *keystore.PrivateKey) http.Handler {
	body, err := json.Marshal(privateKey.PublicJWKS())
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			rw.Header().Set("Allow", "GET, HEAD")
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err != nil {
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/jwk-set+json")
		rw.Header().Set("Cache-Control", "public, max-age=300")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = rw.Write(body)
	})
}
