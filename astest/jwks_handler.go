/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package astest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/go-jose/go-jose/v4"
)

// JWKSHandler is an HTTP handler that responds with the Authorization Server JWKS.
type JWKSHandler struct {
	servedCount atomic.Uint64

	// KeySet is served as is. GetTestPublicJWKS() is served if it's nil.
	KeySet *jose.JSONWebKeySet
}

func (h *JWKSHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}

	h.servedCount.Add(1)

	keySet := h.KeySet
	if keySet == nil {
		defaultKeySet := GetTestPublicJWKS()
		keySet = &defaultKeySet
	}
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(keySet); err != nil {
		http.Error(rw, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

// ServedCount returns the number of times JWKS handler has been served.
func (h *JWKSHandler) ServedCount() uint64 {
	return h.servedCount.Load()
}
