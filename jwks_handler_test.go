/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-rsauth/astest"
)

func TestNewPublicJWKSHandler(t *testing.T) {
	privateKey := astest.MustLoadTestRSPrivateKey()
	handler := NewPublicJWKSHandler(privateKey)

	t.Run("GET", func(t *testing.T) {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", http.NoBody))

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, "application/jwk-set+json", resp.Header().Get("Content-Type"))
		require.Equal(t, "public, max-age=300", resp.Header().Get("Cache-Control"))

		var keySet jose.JSONWebKeySet
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &keySet))
		require.Len(t, keySet.Keys, 1)
		require.True(t, keySet.Keys[0].IsPublic())
		require.Equal(t, privateKey.KeyID(), keySet.Keys[0].KeyID)
		require.Equal(t, "enc", keySet.Keys[0].Use)
		require.Equal(t, string(privateKey.Algorithm()), keySet.Keys[0].Algorithm)
	})

	t.Run("HEAD", func(t *testing.T) {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodHead, "/.well-known/jwks.json", http.NoBody))
		require.Equal(t, http.StatusOK, resp.Code)
		require.Zero(t, resp.Body.Len())
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/.well-known/jwks.json", http.NoBody))
		require.Equal(t, http.StatusMethodNotAllowed, resp.Code)
		require.Equal(t, "GET, HEAD", resp.Header().Get("Allow"))
	})
}
