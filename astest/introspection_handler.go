/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package astest

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/acronis/go-rsauth/asclient"
	"github.com/acronis/go-rsauth/introspection"
)

const (
	TestClientID     = "rs-client-id"
	TestClientSecret = "rs-client-secret" // nolint:gosec // This secret is used for testing purposes only.
)

var ErrUnauthorized = errors.New("unauthorized")

// HTTPTokenIntrospector is an interface for introspecting tokens via HTTP.
type HTTPTokenIntrospector interface {
	IntrospectToken(r *http.Request, token string) (introspection.TokenIntrospection, error)
}

// HTTPTokenIntrospectorFunc is a function that implements HTTPTokenIntrospector interface.
type HTTPTokenIntrospectorFunc func(r *http.Request, token string) (introspection.TokenIntrospection, error)

// IntrospectToken implements HTTPTokenIntrospector interface.
func (f HTTPTokenIntrospectorFunc) IntrospectToken(r *http.Request, token string) (introspection.TokenIntrospection, error) {
	return f(r, token)
}

// StaticTokenIntrospector responds with pre-defined results. Unknown tokens are inactive.
type StaticTokenIntrospector map[string]introspection.TokenIntrospection

// IntrospectToken implements HTTPTokenIntrospector interface.
func (s StaticTokenIntrospector) IntrospectToken(_ *http.Request, token string) (introspection.TokenIntrospection, error) {
	if res, ok := s[token]; ok {
		return res, nil
	}
	return introspection.TokenIntrospection{Active: false}, nil
}

// IntrospectionHandler is an implementation of the token introspection endpoint
// that responds with signed and encrypted JWT.
type IntrospectionHandler struct {
	servedCount atomic.Uint64

	// ClientID and ClientSecret are the Resource Server credentials. TestClientID and TestClientSecret are used if empty.
	ClientID     string
	ClientSecret string

	// Issuer is put into the "iss" claim.
	Issuer string

	TokenIntrospector HTTPTokenIntrospector

	// ResponseOpts configure signing and encryption of the response.
	ResponseOpts ResponseOpts

	// ClaimsModifier allows changing claims before signing.
	ClaimsModifier func(claims *introspection.Claims)
}

func (h *IntrospectionHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	h.servedCount.Add(1)

	if !strings.Contains(r.Header.Get("Accept"), asclient.IntrospectionResponseContentType) {
		http.Error(rw, "Only signed and encrypted response is supported", http.StatusNotAcceptable)
		return
	}

	clientID, clientSecret := h.ClientID, h.ClientSecret
	if clientID == "" && clientSecret == "" {
		clientID, clientSecret = TestClientID, TestClientSecret
	}
	if !constantTimeEqual(r.FormValue("client_id"), clientID) || !constantTimeEqual(r.FormValue("client_secret"), clientSecret) {
		http.Error(rw, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := r.FormValue("token")
	if token == "" {
		http.Error(rw, "Token is required", http.StatusBadRequest)
		return
	}

	var result introspection.TokenIntrospection
	if h.TokenIntrospector != nil {
		var err error
		if result, err = h.TokenIntrospector.IntrospectToken(r, token); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				http.Error(rw, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Error(rw, fmt.Sprintf("Token introspection failed: %v", err), http.StatusInternalServerError)
			return
		}
	}

	claims := &introspection.Claims{
		RegisteredClaims: jwtgo.RegisteredClaims{
			Issuer:   h.Issuer,
			Audience: jwtgo.ClaimStrings{clientID},
			IssuedAt: jwtgo.NewNumericDate(time.Now()),
			ID:       uuid.NewString(),
		},
		TokenIntrospection: &result,
	}
	if h.ClaimsModifier != nil {
		h.ClaimsModifier(claims)
	}

	resp, err := MakeIntrospectionResponse(claims, h.ResponseOpts)
	if err != nil {
		http.Error(rw, fmt.Sprintf("Making introspection response failed: %v", err), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", asclient.IntrospectionResponseContentType)
	_, _ = rw.Write([]byte(resp))
}

// ServedCount returns the number of times the handler has been served.
func (h *IntrospectionHandler) ServedCount() uint64 {
	return h.servedCount.Load()
}

// ResetServedCount resets the number of times the handler has been served.
func (h *IntrospectionHandler) ResetServedCount() {
	h.servedCount.Store(0)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
