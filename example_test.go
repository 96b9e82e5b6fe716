/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/acronis/go-rsauth/astest"
	"github.com/acronis/go-rsauth/principal"
)

func ExampleAuthMiddleware() {
	asServer := astest.NewHTTPServer(astest.WithHTTPTokenIntrospector(astest.StaticTokenIntrospector{
		"alice-token":   {Active: true, Scope: "openid", Subject: "alice-sub"},
		"revoked-token": {Active: false},
		"carol-token":   {Active: true, Scope: "email", Subject: "carol-sub"},
	}))
	_ = asServer.StartAndWaitForReady(time.Second)
	defer func() { _ = asServer.Shutdown(context.Background()) }()

	cfg := NewDefaultConfig()
	cfg.AuthorizationServer.URL = asServer.URL()
	cfg.Client = ClientConfig{ID: astest.TestClientID, Secret: astest.TestClientSecret}
	cfg.PrivateKey.PEM = astest.TestRSPrivateKeyPEM
	cfg.RequiredScopes = []string{"openid"}

	users := principal.NewMemoryStore(
		principal.User{ID: "1", Subject: "alice-sub", Username: "alice"},
		principal.User{ID: "3", Subject: "carol-sub", Username: "carol"},
	)
	authenticator, _ := NewAuthenticatorFromConfig(cfg, users)
	authN := AuthMiddleware("MyService", authenticator)

	srvMux := http.NewServeMux()
	srvMux.Handle("/", http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write([]byte("Hello, World!"))
	}))
	srvMux.Handle("/me", authN(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		p := GetPrincipalFromContext(r.Context()) // GetPrincipalFromContext is a helper function to get the authenticated user.
		_, _ = rw.Write([]byte("Hello, " + p.User.Username + "!"))
	})))

	rsServer := httptest.NewServer(srvMux)
	defer rsServer.Close()

	client := &http.Client{Timeout: time.Second * 30}
	doRequest := func(path, token string) {
		req, _ := http.NewRequest(http.MethodGet, rsServer.URL+path, http.NoBody)
		if token != "" {
			req.Header["Authorization"] = []string{"Bearer " + token}
		}
		resp, _ := client.Do(req)
		fmt.Println("Status code:", resp.StatusCode)
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		fmt.Println("Body:", string(respBody))
	}

	fmt.Println("GET /")
	doRequest("/", "")

	fmt.Println("------")
	fmt.Println("GET /me without token")
	doRequest("/me", "")

	fmt.Println("------")
	fmt.Println("GET /me with revoked token")
	doRequest("/me", "revoked-token")

	fmt.Println("------")
	fmt.Println("GET /me with token without required scope")
	doRequest("/me", "carol-token")

	fmt.Println("------")
	fmt.Println("GET /me with valid token")
	doRequest("/me", "alice-token")

	// Output:
	// GET /
	// Status code: 200
	// Body: Hello, World!
	// ------
	// GET /me without token
	// Status code: 401
	// Body: {"error":{"domain":"MyService","code":"bearerTokenMissing","message":"Authorization bearer token is missing."}}
	// ------
	// GET /me with revoked token
	// Status code: 401
	// Body: {"error":{"domain":"MyService","code":"authenticationFailed","message":"Authentication is failed."}}
	// ------
	// GET /me with token without required scope
	// Status code: 403
	// Body: {"error":{"domain":"MyService","code":"insufficientScope","message":"Access token has insufficient scope."}}
	// ------
	// GET /me with valid token
	// Status code: 200
	// Body: Hello, alice!
}
