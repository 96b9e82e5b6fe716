/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

/*
Package rsauth authenticates inbound requests of a Resource Server by the bearer access token
issued by an external Authorization Server.

The token is never parsed locally. Instead, it's sent to the Authorization Server introspection endpoint,
which responds with a signed (JWS) and encrypted (JWE) JWT. The response is decrypted with the Resource Server
private key, its signature is verified with the Authorization Server JWKS, the claims are validated,
and then the token subject is resolved to a local user.

The typical usage is:

	cfg := rsauth.NewConfig()
	// load cfg with config.Loader from github.com/acronis/go-appkit
	authenticator, err := rsauth.NewAuthenticatorFromConfig(cfg, userStore)
	...
	router.Use(rsauth.AuthMiddleware("MyService", authenticator))
*/
package rsauth
