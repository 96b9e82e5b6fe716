/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package astest

import (
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/acronis/go-appkit/testutil"
	"github.com/go-jose/go-jose/v4"

	"github.com/acronis/go-rsauth/asclient"
)

const localhostWithDynamicPortAddr = "127.0.0.1:0"

// HTTPServerOption is an option for HTTPServer.
type HTTPServerOption func(s *HTTPServer)

// WithHTTPAddress is an option to set HTTP server address.
func WithHTTPAddress(addr string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.addr.Store(addr)
	}
}

// WithHTTPEndpointPaths is an option to set custom paths for the Authorization Server endpoints.
func WithHTTPEndpointPaths(paths HTTPPaths) HTTPServerOption {
	return func(s *HTTPServer) {
		s.paths = paths
	}
}

// WithHTTPKeysHandler is an option to set custom handler for the JWKS endpoint.
// Otherwise, JWKSHandler will be used.
func WithHTTPKeysHandler(handler http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.KeysHandler = handler
	}
}

// WithHTTPPublicJWKS is an option to set JWKS for JWKSHandler.
func WithHTTPPublicJWKS(keySet jose.JSONWebKeySet) HTTPServerOption {
	return func(s *HTTPServer) {
		s.KeysHandler = &JWKSHandler{KeySet: &keySet}
	}
}

// WithHTTPIntrospectionHandler is an option to set custom handler for the introspection endpoint.
func WithHTTPIntrospectionHandler(handler http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.IntrospectionHandler = handler
	}
}

// WithHTTPTokenIntrospector is an option to set TokenIntrospector for IntrospectionHandler.
func WithHTTPTokenIntrospector(introspector HTTPTokenIntrospector) HTTPServerOption {
	return func(s *HTTPServer) {
		s.tokenIntrospector = introspector
	}
}

// WithHTTPResponseOpts is an option to configure signing and encryption of introspection responses.
func WithHTTPResponseOpts(opts ResponseOpts) HTTPServerOption {
	return func(s *HTTPServer) {
		s.responseOpts = opts
	}
}

// WithHTTPClientCredentials is an option to set the Resource Server credentials accepted by the introspection endpoint.
func WithHTTPClientCredentials(clientID, clientSecret string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.clientID, s.clientSecret = clientID, clientSecret
	}
}

func WithHTTPMiddleware(mw func(http.Handler) http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.middleware = mw
	}
}

// HTTPPaths contains paths for the Authorization Server endpoints.
type HTTPPaths struct {
	Introspection string
	JWKS          string
}

// HTTPServer is a mock Authorization Server for testing purposes.
type HTTPServer struct {
	*http.Server
	addr                 atomic.Value
	middleware           func(http.Handler) http.Handler
	paths                HTTPPaths
	tokenIntrospector    HTTPTokenIntrospector
	responseOpts         ResponseOpts
	clientID             string
	clientSecret         string
	KeysHandler          http.Handler
	IntrospectionHandler http.Handler
	Router               *http.ServeMux
	afterListenCallbacks []func()
}

// NewHTTPServer creates a new HTTPServer with provided options.
func NewHTTPServer(options ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{}
	for _, opt := range options {
		opt(s)
	}

	if s.IntrospectionHandler == nil {
		introspectionHandler := &IntrospectionHandler{
			ClientID:          s.clientID,
			ClientSecret:      s.clientSecret,
			TokenIntrospector: s.tokenIntrospector,
			ResponseOpts:      s.responseOpts,
		}
		s.IntrospectionHandler = introspectionHandler
		s.afterListenCallbacks = append(s.afterListenCallbacks, func() {
			introspectionHandler.Issuer = s.URL()
		})
	}

	if s.KeysHandler == nil {
		s.KeysHandler = &JWKSHandler{}
	}

	if s.paths.Introspection == "" {
		s.paths.Introspection = asclient.DefaultIntrospectionPath
	}
	if s.paths.JWKS == "" {
		s.paths.JWKS = asclient.DefaultJWKSPath
	}

	s.Router = http.NewServeMux()
	s.Router.Handle(s.paths.JWKS, s.KeysHandler)
	s.Router.Handle(s.paths.Introspection, s.IntrospectionHandler)

	// nolint:gosec // This server is used for testing purposes only.
	s.Server = &http.Server{Handler: s.Router}
	if s.middleware != nil {
		s.Server.Handler = s.middleware(s.Router)
	}

	return s
}

// URL method returns the URL of the server.
func (s *HTTPServer) URL() string {
	if srvURL := s.addr.Load(); srvURL != nil {
		return "http://" + srvURL.(string)
	}
	return ""
}

// Paths returns paths of the server endpoints.
func (s *HTTPServer) Paths() HTTPPaths {
	return s.paths
}

// Start starts the HTTPServer.
func (s *HTTPServer) Start() error {
	addr, ok := s.addr.Load().(string)
	if !ok {
		addr = localhostWithDynamicPortAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	s.addr.Store(ln.Addr().String())

	for _, cb := range s.afterListenCallbacks {
		cb()
	}

	go func() { _ = s.Server.Serve(ln) }()

	return nil
}

// StartAndWaitForReady starts the server waits for the server to start listening.
func (s *HTTPServer) StartAndWaitForReady(timeout time.Duration) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return testutil.WaitListeningServer(s.addr.Load().(string), timeout)
}
