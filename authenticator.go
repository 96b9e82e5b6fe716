/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"context"
	"errors"
	"net/http"

	"github.com/acronis/go-appkit/log"
	jwtgo "github.com/golang-jwt/jwt/v5"

	"github.com/acronis/go-rsauth/asclient"
	"github.com/acronis/go-rsauth/internal/asutil"
	"github.com/acronis/go-rsauth/internal/metrics"
	"github.com/acronis/go-rsauth/introspection"
	"github.com/acronis/go-rsauth/principal"
)

// Principal is the result of successful authentication.
type Principal struct {
	// User is the local user the token subject is resolved to.
	User *principal.User

	// Audience is the verified "aud" of the signed introspection response.
	// It contains the Resource Server's own client id and may hold other recipients as well.
	Audience []string

	// ServiceProviderAudience is the "aud" of the introspected token. It identifies the calling Service Provider.
	ServiceProviderAudience string

	// Scopes are the scopes of the introspected token.
	Scopes []string

	// Claims are the verified claims of the introspection response.
	Claims *introspection.Claims
}

// TokenAuthenticator is a single authentication strategy.
// It returns (nil, nil) if the request cannot be authenticated by this strategy and other strategies may be tried.
type TokenAuthenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// TokenIntrospector sends the token to the Authorization Server.
type TokenIntrospector interface {
	Introspect(ctx context.Context, req asclient.IntrospectionRequest) (asclient.EncryptedIntrospectionResponse, error)
}

// KeySetProvider provides the Authorization Server public keys.
type KeySetProvider interface {
	GetKeySet(ctx context.Context) (*asclient.PublicKeySet, error)
}

// CachingKeySetProvider does the same as KeySetProvider but caches keys.
// Authenticator invalidates the cache once if the signature of the response cannot be verified.
type CachingKeySetProvider interface {
	KeySetProvider
	InvalidateIfPossible(ctx context.Context, keyID string) (bool, error)
}

// ResponseVerifier decrypts and verifies the introspection response.
type ResponseVerifier interface {
	Verify(encrypted asclient.EncryptedIntrospectionResponse, keySet *asclient.PublicKeySet) (*introspection.Claims, error)
}

// AuthenticatorOpts contains options for Authenticator.
type AuthenticatorOpts struct {
	// ClientID and ClientSecret are the Resource Server credentials for the introspection endpoint.
	ClientID     string
	ClientSecret string

	// RequiredScopes must intersect the token scopes. Glob patterns are supported.
	// Scope check is disabled if it's empty.
	RequiredScopes []string

	// LoggerProvider is a function that provides a logger for the request.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	PrometheusLibInstanceLabel string
}

// Authenticator authenticates requests by the bearer token using the Authorization Server introspection.
// It's safe for concurrent use.
type Authenticator struct {
	introspector   TokenIntrospector
	keySetProvider KeySetProvider
	verifier       ResponseVerifier
	store          principal.Store
	clientID       string
	clientSecret   string
	scopeMatcher   *scopeMatcher
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

var _ TokenAuthenticator = (*Authenticator)(nil)

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(
	introspector TokenIntrospector,
	keySetProvider KeySetProvider,
	verifier ResponseVerifier,
	store principal.Store,
	opts AuthenticatorOpts,
) (*Authenticator, error) {
	if err := validateClientCredentials(opts.ClientID, opts.ClientSecret); err != nil {
		return nil, err
	}
	if introspector == nil || keySetProvider == nil || verifier == nil || store == nil {
		return nil, errors.New("introspector, key set provider, verifier and principal store are required")
	}
	return &Authenticator{
		introspector:   introspector,
		keySetProvider: keySetProvider,
		verifier:       verifier,
		store:          store,
		clientID:       opts.ClientID,
		clientSecret:   opts.ClientSecret,
		scopeMatcher:   newScopeMatcher(opts.RequiredScopes),
		loggerProvider: opts.LoggerProvider,
		promMetrics:    metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceAuthenticator),
	}, nil
}

func validateClientCredentials(clientID, clientSecret string) error {
	if clientID == "" {
		return &ConfigurationError{Key: cfgKeyClientID, Inner: errors.New("client id is required")}
	}
	if clientSecret == "" {
		return &ConfigurationError{Key: cfgKeyClientSecret, Inner: errors.New("client secret is required")}
	}
	return nil
}

// Authenticate authenticates the request by the bearer token from the "Authorization" HTTP header.
// It returns (nil, nil) if there is no token or no local user for the token subject.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	return a.AuthenticateBearerToken(r.Context(), GetBearerTokenFromRequest(r))
}

// AuthenticateBearerToken does the same as Authenticate but for the already extracted token.
// The returned errors are ErrAuthenticationFailed, ErrInsufficientScope and ErrMissingSubject.
func (a *Authenticator) AuthenticateBearerToken(ctx context.Context, bearerToken string) (*Principal, error) {
	logger := asutil.GetLoggerFromProvider(ctx, a.loggerProvider)

	if bearerToken == "" {
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeNoToken)
		return nil, nil
	}
	token := UnwrapBase64Token(bearerToken)

	encrypted, err := a.introspector.Introspect(ctx, asclient.IntrospectionRequest{
		ClientID: a.clientID, ClientSecret: a.clientSecret, Token: token})
	if err != nil {
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("token introspection request failed", log.Error(err))
		})
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeUpstreamError)
		return nil, ErrAuthenticationFailed
	}

	keySet, err := a.keySetProvider.GetKeySet(ctx)
	if err != nil {
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("getting authorization server public keys failed", log.Error(err))
		})
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeUpstreamError)
		return nil, ErrAuthenticationFailed
	}

	claims, err := a.verify(ctx, encrypted, keySet)
	if err != nil {
		stage := introspection.StageSignature
		var verificationErr introspection.VerificationError
		if errors.As(err, &verificationErr) {
			stage = verificationErr.Stage()
		}
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("token introspection response verification failed", log.String("stage", stage), log.Error(err))
		})
		a.promMetrics.IncVerificationFailuresTotal(stage)
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeVerificationFailed)
		return nil, ErrAuthenticationFailed
	}

	tokenInfo := claims.TokenIntrospection
	if !tokenInfo.Active {
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("token is not active")
		})
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeInactive)
		return nil, ErrAuthenticationFailed
	}

	scopes := tokenInfo.Scopes()
	if !a.scopeMatcher.Match(scopes) {
		logger.Info("token has insufficient scope", log.String("scope", tokenInfo.Scope))
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeInsufficientScope)
		return nil, ErrInsufficientScope
	}

	if tokenInfo.Subject == "" {
		logger.Warn("token introspection has no subject", log.String("client_id", tokenInfo.ClientID))
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeMissingSubject)
		return nil, ErrMissingSubject
	}

	user, err := a.store.FindBySubject(ctx, tokenInfo.Subject)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			logger.Info("no local user for token subject", log.String("sub", tokenInfo.Subject))
			a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeUnknownSubject)
			return nil, nil
		}
		logger.Error("finding local user by token subject failed", log.String("sub", tokenInfo.Subject), log.Error(err))
		a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeStoreError)
		return nil, ErrAuthenticationFailed
	}

	a.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeAuthenticated)
	return &Principal{
		User:                    user,
		Audience:                append([]string(nil), claims.Audience...),
		ServiceProviderAudience: tokenInfo.ServiceProviderAudience(),
		Scopes:                  scopes,
		Claims:                  claims,
	}, nil
}

func (a *Authenticator) verify(
	ctx context.Context, encrypted asclient.EncryptedIntrospectionResponse, keySet *asclient.PublicKeySet,
) (*introspection.Claims, error) {
	claims, err := a.verifier.Verify(encrypted, keySet)
	if err == nil {
		return claims, nil
	}

	cachingProvider, ok := a.keySetProvider.(CachingKeySetProvider)
	if !ok {
		return nil, err
	}
	var sigErr *introspection.SignatureError
	if !errors.As(err, &sigErr) ||
		(!errors.Is(sigErr, introspection.ErrNoVerificationKey) && !errors.Is(sigErr, jwtgo.ErrTokenSignatureInvalid)) {
		return nil, err
	}
	// Keys may have been rotated since the cache was filled. Retry once with the fresh key set.
	if invalidated, invErr := cachingProvider.InvalidateIfPossible(ctx, sigErr.KeyID); invErr != nil || !invalidated {
		return nil, err
	}
	freshKeySet, fetchErr := cachingProvider.GetKeySet(ctx)
	if fetchErr != nil {
		return nil, err
	}
	return a.verifier.Verify(encrypted, freshKeySet)
}

// AuthenticatorChain tries authenticators in order.
// The first principal or the first error is returned. (nil, nil) means no authenticator recognized the request.
type AuthenticatorChain []TokenAuthenticator

// Authenticate implements TokenAuthenticator interface.
func (c AuthenticatorChain) Authenticate(r *http.Request) (*Principal, error) {
	for _, authenticator := range c {
		p, err := authenticator.Authenticate(r)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, nil
}
