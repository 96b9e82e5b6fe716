/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"context"
	"errors"
	"net/http"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"

	"github.com/acronis/go-rsauth/internal/asutil"
	"github.com/acronis/go-rsauth/internal/metrics"
)

// Authentication error codes.
// We are using "var" here because some services may want to use different error codes.
var (
	ErrCodeBearerTokenMissing   = "bearerTokenMissing"
	ErrCodeAuthenticationFailed = "authenticationFailed"
	ErrCodeInsufficientScope    = "insufficientScope"
)

// Authentication error messages.
// We are using "var" here because some services may want to use different error messages.
var (
	ErrMessageBearerTokenMissing   = "Authorization bearer token is missing."
	ErrMessageAuthenticationFailed = "Authentication is failed."
	ErrMessageInsufficientScope    = "Access token has insufficient scope."
)

type ctxKey int

const (
	ctxKeyPrincipal ctxKey = iota
)

type authHandler struct {
	next           http.Handler
	errorDomain    string
	authenticator  TokenAuthenticator
	allowAnonymous bool
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

type authMiddlewareOpts struct {
	allowAnonymous             bool
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// AuthMiddlewareOption is an option for AuthMiddleware.
type AuthMiddlewareOption func(options *authMiddlewareOpts)

// WithAuthMiddlewareAllowAnonymous is an option to pass requests without a principal to the next handler.
// Requests with a token that fails authentication are still rejected.
func WithAuthMiddlewareAllowAnonymous(allow bool) AuthMiddlewareOption {
	return func(options *authMiddlewareOpts) {
		options.allowAnonymous = allow
	}
}

// WithAuthMiddlewareLoggerProvider is an option to set a logger provider for AuthMiddleware.
func WithAuthMiddlewareLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) AuthMiddlewareOption {
	return func(options *authMiddlewareOpts) {
		options.loggerProvider = loggerProvider
	}
}

// WithAuthMiddlewarePrometheusLibInstanceLabel is an option to set a label for Prometheus metrics that are used by AuthMiddleware.
func WithAuthMiddlewarePrometheusLibInstanceLabel(label string) AuthMiddlewareOption {
	return func(options *authMiddlewareOpts) {
		options.prometheusLibInstanceLabel = label
	}
}

// AuthMiddleware is a middleware that authenticates requests by the bearer token
// from the "Authorization" HTTP header using the token introspection.
// errorDomain is used for error responses. It is usually the name of the service that uses the middleware.
// For example, if the token has no required scope, the middleware will return 403 with the following response body:
//
//	{"error": {"domain": "MyService", "code": "insufficientScope", "message": "Access token has insufficient scope."}}
func AuthMiddleware(errorDomain string, authenticator TokenAuthenticator, opts ...AuthMiddlewareOption) func(next http.Handler) http.Handler {
	options := authMiddlewareOpts{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}
	return func(next http.Handler) http.Handler {
		return &authHandler{
			next:           next,
			errorDomain:    errorDomain,
			authenticator:  authenticator,
			allowAnonymous: options.allowAnonymous,
			loggerProvider: options.loggerProvider,
			promMetrics:    metrics.GetPrometheusMetrics(options.prometheusLibInstanceLabel, metrics.SourceHTTPMiddleware),
		}
	}
}

func (h *authHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := asutil.GetLoggerFromProvider(r.Context(), h.loggerProvider)

	principal, err := h.authenticator.Authenticate(r)
	if err != nil {
		if errors.Is(err, ErrInsufficientScope) {
			h.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeInsufficientScope)
			apiErr := restapi.NewError(h.errorDomain, ErrCodeInsufficientScope, ErrMessageInsufficientScope)
			restapi.RespondError(rw, http.StatusForbidden, apiErr, logger)
			return
		}
		if errors.Is(err, ErrMissingSubject) {
			h.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeMissingSubject)
		} else {
			h.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeRejected)
		}
		apiErr := restapi.NewError(h.errorDomain, ErrCodeAuthenticationFailed, ErrMessageAuthenticationFailed)
		restapi.RespondError(rw, http.StatusUnauthorized, apiErr, logger)
		return
	}

	if principal == nil {
		if h.allowAnonymous {
			h.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeAnonymous)
			h.next.ServeHTTP(rw, r)
			return
		}
		if GetBearerTokenFromRequest(r) == "" {
			h.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeNoToken)
			apiErr := restapi.NewError(h.errorDomain, ErrCodeBearerTokenMissing, ErrMessageBearerTokenMissing)
			restapi.RespondError(rw, http.StatusUnauthorized, apiErr, logger)
			return
		}
		h.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeUnknownSubject)
		apiErr := restapi.NewError(h.errorDomain, ErrCodeAuthenticationFailed, ErrMessageAuthenticationFailed)
		restapi.RespondError(rw, http.StatusUnauthorized, apiErr, logger)
		return
	}

	h.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeAuthenticated)
	h.next.ServeHTTP(rw, r.WithContext(NewContextWithPrincipal(r.Context(), principal)))
}

// NewContextWithPrincipal creates a new context with the authenticated principal.
func NewContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, principal)
}

// GetPrincipalFromContext extracts the authenticated principal from the context.
func GetPrincipalFromContext(ctx context.Context) *Principal {
	value, _ := ctx.Value(ctxKeyPrincipal).(*Principal)
	return value
}

// GetServiceProviderAudienceFromContext returns the audience of the Service Provider that obtained the token.
// It's empty if the request is not authenticated.
func GetServiceProviderAudienceFromContext(ctx context.Context) string {
	if p := GetPrincipalFromContext(ctx); p != nil {
		return p.ServiceProviderAudience
	}
	return ""
}
