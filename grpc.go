/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package rsauth

import (
	"context"
	"errors"

	"github.com/acronis/go-appkit/log"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/acronis/go-rsauth/internal/asutil"
	"github.com/acronis/go-rsauth/internal/metrics"
)

const grpcMetaAuthorization = "authorization"

// BearerTokenAuthenticator authenticates an already extracted bearer token.
// Authenticator implements it.
type BearerTokenAuthenticator interface {
	AuthenticateBearerToken(ctx context.Context, bearerToken string) (*Principal, error)
}

type grpcInterceptorOpts struct {
	allowAnonymous             bool
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// GRPCInterceptorOption is an option for UnaryServerInterceptor and StreamServerInterceptor.
type GRPCInterceptorOption func(options *grpcInterceptorOpts)

// WithGRPCInterceptorAllowAnonymous is an option to pass calls without a principal to the handler.
func WithGRPCInterceptorAllowAnonymous(allow bool) GRPCInterceptorOption {
	return func(options *grpcInterceptorOpts) {
		options.allowAnonymous = allow
	}
}

// WithGRPCInterceptorLoggerProvider is an option to set a logger provider for gRPC interceptors.
func WithGRPCInterceptorLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) GRPCInterceptorOption {
	return func(options *grpcInterceptorOpts) {
		options.loggerProvider = loggerProvider
	}
}

// WithGRPCInterceptorPrometheusLibInstanceLabel is an option to set a label for Prometheus metrics of gRPC interceptors.
func WithGRPCInterceptorPrometheusLibInstanceLabel(label string) GRPCInterceptorOption {
	return func(options *grpcInterceptorOpts) {
		options.prometheusLibInstanceLabel = label
	}
}

type grpcAuthenticator struct {
	authenticator  BearerTokenAuthenticator
	allowAnonymous bool
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

func newGRPCAuthenticator(authenticator BearerTokenAuthenticator, opts []GRPCInterceptorOption) *grpcAuthenticator {
	var options grpcInterceptorOpts
	for _, opt := range opts {
		opt(&options)
	}
	return &grpcAuthenticator{
		authenticator:  authenticator,
		allowAnonymous: options.allowAnonymous,
		loggerProvider: options.loggerProvider,
		promMetrics:    metrics.GetPrometheusMetrics(options.prometheusLibInstanceLabel, metrics.SourceGRPCInterceptor),
	}
}

// authenticate returns the context with the principal, or a gRPC status error.
func (ga *grpcAuthenticator) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	var bearerToken string
	if values := metadata.ValueFromIncomingContext(ctx, grpcMetaAuthorization); len(values) != 0 {
		bearerToken = ParseBearerToken(values[0])
	}

	principal, err := ga.authenticator.AuthenticateBearerToken(ctx, bearerToken)
	if err != nil {
		logger := asutil.GetLoggerFromProvider(ctx, ga.loggerProvider)
		logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
			logFunc("grpc call authentication failed", log.String("method", fullMethod), log.Error(err))
		})
		if errors.Is(err, ErrInsufficientScope) {
			ga.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeInsufficientScope)
			return nil, grpcstatus.Error(grpccodes.PermissionDenied, ErrMessageInsufficientScope)
		}
		ga.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeRejected)
		return nil, grpcstatus.Error(grpccodes.Unauthenticated, ErrMessageAuthenticationFailed)
	}
	if principal == nil {
		if ga.allowAnonymous {
			ga.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeAnonymous)
			return ctx, nil
		}
		if bearerToken == "" {
			ga.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeNoToken)
			return nil, grpcstatus.Error(grpccodes.Unauthenticated, ErrMessageBearerTokenMissing)
		}
		ga.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeUnknownSubject)
		return nil, grpcstatus.Error(grpccodes.Unauthenticated, ErrMessageAuthenticationFailed)
	}
	ga.promMetrics.IncAuthenticationsTotal(metrics.AuthenticationOutcomeAuthenticated)
	return NewContextWithPrincipal(ctx, principal), nil
}

// UnaryServerInterceptor authenticates unary gRPC calls by the bearer token from the "authorization" metadata.
// Failed authentication is reported with codes.Unauthenticated, insufficient scope with codes.PermissionDenied.
func UnaryServerInterceptor(authenticator BearerTokenAuthenticator, opts ...GRPCInterceptorOption) grpc.UnaryServerInterceptor {
	ga := newGRPCAuthenticator(authenticator, opts)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		authCtx, err := ga.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(authCtx, req)
	}
}

// StreamServerInterceptor does the same as UnaryServerInterceptor but for streaming calls.
func StreamServerInterceptor(authenticator BearerTokenAuthenticator, opts ...GRPCInterceptorOption) grpc.StreamServerInterceptor {
	ga := newGRPCAuthenticator(authenticator, opts)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		authCtx, err := ga.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedServerStream{ServerStream: ss, ctx: authCtx})
	}
}

type authenticatedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedServerStream) Context() context.Context {
	return s.ctx
}
