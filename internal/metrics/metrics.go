/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/acronis/go-appkit/lrucache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-rsauth/internal/libinfo"
)

const PrometheusNamespace = "go_rsauth"

const DefaultPrometheusLibInstanceLabel = "default"

const (
	PrometheusLibInstanceLabel = "lib_instance"
	PrometheusLibSourceLabel   = "lib_source"
)

const (
	SourceASClient        = "as_client"
	SourceAuthenticator   = "authenticator"
	SourceHTTPMiddleware  = "http_middleware"
	SourceGRPCInterceptor = "grpc_interceptor"
)

func PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{"lib_version": libinfo.GetLibVersion()}
}

const (
	HTTPClientRequestLabelMethod     = "method"
	HTTPClientRequestLabelURL        = "url"
	HTTPClientRequestLabelStatusCode = "status_code"
	HTTPClientRequestLabelError      = "error"

	AuthenticationLabelOutcome    = "outcome"
	VerificationFailureLabelStage = "stage"
)

const (
	HTTPRequestErrorDo                   = "do_request_error"
	HTTPRequestErrorDecodeBody           = "decode_body_error"
	HTTPRequestErrorReadBody             = "read_body_error"
	HTTPRequestErrorUnexpectedStatusCode = "unexpected_status_code"
)

// Authentication outcomes.
const (
	AuthenticationOutcomeAuthenticated      = "authenticated"
	AuthenticationOutcomeNoToken            = "no_token"
	AuthenticationOutcomeUnknownSubject     = "unknown_subject"
	AuthenticationOutcomeUpstreamError      = "upstream_error"
	AuthenticationOutcomeVerificationFailed = "verification_failed"
	AuthenticationOutcomeInactive           = "inactive"
	AuthenticationOutcomeInsufficientScope  = "insufficient_scope"
	AuthenticationOutcomeMissingSubject     = "missing_subject"
	AuthenticationOutcomeStoreError         = "store_error"
	AuthenticationOutcomeRejected           = "rejected"
	AuthenticationOutcomeAnonymous          = "anonymous"
)

var requestDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	prometheusMetrics     *PrometheusMetrics
	prometheusMetricsOnce sync.Once
)

// PrometheusMetrics represents the collector of metrics.
type PrometheusMetrics struct {
	HTTPClientRequestDuration *prometheus.HistogramVec
	AuthenticationsTotal      *prometheus.CounterVec
	VerificationFailuresTotal *prometheus.CounterVec
	JWKSMissingKeysCache      *lrucache.PrometheusMetrics
}

func GetPrometheusMetrics(instance string, source string) *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetrics = newPrometheusMetrics()
		prometheusMetrics.MustRegister()
	})
	if instance == "" {
		instance = DefaultPrometheusLibInstanceLabel
	}
	return prometheusMetrics.MustCurryWith(map[string]string{
		PrometheusLibInstanceLabel: instance,
		PrometheusLibSourceLabel:   source,
	})
}

func newPrometheusMetrics() *PrometheusMetrics {
	curriedLabelNames := []string{PrometheusLibInstanceLabel, PrometheusLibSourceLabel}
	makeLabelNames := func(names ...string) []string {
		l := append(make([]string, 0, len(curriedLabelNames)+len(names)), curriedLabelNames...)
		return append(l, names...)
	}

	httpClientReqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   PrometheusNamespace,
			Name:        "http_client_request_duration_seconds",
			Help:        "A histogram of the http client request durations to Authorization Server endpoints.",
			Buckets:     requestDurationBuckets,
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(HTTPClientRequestLabelMethod, HTTPClientRequestLabelURL,
			HTTPClientRequestLabelStatusCode, HTTPClientRequestLabelError),
	)
	authnTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "authentications_total",
			Help:        "A counter of bearer token authentications by outcome.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(AuthenticationLabelOutcome),
	)
	verificationFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "introspection_verification_failures_total",
			Help:        "A counter of introspection response verification failures by stage.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(VerificationFailureLabelStage),
	)

	jwksMissingKeysCache := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
		Namespace:         PrometheusNamespace + "_jwks_missing_keys",
		ConstLabels:       PrometheusLabels(),
		CurriedLabelNames: curriedLabelNames,
	})

	return &PrometheusMetrics{
		HTTPClientRequestDuration: httpClientReqDuration,
		AuthenticationsTotal:      authnTotal,
		VerificationFailuresTotal: verificationFailuresTotal,
		JWKSMissingKeysCache:      jwksMissingKeysCache,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		HTTPClientRequestDuration: pm.HTTPClientRequestDuration.MustCurryWith(labels).(*prometheus.HistogramVec),
		AuthenticationsTotal:      pm.AuthenticationsTotal.MustCurryWith(labels),
		VerificationFailuresTotal: pm.VerificationFailuresTotal.MustCurryWith(labels),
		JWKSMissingKeysCache:      pm.JWKSMissingKeysCache.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.HTTPClientRequestDuration,
		pm.AuthenticationsTotal,
		pm.VerificationFailuresTotal,
	)
	pm.JWKSMissingKeysCache.MustRegister()
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.HTTPClientRequestDuration)
	prometheus.Unregister(pm.AuthenticationsTotal)
	prometheus.Unregister(pm.VerificationFailuresTotal)
	pm.JWKSMissingKeysCache.Unregister()
}

func (pm *PrometheusMetrics) ObserveHTTPClientRequest(
	method string, targetURL string, statusCode int, elapsed time.Duration, errorType string,
) {
	pm.HTTPClientRequestDuration.With(prometheus.Labels{
		HTTPClientRequestLabelMethod:     method,
		HTTPClientRequestLabelURL:        targetURL,
		HTTPClientRequestLabelStatusCode: strconv.Itoa(statusCode),
		HTTPClientRequestLabelError:      errorType,
	}).Observe(elapsed.Seconds())
}

func (pm *PrometheusMetrics) IncAuthenticationsTotal(outcome string) {
	pm.AuthenticationsTotal.With(prometheus.Labels{AuthenticationLabelOutcome: outcome}).Inc()
}

func (pm *PrometheusMetrics) IncVerificationFailuresTotal(stage string) {
	pm.VerificationFailuresTotal.With(prometheus.Labels{VerificationFailureLabelStage: stage}).Inc()
}
