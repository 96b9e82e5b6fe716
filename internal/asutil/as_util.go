/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package asutil

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/acronis/go-appkit/httpclient"
	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-rsauth/internal/libinfo"
)

const DefaultHTTPRequestTimeout = 10 * time.Second

// HTTPClientOpts contains options for the HTTP client used for calls to the Authorization Server.
type HTTPClientOpts struct {
	// RequestTimeout bounds the whole request including reading the response body.
	// DefaultHTTPRequestTimeout is used if it's zero.
	RequestTimeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification of the Authorization Server.
	InsecureSkipVerify bool

	// ProxyURL is an optional outbound proxy. Environment proxy settings are used if it's empty.
	ProxyURL string
}

// MakeHTTPClient creates an HTTP client for the Authorization Server calls.
// Requests are never retried: a failed introspection is reported to the caller immediately.
func MakeHTTPClient(opts HTTPClientOpts) (*http.Client, error) {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultHTTPRequestTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}
	if opts.InsecureSkipVerify {
		if tr.TLSClientConfig == nil {
			tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		tr.TLSClientConfig.InsecureSkipVerify = true // nolint:gosec // explicitly requested by configuration
	}
	return &http.Client{
		Timeout:   opts.RequestTimeout,
		Transport: httpclient.NewUserAgentRoundTripper(tr, libinfo.UserAgent()),
	}, nil
}

// MakeDefaultHTTPClient creates an HTTP client with the default timeout and TLS verification enabled.
func MakeDefaultHTTPClient() *http.Client {
	c, _ := MakeHTTPClient(HTTPClientOpts{}) // error is always nil without proxy
	return c
}

// DefaultLogger is used when no logger is provided. Logging is disabled if it's nil.
var DefaultLogger log.FieldLogger

func PrepareLogger(logger log.FieldLogger) log.FieldLogger {
	if logger == nil {
		logger = DefaultLogger
	}
	if logger == nil {
		return log.NewDisabledLogger()
	}
	return log.NewPrefixedLogger(logger, libinfo.LogPrefix())
}

// GetLoggerFromProvider returns a prefixed logger from the provider, or a disabled logger if there is nothing to use.
func GetLoggerFromProvider(ctx context.Context, provider func(ctx context.Context) log.FieldLogger) log.FieldLogger {
	if provider == nil {
		return PrepareLogger(nil)
	}
	return PrepareLogger(provider(ctx))
}
