/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package asclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/go-jose/go-jose/v4"

	"github.com/acronis/go-rsauth/internal/asutil"
	"github.com/acronis/go-rsauth/internal/metrics"
)

const (
	DefaultIntrospectionPath = "/introspect"
	DefaultJWKSPath          = "/jwks"
)

// IntrospectionResponseContentType is a media type of the signed and encrypted token introspection response.
const IntrospectionResponseContentType = "application/token-introspection+jwt"

const maxResponseBodySize = 1 << 20

var errEmptyResponse = errors.New("empty response body")

type jwksData struct {
	Keys *[]json.RawMessage `json:"keys"`
}

// ClientOpts contains options for the Authorization Server client.
type ClientOpts struct {
	// HTTPClient is an HTTP client for making requests.
	// It should be configured with a timeout, see asutil.MakeHTTPClient.
	HTTPClient *http.Client

	// IntrospectionPath is a path of the introspection endpoint relative to the Authorization Server URL.
	// DefaultIntrospectionPath is used if it's empty.
	IntrospectionPath string

	// JWKSPath is a path of the JWKS endpoint relative to the Authorization Server URL.
	// DefaultJWKSPath is used if it's empty.
	JWKSPath string

	// LoggerProvider is a function that provides a logger for the client.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// It allows distinguishing metrics from different instances of the same library.
	PrometheusLibInstanceLabel string
}

// IntrospectionRequest contains parameters of the token introspection request.
type IntrospectionRequest struct {
	ClientID     string
	ClientSecret string
	Token        string
}

// String never prints the client secret and the token.
func (r IntrospectionRequest) String() string {
	return fmt.Sprintf("IntrospectionRequest{client_id: %q}", r.ClientID)
}

// EncryptedIntrospectionResponse is a compact-serialized JWE returned by the introspection endpoint.
type EncryptedIntrospectionResponse string

// Client makes requests to the Authorization Server. It never retries requests.
type Client struct {
	httpClient       *http.Client
	jwksURL          string
	introspectionURL string
	loggerProvider   func(ctx context.Context) log.FieldLogger
	promMetrics      *metrics.PrometheusMetrics
}

// NewClient returns a new Client for the Authorization Server with the given base URL.
func NewClient(baseURL string) (*Client, error) {
	return NewClientWithOpts(baseURL, ClientOpts{})
}

// NewClientWithOpts returns a new Client with options.
func NewClientWithOpts(baseURL string, opts ClientOpts) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse authorization server url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("authorization server url %q must be absolute http(s) url", baseURL)
	}
	if opts.IntrospectionPath == "" {
		opts.IntrospectionPath = DefaultIntrospectionPath
	}
	if opts.JWKSPath == "" {
		opts.JWKSPath = DefaultJWKSPath
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = asutil.MakeDefaultHTTPClient()
	}
	return &Client{
		httpClient:       opts.HTTPClient,
		jwksURL:          joinURL(baseURL, opts.JWKSPath),
		introspectionURL: joinURL(baseURL, opts.IntrospectionPath),
		loggerProvider:   opts.LoggerProvider,
		promMetrics:      metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceASClient),
	}, nil
}

// JWKSURL returns URL of the JWKS endpoint.
func (c *Client) JWKSURL() string {
	return c.jwksURL
}

// IntrospectionURL returns URL of the introspection endpoint.
func (c *Client) IntrospectionURL() string {
	return c.introspectionURL
}

// GetKeySet fetches JWKS. It makes Client usable where the key set may be cached.
func (c *Client) GetKeySet(ctx context.Context) (*PublicKeySet, error) {
	return c.FetchJWKS(ctx)
}

// FetchJWKS fetches the Authorization Server's public keys.
// *UpstreamError is returned on network error or non-2xx response,
// *KeySetFormatError is returned if the response is not a valid JWKS. Empty key list is valid.
func (c *Client) FetchJWKS(ctx context.Context) (*PublicKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var data jwksData
	if err = json.Unmarshal(body, &data); err != nil {
		return nil, &KeySetFormatError{URL: c.jwksURL, Index: -1, Inner: fmt.Errorf("decode response body json: %w", err)}
	}
	if data.Keys == nil {
		return nil, &KeySetFormatError{URL: c.jwksURL, Index: -1, Inner: errors.New(`"keys" member is missing`)}
	}
	keys := make([]jose.JSONWebKey, 0, len(*data.Keys))
	for i, rawKey := range *data.Keys {
		var key jose.JSONWebKey
		if err = key.UnmarshalJSON(rawKey); err != nil {
			return nil, &KeySetFormatError{URL: c.jwksURL, Index: i, Inner: err}
		}
		if !key.Valid() {
			return nil, &KeySetFormatError{URL: c.jwksURL, Index: i, Inner: fmt.Errorf("key %q is invalid", key.KeyID)}
		}
		keys = append(keys, key)
	}

	c.logger(ctx).AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc(fmt.Sprintf("%d keys fetched (jwks_url: %s)", len(keys), c.jwksURL))
	})
	return NewPublicKeySet(keys...), nil
}

// Introspect sends the token to the introspection endpoint and returns the encrypted response as is.
// *UpstreamError is returned on network error, non-2xx or empty response.
func (c *Client) Introspect(ctx context.Context, introspectionReq IntrospectionRequest) (EncryptedIntrospectionResponse, error) {
	form := url.Values{}
	form.Set("client_id", introspectionReq.ClientID)
	form.Set("client_secret", introspectionReq.ClientSecret)
	form.Set("token", introspectionReq.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.introspectionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", IntrospectionResponseContentType)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	resp := strings.TrimSpace(string(body))
	if resp == "" {
		return "", &UpstreamError{Method: req.Method, URL: c.introspectionURL, Inner: errEmptyResponse}
	}
	return EncryptedIntrospectionResponse(resp), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	method, targetURL := req.Method, req.URL.String()

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(startTime)
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(method, targetURL, 0, elapsed, metrics.HTTPRequestErrorDo)
		return nil, &UpstreamError{Method: method, URL: targetURL, Inner: fmt.Errorf("do request: %w", err)}
	}
	defer func() {
		if closeBodyErr := resp.Body.Close(); closeBodyErr != nil {
			c.logger(req.Context()).Error(
				fmt.Sprintf("closing response body error for %s %s", method, targetURL), log.Error(closeBodyErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.promMetrics.ObserveHTTPClientRequest(
			method, targetURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorUnexpectedStatusCode)
		return nil, &UpstreamError{Method: method, URL: targetURL,
			Inner: &UnexpectedResponseError{StatusCode: resp.StatusCode, Header: resp.Header.Clone()}}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(method, targetURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorReadBody)
		return nil, &UpstreamError{Method: method, URL: targetURL, Inner: fmt.Errorf("read response body: %w", err)}
	}

	c.promMetrics.ObserveHTTPClientRequest(method, targetURL, resp.StatusCode, elapsed, "")
	return body, nil
}

func (c *Client) logger(ctx context.Context) log.FieldLogger {
	return asutil.GetLoggerFromProvider(ctx, c.loggerProvider)
}

func joinURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
