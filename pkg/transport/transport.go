/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package transport provides the HTTP(S) client used for every remote feed:
// bounded retries with a fixed or linear sleep, a per-call timeout and a
// classifier that separates retryable from terminal faults.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
	"github.com/carverauto/topology-sync/pkg/retry"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "topology-sync/1.0"
	maxRedirects     = 10
)

var (
	errEmptyBody     = errors.New("empty response body")
	errTooManyHops   = errors.New("too many redirects")
	errInvalidCAFile = errors.New("no certificates found in CA file")
)

//go:generate mockgen -destination=mock_transport.go -package=transport github.com/carverauto/topology-sync/pkg/transport HTTPClient

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config is the retry budget and connection settings of a Transport.
type Config struct {
	Attempts      int
	Timeout       time.Duration
	Sleep         time.Duration
	LinearBackoff bool
	// RetryableStatus lists non-5xx codes that are worth retrying, e.g. 429.
	RetryableStatus []int
	UserAgent       string
	TLS             *models.TLSConfig
}

// Request is a single logical call. Body is resent on every attempt.
type Request struct {
	Method     string
	URL        string
	Headers    map[string]string
	Body       []byte
	AllowEmpty bool
	// AcceptStatus lists non-2xx codes handed back to the caller instead of
	// being treated as faults.
	AcceptStatus []int
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport is safe for concurrent use by the fetch goroutines of a run.
type Transport struct {
	client          HTTPClient
	policy          retry.Policy
	timeout         time.Duration
	retryableStatus map[int]struct{}
	userAgent       string
	logger          logger.Logger
}

// Option customizes a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the underlying client, e.g. with a metrics wrapper.
func WithHTTPClient(c HTTPClient) Option {
	return func(t *Transport) {
		t.client = c
	}
}

// WrapClient decorates the underlying client.
func WrapClient(wrap func(HTTPClient) HTTPClient) Option {
	return func(t *Transport) {
		t.client = wrap(t.client)
	}
}

// New creates a Transport. The configuration is validated here and never
// re-read afterwards.
func New(cfg Config, log logger.Logger, opts ...Option) (*Transport, error) {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	httpClient, err := newHTTPClient(cfg.TLS)
	if err != nil {
		return nil, err
	}

	backoffFn := retry.Fixed(cfg.Sleep)
	if cfg.LinearBackoff {
		backoffFn = retry.Linear(cfg.Sleep)
	}

	t := &Transport{
		client:          httpClient,
		timeout:         cfg.Timeout,
		retryableStatus: make(map[int]struct{}, len(cfg.RetryableStatus)),
		userAgent:       cfg.UserAgent,
		logger:          log,
	}

	for _, code := range cfg.RetryableStatus {
		t.retryableStatus[code] = struct{}{}
	}

	t.policy = retry.Policy{
		Name:        "http",
		MaxAttempts: cfg.Attempts,
		Backoff:     backoffFn,
		Retryable:   IsRetryable,
		Logger:      log,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

func newHTTPClient(tlsCfg *models.TLSConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if tlsCfg != nil {
		conf, err := buildTLSConfig(tlsCfg)
		if err != nil {
			return nil, err
		}

		transport.TLSClientConfig = conf
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyHops
			}

			return nil
		},
	}, nil
}

func buildTLSConfig(cfg *models.TLSConfig) (*tls.Config, error) {
	//nolint:gosec // InsecureSkipVerify is an explicit operator choice
	conf := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		conf.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: %s", errInvalidCAFile, cfg.CAFile)
		}

		conf.RootCAs = pool
	}

	return conf, nil
}

// Fetch GETs rawURL and returns the body. Local paths and file:// URLs are
// read from disk without retries.
func (t *Transport) Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	if path, ok := localPath(rawURL); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &models.TransportError{URL: rawURL, Attempts: 1, Cause: err}
		}

		if len(data) == 0 {
			return nil, &models.ProtocolError{URL: rawURL, Reason: errEmptyBody.Error()}
		}

		return data, nil
	}

	resp, err := t.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Headers: headers})
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// Do executes req under the retry policy.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	resp, attempts, err := retry.Do(ctx, t.policy, func(ctx context.Context) (*Response, error) {
		return t.attempt(ctx, &req)
	})
	if err == nil {
		return resp, nil
	}

	return nil, t.finalError(ctx, &req, attempts, err)
}

func (t *Transport) finalError(ctx context.Context, req *Request, attempts int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &models.TransportError{URL: req.URL, Attempts: attempts, Cause: ctxErr}
	}

	var sf *statusFault
	if errors.As(err, &sf) {
		if sf.retryable {
			return &models.TransportError{URL: req.URL, Attempts: attempts, Cause: sf.ProtocolError}
		}

		return sf.ProtocolError
	}

	var pe *models.ProtocolError
	if errors.As(err, &pe) {
		return pe
	}

	return &models.TransportError{URL: req.URL, Attempts: attempts, Cause: err}
}

func (t *Transport) attempt(ctx context.Context, req *Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, body)
	if err != nil {
		return nil, &models.ProtocolError{URL: req.URL, Reason: fmt.Sprintf("failed to create request: %v", err)}
	}

	httpReq.Header.Set("User-Agent", t.userAgent)

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer t.closeBody(httpResp)

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if !isSuccess(httpResp.StatusCode) && !containsStatus(req.AcceptStatus, httpResp.StatusCode) {
		return nil, t.newStatusFault(req.URL, httpResp.StatusCode, data)
	}

	if len(data) == 0 && !req.AllowEmpty && isSuccess(httpResp.StatusCode) {
		return nil, &models.ProtocolError{URL: req.URL, StatusCode: httpResp.StatusCode, Reason: errEmptyBody.Error()}
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: data}, nil
}

func (t *Transport) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		t.logger.Debug().Err(err).Msg("Failed to close response body")
	}
}

func (t *Transport) newStatusFault(rawURL string, code int, body []byte) *statusFault {
	_, listed := t.retryableStatus[code]

	reason := http.StatusText(code)
	if snippet := strings.TrimSpace(string(body)); snippet != "" {
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}

		reason = snippet
	}

	return &statusFault{
		ProtocolError: &models.ProtocolError{URL: rawURL, StatusCode: code, Reason: reason},
		retryable:     code >= http.StatusInternalServerError || listed,
	}
}

// statusFault carries the classifier verdict for a non-2xx response.
type statusFault struct {
	*models.ProtocolError
	retryable bool
}

func (s *statusFault) Unwrap() error {
	return s.ProtocolError
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

func containsStatus(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}

	return false
}

func localPath(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", false
		}

		return u.Path, true
	}

	if strings.Contains(rawURL, "://") {
		return "", false
	}

	return rawURL, true
}
