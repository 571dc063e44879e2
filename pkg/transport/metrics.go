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

package transport

import (
	"net/http"
	"time"
)

// APIRecorder receives one observation per HTTP attempt.
type APIRecorder interface {
	RecordAPICall(feed, endpoint string)
	RecordAPISuccess(feed, endpoint string, duration time.Duration)
	RecordAPIFailure(feed, endpoint string, statusCode int, duration time.Duration)
}

// MetricsHTTPClient wraps an HTTP client to collect API metrics
type MetricsHTTPClient struct {
	client   HTTPClient
	recorder APIRecorder
	feed     string
}

// NewMetricsHTTPClient creates a new HTTP client wrapper that collects metrics
func NewMetricsHTTPClient(client HTTPClient, feed string, recorder APIRecorder) *MetricsHTTPClient {
	return &MetricsHTTPClient{
		client:   client,
		recorder: recorder,
		feed:     feed,
	}
}

// WithMetrics returns an Option that wraps the client of a Transport.
func WithMetrics(feed string, recorder APIRecorder) Option {
	return WrapClient(func(c HTTPClient) HTTPClient {
		return NewMetricsHTTPClient(c, feed, recorder)
	})
}

// Do executes an HTTP request and records metrics
func (m *MetricsHTTPClient) Do(req *http.Request) (*http.Response, error) {
	endpoint := req.URL.Path
	if endpoint == "" {
		endpoint = req.URL.String()
	}

	start := time.Now()
	m.recorder.RecordAPICall(m.feed, endpoint)

	resp, err := m.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		m.recorder.RecordAPIFailure(m.feed, endpoint, 0, duration)

		return resp, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		m.recorder.RecordAPIFailure(m.feed, endpoint, resp.StatusCode, duration)
	} else {
		m.recorder.RecordAPISuccess(m.feed, endpoint, duration)
	}

	return resp, err
}
