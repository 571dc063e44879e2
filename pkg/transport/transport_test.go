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
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

func newTestTransport(t *testing.T, cfg Config, opts ...Option) *Transport {
	t.Helper()

	tr, err := New(cfg, logger.NewTestLogger(), opts...)
	require.NoError(t, err)

	return tr
}

func TestFetch_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte("<results/>"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 3, Timeout: time.Second})

	body, err := tr.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "<results/>", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ExhaustsBudget(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 3, Timeout: time.Second})

	_, err := tr.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, int32(3), calls.Load())

	var pe *models.ProtocolError
	require.ErrorAs(t, te.Cause, &pe)
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
}

func TestFetch_ConnectionRefusedIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	tr := newTestTransport(t, Config{Attempts: 2, Timeout: time.Second})

	_, err := tr.Fetch(context.Background(), addr, nil)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)
}

func TestFetch_TerminalStatus(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "no such feed", http.StatusNotFound)
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 5, Timeout: time.Second})

	_, err := tr.Fetch(context.Background(), srv.URL, nil)

	var pe *models.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
	assert.Equal(t, "no such feed", pe.Reason)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ConfiguredRetryableStatus(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{
		Attempts:        3,
		Timeout:         time.Second,
		RetryableStatus: []int{http.StatusTooManyRequests},
	})

	body, err := tr.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_EmptyBodyIsProtocolError(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 3, Timeout: time.Second})

	_, err := tr.Fetch(context.Background(), srv.URL, nil)

	var pe *models.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 1, Timeout: time.Second})

	body, err := tr.Fetch(context.Background(), srv.URL+"/old", nil)
	require.NoError(t, err)
	assert.Equal(t, "moved", string(body))
}

func TestFetch_SendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 1, UserAgent: "custom-agent"})

	_, err := tr.Fetch(context.Background(), srv.URL, map[string]string{"Accept": "application/xml"})
	require.NoError(t, err)
}

func TestFetch_UntrustedCertificateIsTerminal(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("secret"))
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 4, Timeout: time.Second})

	_, err := tr.Fetch(context.Background(), srv.URL, nil)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Attempts)
}

func TestFetch_PerCallTimeout(t *testing.T) {
	var calls atomic.Int32

	release := make(chan struct{})
	defer close(release)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 2, Timeout: 50 * time.Millisecond})

	_, err := tr.Fetch(context.Background(), srv.URL, nil)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.xml")
	require.NoError(t, os.WriteFile(path, []byte("<results/>"), 0o600))

	tr := newTestTransport(t, Config{Attempts: 3})

	body, err := tr.Fetch(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "<results/>", string(body))

	body, err = tr.Fetch(context.Background(), "file://"+path, nil)
	require.NoError(t, err)
	assert.Equal(t, "<results/>", string(body))

	_, err = tr.Fetch(context.Background(), filepath.Join(dir, "missing.xml"), nil)

	var te *models.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Attempts)
}

func TestDo_AcceptStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	tr := newTestTransport(t, Config{Attempts: 1})

	resp, err := tr.Do(context.Background(), Request{
		Method:       http.MethodPost,
		URL:          srv.URL,
		Body:         []byte(`{}`),
		AllowEmpty:   true,
		AcceptStatus: []int{http.StatusConflict},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDo_MockClientResetIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := NewMockHTTPClient(ctrl)

	gomock.InOrder(
		mockClient.EXPECT().Do(gomock.Any()).Return(nil, errors.New("read: connection reset by peer")),
		mockClient.EXPECT().Do(gomock.Any()).Return(&http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("payload")),
		}, nil),
	)

	tr := newTestTransport(t, Config{Attempts: 2}, WithHTTPClient(mockClient))

	body, err := tr.Fetch(context.Background(), "https://feeds.example.org/topology", nil)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"reset", errors.New("connection reset by peer"), true},
		{"timeout", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"server error", &statusFault{ProtocolError: &models.ProtocolError{StatusCode: 500}, retryable: true}, true},
		{"client error", &statusFault{ProtocolError: &models.ProtocolError{StatusCode: 403}}, false},
		{"x509", errors.New("tls: failed to verify certificate: x509: certificate signed by unknown authority"), false},
		{"malformed", errors.New("net/http: malformed HTTP response"), false},
		{"protocol", &models.ProtocolError{Reason: "empty response body"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
