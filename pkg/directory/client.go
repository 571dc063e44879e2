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

// Package directory queries BDII-style LDAP servers for supplemental
// storage endpoint attributes.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
	"github.com/carverauto/topology-sync/pkg/retry"
)

const defaultTimeout = 30 * time.Second

var errMissingURL = errors.New("directory: url is required")

// Conn is the subset of *ldap.Conn used by the client.
type Conn interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Dialer opens a connection to the directory.
type Dialer func(ctx context.Context, url string, timeout time.Duration) (Conn, error)

// Config holds the directory endpoint and its retry budget.
type Config struct {
	URL           string
	Attempts      int
	Timeout       time.Duration
	Sleep         time.Duration
	LinearBackoff bool
}

// Query is a single subtree search.
type Query struct {
	BaseDN     string
	Filter     string
	Attributes []string
}

// Client runs LDAP searches under the shared retry policy. Every attempt
// uses a fresh connection.
type Client struct {
	url     string
	timeout time.Duration
	policy  retry.Policy
	dial    Dialer
	logger  logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithDialer replaces the LDAP dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dial = d
	}
}

// New creates a directory client.
func New(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errMissingURL
	}

	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	backoffFn := retry.Fixed(cfg.Sleep)
	if cfg.LinearBackoff {
		backoffFn = retry.Linear(cfg.Sleep)
	}

	c := &Client{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		dial:    dialLDAP,
		logger:  log,
		policy: retry.Policy{
			Name:        "ldap",
			MaxAttempts: cfg.Attempts,
			Backoff:     backoffFn,
			Retryable:   IsRetryable,
			Logger:      log,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Search runs q and returns its entries flattened to plain values.
func (c *Client) Search(ctx context.Context, q Query) ([]models.DirectoryEntry, error) {
	entries, attempts, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]models.DirectoryEntry, error) {
		return c.search(ctx, q)
	})
	if err != nil {
		return nil, &models.TransportError{URL: c.url, Attempts: attempts, Cause: err}
	}

	c.logger.Debug().
		Str("base_dn", q.BaseDN).
		Str("filter", q.Filter).
		Int("entries", len(entries)).
		Int("attempts", attempts).
		Msg("Directory search completed")

	return entries, nil
}

func (c *Client) search(ctx context.Context, q Query) ([]models.DirectoryEntry, error) {
	conn, err := c.dial(ctx, c.url, c.timeout)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})

	defer func() {
		if stop() {
			_ = conn.Close()
		}
	}()

	req := ldap.NewSearchRequest(
		q.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(c.timeout.Seconds()),
		false,
		q.Filter,
		q.Attributes,
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, fmt.Errorf("ldap search %q: %w", q.Filter, err)
	}

	return flatten(result), nil
}

func flatten(result *ldap.SearchResult) []models.DirectoryEntry {
	entries := make([]models.DirectoryEntry, 0, len(result.Entries))

	for _, e := range result.Entries {
		entry := models.DirectoryEntry{
			DN:         e.DN,
			Attributes: make(map[string][]string, len(e.Attributes)),
		}

		for _, attr := range e.Attributes {
			entry.Attributes[attr.Name] = append([]string(nil), attr.Values...)
		}

		entries = append(entries, entry)
	}

	return entries
}

// IsRetryable is the fault classifier of the directory client.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		switch ldapErr.ResultCode {
		case ldap.ErrorNetwork,
			ldap.LDAPResultBusy,
			ldap.LDAPResultUnavailable,
			ldap.LDAPResultTimeLimitExceeded:
			return true
		default:
			return false
		}
	}

	var netErr net.Error

	return errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
}

type ldapConn struct {
	conn *ldap.Conn
}

func (l *ldapConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return l.conn.Search(req)
}

func (l *ldapConn) Close() error {
	l.conn.Close()

	return nil
}

func dialLDAP(ctx context.Context, url string, timeout time.Duration) (Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}

	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	conn, err := ldap.DialURL(url, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, err
	}

	conn.SetTimeout(timeout)

	return &ldapConn{conn: conn}, nil
}
