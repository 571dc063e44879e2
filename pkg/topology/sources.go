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

package topology

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/carverauto/topology-sync/pkg/config"
	"github.com/carverauto/topology-sync/pkg/directory"
	"github.com/carverauto/topology-sync/pkg/fetcher"
	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

const scopeParam = "scope"

var (
	errNoGetter    = errors.New("no HTTP getter for feed")
	errNoDirectory = errors.New("no directory client for feed")
)

// source produces the raw payload of one feed.
type source interface {
	fetch(ctx context.Context, log logger.Logger) (models.Payload, error)
}

// httpSource fetches a GOCDB-style or JSON feed, paginated or not.
type httpSource struct {
	kind       models.FeedKind
	url        string
	headers    map[string]string
	pagination config.Pagination
	getter     Getter
}

func (s *httpSource) fetch(ctx context.Context, log logger.Logger) (models.Payload, error) {
	payload := models.Payload{Kind: s.kind, Source: s.url}

	switch s.pagination {
	case config.PaginationCursor:
		res, err := fetcher.NewCursorFetcher(s.getter, s.kind, log).Fetch(ctx, s.url, s.headers)
		if err != nil {
			return payload, err
		}

		payload.Body = res.Body
	case config.PaginationOffset:
		res, err := fetcher.NewOffsetFetcher(s.getter, s.kind, log).Fetch(ctx, s.url, s.headers)
		if err != nil {
			return payload, err
		}

		payload.Body = res.Body
	case config.PaginationNone:
		body, err := s.getter.Fetch(ctx, s.url, s.headers)
		if err != nil {
			return payload, err
		}

		payload.Body = body
	default:
		return payload, fmt.Errorf("unsupported pagination %q", s.pagination)
	}

	return payload, nil
}

// directorySource runs the GLUE query bound to a directory feed kind.
type directorySource struct {
	kind   models.FeedKind
	client DirectorySearcher
	query  directory.Query
}

func (s *directorySource) fetch(ctx context.Context, _ logger.Logger) (models.Payload, error) {
	payload := models.Payload{Kind: s.kind, Source: s.query.Filter}

	entries, err := s.client.Search(ctx, s.query)
	if err != nil {
		return payload, err
	}

	payload.Entries = entries

	return payload, nil
}

// feed is one active input of a run.
type feed struct {
	kind     models.FeedKind
	required bool
	src      source
}

func buildFeeds(cfg *config.Config, deps *Deps) ([]feed, error) {
	feeds := make([]feed, 0, len(cfg.Feeds))

	for i := range cfg.Feeds {
		fc := &cfg.Feeds[i]

		src, err := buildSource(cfg, fc, deps)
		if err != nil {
			return nil, err
		}

		feeds = append(feeds, feed{kind: fc.Kind, required: fc.IsRequired(), src: src})
	}

	return feeds, nil
}

func buildSource(cfg *config.Config, fc *config.FeedConfig, deps *Deps) (source, error) {
	if fc.Kind.IsDirectory() {
		if deps.Directory == nil {
			return nil, fmt.Errorf("%w: %s", errNoDirectory, fc.Kind)
		}

		base := ""
		if cfg.Directory != nil {
			base = cfg.Directory.BaseDN
		}

		q := directory.SRMPortQuery(base)
		if fc.Kind == models.FeedSEPath {
			q = directory.SEPathQuery(base)
		}

		return &directorySource{kind: fc.Kind, client: deps.Directory, query: q}, nil
	}

	getter := deps.Getters[fc.Kind]
	if getter == nil {
		getter = deps.Getter
	}

	if getter == nil {
		return nil, fmt.Errorf("%w: %s", errNoGetter, fc.Kind)
	}

	target, err := withScope(fc.URL, fc.Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid url for feed %s: %w", fc.Kind, err)
	}

	return &httpSource{
		kind:       fc.Kind,
		url:        target,
		headers:    fc.Headers,
		pagination: fc.Pagination,
		getter:     getter,
	}, nil
}

// withScope adds the scope filter to remote URLs. Local feeds are left as is.
func withScope(rawURL string, scope []string) (string, error) {
	if len(scope) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return rawURL, nil
	}

	q := u.Query()
	q.Set(scopeParam, strings.Join(scope, ","))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
