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

package fetcher

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

const (
	cursorParam     = "next_cursor"
	defaultMaxPages = 10000
	rootOpen        = "<results>"
	rootClose       = "</results>"
)

var (
	errMissingCount  = errors.New("page carries no record count")
	errMissingCursor = errors.New("non-empty page carries no next cursor")
	errCursorLoop    = errors.New("next cursor repeats a previous page")
	errTooManyPages  = errors.New("page limit exceeded")
)

// pageEnvelope is the meta block of one cursor page.
type pageEnvelope struct {
	XMLName xml.Name `xml:"results"`
	Meta    struct {
		Count *int       `xml:"count"`
		Links []pageLink `xml:"link"`
	} `xml:"meta"`
	Inner []byte `xml:",innerxml"`
}

type pageLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// CursorFetcher follows next-cursor tokens until a page reports zero
// records, then merges all pages into a single <results> document.
type CursorFetcher struct {
	getter   Getter
	kind     models.FeedKind
	maxPages int
	logger   logger.Logger
}

// NewCursorFetcher creates a cursor strategy for one feed.
func NewCursorFetcher(g Getter, kind models.FeedKind, log logger.Logger) *CursorFetcher {
	return &CursorFetcher{
		getter:   g,
		kind:     kind,
		maxPages: defaultMaxPages,
		logger:   orNop(log),
	}
}

// CursorResult is the merged document and the number of data pages read.
type CursorResult struct {
	Body  []byte
	Pages int
}

// Fetch retrieves every page of rawURL.
func (f *CursorFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*CursorResult, error) {
	var merged bytes.Buffer

	merged.WriteString(rootOpen)

	seen := make(map[string]struct{})
	pageURL := rawURL
	pages := 0

	for request := 0; ; request++ {
		if request >= f.maxPages {
			return nil, f.parseErr(errTooManyPages)
		}

		body, err := f.getter.Fetch(ctx, pageURL, headers)
		if err != nil {
			return nil, err
		}

		env, err := decodeEnvelope(body)
		if err != nil {
			return nil, f.parseErr(err)
		}

		if env.Meta.Count == nil {
			return nil, f.parseErr(fmt.Errorf("%w: %s", errMissingCount, pageURL))
		}

		count := *env.Meta.Count
		if count == 0 {
			break
		}

		pages++

		merged.Write(stripMeta(env.Inner))

		cursor, ok := nextCursor(env.Meta.Links)
		if !ok {
			return nil, f.parseErr(fmt.Errorf("%w: %s", errMissingCursor, pageURL))
		}

		if _, dup := seen[cursor]; dup {
			return nil, f.parseErr(fmt.Errorf("%w: %s", errCursorLoop, cursor))
		}

		seen[cursor] = struct{}{}

		f.logger.Debug().
			Str("feed", string(f.kind)).
			Int("page", pages).
			Int("count", count).
			Str("next_cursor", cursor).
			Msg("Fetched page")

		pageURL, err = withQuery(rawURL, map[string]string{cursorParam: cursor})
		if err != nil {
			return nil, f.parseErr(err)
		}
	}

	merged.WriteString(rootClose)

	return &CursorResult{Body: merged.Bytes(), Pages: pages}, nil
}

func (f *CursorFetcher) parseErr(err error) error {
	return &models.ParseError{FeedKind: f.kind, Cause: err}
}

func decodeEnvelope(body []byte) (*pageEnvelope, error) {
	var env pageEnvelope

	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid page envelope: %w", err)
	}

	return &env, nil
}

func nextCursor(links []pageLink) (string, bool) {
	for _, l := range links {
		if l.Rel != "next" || l.Href == "" {
			continue
		}

		u, err := url.Parse(l.Href)
		if err != nil {
			return "", false
		}

		if c := u.Query().Get(cursorParam); c != "" {
			return c, true
		}
	}

	return "", false
}

// stripMeta removes the <meta> block from the inner XML of a page.
func stripMeta(inner []byte) []byte {
	start := bytes.Index(inner, []byte("<meta"))
	if start < 0 {
		return inner
	}

	end := bytes.Index(inner[start:], []byte("</meta>"))
	if end < 0 {
		return inner
	}

	end += start + len("</meta>")

	out := make([]byte, 0, len(inner)-(end-start))
	out = append(out, inner[:start]...)
	out = append(out, inner[end:]...)

	return out
}
