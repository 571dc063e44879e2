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
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

const (
	fromParam     = "from"
	quantityParam = "quantity"
)

var (
	errMissingTotal = errors.New("first response carries no total")
	errShortResult  = errors.New("follow-up response is shorter than the announced total")
)

// offsetEnvelope is the range metadata of an offset-paginated response.
type offsetEnvelope struct {
	Total   *int              `json:"total"`
	From    *int              `json:"from"`
	To      *int              `json:"to"`
	Results []json.RawMessage `json:"results"`
}

// OffsetFetcher issues a first call to learn the total, then exactly one
// follow-up call for the full range.
type OffsetFetcher struct {
	getter Getter
	kind   models.FeedKind
	logger logger.Logger
}

// NewOffsetFetcher creates an offset strategy for one feed.
func NewOffsetFetcher(g Getter, kind models.FeedKind, log logger.Logger) *OffsetFetcher {
	return &OffsetFetcher{
		getter: g,
		kind:   kind,
		logger: orNop(log),
	}
}

// OffsetResult is the full-range response and its announced total.
type OffsetResult struct {
	Body  []byte
	Total int
}

// Fetch retrieves every record of rawURL.
func (f *OffsetFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*OffsetResult, error) {
	first, err := f.getter.Fetch(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}

	env, err := f.decode(first)
	if err != nil {
		return nil, err
	}

	if env.Total == nil {
		return nil, f.parseErr(errMissingTotal)
	}

	total := *env.Total

	f.logger.Debug().
		Str("feed", string(f.kind)).
		Int("total", total).
		Msg("Offset first page fetched")

	if total == 0 {
		return &OffsetResult{Body: first}, nil
	}

	fullURL, err := withQuery(rawURL, map[string]string{
		fromParam:     "0",
		quantityParam: strconv.Itoa(total),
	})
	if err != nil {
		return nil, f.parseErr(err)
	}

	body, err := f.getter.Fetch(ctx, fullURL, headers)
	if err != nil {
		return nil, err
	}

	full, err := f.decode(body)
	if err != nil {
		return nil, err
	}

	if len(full.Results) < total {
		return nil, f.parseErr(fmt.Errorf("%w: got %d of %d", errShortResult, len(full.Results), total))
	}

	return &OffsetResult{Body: body, Total: total}, nil
}

func (f *OffsetFetcher) decode(body []byte) (*offsetEnvelope, error) {
	var env offsetEnvelope

	if err := json.Unmarshal(body, &env); err != nil {
		return nil, f.parseErr(fmt.Errorf("invalid range envelope: %w", err))
	}

	return &env, nil
}

func (f *OffsetFetcher) parseErr(err error) error {
	return &models.ParseError{FeedKind: f.kind, Cause: err}
}
