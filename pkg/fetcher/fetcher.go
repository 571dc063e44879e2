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

// Package fetcher drives multi-page retrieval of topology feeds. Cursor and
// offset pagination have different termination rules and are kept as
// separate types.
package fetcher

import (
	"context"
	"net/url"

	"github.com/carverauto/topology-sync/pkg/logger"
)

// Getter is the transport used by both strategies.
type Getter interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error)
}

// withQuery returns rawURL with the given query parameters set.
func withQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

func orNop(log logger.Logger) logger.Logger {
	if log == nil {
		return logger.NewTestLogger()
	}

	return log
}
