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

package models

import (
	"errors"
	"fmt"
)

// TransportError is returned once the retry budget for a network call is
// exhausted. Attempts is the number of calls actually made.
type TransportError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error after %d attempt(s) for %s: %v", e.Attempts, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ProtocolError reports an unexpected status code or an empty body.
type ProtocolError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("protocol error for %s: HTTP %d: %s", e.URL, e.StatusCode, e.Reason)
	}

	return fmt.Sprintf("protocol error for %s: %s", e.URL, e.Reason)
}

// ParseError reports a malformed payload or missing required fields.
type ParseError struct {
	FeedKind FeedKind
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s feed: %v", e.FeedKind, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// PartialDataError marks an optional enrichment source that could not be
// used. It never aborts a run.
type PartialDataError struct {
	FeedKind FeedKind
	Cause    error
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial data: %s feed skipped: %v", e.FeedKind, e.Cause)
}

func (e *PartialDataError) Unwrap() error {
	return e.Cause
}

// IsPartialData reports whether err only affects enrichment.
func IsPartialData(err error) bool {
	var pd *PartialDataError

	return errors.As(err, &pd)
}
