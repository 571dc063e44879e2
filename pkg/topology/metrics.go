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
	"sync"
	"time"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/merge"
	"github.com/carverauto/topology-sync/pkg/transport"
)

// Metrics defines the interface for collecting run metrics
type Metrics interface {
	transport.APIRecorder

	// Feed metrics
	RecordFetchAttempt(feed string)
	RecordFetchSuccess(feed string, bytes int, duration time.Duration)
	RecordFetchFailure(feed string, err error, duration time.Duration)
	RecordParseSuccess(feed string, records int, duration time.Duration)
	RecordParseFailure(feed string, err error, duration time.Duration)

	// Merge metrics
	RecordMerge(stats merge.Stats, groups, endpoints int)

	// Export metrics for the run summary
	GetMetrics() map[string]interface{}
}

// NoOpMetrics provides a no-op implementation of the Metrics interface
type NoOpMetrics struct{}

func (*NoOpMetrics) RecordAPICall(string, string)                        {}
func (*NoOpMetrics) RecordAPISuccess(string, string, time.Duration)      {}
func (*NoOpMetrics) RecordAPIFailure(string, string, int, time.Duration) {}
func (*NoOpMetrics) RecordFetchAttempt(string)                           {}
func (*NoOpMetrics) RecordFetchSuccess(string, int, time.Duration)       {}
func (*NoOpMetrics) RecordFetchFailure(string, error, time.Duration)     {}
func (*NoOpMetrics) RecordParseSuccess(string, int, time.Duration)       {}
func (*NoOpMetrics) RecordParseFailure(string, error, time.Duration)     {}
func (*NoOpMetrics) RecordMerge(merge.Stats, int, int)                   {}
func (*NoOpMetrics) GetMetrics() map[string]interface{}                  { return map[string]interface{}{} }

// InMemoryMetrics provides an in-memory implementation of the Metrics interface
type InMemoryMetrics struct {
	mu     sync.RWMutex
	logger logger.Logger

	// Fetch metrics
	fetchAttempts map[string]int
	fetchFailures map[string]int
	fetchBytes    map[string]int
	fetchDuration map[string]time.Duration

	// Parse metrics
	parseRecords  map[string]int
	parseFailures map[string]int
	parseDuration map[string]time.Duration

	// API metrics
	apiCalls    map[string]int
	apiSuccess  map[string]int
	apiFailures map[string]int
	apiDuration map[string]time.Duration

	// Merge metrics
	merged       merge.Stats
	groupsOut    int
	endpointsOut int
	lastUpdated  time.Time
}

// NewInMemoryMetrics creates a new in-memory metrics collector
func NewInMemoryMetrics(log logger.Logger) *InMemoryMetrics {
	return &InMemoryMetrics{
		logger:        log,
		fetchAttempts: make(map[string]int),
		fetchFailures: make(map[string]int),
		fetchBytes:    make(map[string]int),
		fetchDuration: make(map[string]time.Duration),
		parseRecords:  make(map[string]int),
		parseFailures: make(map[string]int),
		parseDuration: make(map[string]time.Duration),
		apiCalls:      make(map[string]int),
		apiSuccess:    make(map[string]int),
		apiFailures:   make(map[string]int),
		apiDuration:   make(map[string]time.Duration),
		lastUpdated:   time.Now(),
	}
}

func (m *InMemoryMetrics) RecordFetchAttempt(feed string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchAttempts[feed]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordFetchSuccess(feed string, bytes int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchBytes[feed] = bytes
	m.fetchDuration[feed] = duration
	m.lastUpdated = time.Now()

	m.logger.Info().
		Str("feed", feed).
		Int("bytes", bytes).
		Dur("duration", duration).
		Msg("Feed fetched successfully")
}

func (m *InMemoryMetrics) RecordFetchFailure(feed string, err error, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchFailures[feed]++
	m.fetchDuration[feed] = duration
	m.lastUpdated = time.Now()

	m.logger.Error().
		Str("feed", feed).
		Err(err).
		Dur("duration", duration).
		Msg("Feed fetch failed")
}

func (m *InMemoryMetrics) RecordParseSuccess(feed string, records int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseRecords[feed] = records
	m.parseDuration[feed] = duration
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordParseFailure(feed string, err error, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseFailures[feed]++
	m.parseDuration[feed] = duration
	m.lastUpdated = time.Now()

	m.logger.Error().
		Str("feed", feed).
		Err(err).
		Dur("duration", duration).
		Msg("Feed parse failed")
}

func (m *InMemoryMetrics) RecordAPICall(feed, endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := feed + ":" + endpoint
	m.apiCalls[key]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordAPISuccess(feed, endpoint string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := feed + ":" + endpoint
	m.apiSuccess[key]++
	m.apiDuration[key] = duration
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordAPIFailure(feed, endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := feed + ":" + endpoint
	m.apiFailures[key]++
	m.apiDuration[key] = duration
	m.lastUpdated = time.Now()

	m.logger.Warn().
		Str("feed", feed).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API call failed")
}

func (m *InMemoryMetrics) RecordMerge(stats merge.Stats, groups, endpoints int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merged = stats
	m.groupsOut = groups
	m.endpointsOut = endpoints
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"fetch": map[string]interface{}{
			"attempts":  copyCounts(m.fetchAttempts),
			"failures":  copyCounts(m.fetchFailures),
			"bytes":     copyCounts(m.fetchBytes),
			"durations": copyDurations(m.fetchDuration),
		},
		"parse": map[string]interface{}{
			"records":   copyCounts(m.parseRecords),
			"failures":  copyCounts(m.parseFailures),
			"durations": copyDurations(m.parseDuration),
		},
		"api": map[string]interface{}{
			"calls":     copyCounts(m.apiCalls),
			"successes": copyCounts(m.apiSuccess),
			"failures":  copyCounts(m.apiFailures),
			"durations": copyDurations(m.apiDuration),
		},
		"merge": map[string]interface{}{
			"groups":             m.groupsOut,
			"endpoints":          m.endpointsOut,
			"groups_notified":    m.merged.GroupsNotified,
			"endpoints_notified": m.merged.EndpointsNotified,
			"endpoints_tagged":   m.merged.EndpointsTagged,
		},
		"last_updated": m.lastUpdated,
	}
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

func copyDurations(in map[string]time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
