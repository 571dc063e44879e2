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

package retry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/topology-sync/pkg/logger"
)

var (
	errTestRetryable = errors.New("connection reset by peer")
	errTestTerminal  = errors.New("x509: certificate is valid for a, not b")
)

func isTestRetryable(err error) bool {
	return errors.Is(err, errTestRetryable)
}

func testPolicy(attempts int) Policy {
	return Policy{
		Name:        "test",
		MaxAttempts: attempts,
		Backoff:     Fixed(time.Millisecond),
		Retryable:   isTestRetryable,
		Logger:      logger.NewTestLogger(),
	}
}

func TestDo_FailsTwiceThenSucceeds(t *testing.T) {
	calls := 0

	res, attempts, err := Do(context.Background(), testPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTestRetryable
		}

		return "body", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "body", res)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0

	_, attempts, err := Do(context.Background(), testPolicy(3), func(context.Context) (int, error) {
		calls++
		return 0, errTestRetryable
	})

	require.ErrorIs(t, err, errTestRetryable)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, attempts)
}

func TestDo_TerminalFaultShortCircuits(t *testing.T) {
	calls := 0

	_, attempts, err := Do(context.Background(), testPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, errTestTerminal
	})

	require.ErrorIs(t, err, errTestTerminal)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestDo_SingleAttemptTerminalIsUnwrapped(t *testing.T) {
	_, _, err := Do(context.Background(), testPolicy(1), func(context.Context) (int, error) {
		return 0, errTestTerminal
	})

	require.Equal(t, errTestTerminal, err)
}

func TestDo_InvalidPolicy(t *testing.T) {
	_, attempts, err := Do(context.Background(), testPolicy(0), func(context.Context) (int, error) {
		return 1, nil
	})

	require.ErrorIs(t, err, errInvalidAttempts)
	assert.Zero(t, attempts)
}

func TestDo_LogsEveryRetry(t *testing.T) {
	var buf bytes.Buffer

	log, err := logger.NewWithWriter(&logger.Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	p := testPolicy(3)
	p.Logger = log

	_, _, _ = Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, errTestRetryable
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"attempt":1`)
	assert.Contains(t, lines[1], `"attempt":2`)
	assert.Contains(t, lines[0], `"backoff"`)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := testPolicy(5)
	p.Backoff = Fixed(time.Hour)

	calls := 0

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errTestRetryable
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestLinear(t *testing.T) {
	b := Linear(2 * time.Second)
	assert.Equal(t, 2*time.Second, b(1))
	assert.Equal(t, 6*time.Second, b(3))
	assert.Equal(t, time.Second, Fixed(time.Second)(7))
}
