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

// Package retry implements the single retry discipline shared by the HTTP
// transport and the directory client.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/topology-sync/pkg/logger"
)

var errInvalidAttempts = errors.New("retry: max attempts must be at least 1")

// BackoffFunc returns the sleep before the next attempt. attempt is the
// 1-based number of the attempt that just failed.
type BackoffFunc func(attempt int) time.Duration

// Fixed sleeps d between every attempt.
func Fixed(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// Linear sleeps attempt*d, so the third retry waits three times longer than
// the first.
func Linear(d time.Duration) BackoffFunc {
	return func(attempt int) time.Duration { return time.Duration(attempt) * d }
}

// Policy is parameterized by attempt budget, backoff and a fault classifier.
type Policy struct {
	Name        string
	MaxAttempts int
	Backoff     BackoffFunc
	Retryable   func(error) bool
	Logger      logger.Logger
}

// Validate checks the policy once, at construction time of its owner.
func (p *Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errInvalidAttempts
	}

	return nil
}

// policyBackOff adapts a BackoffFunc to backoff.BackOff.
type policyBackOff struct {
	fn      BackoffFunc
	attempt int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.fn == nil {
		return 0
	}

	return b.fn(b.attempt)
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
}

// Do runs op until it succeeds, fails with a fault Retryable rejects, or the
// attempt budget is spent. It returns the number of calls made to op. A
// terminal fault always costs exactly one attempt.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T

	if err := p.Validate(); err != nil {
		return zero, 0, err
	}

	attempts := 0

	operation := func() (T, error) {
		attempts++

		res, err := op(ctx)
		if err == nil {
			return res, nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return res, backoff.Permanent(err)
		}

		return res, err
	}

	notify := func(err error, next time.Duration) {
		if p.Logger == nil {
			return
		}

		p.Logger.Warn().
			Err(err).
			Str("operation", p.Name).
			Int("attempt", attempts).
			Int("max_attempts", p.MaxAttempts).
			Dur("backoff", next).
			Msg("Retryable fault, sleeping before next attempt")
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&policyBackOff{fn: p.Backoff}),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}

		return res, attempts, err
	}

	return res, attempts, nil
}
