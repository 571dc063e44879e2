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

package parser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

// Task pairs a payload with the parser bound to its kind.
type Task struct {
	Parser  Parser
	Payload models.Payload
}

// Outcome is the private output slot of one task.
type Outcome struct {
	Kind     models.FeedKind
	Result   *Result
	Err      error
	Duration time.Duration
}

// Pool runs parse tasks on a bounded set of goroutines.
type Pool struct {
	size   int
	logger logger.Logger
}

// NewPool creates a pool of at most size workers.
func NewPool(size int, log logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{size: size, logger: log}
}

// Run parses every task and waits for all of them. Outcomes are returned in
// task order. A panicking parser yields a ParseError for its task only.
func (p *Pool) Run(ctx context.Context, tasks []Task) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes, nil
	}

	workers, err := ants.NewPool(min(p.size, len(tasks)))
	if err != nil {
		return nil, fmt.Errorf("failed to create parse pool: %w", err)
	}
	defer workers.Release()

	var wg sync.WaitGroup

	for i := range tasks {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{Kind: tasks[i].Parser.Kind(), Err: err}
			continue
		}

		wg.Add(1)

		idx := i

		if err := workers.Submit(func() {
			defer wg.Done()

			outcomes[idx] = p.parse(tasks[idx])
		}); err != nil {
			wg.Done()

			outcomes[idx] = Outcome{Kind: tasks[idx].Parser.Kind(), Err: err}
		}
	}

	wg.Wait()

	return outcomes, nil
}

func (p *Pool) parse(task Task) (out Outcome) {
	kind := task.Parser.Kind()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Kind:     kind,
				Err:      &models.ParseError{FeedKind: kind, Cause: fmt.Errorf("parser panic: %v", r)},
				Duration: time.Since(start),
			}
		}
	}()

	res, err := task.Parser.Parse(task.Payload)
	out = Outcome{Kind: kind, Result: res, Err: err, Duration: time.Since(start)}

	p.logger.Debug().
		Str("feed", string(kind)).
		Dur("duration", out.Duration).
		Bool("ok", err == nil).
		Msg("Parsed payload")

	return out
}
