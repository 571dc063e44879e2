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

// Package topology drives one synchronization run: it fans out the feed
// fetches, parses the payloads on a bounded pool, merges the records,
// records the run state and hands the snapshot to the publishers.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/topology-sync/pkg/config"
	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/merge"
	"github.com/carverauto/topology-sync/pkg/models"
	"github.com/carverauto/topology-sync/pkg/parser"
)

var (
	// ErrRunFailed is returned when a required feed could not be fetched or
	// parsed. The failure has been recorded in the state store.
	ErrRunFailed = errors.New("topology run failed")
	// ErrPublish is returned when at least one publisher failed after the
	// success state was written.
	ErrPublish = errors.New("topology publish failed")

	errNilConfig = errors.New("config is required")
	errNoStore   = errors.New("state store is required")
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	// Getter serves every HTTP or file feed without an entry in Getters.
	Getter     Getter
	Getters    map[models.FeedKind]Getter
	Directory  DirectorySearcher
	Store      StateStore
	Publishers []Publisher
	Metrics    Metrics
	Clock      Clock
}

// Report describes a finished run.
type Report struct {
	RunID    string
	State    State
	Snapshot *models.Snapshot
	Partial  []*models.PartialDataError
	Duration time.Duration
}

// Orchestrator runs the pipeline for one customer job.
type Orchestrator struct {
	cfg        *config.Config
	feeds      []feed
	parsers    map[models.FeedKind]parser.Parser
	store      StateStore
	publishers []Publisher
	metrics    Metrics
	clock      Clock
	logger     logger.Logger

	mu    sync.RWMutex
	state State
}

// New wires an Orchestrator from a validated configuration.
func New(cfg *config.Config, deps Deps, log logger.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	if deps.Store == nil {
		return nil, errNoStore
	}

	feeds, err := buildFeeds(cfg, &deps)
	if err != nil {
		return nil, err
	}

	opts := parser.Options{UID: cfg.UID, Project: cfg.Project}
	parsers := make(map[models.FeedKind]parser.Parser, len(feeds))

	for _, f := range feeds {
		p, err := parser.New(f.kind, opts)
		if err != nil {
			return nil, err
		}

		parsers[f.kind] = p
	}

	o := &Orchestrator{
		cfg:        cfg,
		feeds:      feeds,
		parsers:    parsers,
		store:      deps.Store,
		publishers: deps.Publishers,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     log,
	}

	if o.metrics == nil {
		o.metrics = &NoOpMetrics{}
	}

	if o.clock == nil {
		o.clock = realClock{}
	}

	return o, nil
}

// State returns the current stage.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.state
}

// Run executes one run for the logical date. The report is returned even
// when the run fails.
func (o *Orchestrator) Run(ctx context.Context, date time.Time) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	start := o.clock.Now()

	log := o.logger.WithFields(map[string]interface{}{
		"customer": o.cfg.Customer,
		"job":      o.cfg.Job,
		"run_id":   report.RunID,
	})

	o.mu.Lock()
	o.state = StateInit
	o.mu.Unlock()

	log.Info().
		Str("date", date.Format(DateLayout)).
		Int("feeds", len(o.feeds)).
		Int("publishers", len(o.publishers)).
		Msg("Starting topology run")

	err := o.run(ctx, log, date, report)

	report.State = o.State()
	report.Duration = o.clock.Now().Sub(start)

	o.logSummary(log, report)

	return report, err
}

func (o *Orchestrator) run(ctx context.Context, log logger.Logger, date time.Time, report *Report) error {
	o.transition(log, StateFetching)

	payloads, err := o.fetchAll(ctx, log, report)
	if err != nil {
		return o.fail(ctx, log, date, err)
	}

	o.transition(log, StateParsing)

	input, err := o.parseAll(ctx, log, payloads, report)
	if err != nil {
		return o.fail(ctx, log, date, err)
	}

	o.transition(log, StateMerging)

	out := merge.New(log).Merge(input)
	o.metrics.RecordMerge(out.Stats, len(out.Groups), len(out.Endpoints))

	report.Snapshot = &models.Snapshot{
		RunID:       report.RunID,
		Customer:    o.cfg.Customer,
		Job:         o.cfg.Job,
		LogicalDate: date,
		Groups:      out.Groups,
		Endpoints:   out.Endpoints,
	}

	if err := o.store.Write(ctx, models.RunState{Kind: o.cfg.StateKind, LogicalDate: date, Success: true}); err != nil {
		o.transition(log, StateFailed)
		log.Error().Err(err).Msg("Failed to record run state, not publishing")

		return fmt.Errorf("%w: failed to record run state: %w", ErrRunFailed, err)
	}

	o.transition(log, StatePublishing)

	if err := o.publishAll(ctx, log, report.Snapshot); err != nil {
		log.Error().Err(err).Msg("Publishing failed, run state kept")

		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	o.transition(log, StateDone)

	return nil
}

func (o *Orchestrator) transition(log logger.Logger, to State) {
	o.mu.Lock()
	from := o.state

	if !canTransition(from, to) {
		o.mu.Unlock()

		log.Error().Str("from", from.String()).Str("to", to.String()).Msg("Illegal state transition")

		return
	}

	o.state = to
	o.mu.Unlock()

	log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("State transition")
}

// fail records the failed run. The state is written even when ctx has been
// cancelled.
func (o *Orchestrator) fail(ctx context.Context, log logger.Logger, date time.Time, cause error) error {
	o.transition(log, StateFailed)

	log.Error().Err(cause).Msg("Topology run failed")

	st := models.RunState{Kind: o.cfg.StateKind, LogicalDate: date, Success: false}
	if err := o.store.Write(context.WithoutCancel(ctx), st); err != nil {
		log.Error().Err(err).Msg("Failed to record failed run state")

		return fmt.Errorf("%w: %w", ErrRunFailed, errors.Join(cause, err))
	}

	return fmt.Errorf("%w: %w", ErrRunFailed, cause)
}

type fetchSlot struct {
	payload models.Payload
	err     error
}

// fetchAll runs every feed concurrently and waits for all of them before
// deciding whether the run can continue.
func (o *Orchestrator) fetchAll(ctx context.Context, log logger.Logger, report *Report) ([]models.Payload, error) {
	slots := make([]fetchSlot, len(o.feeds))

	var wg sync.WaitGroup

	for i := range o.feeds {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			f := &o.feeds[idx]
			name := string(f.kind)
			started := time.Now()

			o.metrics.RecordFetchAttempt(name)

			payload, err := f.src.fetch(ctx, log.WithComponent(name))
			if err != nil {
				o.metrics.RecordFetchFailure(name, err, time.Since(started))
			} else {
				o.metrics.RecordFetchSuccess(name, payloadSize(&payload), time.Since(started))
			}

			slots[idx] = fetchSlot{payload: payload, err: err}
		}(i)
	}

	wg.Wait()

	var (
		payloads []models.Payload
		failed   []error
	)

	for i := range slots {
		f := &o.feeds[i]

		if slots[i].err == nil {
			payloads = append(payloads, slots[i].payload)

			continue
		}

		if f.required {
			failed = append(failed, fmt.Errorf("feed %s: %w", f.kind, slots[i].err))

			continue
		}

		o.partial(log, report, f.kind, slots[i].err)
	}

	if len(failed) > 0 {
		return nil, errors.Join(failed...)
	}

	return payloads, nil
}

// parseAll parses every payload on a pool sized by the number of feed kinds
// and collects the records for the merge.
func (o *Orchestrator) parseAll(
	ctx context.Context, log logger.Logger, payloads []models.Payload, report *Report) (*merge.Input, error) {
	tasks := make([]parser.Task, 0, len(payloads))
	for _, p := range payloads {
		tasks = append(tasks, parser.Task{Parser: o.parsers[p.Kind], Payload: p})
	}

	outcomes, err := parser.NewPool(len(tasks), log).Run(ctx, tasks)
	if err != nil {
		return nil, err
	}

	input := &merge.Input{}

	var failed []error

	for i := range outcomes {
		oc := &outcomes[i]
		name := string(oc.Kind)

		if oc.Err != nil {
			o.metrics.RecordParseFailure(name, oc.Err, oc.Duration)

			if o.required(oc.Kind) {
				failed = append(failed, fmt.Errorf("feed %s: %w", oc.Kind, oc.Err))
			} else {
				o.partial(log, report, oc.Kind, oc.Err)
			}

			continue
		}

		o.metrics.RecordParseSuccess(name, collect(input, oc.Kind, oc.Result), oc.Duration)
	}

	if len(failed) > 0 {
		return nil, errors.Join(failed...)
	}

	return input, nil
}

func (o *Orchestrator) required(kind models.FeedKind) bool {
	for i := range o.feeds {
		if o.feeds[i].kind == kind {
			return o.feeds[i].required
		}
	}

	return true
}

func (*Orchestrator) partial(log logger.Logger, report *Report, kind models.FeedKind, err error) {
	pd := &models.PartialDataError{FeedKind: kind, Cause: err}
	report.Partial = append(report.Partial, pd)

	log.Warn().Str("feed", string(kind)).Err(pd).Msg("Optional feed unavailable, enrichment skipped")
}

// publishAll runs every publisher concurrently. Failures are joined in
// publisher order.
func (o *Orchestrator) publishAll(ctx context.Context, log logger.Logger, snap *models.Snapshot) error {
	errs := make([]error, len(o.publishers))

	var wg sync.WaitGroup

	for i, p := range o.publishers {
		wg.Add(1)

		go func(idx int, pub Publisher) {
			defer wg.Done()

			if err := pub.Publish(ctx, snap); err != nil {
				errs[idx] = fmt.Errorf("%s: %w", pub.Name(), err)

				return
			}

			log.Info().Str("publisher", pub.Name()).Msg("Snapshot published")
		}(i, p)
	}

	wg.Wait()

	return errors.Join(errs...)
}

func (o *Orchestrator) logSummary(log logger.Logger, report *Report) {
	ev := log.Info()
	if report.State != StateDone {
		ev = log.Warn()
	}

	if report.Snapshot != nil {
		ev = ev.Int("groups", len(report.Snapshot.Groups)).Int("endpoints", len(report.Snapshot.Endpoints))
	}

	ev.Str("state", report.State.String()).
		Int("partial_feeds", len(report.Partial)).
		Dur("duration", report.Duration).
		Interface("metrics", o.metrics.GetMetrics()).
		Msg("Topology run finished")
}

// collect appends a parse result to the merge input and returns its record
// count.
func collect(in *merge.Input, kind models.FeedKind, r *parser.Result) int {
	if r == nil {
		return 0
	}

	in.Groups = append(in.Groups, r.Groups...)
	in.Endpoints = append(in.Endpoints, r.Endpoints...)
	in.Attributes = append(in.Attributes, r.Attributes...)

	switch kind {
	case models.FeedEndpointContacts:
		in.EndpointContacts = append(in.EndpointContacts, r.Contacts...)
	default:
		in.GroupContacts = append(in.GroupContacts, r.Contacts...)
	}

	return len(r.Groups) + len(r.Endpoints) + len(r.Contacts) + len(r.Attributes)
}

func payloadSize(p *models.Payload) int {
	if len(p.Entries) > 0 {
		return len(p.Entries)
	}

	return len(p.Body)
}
