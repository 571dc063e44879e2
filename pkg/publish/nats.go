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

package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

const (
	defaultBatchSize = 1000
	eventSource      = "topology-sync"
	eventType        = "org.topology-sync.snapshot.batch"
	streamName       = "TOPOLOGY"
	streamSubjects   = "topology.>"
)

// JetStream is the subset of jetstream.JetStream used for publishing.
type JetStream interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes a snapshot as CloudEvents batches on
// <subject>.groups and <subject>.endpoints.
type NATSPublisher struct {
	js        JetStream
	subject   string
	batchSize int
	logger    logger.Logger
}

// NewNATSPublisher creates a publisher on an existing JetStream context.
func NewNATSPublisher(js JetStream, subject string, log logger.Logger) *NATSPublisher {
	return &NATSPublisher{
		js:        js,
		subject:   subject,
		batchSize: defaultBatchSize,
		logger:    log,
	}
}

// ConnectNATS dials the server, makes sure the topology stream exists and
// returns a publisher plus the connection to close after publishing.
func ConnectNATS(ctx context.Context, natsURL, credsFile, subject string, log logger.Logger) (*NATSPublisher, *nats.Conn, error) {
	opts := []nats.Option{nats.Name(eventSource)}
	if credsFile != "" {
		opts = append(opts, nats.UserCredentials(credsFile))
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.Stream(ctx, streamName); err != nil {
		if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{streamSubjects},
		}); err != nil {
			nc.Close()

			return nil, nil, fmt.Errorf("failed to create or get stream %s: %w", streamName, err)
		}
	}

	return NewNATSPublisher(js, subject, log), nc, nil
}

func (*NATSPublisher) Name() string { return "nats" }

// Publish sends every batch and waits for each acknowledgement.
func (p *NATSPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	if err := checkSnapshot(snap); err != nil {
		return err
	}

	groupBatches := chunk(len(snap.Groups), p.batchSize)
	for i, r := range groupBatches {
		batch := p.batch(snap, i, len(groupBatches))
		batch.Groups = snap.Groups[r[0]:r[1]]

		if err := p.send(ctx, p.subject+".groups", &batch); err != nil {
			return publishErr(p.Name(), err)
		}
	}

	endpointBatches := chunk(len(snap.Endpoints), p.batchSize)
	for i, r := range endpointBatches {
		batch := p.batch(snap, i, len(endpointBatches))
		batch.Endpoints = snap.Endpoints[r[0]:r[1]]

		if err := p.send(ctx, p.subject+".endpoints", &batch); err != nil {
			return publishErr(p.Name(), err)
		}
	}

	return nil
}

func (*NATSPublisher) batch(snap *models.Snapshot, index, total int) models.TopologyBatch {
	return models.TopologyBatch{
		Customer: snap.Customer,
		Job:      snap.Job,
		Date:     snap.DateStamp(),
		RunID:    snap.RunID,
		Batch:    index + 1,
		Batches:  total,
	}
}

func (p *NATSPublisher) send(ctx context.Context, subject string, batch *models.TopologyBatch) error {
	now := time.Now().UTC()

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &now,
		Data:            batch,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal topology event: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish topology event: %w", err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("seq", ack.Sequence).
		Int("batch", batch.Batch).
		Int("batches", batch.Batches).
		Msg("Published topology batch")

	return nil
}

// chunk splits n items into [start, end) ranges of at most size items.
func chunk(n, size int) [][2]int {
	if n == 0 {
		return nil
	}

	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}

	return out
}
