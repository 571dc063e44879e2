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
	"os"
	"path/filepath"

	"github.com/linkedin/goavro/v2"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

const (
	notificationsSchema = `["null", {
	  "type": "record", "name": "Notifications", "namespace": "topology",
	  "fields": [
	    {"name": "contacts", "type": {"type": "array", "items": "string"}},
	    {"name": "enabled", "type": "boolean"}
	  ]}]`

	groupSchema = `{
	  "type": "record", "name": "GroupGroup", "namespace": "topology",
	  "fields": [
	    {"name": "type", "type": "string"},
	    {"name": "group", "type": "string"},
	    {"name": "subgroup", "type": "string"},
	    {"name": "tags", "type": ["null", {"type": "map", "values": "string"}], "default": null},
	    {"name": "notifications", "type": ` + notificationsSchema + `, "default": null}
	  ]}`

	endpointSchema = `{
	  "type": "record", "name": "GroupEndpoint", "namespace": "topology",
	  "fields": [
	    {"name": "type", "type": "string"},
	    {"name": "group", "type": "string"},
	    {"name": "service", "type": "string"},
	    {"name": "hostname", "type": "string"},
	    {"name": "tags", "type": ["null", {"type": "map", "values": "string"}], "default": null},
	    {"name": "notifications", "type": ` + notificationsSchema + `, "default": null}
	  ]}`

	notificationsUnion = "topology.Notifications"
	avroDirPerm        = 0o755
)

// AvroPublisher writes group_groups_<date>.avro and
// group_endpoints_<date>.avro object container files.
type AvroPublisher struct {
	dir           string
	groupCodec    *goavro.Codec
	endpointCodec *goavro.Codec
	logger        logger.Logger
}

// NewAvroPublisher compiles the record schemas.
func NewAvroPublisher(dir string, log logger.Logger) (*AvroPublisher, error) {
	groupCodec, err := goavro.NewCodec(groupSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create group codec: %w", err)
	}

	endpointCodec, err := goavro.NewCodec(endpointSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create endpoint codec: %w", err)
	}

	return &AvroPublisher{
		dir:           dir,
		groupCodec:    groupCodec,
		endpointCodec: endpointCodec,
		logger:        log,
	}, nil
}

func (*AvroPublisher) Name() string { return "avro" }

// Publish writes both files. Each file is written to a temporary name and
// renamed into place.
func (p *AvroPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	if err := checkSnapshot(snap); err != nil {
		return err
	}

	if err := os.MkdirAll(p.dir, avroDirPerm); err != nil {
		return publishErr(p.Name(), err)
	}

	groups := make([]interface{}, 0, len(snap.Groups))
	for i := range snap.Groups {
		groups = append(groups, groupNative(&snap.Groups[i]))
	}

	endpoints := make([]interface{}, 0, len(snap.Endpoints))
	for i := range snap.Endpoints {
		endpoints = append(endpoints, endpointNative(&snap.Endpoints[i]))
	}

	files := []struct {
		name    string
		codec   *goavro.Codec
		records []interface{}
	}{
		{GroupsFileName(snap), p.groupCodec, groups},
		{EndpointsFileName(snap), p.endpointCodec, endpoints},
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return publishErr(p.Name(), err)
		}

		path := filepath.Join(p.dir, f.name)
		if err := writeOCF(path, f.codec, f.records); err != nil {
			return publishErr(p.Name(), err)
		}

		p.logger.Info().
			Str("file", path).
			Int("records", len(f.records)).
			Msg("Wrote record file")
	}

	return nil
}

// GroupsFileName is the group record file of snap.
func GroupsFileName(snap *models.Snapshot) string {
	return "group_groups_" + snap.DateStamp() + ".avro"
}

// EndpointsFileName is the endpoint record file of snap.
func EndpointsFileName(snap *models.Snapshot) string {
	return "group_endpoints_" + snap.DateStamp() + ".avro"
}

func writeOCF(path string, codec *goavro.Codec, records []interface{}) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	tmpName := tmp.Name()

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return err
	}

	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               tmp,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create Avro writer: %w", err))
	}

	if len(records) > 0 {
		if err := w.Append(records); err != nil {
			return fail(fmt.Errorf("failed to write Avro records: %w", err))
		}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to rename %s: %w", path, err)
	}

	return nil
}

func groupNative(g *models.GroupRecord) map[string]interface{} {
	return map[string]interface{}{
		"type":          g.Type,
		"group":         g.Group,
		"subgroup":      g.Subgroup,
		"tags":          tagsNative(g.Tags),
		"notifications": notificationsNative(g.Notifications),
	}
}

func endpointNative(e *models.EndpointRecord) map[string]interface{} {
	return map[string]interface{}{
		"type":          e.Type,
		"group":         e.Group,
		"service":       e.Service,
		"hostname":      e.Hostname,
		"tags":          tagsNative(e.Tags),
		"notifications": notificationsNative(e.Notifications),
	}
}

func tagsNative(tags map[string]string) interface{} {
	if len(tags) == 0 {
		return nil
	}

	m := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		m[k] = v
	}

	return goavro.Union("map", m)
}

func notificationsNative(n *models.Notifications) interface{} {
	if n == nil {
		return nil
	}

	contacts := make([]interface{}, 0, len(n.Contacts))
	for _, c := range n.Contacts {
		contacts = append(contacts, c)
	}

	return goavro.Union(notificationsUnion, map[string]interface{}{
		"contacts": contacts,
		"enabled":  n.Enabled,
	})
}
