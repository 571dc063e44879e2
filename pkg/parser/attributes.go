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
	"net"
	"net/url"
	"strings"

	"github.com/carverauto/topology-sync/pkg/directory"
	"github.com/carverauto/topology-sync/pkg/models"
)

// AttributeParser converts directory entries into attribute records.
type AttributeParser struct {
	kind models.FeedKind
}

func (p *AttributeParser) Kind() models.FeedKind { return p.kind }

func (p *AttributeParser) Parse(payload models.Payload) (*Result, error) {
	if p.kind == models.FeedSRMPort {
		return p.srmPorts(payload.Entries)
	}

	return p.sePaths(payload.Entries)
}

// srmPorts reads the port from SRM service endpoint URLs such as
// httpg://se.example.org:8446/srm/managerv2.
func (p *AttributeParser) srmPorts(entries []models.DirectoryEntry) (*Result, error) {
	records := make([]models.AttributeRecord, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))

	for i := range entries {
		for _, raw := range entries[i].GetAll(directory.AttrServiceEndpoint) {
			u, err := url.Parse(raw)
			if err != nil {
				return nil, parseErr(p.kind, err)
			}

			host, port, err := net.SplitHostPort(u.Host)
			if err != nil || host == "" || port == "" {
				continue
			}

			if _, dup := seen[host]; dup {
				continue
			}

			seen[host] = struct{}{}

			records = append(records, models.AttributeRecord{
				Hostname:  host,
				Attribute: models.AttrSRMPort,
				Value:     port,
			})
		}
	}

	return &Result{Attributes: records}, nil
}

// sePaths groups per-VO storage paths by storage element host. The VO names
// of one entry are kept space separated in a single VOPath.
func (p *AttributeParser) sePaths(entries []models.DirectoryEntry) (*Result, error) {
	index := make(map[string]int)
	records := make([]models.AttributeRecord, 0)

	for i := range entries {
		entry := &entries[i]

		host := ""
		for _, key := range entry.GetAll(directory.AttrChunkKey) {
			if h, ok := directory.SEHostname(key); ok {
				host = h
				break
			}
		}

		path := entry.Get(directory.AttrVOInfoPath)
		vos := directory.VONames(entry.GetAll(directory.AttrVOInfoACBR))

		if host == "" || path == "" || len(vos) == 0 {
			continue
		}

		pos, ok := index[host]
		if !ok {
			pos = len(records)
			index[host] = pos

			records = append(records, models.AttributeRecord{Hostname: host, Attribute: models.AttrSEPath})
		}

		records[pos].VOPaths = append(records[pos].VOPaths, models.VOPath{
			VOName: strings.Join(vos, " "),
			Path:   path,
		})
	}

	return &Result{Attributes: records}, nil
}
