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

// Package merge joins parsed topology records with contact and directory
// side data. Every step is a pure function of its inputs and returns new
// records; inputs are never modified.
package merge

import (
	"strings"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

// SRMPortTag is set on SRM endpoints from directory SRM_PORT data.
const SRMPortTag = "info_SRM_port"

const srmService = "SRM"

// Input is everything the merge consumes.
type Input struct {
	Groups           []models.GroupRecord
	Endpoints        []models.EndpointRecord
	GroupContacts    []models.ContactRecord
	EndpointContacts []models.ContactRecord
	Attributes       []models.AttributeRecord
}

// Output holds the final record lists handed to publishers.
type Output struct {
	Groups    []models.GroupRecord
	Endpoints []models.EndpointRecord
	Stats     Stats
}

// Stats counts enriched records.
type Stats struct {
	GroupsNotified    int
	EndpointsNotified int
	EndpointsTagged   int
}

// Merger applies group contacts, endpoint contacts and directory attributes
// in that order.
type Merger struct {
	logger logger.Logger
}

// New creates a Merger.
func New(log logger.Logger) *Merger {
	return &Merger{logger: log}
}

// Merge runs every step.
func (m *Merger) Merge(in *Input) *Output {
	groups, notifiedGroups := m.GroupContacts(in.Groups, in.GroupContacts)
	endpoints, notifiedEndpoints := m.EndpointContacts(in.Endpoints, in.EndpointContacts)
	endpoints, tagged := m.Attributes(endpoints, in.Attributes)

	return &Output{
		Groups:    groups,
		Endpoints: endpoints,
		Stats: Stats{
			GroupsNotified:    notifiedGroups,
			EndpointsNotified: notifiedEndpoints,
			EndpointsTagged:   tagged,
		},
	}
}

// GroupContacts attaches contacts whose key equals a group subgroup.
func (*Merger) GroupContacts(groups []models.GroupRecord, contacts []models.ContactRecord) ([]models.GroupRecord, int) {
	index := make(map[string][]string, len(contacts))

	for i := range contacts {
		key := contacts[i].Key
		if _, seen := index[key]; seen {
			continue
		}

		if addrs := addresses(contacts[i].Contacts); len(addrs) > 0 {
			index[key] = addrs
		}
	}

	out := make([]models.GroupRecord, len(groups))
	notified := 0

	for i := range groups {
		g := copyGroup(&groups[i])

		if addrs, ok := index[g.Subgroup]; ok && g.Notifications == nil {
			g.Notifications = &models.Notifications{Contacts: append([]string(nil), addrs...), Enabled: true}
			notified++
		}

		out[i] = g
	}

	return out, notified
}

type endpointKey struct {
	fqdn    string
	service string
}

// EndpointContacts attaches contacts keyed fqdn+service to every endpoint
// with that FQDN and service. Malformed keys are skipped.
func (m *Merger) EndpointContacts(endpoints []models.EndpointRecord, contacts []models.ContactRecord) ([]models.EndpointRecord, int) {
	index := make(map[endpointKey][]string, len(contacts))

	for i := range contacts {
		fqdn, service, ok := contacts[i].EndpointKey()
		if !ok {
			m.logger.Warn().
				Str("contact_key", contacts[i].Key).
				Msg("Skipping endpoint contacts with malformed key")

			continue
		}

		key := endpointKey{fqdn: fqdn, service: service}
		if _, seen := index[key]; seen {
			continue
		}

		if addrs := addresses(contacts[i].Contacts); len(addrs) > 0 {
			index[key] = addrs
		}
	}

	out := make([]models.EndpointRecord, len(endpoints))
	notified := 0

	for i := range endpoints {
		e := copyEndpoint(&endpoints[i])

		addrs, ok := index[endpointKey{fqdn: e.FQDN(), service: e.Service}]
		if ok && e.Notifications == nil {
			e.Notifications = &models.Notifications{Contacts: append([]string(nil), addrs...), Enabled: true}
			notified++
		}

		out[i] = e
	}

	return out, notified
}

// voTag is one tag to add to every endpoint of a host.
type voTag struct {
	name  string
	value string
}

// Attributes folds directory attributes into endpoint tags. Existing tags
// are never overwritten, so applying the same attributes twice is a no-op.
func (*Merger) Attributes(endpoints []models.EndpointRecord, attrs []models.AttributeRecord) ([]models.EndpointRecord, int) {
	paths := sePathTags(attrs)
	ports := srmPorts(attrs)

	out := make([]models.EndpointRecord, len(endpoints))
	tagged := 0

	for i := range endpoints {
		e := copyEndpoint(&endpoints[i])
		fqdn := e.FQDN()
		changed := false

		for _, tag := range paths[fqdn] {
			if _, exists := e.Tags[tag.name]; !exists {
				setTag(&e, tag.name, tag.value)
				changed = true
			}
		}

		if port, ok := ports[fqdn]; ok && strings.EqualFold(e.Service, srmService) {
			if _, exists := e.Tags[SRMPortTag]; !exists {
				setTag(&e, SRMPortTag, port)
				changed = true
			}
		}

		if changed {
			tagged++
		}

		out[i] = e
	}

	return out, tagged
}

// setTag allocates e.Tags on first write.
func setTag(e *models.EndpointRecord, name, value string) {
	if e.Tags == nil {
		e.Tags = make(map[string]string)
	}

	e.Tags[name] = value
}

// sePathTags builds the ordered SE_PATH tags per host. A path already seen
// for a host is dropped, and each whitespace separated VO name of an entry
// gets its own tag.
func sePathTags(attrs []models.AttributeRecord) map[string][]voTag {
	tags := make(map[string][]voTag)
	seenPath := make(map[string]map[string]struct{})
	seenTag := make(map[string]map[string]struct{})

	for i := range attrs {
		a := &attrs[i]
		if a.Attribute != models.AttrSEPath {
			continue
		}

		if seenPath[a.Hostname] == nil {
			seenPath[a.Hostname] = make(map[string]struct{})
			seenTag[a.Hostname] = make(map[string]struct{})
		}

		for _, vp := range a.VOPaths {
			if _, dup := seenPath[a.Hostname][vp.Path]; dup {
				continue
			}

			seenPath[a.Hostname][vp.Path] = struct{}{}

			for _, vo := range strings.Fields(vp.VOName) {
				name := models.VOTag(vo, models.AttrSEPath)
				if _, dup := seenTag[a.Hostname][name]; dup {
					continue
				}

				seenTag[a.Hostname][name] = struct{}{}
				tags[a.Hostname] = append(tags[a.Hostname], voTag{name: name, value: vp.Path})
			}
		}
	}

	return tags
}

func srmPorts(attrs []models.AttributeRecord) map[string]string {
	ports := make(map[string]string)

	for i := range attrs {
		a := &attrs[i]
		if a.Attribute != models.AttrSRMPort || a.Value == "" {
			continue
		}

		if _, seen := ports[a.Hostname]; !seen {
			ports[a.Hostname] = a.Value
		}
	}

	return ports
}

// addresses returns the de-duplicated notification addresses in input order.
func addresses(contacts []models.Contact) []string {
	seen := make(map[string]struct{}, len(contacts))
	out := make([]string, 0, len(contacts))

	for _, c := range contacts {
		addr := strings.TrimSpace(c.Address())
		if addr == "" {
			continue
		}

		if _, dup := seen[addr]; dup {
			continue
		}

		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	return out
}

func copyGroup(g *models.GroupRecord) models.GroupRecord {
	out := *g
	if g.Tags != nil {
		out.Tags = models.CloneTags(g.Tags)
	}

	out.Notifications = copyNotifications(g.Notifications)

	return out
}

func copyEndpoint(e *models.EndpointRecord) models.EndpointRecord {
	out := *e
	if e.Tags != nil {
		out.Tags = models.CloneTags(e.Tags)
	}

	out.Notifications = copyNotifications(e.Notifications)

	return out
}

func copyNotifications(n *models.Notifications) *models.Notifications {
	if n == nil {
		return nil
	}

	return &models.Notifications{Contacts: append([]string(nil), n.Contacts...), Enabled: n.Enabled}
}
