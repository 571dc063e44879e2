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

import "strings"

// FeedKind names one logical input of a run.
type FeedKind string

const (
	FeedSites            FeedKind = "sites"
	FeedServiceGroups    FeedKind = "servicegroups"
	FeedEndpoints        FeedKind = "endpoints"
	FeedSiteContacts     FeedKind = "site_contacts"
	FeedEndpointContacts FeedKind = "endpoint_contacts"
	FeedProviders        FeedKind = "providers"
	FeedSRMPort          FeedKind = "srm_port"
	FeedSEPath           FeedKind = "se_path"
)

// IsDirectory reports whether the feed is answered by an LDAP query.
func (k FeedKind) IsDirectory() bool {
	return k == FeedSRMPort || k == FeedSEPath
}

// IsEnrichment reports whether a failure of this feed only degrades the
// snapshot instead of invalidating it.
func (k FeedKind) IsEnrichment() bool {
	switch k {
	case FeedSiteContacts, FeedEndpointContacts, FeedSRMPort, FeedSEPath:
		return true
	case FeedSites, FeedServiceGroups, FeedEndpoints, FeedProviders:
		return false
	default:
		return false
	}
}

// DirectoryEntry is an LDAP entry flattened to plain values.
type DirectoryEntry struct {
	DN         string              `json:"dn"`
	Attributes map[string][]string `json:"attributes"`
}

// Get returns the first value of an attribute, matched case-insensitively.
func (d *DirectoryEntry) Get(name string) string {
	values := d.GetAll(name)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// GetAll returns every value of an attribute, matched case-insensitively.
func (d *DirectoryEntry) GetAll(name string) []string {
	if v, ok := d.Attributes[name]; ok {
		return v
	}

	for k, v := range d.Attributes {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return nil
}

// Payload is the raw output of one fetch task.
type Payload struct {
	Kind    FeedKind
	Source  string
	Body    []byte
	Entries []DirectoryEntry
}
