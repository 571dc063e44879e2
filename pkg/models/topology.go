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

// Package models holds the canonical topology records and the error taxonomy
// shared by every stage of the synchronization pipeline.
package models

import "strings"

// Record types emitted by the built-in parsers.
const (
	GroupTypeNGI           = "NGI"
	GroupTypeProject       = "PROJECT"
	GroupTypeProvider      = "PROVIDERS"
	EndpointTypeSites      = "SITES"
	EndpointTypeServiceGrp = "SERVICEGROUPS"
)

// HostnameTag holds the bare FQDN of an endpoint whose Hostname was
// qualified with its provider UID.
const HostnameTag = "hostname"

// Notifications describes who gets alerted for a group or an endpoint.
type Notifications struct {
	Contacts []string `json:"contacts"`
	Enabled  bool     `json:"enabled"`
}

// GroupRecord is a hierarchical grouping node, e.g. NGI -> site.
type GroupRecord struct {
	Type          string            `json:"type"`
	Group         string            `json:"group"`
	Subgroup      string            `json:"subgroup"`
	Tags          map[string]string `json:"tags"`
	Notifications *Notifications    `json:"notifications,omitempty"`
}

// EndpointRecord is a single monitored service endpoint.
type EndpointRecord struct {
	Type          string            `json:"type"`
	Group         string            `json:"group"`
	Service       string            `json:"service"`
	Hostname      string            `json:"hostname"`
	Tags          map[string]string `json:"tags"`
	Notifications *Notifications    `json:"notifications,omitempty"`
}

// FQDN returns the hostname without the UID suffix.
func (e *EndpointRecord) FQDN() string {
	if h, ok := e.Tags[HostnameTag]; ok && h != "" {
		return h
	}

	return e.Hostname
}

// Key identifies the endpoint within a snapshot.
func (e *EndpointRecord) Key() string {
	return e.Hostname + "+" + e.Service
}

// Contact is a single contact entry. Email is empty when the provider only
// exposes an opaque identifier.
type Contact struct {
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// Address returns the value used for notifications.
func (c Contact) Address() string {
	if c.Email != "" {
		return c.Email
	}

	return c.Identifier
}

// ContactRecord maps a subgroup name or an "fqdn+service" key to contacts.
type ContactRecord struct {
	Key      string    `json:"key"`
	Contacts []Contact `json:"contacts"`
}

// EndpointKey splits an "fqdn+service" key. ok is false for group keys.
func (c *ContactRecord) EndpointKey() (fqdn, service string, ok bool) {
	fqdn, service, ok = strings.Cut(c.Key, "+")
	if !ok || fqdn == "" || service == "" {
		return "", "", false
	}

	return fqdn, service, true
}

// Attribute names carried by AttributeRecord.
const (
	AttrSEPath  = "SE_PATH"
	AttrSRMPort = "SRM_PORT"
)

// VOPath is one VO access path published for a storage element.
type VOPath struct {
	VOName string `json:"vo_name"`
	Path   string `json:"path"`
}

// AttributeRecord is a directory-sourced fragment for one hostname.
type AttributeRecord struct {
	Hostname  string   `json:"hostname"`
	Attribute string   `json:"attribute"`
	VOPaths   []VOPath `json:"vo_paths,omitempty"`
	Value     string   `json:"value,omitempty"`
}

// VOTag builds the endpoint tag name for a VO scoped attribute.
func VOTag(voName, attr string) string {
	return "vo_" + voName + "_attr_" + attr
}

// CloneTags copies a tag map so merged records never share state with
// their inputs.
func CloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}

	return out
}
