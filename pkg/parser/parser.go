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

// Package parser turns fetched payloads into canonical topology records.
// Every feed kind is bound to exactly one Parser.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carverauto/topology-sync/pkg/models"
)

var (
	errUnknownKind  = errors.New("no parser for feed kind")
	errMissingField = errors.New("missing required field")
	errEmptyPayload = errors.New("empty payload")
)

// Result holds the records produced by one parse task.
type Result struct {
	Groups     []models.GroupRecord
	Endpoints  []models.EndpointRecord
	Contacts   []models.ContactRecord
	Attributes []models.AttributeRecord
}

// Parser is the capability bound to one feed kind.
type Parser interface {
	Kind() models.FeedKind
	Parse(payload models.Payload) (*Result, error)
}

// Options control how records are built.
type Options struct {
	// UID qualifies endpoint hostnames with the provider primary key.
	UID bool
	// Project is the group name of service group records.
	Project string
}

// New returns the parser bound to kind.
func New(kind models.FeedKind, opts Options) (Parser, error) {
	switch kind {
	case models.FeedSites:
		return &SitesParser{}, nil
	case models.FeedServiceGroups:
		return &ServiceGroupParser{project: opts.Project, uid: opts.UID}, nil
	case models.FeedEndpoints:
		return &EndpointParser{uid: opts.UID}, nil
	case models.FeedSiteContacts:
		return &ContactParser{kind: kind}, nil
	case models.FeedEndpointContacts:
		return &ContactParser{kind: kind}, nil
	case models.FeedSRMPort, models.FeedSEPath:
		return &AttributeParser{kind: kind}, nil
	case models.FeedProviders:
		return &ProviderParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownKind, kind)
	}
}

func parseErr(kind models.FeedKind, err error) error {
	return &models.ParseError{FeedKind: kind, Cause: err}
}

func missing(field string, index int) error {
	return fmt.Errorf("%w %s in record %d", errMissingField, field, index)
}

// flag maps GOCDB Y/N markers to the 1/0 tag values.
func flag(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), "Y") {
		return "1"
	}

	return "0"
}

// qualify returns the endpoint hostname and, in UID mode, the hostname tag.
func qualify(hostname, primaryKey string, uid bool, tags map[string]string) string {
	if !uid || primaryKey == "" {
		return hostname
	}

	tags[models.HostnameTag] = hostname

	return hostname + "_" + primaryKey
}

// splitAddresses splits ; or , separated email lists.
func splitAddresses(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ','
	})

	out := make([]string, 0, len(fields))

	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}

	return out
}
