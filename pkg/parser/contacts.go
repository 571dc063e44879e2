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
	"strings"

	"github.com/carverauto/topology-sync/pkg/models"
)

// ContactParser extracts site contacts or endpoint contacts, depending on
// the feed kind it is bound to.
type ContactParser struct {
	kind models.FeedKind
}

func (p *ContactParser) Kind() models.FeedKind { return p.kind }

func (p *ContactParser) Parse(payload models.Payload) (*Result, error) {
	var doc gocdbContactDocument
	if err := decodeXML(payload.Body, &doc); err != nil {
		return nil, parseErr(p.kind, err)
	}

	if p.kind == models.FeedSiteContacts {
		return p.siteContacts(&doc)
	}

	return p.endpointContacts(&doc)
}

func (p *ContactParser) siteContacts(doc *gocdbContactDocument) (*Result, error) {
	records := make([]models.ContactRecord, 0, len(doc.Sites))

	for i := range doc.Sites {
		site := &doc.Sites[i]
		if site.Name == "" {
			return nil, parseErr(p.kind, missing("NAME", i))
		}

		contacts := make([]models.Contact, 0, len(site.Contacts))

		for _, c := range site.Contacts {
			contact := models.Contact{
				Email:      strings.TrimSpace(c.Email),
				Name:       strings.TrimSpace(c.Forename + " " + c.Surname),
				Role:       c.Role,
				Identifier: c.CertDN,
			}

			if contact.Address() != "" {
				contacts = append(contacts, contact)
			}
		}

		if len(contacts) > 0 {
			records = append(records, models.ContactRecord{Key: site.Name, Contacts: contacts})
		}
	}

	return &Result{Contacts: records}, nil
}

func (p *ContactParser) endpointContacts(doc *gocdbContactDocument) (*Result, error) {
	records := make([]models.ContactRecord, 0, len(doc.Endpoints))

	for i := range doc.Endpoints {
		ep := &doc.Endpoints[i]
		if ep.Hostname == "" || ep.ServiceType == "" {
			return nil, parseErr(p.kind, missing("HOSTNAME/SERVICE_TYPE", i))
		}

		emails := splitAddresses(ep.ContactEmail)
		if len(emails) == 0 {
			continue
		}

		contacts := make([]models.Contact, 0, len(emails))
		for _, email := range emails {
			contacts = append(contacts, models.Contact{Email: email})
		}

		records = append(records, models.ContactRecord{
			Key:      ep.Hostname + "+" + ep.ServiceType,
			Contacts: contacts,
		})
	}

	return &Result{Contacts: records}, nil
}
