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
	"github.com/carverauto/topology-sync/pkg/models"
)

// SitesParser builds NGI -> site groups from a GOCDB site list.
type SitesParser struct{}

func (*SitesParser) Kind() models.FeedKind { return models.FeedSites }

func (p *SitesParser) Parse(payload models.Payload) (*Result, error) {
	var doc gocdbDocument
	if err := decodeXML(payload.Body, &doc); err != nil {
		return nil, parseErr(p.Kind(), err)
	}

	groups := make([]models.GroupRecord, 0, len(doc.Sites))

	for i := range doc.Sites {
		site := &doc.Sites[i]

		name := site.name()
		if name == "" {
			return nil, parseErr(p.Kind(), missing("NAME", i))
		}

		if site.ROC == "" {
			return nil, parseErr(p.Kind(), missing("ROC", i))
		}

		groups = append(groups, models.GroupRecord{
			Type:     models.GroupTypeNGI,
			Group:    site.ROC,
			Subgroup: name,
			Tags: map[string]string{
				"certification":  site.Certification,
				"infrastructure": site.Infrastructure,
				"scope":          site.Scopes.String(),
			},
		})
	}

	return &Result{Groups: groups}, nil
}

// ServiceGroupParser builds project -> service group groups and the
// endpoints listed under each service group.
type ServiceGroupParser struct {
	project string
	uid     bool
}

func (*ServiceGroupParser) Kind() models.FeedKind { return models.FeedServiceGroups }

func (p *ServiceGroupParser) Parse(payload models.Payload) (*Result, error) {
	var doc gocdbDocument
	if err := decodeXML(payload.Body, &doc); err != nil {
		return nil, parseErr(p.Kind(), err)
	}

	res := &Result{Groups: make([]models.GroupRecord, 0, len(doc.ServiceGroups))}

	for i := range doc.ServiceGroups {
		sg := &doc.ServiceGroups[i]
		if sg.Name == "" {
			return nil, parseErr(p.Kind(), missing("NAME", i))
		}

		res.Groups = append(res.Groups, models.GroupRecord{
			Type:     models.GroupTypeProject,
			Group:    p.project,
			Subgroup: sg.Name,
			Tags: map[string]string{
				"monitored": flag(sg.Monitored),
				"scope":     sg.Scopes.String(),
			},
		})

		for j := range sg.Services {
			svc := &sg.Services[j]
			if svc.Hostname == "" || svc.ServiceType == "" {
				return nil, parseErr(p.Kind(), missing("HOSTNAME/SERVICE_TYPE", j))
			}

			tags := map[string]string{
				"production": flag(svc.InProduction),
				"monitored":  flag(svc.NodeMonitored),
				"scope":      svc.Scopes.String(),
			}

			res.Endpoints = append(res.Endpoints, models.EndpointRecord{
				Type:     models.EndpointTypeServiceGrp,
				Group:    sg.Name,
				Service:  svc.ServiceType,
				Hostname: qualify(svc.Hostname, svc.key(), p.uid, tags),
				Tags:     tags,
			})
		}
	}

	return res, nil
}

// EndpointParser builds site endpoints from a GOCDB service endpoint list.
type EndpointParser struct {
	uid bool
}

func (*EndpointParser) Kind() models.FeedKind { return models.FeedEndpoints }

func (p *EndpointParser) Parse(payload models.Payload) (*Result, error) {
	var doc gocdbDocument
	if err := decodeXML(payload.Body, &doc); err != nil {
		return nil, parseErr(p.Kind(), err)
	}

	endpoints := make([]models.EndpointRecord, 0, len(doc.Endpoints))

	for i := range doc.Endpoints {
		ep := &doc.Endpoints[i]

		switch {
		case ep.Hostname == "":
			return nil, parseErr(p.Kind(), missing("HOSTNAME", i))
		case ep.ServiceType == "":
			return nil, parseErr(p.Kind(), missing("SERVICE_TYPE", i))
		case ep.SiteName == "":
			return nil, parseErr(p.Kind(), missing("SITENAME", i))
		}

		tags := map[string]string{
			"production": flag(ep.InProduction),
			"monitored":  flag(ep.NodeMonitored),
			"scope":      ep.Scopes.String(),
			"info_ID":    ep.key(),
		}

		if ep.URL != "" {
			tags["info_URL"] = ep.URL
		}

		if ep.HostDN != "" {
			tags["info_HOSTDN"] = ep.HostDN
		}

		for _, ext := range ep.Extensions {
			if ext.Key == "" {
				continue
			}

			if _, dup := tags["info_ext_"+ext.Key]; !dup {
				tags["info_ext_"+ext.Key] = ext.Value
			}
		}

		endpoints = append(endpoints, models.EndpointRecord{
			Type:     models.EndpointTypeSites,
			Group:    ep.SiteName,
			Service:  ep.ServiceType,
			Hostname: qualify(ep.Hostname, ep.key(), p.uid, tags),
			Tags:     tags,
		})
	}

	return &Result{Endpoints: endpoints}, nil
}
