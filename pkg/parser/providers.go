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
	"bytes"

	"github.com/goccy/go-json"

	"github.com/carverauto/topology-sync/pkg/models"
)

type providerResource struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organisation string `json:"resourceOrganisation"`
	Webpage      string `json:"webpage"`
}

type providerDocument struct {
	Results []providerResource `json:"results"`
}

// ProviderParser builds provider -> resource groups from an offset
// paginated JSON catalogue.
type ProviderParser struct{}

func (*ProviderParser) Kind() models.FeedKind { return models.FeedProviders }

func (p *ProviderParser) Parse(payload models.Payload) (*Result, error) {
	if len(bytes.TrimSpace(payload.Body)) == 0 {
		return nil, parseErr(p.Kind(), errEmptyPayload)
	}

	var doc providerDocument
	if err := json.Unmarshal(payload.Body, &doc); err != nil {
		return nil, parseErr(p.Kind(), err)
	}

	groups := make([]models.GroupRecord, 0, len(doc.Results))

	for i := range doc.Results {
		res := &doc.Results[i]

		switch {
		case res.ID == "":
			return nil, parseErr(p.Kind(), missing("id", i))
		case res.Organisation == "":
			return nil, parseErr(p.Kind(), missing("resourceOrganisation", i))
		}

		tags := map[string]string{"info_name": res.Name}
		if res.Webpage != "" {
			tags["info_URL"] = res.Webpage
		}

		groups = append(groups, models.GroupRecord{
			Type:     models.GroupTypeProvider,
			Group:    res.Organisation,
			Subgroup: res.ID,
			Tags:     tags,
		})
	}

	return &Result{Groups: groups}, nil
}
