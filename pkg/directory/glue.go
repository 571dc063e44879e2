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

package directory

import "strings"

const (
	// DefaultBaseDN is the root of the GLUE 1.3 information tree.
	DefaultBaseDN = "o=grid"

	AttrServiceEndpoint  = "GlueServiceEndpoint"
	AttrVOInfoPath       = "GlueVOInfoPath"
	AttrVOInfoACBR       = "GlueVOInfoAccessControlBaseRule"
	AttrChunkKey         = "GlueChunkKey"
	seUniqueIDKeyPrefix  = "GlueSEUniqueID="
	voAccessRulePrefix   = "VO:"
	srmServiceTypeFilter = "(&(objectClass=GlueService)(|(GlueServiceType=srm_v1)(GlueServiceType=srm)))"
	voInfoFilter         = "(objectClass=GlueVOInfo)"
)

// SRMPortQuery finds SRM service endpoints, whose URLs carry the port.
func SRMPortQuery(baseDN string) Query {
	return Query{
		BaseDN:     orDefault(baseDN),
		Filter:     srmServiceTypeFilter,
		Attributes: []string{AttrServiceEndpoint},
	}
}

// SEPathQuery finds per-VO storage paths of storage elements.
func SEPathQuery(baseDN string) Query {
	return Query{
		BaseDN:     orDefault(baseDN),
		Filter:     voInfoFilter,
		Attributes: []string{AttrVOInfoACBR, AttrChunkKey, AttrVOInfoPath},
	}
}

// SEHostname extracts the storage element host from a GlueChunkKey value.
func SEHostname(chunkKey string) (string, bool) {
	host, ok := strings.CutPrefix(chunkKey, seUniqueIDKeyPrefix)
	if !ok || host == "" {
		return "", false
	}

	return host, true
}

// VONames extracts the VO names from GlueVOInfoAccessControlBaseRule values.
// Rules without the VO: prefix name the VO directly.
func VONames(rules []string) []string {
	names := make([]string, 0, len(rules))

	for _, rule := range rules {
		name := strings.TrimPrefix(rule, voAccessRulePrefix)
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	return names
}

func orDefault(baseDN string) string {
	if baseDN == "" {
		return DefaultBaseDN
	}

	return baseDN
}
