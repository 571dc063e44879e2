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
	"encoding/xml"
	"strings"
)

// GOCDB programmatic interface documents.

type gocdbScopes struct {
	Scope []string `xml:"SCOPE"`
}

func (s gocdbScopes) String() string {
	return strings.Join(s.Scope, ", ")
}

type gocdbSite struct {
	Name           string      `xml:"NAME,attr"`
	PrimaryKey     string      `xml:"PRIMARY_KEY,attr"`
	ShortName      string      `xml:"SHORT_NAME"`
	ROC            string      `xml:"ROC"`
	Certification  string      `xml:"CERTIFICATION_STATUS"`
	Infrastructure string      `xml:"PRODUCTION_INFRASTRUCTURE"`
	Scopes         gocdbScopes `xml:"SCOPES"`
}

func (s *gocdbSite) name() string {
	if s.Name != "" {
		return s.Name
	}

	return s.ShortName
}

type gocdbExtension struct {
	Key   string `xml:"KEY"`
	Value string `xml:"VALUE"`
}

type gocdbEndpoint struct {
	AttrPrimaryKey string           `xml:"PRIMARY_KEY,attr"`
	PrimaryKey     string           `xml:"PRIMARY_KEY"`
	Hostname       string           `xml:"HOSTNAME"`
	ServiceType    string           `xml:"SERVICE_TYPE"`
	HostDN         string           `xml:"HOSTDN"`
	URL            string           `xml:"URL"`
	InProduction   string           `xml:"IN_PRODUCTION"`
	NodeMonitored  string           `xml:"NODE_MONITORED"`
	SiteName       string           `xml:"SITENAME"`
	ContactEmail   string           `xml:"CONTACT_EMAIL"`
	Scopes         gocdbScopes      `xml:"SCOPES"`
	Extensions     []gocdbExtension `xml:"EXTENSIONS>EXTENSION"`
}

func (e *gocdbEndpoint) key() string {
	if e.PrimaryKey != "" {
		return e.PrimaryKey
	}

	return e.AttrPrimaryKey
}

type gocdbServiceGroup struct {
	Name      string          `xml:"NAME"`
	Monitored string          `xml:"MONITORED"`
	Scopes    gocdbScopes     `xml:"SCOPES"`
	Services  []gocdbEndpoint `xml:"SERVICE_ENDPOINT"`
}

type gocdbContact struct {
	Email    string `xml:"EMAIL"`
	Forename string `xml:"FORENAME"`
	Surname  string `xml:"SURNAME"`
	Role     string `xml:"ROLE_NAME"`
	CertDN   string `xml:"CERTDN"`
}

type gocdbSiteContacts struct {
	Name     string         `xml:"NAME,attr"`
	Contacts []gocdbContact `xml:"CONTACT"`
}

type gocdbDocument struct {
	Sites         []gocdbSite         `xml:"SITE"`
	Endpoints     []gocdbEndpoint     `xml:"SERVICE_ENDPOINT"`
	ServiceGroups []gocdbServiceGroup `xml:"SERVICE_GROUP"`
}

type gocdbContactDocument struct {
	Sites     []gocdbSiteContacts `xml:"SITE"`
	Endpoints []gocdbEndpoint     `xml:"SERVICE_ENDPOINT"`
}

func decodeXML(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyPayload
	}

	return xml.Unmarshal(body, v)
}
