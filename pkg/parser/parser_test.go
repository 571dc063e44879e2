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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/topology-sync/pkg/models"
)

const sitesXML = `<?xml version="1.0" encoding="UTF-8"?>
<results>
  <SITE ID="1" PRIMARY_KEY="10G0" NAME="SITE-A">
    <SHORT_NAME>SITE-A</SHORT_NAME>
    <ROC>NGI_A</ROC>
    <CERTIFICATION_STATUS>Certified</CERTIFICATION_STATUS>
    <PRODUCTION_INFRASTRUCTURE>Production</PRODUCTION_INFRASTRUCTURE>
    <SCOPES><SCOPE>EGI</SCOPE><SCOPE>wlcg</SCOPE></SCOPES>
  </SITE>
  <SITE ID="2" PRIMARY_KEY="11G0" NAME="SITE-B">
    <ROC>NGI_B</ROC>
    <CERTIFICATION_STATUS>Uncertified</CERTIFICATION_STATUS>
    <PRODUCTION_INFRASTRUCTURE>Test</PRODUCTION_INFRASTRUCTURE>
    <SCOPES><SCOPE>EGI</SCOPE></SCOPES>
  </SITE>
</results>`

const endpointsXML = `<results>
  <SERVICE_ENDPOINT PRIMARY_KEY="100G0">
    <PRIMARY_KEY>100G0</PRIMARY_KEY>
    <HOSTNAME>se.example.org</HOSTNAME>
    <SERVICE_TYPE>SRM</SERVICE_TYPE>
    <HOSTDN>/DC=org/CN=se.example.org</HOSTDN>
    <URL>httpg://se.example.org:8446/srm/managerv2</URL>
    <IN_PRODUCTION>Y</IN_PRODUCTION>
    <NODE_MONITORED>N</NODE_MONITORED>
    <SITENAME>SITE-A</SITENAME>
    <CONTACT_EMAIL>ops@example.org; admin@example.org</CONTACT_EMAIL>
    <SCOPES><SCOPE>EGI</SCOPE></SCOPES>
    <EXTENSIONS>
      <EXTENSION><KEY>ARGO_TAG</KEY><VALUE>x</VALUE></EXTENSION>
    </EXTENSIONS>
  </SERVICE_ENDPOINT>
  <SERVICE_ENDPOINT PRIMARY_KEY="101G0">
    <HOSTNAME>ce.example.org</HOSTNAME>
    <SERVICE_TYPE>ARC-CE</SERVICE_TYPE>
    <IN_PRODUCTION>N</IN_PRODUCTION>
    <NODE_MONITORED>Y</NODE_MONITORED>
    <SITENAME>SITE-B</SITENAME>
  </SERVICE_ENDPOINT>
</results>`

const serviceGroupsXML = `<results>
  <SERVICE_GROUP PRIMARY_KEY="5">
    <NAME>SG-1</NAME>
    <MONITORED>Y</MONITORED>
    <SCOPES><SCOPE>EGI</SCOPE></SCOPES>
    <SERVICE_ENDPOINT PRIMARY_KEY="200G0">
      <HOSTNAME>web.example.org</HOSTNAME>
      <SERVICE_TYPE>WebDAV</SERVICE_TYPE>
      <IN_PRODUCTION>Y</IN_PRODUCTION>
      <NODE_MONITORED>Y</NODE_MONITORED>
    </SERVICE_ENDPOINT>
  </SERVICE_GROUP>
</results>`

const siteContactsXML = `<results>
  <SITE NAME="SITE-A">
    <CONTACT><EMAIL>a@x</EMAIL><FORENAME>Ann</FORENAME><SURNAME>Lee</SURNAME><ROLE_NAME>Site Administrator</ROLE_NAME></CONTACT>
    <CONTACT><CERTDN>/CN=robot</CERTDN></CONTACT>
  </SITE>
  <SITE NAME="SITE-B"></SITE>
</results>`

func TestNew_BindsEveryKind(t *testing.T) {
	kinds := []models.FeedKind{
		models.FeedSites, models.FeedServiceGroups, models.FeedEndpoints,
		models.FeedSiteContacts, models.FeedEndpointContacts,
		models.FeedSRMPort, models.FeedSEPath, models.FeedProviders,
	}

	for _, kind := range kinds {
		p, err := New(kind, Options{})
		require.NoError(t, err)
		assert.Equal(t, kind, p.Kind())
	}

	_, err := New("weights", Options{})
	require.ErrorIs(t, err, errUnknownKind)
}

func TestSitesParser(t *testing.T) {
	res, err := (&SitesParser{}).Parse(models.Payload{Body: []byte(sitesXML)})
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	assert.Equal(t, models.GroupRecord{
		Type:     models.GroupTypeNGI,
		Group:    "NGI_A",
		Subgroup: "SITE-A",
		Tags: map[string]string{
			"certification":  "Certified",
			"infrastructure": "Production",
			"scope":          "EGI, wlcg",
		},
	}, res.Groups[0])
	assert.Equal(t, "NGI_B", res.Groups[1].Group)
}

func TestSitesParser_MissingROC(t *testing.T) {
	_, err := (&SitesParser{}).Parse(models.Payload{Body: []byte(`<results><SITE NAME="X"/></results>`)})

	var pe *models.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, models.FeedSites, pe.FeedKind)
	assert.ErrorIs(t, err, errMissingField)
}

func TestSitesParser_Malformed(t *testing.T) {
	for _, body := range []string{"", "<results><SITE>"} {
		_, err := (&SitesParser{}).Parse(models.Payload{Body: []byte(body)})

		var pe *models.ParseError
		require.ErrorAs(t, err, &pe)
	}
}

func TestEndpointParser(t *testing.T) {
	res, err := (&EndpointParser{}).Parse(models.Payload{Body: []byte(endpointsXML)})
	require.NoError(t, err)
	require.Len(t, res.Endpoints, 2)

	se := res.Endpoints[0]
	assert.Equal(t, models.EndpointTypeSites, se.Type)
	assert.Equal(t, "SITE-A", se.Group)
	assert.Equal(t, "SRM", se.Service)
	assert.Equal(t, "se.example.org", se.Hostname)
	assert.Equal(t, "1", se.Tags["production"])
	assert.Equal(t, "0", se.Tags["monitored"])
	assert.Equal(t, "100G0", se.Tags["info_ID"])
	assert.Equal(t, "/DC=org/CN=se.example.org", se.Tags["info_HOSTDN"])
	assert.Equal(t, "httpg://se.example.org:8446/srm/managerv2", se.Tags["info_URL"])
	assert.Equal(t, "x", se.Tags["info_ext_ARGO_TAG"])
	assert.NotContains(t, se.Tags, models.HostnameTag)

	ce := res.Endpoints[1]
	assert.Equal(t, "101G0", ce.Tags["info_ID"])
	assert.NotContains(t, ce.Tags, "info_URL")
}

func TestEndpointParser_UID(t *testing.T) {
	res, err := (&EndpointParser{uid: true}).Parse(models.Payload{Body: []byte(endpointsXML)})
	require.NoError(t, err)

	se := res.Endpoints[0]
	assert.Equal(t, "se.example.org_100G0", se.Hostname)
	assert.Equal(t, "se.example.org", se.Tags[models.HostnameTag])
	assert.Equal(t, "se.example.org", se.FQDN())
}

func TestEndpointParser_MissingService(t *testing.T) {
	body := `<results><SERVICE_ENDPOINT><HOSTNAME>h</HOSTNAME><SITENAME>S</SITENAME></SERVICE_ENDPOINT></results>`

	_, err := (&EndpointParser{}).Parse(models.Payload{Body: []byte(body)})
	require.ErrorIs(t, err, errMissingField)
}

func TestServiceGroupParser(t *testing.T) {
	res, err := (&ServiceGroupParser{project: "EGI"}).Parse(models.Payload{Body: []byte(serviceGroupsXML)})
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, models.GroupRecord{
		Type:     models.GroupTypeProject,
		Group:    "EGI",
		Subgroup: "SG-1",
		Tags:     map[string]string{"monitored": "1", "scope": "EGI"},
	}, res.Groups[0])

	require.Len(t, res.Endpoints, 1)
	assert.Equal(t, models.EndpointTypeServiceGrp, res.Endpoints[0].Type)
	assert.Equal(t, "SG-1", res.Endpoints[0].Group)
	assert.Equal(t, "WebDAV", res.Endpoints[0].Service)
}

func TestContactParser_Sites(t *testing.T) {
	res, err := (&ContactParser{kind: models.FeedSiteContacts}).Parse(models.Payload{Body: []byte(siteContactsXML)})
	require.NoError(t, err)
	require.Len(t, res.Contacts, 1)

	rec := res.Contacts[0]
	assert.Equal(t, "SITE-A", rec.Key)
	require.Len(t, rec.Contacts, 2)
	assert.Equal(t, "Ann Lee", rec.Contacts[0].Name)
	assert.Equal(t, "a@x", rec.Contacts[0].Address())
	assert.Equal(t, "/CN=robot", rec.Contacts[1].Address())
}

func TestContactParser_Endpoints(t *testing.T) {
	res, err := (&ContactParser{kind: models.FeedEndpointContacts}).Parse(models.Payload{Body: []byte(endpointsXML)})
	require.NoError(t, err)
	require.Len(t, res.Contacts, 1)

	rec := res.Contacts[0]
	assert.Equal(t, "se.example.org+SRM", rec.Key)

	fqdn, service, ok := rec.EndpointKey()
	require.True(t, ok)
	assert.Equal(t, "se.example.org", fqdn)
	assert.Equal(t, "SRM", service)
	assert.Equal(t, []models.Contact{{Email: "ops@example.org"}, {Email: "admin@example.org"}}, rec.Contacts)
}

func TestAttributeParser_SEPath(t *testing.T) {
	entries := []models.DirectoryEntry{
		{DN: "GlueVOInfoLocalID=atlas", Attributes: map[string][]string{
			"GlueChunkKey":                    {"GlueSALocalID=atlas", "GlueSEUniqueID=se.example.org"},
			"GlueVOInfoPath":                  {"/dpm/example.org/home/atlas"},
			"GlueVOInfoAccessControlBaseRule": {"VO:atlas"},
		}},
		{DN: "GlueVOInfoLocalID=ops", Attributes: map[string][]string{
			"GlueChunkKey":                    {"GlueSEUniqueID=se.example.org"},
			"GlueVOInfoPath":                  {"/dpm/example.org/home/ops"},
			"GlueVOInfoAccessControlBaseRule": {"VO:ops", "VO:dteam"},
		}},
		{DN: "orphan", Attributes: map[string][]string{
			"GlueVOInfoPath": {"/nowhere"},
		}},
	}

	res, err := (&AttributeParser{kind: models.FeedSEPath}).Parse(models.Payload{Entries: entries})
	require.NoError(t, err)
	require.Len(t, res.Attributes, 1)

	rec := res.Attributes[0]
	assert.Equal(t, "se.example.org", rec.Hostname)
	assert.Equal(t, models.AttrSEPath, rec.Attribute)
	assert.Equal(t, []models.VOPath{
		{VOName: "atlas", Path: "/dpm/example.org/home/atlas"},
		{VOName: "ops dteam", Path: "/dpm/example.org/home/ops"},
	}, rec.VOPaths)
}

func TestAttributeParser_SRMPort(t *testing.T) {
	entries := []models.DirectoryEntry{
		{Attributes: map[string][]string{"GlueServiceEndpoint": {"httpg://se.example.org:8446/srm/managerv2"}}},
		{Attributes: map[string][]string{"GlueServiceEndpoint": {"httpg://se.example.org:8443/srm/managerv1"}}},
		{Attributes: map[string][]string{"GlueServiceEndpoint": {"httpg://noport.example.org/srm"}}},
	}

	res, err := (&AttributeParser{kind: models.FeedSRMPort}).Parse(models.Payload{Entries: entries})
	require.NoError(t, err)
	assert.Equal(t, []models.AttributeRecord{
		{Hostname: "se.example.org", Attribute: models.AttrSRMPort, Value: "8446"},
	}, res.Attributes)
}

func TestProviderParser(t *testing.T) {
	body := `{"total":2,"from":0,"to":2,"results":[
		{"id":"prov.res1","name":"Resource One","resourceOrganisation":"prov","webpage":"https://one.example.org"},
		{"id":"prov.res2","name":"Resource Two","resourceOrganisation":"prov"}
	]}`

	res, err := (&ProviderParser{}).Parse(models.Payload{Body: []byte(body)})
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	assert.Equal(t, models.GroupRecord{
		Type:     models.GroupTypeProvider,
		Group:    "prov",
		Subgroup: "prov.res1",
		Tags:     map[string]string{"info_name": "Resource One", "info_URL": "https://one.example.org"},
	}, res.Groups[0])

	_, err = (&ProviderParser{}).Parse(models.Payload{Body: []byte(`{"results":[{"name":"x"}]}`)})
	require.ErrorIs(t, err, errMissingField)
}
