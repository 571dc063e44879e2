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

package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
	"github.com/carverauto/topology-sync/pkg/transport"
)

const (
	catalogGroupsPath    = "/topology/groups"
	catalogEndpointsPath = "/topology/endpoints"
	catalogDateLayout    = "2006-01-02"
)

// Requester performs HTTP calls under the transport retry policy.
type Requester interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// CatalogPublisher posts groups and endpoints to a remote catalog API. Data
// already present for the date (HTTP 409) is deleted and posted once more.
type CatalogPublisher struct {
	client  Requester
	baseURL string
	token   string
	tenant  string
	logger  logger.Logger
}

// NewCatalogPublisher creates a catalog publisher rooted at baseURL.
func NewCatalogPublisher(client Requester, baseURL, token, tenant string, log logger.Logger) *CatalogPublisher {
	return &CatalogPublisher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		tenant:  tenant,
		logger:  log,
	}
}

func (*CatalogPublisher) Name() string { return "catalog" }

// Publish posts both record lists.
func (p *CatalogPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	if err := checkSnapshot(snap); err != nil {
		return err
	}

	date := snap.LogicalDate.Format(catalogDateLayout)

	if err := p.post(ctx, catalogGroupsPath, date, snap.Groups); err != nil {
		return publishErr(p.Name(), err)
	}

	if err := p.post(ctx, catalogEndpointsPath, date, snap.Endpoints); err != nil {
		return publishErr(p.Name(), err)
	}

	return nil
}

func (p *CatalogPublisher) post(ctx context.Context, path, date string, records interface{}) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	target := p.endpoint(path, date)

	resp, err := p.client.Do(ctx, transport.Request{
		Method:       http.MethodPost,
		URL:          target,
		Headers:      p.headers(),
		Body:         body,
		AllowEmpty:   true,
		AcceptStatus: []int{http.StatusConflict},
	})
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusConflict {
		p.logger.Info().Str("url", target).Int("status", resp.StatusCode).Msg("Posted topology")

		return nil
	}

	p.logger.Warn().Str("url", target).Msg("Topology already present for date, replacing it")

	if _, err := p.client.Do(ctx, transport.Request{
		Method:     http.MethodDelete,
		URL:        target,
		Headers:    p.headers(),
		AllowEmpty: true,
	}); err != nil {
		return fmt.Errorf("failed to delete existing topology: %w", err)
	}

	if _, err := p.client.Do(ctx, transport.Request{
		Method:     http.MethodPost,
		URL:        target,
		Headers:    p.headers(),
		Body:       body,
		AllowEmpty: true,
	}); err != nil {
		return fmt.Errorf("failed to re-post topology: %w", err)
	}

	p.logger.Info().Str("url", target).Msg("Replaced topology")

	return nil
}

func (p *CatalogPublisher) endpoint(path, date string) string {
	q := url.Values{}
	q.Set("date", date)

	return p.baseURL + path + "?" + q.Encode()
}

func (p *CatalogPublisher) headers() map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}

	if p.token != "" {
		h["x-api-key"] = p.token
	}

	if p.tenant != "" {
		h["x-tenant"] = p.tenant
	}

	return h
}
