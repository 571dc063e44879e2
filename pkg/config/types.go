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

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/carverauto/topology-sync/pkg/logger"
	"github.com/carverauto/topology-sync/pkg/models"
)

// Pagination names the strategy used to fetch a feed.
type Pagination string

const (
	PaginationNone   Pagination = "none"
	PaginationCursor Pagination = "cursor"
	PaginationOffset Pagination = "offset"
)

const (
	defaultAttempts      = 3
	defaultTimeout       = models.Duration(180 * time.Second)
	defaultSleep         = models.Duration(60 * time.Second)
	defaultRetention     = 3
	defaultLookback      = 5
	defaultStateKind     = "topology"
	defaultNATSSubjectFn = "topology.%s.%s"
	maskedValue          = "*****"
)

var (
	errMissingCustomer     = errors.New("customer is required")
	errMissingJob          = errors.New("job is required")
	errMissingStateDir     = errors.New("state_dir is required")
	errInvalidRetention    = errors.New("retention_days must be at least 1")
	errInvalidAttempts     = errors.New("retry.attempts must be at least 1")
	errInvalidTimeout      = errors.New("retry.timeout must be positive")
	errNoFeeds             = errors.New("at least one feed is required")
	errNoTopologyFeed      = errors.New("at least one of sites, servicegroups, endpoints or providers feeds is required")
	errDuplicateFeed       = errors.New("duplicate feed kind")
	errUnknownFeed         = errors.New("unknown feed kind")
	errMissingFeedURL      = errors.New("feed url is required")
	errInvalidPagination   = errors.New("invalid pagination")
	errMissingDirectory    = errors.New("directory feeds need a directory section with url")
	errMissingAvroDir      = errors.New("publishers.avro.dir is required")
	errMissingCatalogURL   = errors.New("publishers.catalog.url is required")
	errMissingNATSURL      = errors.New("publishers.nats.url is required")
	errInvalidCatalogURL   = errors.New("publishers.catalog.url is not a valid URL")
	errInvalidLookbackDays = errors.New("lookback_days must not be negative")
)

// Config is the complete configuration of one customer job.
type Config struct {
	Customer      string            `json:"customer" yaml:"customer"`
	Job           string            `json:"job" yaml:"job"`
	StateDir      string            `json:"state_dir" yaml:"state_dir"`
	StateKind     string            `json:"state_kind" yaml:"state_kind"`
	RetentionDays int               `json:"retention_days" yaml:"retention_days"`
	LookbackDays  int               `json:"lookback_days" yaml:"lookback_days"`
	UID           bool              `json:"uid" yaml:"uid"`
	Project       string            `json:"project" yaml:"project"`
	Logging       *logger.Config    `json:"logging" yaml:"logging"`
	Retry         RetryConfig       `json:"retry" yaml:"retry"`
	TLS           *models.TLSConfig `json:"tls" yaml:"tls"`
	Feeds         []FeedConfig      `json:"feeds" yaml:"feeds"`
	Directory     *DirectoryConfig  `json:"directory" yaml:"directory"`
	Publishers    PublishersConfig  `json:"publishers" yaml:"publishers"`
}

// RetryConfig is the retry budget shared by HTTP and directory calls.
type RetryConfig struct {
	Attempts        int             `json:"attempts" yaml:"attempts"`
	Timeout         models.Duration `json:"timeout" yaml:"timeout"`
	Sleep           models.Duration `json:"sleep" yaml:"sleep"`
	Linear          bool            `json:"linear" yaml:"linear"`
	RetryableStatus []int           `json:"retryable_status" yaml:"retryable_status"`
}

// FeedConfig describes one remote or local input.
type FeedConfig struct {
	Kind       models.FeedKind   `json:"kind" yaml:"kind"`
	URL        string            `json:"url" yaml:"url"`
	Pagination Pagination        `json:"pagination" yaml:"pagination"`
	Required   *bool             `json:"required" yaml:"required"`
	Headers    map[string]string `json:"headers" yaml:"headers"`
	Scope      []string          `json:"scope" yaml:"scope"`
}

// IsRequired reports whether a failure of this feed aborts the run.
// Enrichment feeds are optional unless configured otherwise.
func (f *FeedConfig) IsRequired() bool {
	if f.Required != nil {
		return *f.Required
	}

	return !f.Kind.IsEnrichment()
}

// DirectoryConfig locates the LDAP directory answering srm_port and se_path.
type DirectoryConfig struct {
	URL     string          `json:"url" yaml:"url"`
	BaseDN  string          `json:"base_dn" yaml:"base_dn"`
	Timeout models.Duration `json:"timeout" yaml:"timeout"`
}

// PublishersConfig enables zero or more publishers.
type PublishersConfig struct {
	Avro    *AvroConfig    `json:"avro" yaml:"avro"`
	Catalog *CatalogConfig `json:"catalog" yaml:"catalog"`
	NATS    *NATSConfig    `json:"nats" yaml:"nats"`
}

// AvroConfig writes date stamped record files.
type AvroConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// CatalogConfig posts the snapshot to a remote catalog API.
type CatalogConfig struct {
	URL    string `json:"url" yaml:"url"`
	Token  string `json:"token" yaml:"token"`
	Tenant string `json:"tenant" yaml:"tenant"`
}

// NATSConfig publishes the snapshot to a JetStream subject.
type NATSConfig struct {
	URL       string `json:"url" yaml:"url"`
	Subject   string `json:"subject" yaml:"subject"`
	CredsFile string `json:"creds_file" yaml:"creds_file"`
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.StateKind == "" {
		c.StateKind = defaultStateKind
	}

	if c.RetentionDays == 0 {
		c.RetentionDays = defaultRetention
	}

	if c.LookbackDays == 0 {
		c.LookbackDays = defaultLookback
	}

	if c.Project == "" {
		c.Project = c.Customer
	}

	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = defaultAttempts
	}

	if c.Retry.Timeout == 0 {
		c.Retry.Timeout = defaultTimeout
	}

	if c.Retry.Sleep == 0 {
		c.Retry.Sleep = defaultSleep
	}

	for i := range c.Feeds {
		if c.Feeds[i].Pagination == "" {
			c.Feeds[i].Pagination = PaginationNone
		}
	}

	if c.Publishers.NATS != nil && c.Publishers.NATS.Subject == "" {
		c.Publishers.NATS.Subject = fmt.Sprintf(defaultNATSSubjectFn, c.Customer, c.Job)
	}
}

// Validate checks the configuration once at startup.
func (c *Config) Validate() error {
	switch {
	case c.Customer == "":
		return errMissingCustomer
	case c.Job == "":
		return errMissingJob
	case c.StateDir == "":
		return errMissingStateDir
	case c.RetentionDays < 1:
		return errInvalidRetention
	case c.LookbackDays < 0:
		return errInvalidLookbackDays
	case c.Retry.Attempts < 1:
		return errInvalidAttempts
	case c.Retry.Timeout <= 0:
		return errInvalidTimeout
	}

	if err := c.validateFeeds(); err != nil {
		return err
	}

	return c.Publishers.validate()
}

func (c *Config) validateFeeds() error {
	if len(c.Feeds) == 0 {
		return errNoFeeds
	}

	seen := make(map[models.FeedKind]struct{}, len(c.Feeds))
	topology := false

	for i := range c.Feeds {
		f := &c.Feeds[i]

		if !knownKind(f.Kind) {
			return fmt.Errorf("%w: %q", errUnknownFeed, f.Kind)
		}

		if _, dup := seen[f.Kind]; dup {
			return fmt.Errorf("%w: %s", errDuplicateFeed, f.Kind)
		}

		seen[f.Kind] = struct{}{}

		if !f.Kind.IsEnrichment() {
			topology = true
		}

		if f.Kind.IsDirectory() {
			if c.Directory == nil || c.Directory.URL == "" {
				return fmt.Errorf("%w: %s", errMissingDirectory, f.Kind)
			}

			continue
		}

		if f.URL == "" {
			return fmt.Errorf("%w: %s", errMissingFeedURL, f.Kind)
		}

		switch f.Pagination {
		case PaginationNone, PaginationCursor, PaginationOffset:
		default:
			return fmt.Errorf("%w %q for %s", errInvalidPagination, f.Pagination, f.Kind)
		}
	}

	if !topology {
		return errNoTopologyFeed
	}

	return nil
}

func (p *PublishersConfig) validate() error {
	if p.Avro != nil && p.Avro.Dir == "" {
		return errMissingAvroDir
	}

	if p.Catalog != nil {
		if p.Catalog.URL == "" {
			return errMissingCatalogURL
		}

		if u, err := url.Parse(p.Catalog.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s", errInvalidCatalogURL, p.Catalog.URL)
		}
	}

	if p.NATS != nil && p.NATS.URL == "" {
		return errMissingNATSURL
	}

	return nil
}

func knownKind(kind models.FeedKind) bool {
	switch kind {
	case models.FeedSites, models.FeedServiceGroups, models.FeedEndpoints,
		models.FeedSiteContacts, models.FeedEndpointContacts, models.FeedProviders,
		models.FeedSRMPort, models.FeedSEPath:
		return true
	default:
		return false
	}
}

// Feed returns the configuration of kind, if present.
func (c *Config) Feed(kind models.FeedKind) (*FeedConfig, bool) {
	for i := range c.Feeds {
		if c.Feeds[i].Kind == kind {
			return &c.Feeds[i], true
		}
	}

	return nil, false
}

// Sanitized returns a copy safe for logging.
func (c *Config) Sanitized() Config {
	out := *c

	if c.Publishers.Catalog != nil {
		catalog := *c.Publishers.Catalog
		if catalog.Token != "" {
			catalog.Token = maskedValue
		}

		out.Publishers.Catalog = &catalog
	}

	out.Feeds = make([]FeedConfig, len(c.Feeds))

	for i, f := range c.Feeds {
		if len(f.Headers) > 0 {
			headers := make(map[string]string, len(f.Headers))
			for k := range f.Headers {
				headers[k] = maskedValue
			}

			f.Headers = headers
		}

		out.Feeds[i] = f
	}

	return out
}
