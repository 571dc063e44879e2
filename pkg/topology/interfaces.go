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

package topology

//go:generate mockgen -destination=mock_topology.go -package=topology github.com/carverauto/topology-sync/pkg/topology StateStore,Publisher

import (
	"context"
	"time"

	"github.com/carverauto/topology-sync/pkg/directory"
	"github.com/carverauto/topology-sync/pkg/models"
)

// Getter fetches one raw feed body. *transport.Transport satisfies it.
type Getter interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// DirectorySearcher answers LDAP queries. *directory.Client satisfies it.
type DirectorySearcher interface {
	Search(ctx context.Context, q directory.Query) ([]models.DirectoryEntry, error)
}

// StateStore persists the outcome of a run.
type StateStore interface {
	Write(ctx context.Context, st models.RunState) error
}

// Publisher hands a finished snapshot to a downstream system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap *models.Snapshot) error
}

// Clock defines an interface for time-related operations.
type Clock interface {
	Now() time.Time
}
