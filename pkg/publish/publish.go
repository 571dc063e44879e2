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

// Package publish hands finished topology snapshots to downstream systems.
package publish

import (
	"errors"
	"fmt"

	"github.com/carverauto/topology-sync/pkg/models"
)

var errNilSnapshot = errors.New("publish: nil snapshot")

func checkSnapshot(snap *models.Snapshot) error {
	if snap == nil {
		return errNilSnapshot
	}

	return nil
}

func publishErr(name string, err error) error {
	return fmt.Errorf("%s publisher: %w", name, err)
}
