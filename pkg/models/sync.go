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

package models

import "time"

// RunDateLayout is the on-disk date stamp of state and record files.
const RunDateLayout = "2006_01_02"

// RunState records the outcome of one run of one kind for one logical date.
type RunState struct {
	Kind        string    `json:"kind"`
	LogicalDate time.Time `json:"logical_date"`
	Success     bool      `json:"success"`
}

// Snapshot is the publishable result of a run. Publishers must treat it as
// read-only.
type Snapshot struct {
	RunID       string           `json:"run_id"`
	Customer    string           `json:"customer"`
	Job         string           `json:"job"`
	LogicalDate time.Time        `json:"date"`
	Groups      []GroupRecord    `json:"groups"`
	Endpoints   []EndpointRecord `json:"endpoints"`
}

// DateStamp formats the snapshot date with RunDateLayout.
func (s *Snapshot) DateStamp() string {
	return s.LogicalDate.Format(RunDateLayout)
}
