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

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// TopologyBatch is the data of one published topology event. Large
// snapshots are split into several batches per record kind.
type TopologyBatch struct {
	Customer  string           `json:"customer"`
	Job       string           `json:"job"`
	Date      string           `json:"date"`
	RunID     string           `json:"run_id,omitempty"`
	Batch     int              `json:"batch"`
	Batches   int              `json:"batches"`
	Groups    []GroupRecord    `json:"groups,omitempty"`
	Endpoints []EndpointRecord `json:"endpoints,omitempty"`
}
