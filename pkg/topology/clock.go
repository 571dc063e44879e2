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

import (
	"fmt"
	"time"
)

// DateLayout is the format of the -d flag.
const DateLayout = "2006-01-02"

// realClock implements Clock for production use.
type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// LogicalDate resolves the run date: the override when set, today otherwise.
// The result is midnight UTC.
func LogicalDate(override string, clock Clock) (time.Time, error) {
	if override != "" {
		d, err := time.Parse(DateLayout, override)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", override, err)
		}

		return d, nil
	}

	if clock == nil {
		clock = realClock{}
	}

	now := clock.Now().UTC()

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}
