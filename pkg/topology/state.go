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

// State is a stage of one run.
type State int

const (
	StateInit State = iota
	StateFetching
	StateParsing
	StateMerging
	StatePublishing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateFetching:
		return "FETCHING"
	case StateParsing:
		return "PARSING"
	case StateMerging:
		return "MERGING"
	case StatePublishing:
		return "PUBLISHING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// next lists the legal transitions.
var next = map[State][]State{
	StateInit:       {StateFetching},
	StateFetching:   {StateParsing, StateFailed},
	StateParsing:    {StateMerging, StateFailed},
	StateMerging:    {StatePublishing, StateFailed},
	StatePublishing: {StateDone},
}

func canTransition(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}

	return false
}
