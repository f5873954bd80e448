//  Copyright (c) 2024 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flow

import (
	"cmp"
	"slices"
)

// orderedEvents maps target keys to their flow events while remembering
// first-insertion order. Diagnostics derived from these events must come out
// in a stable order (running the analyzer twice yields the same multiset),
// so plain map iteration is not an option.
type orderedEvents struct {
	inner map[TargetKey][]*Event
	keys  []TargetKey
}

func newOrderedEvents() *orderedEvents {
	return &orderedEvents{inner: make(map[TargetKey][]*Event)}
}

func (m *orderedEvents) append(key TargetKey, ev *Event) {
	if _, ok := m.inner[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.inner[key] = append(m.inner[key], ev)
}

func (m *orderedEvents) of(key TargetKey) []*Event {
	return m.inner[key]
}

// orderedRange visits keys in first-insertion order.
func (m *orderedEvents) orderedRange(f func(key TargetKey, evs []*Event) bool) {
	for _, k := range m.keys {
		if !f(k, m.inner[k]) {
			return
		}
	}
}

// sortByPos puts every key's events in depth-first position order. The walk
// appends a branch's guard region before the sibling branch's assignments,
// so insertion order alone is not positional.
func (m *orderedEvents) sortByPos() {
	for _, k := range m.keys {
		slices.SortStableFunc(m.inner[k], func(x, y *Event) int {
			return cmp.Compare(x.Pos, y.Pos)
		})
	}
}
