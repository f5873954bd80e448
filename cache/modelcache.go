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

// Package cache hosts the per-semantic-model memoization shared by parallel
// block analyses, and the standalone expiring cache provider hosts may
// reuse. Model caches are bounded by the lifetime of their semantic model
// (one analyzer invocation), so they need no eviction.
package cache

import (
	"sync"

	"go.uber.org/nullguard/flow"
	"go.uber.org/nullguard/knownsym"
	"go.uber.org/nullguard/sem"
	"go.uber.org/nullguard/syntax"
	"go.uber.org/nullguard/util/timing"
	"go.uber.org/zap"
)

// ModelCache memoizes the knowledge-base table and per-method flow analyses
// of one semantic model. Reads are safe from parallel block analyses; the
// knowledge base is populated exactly once, and two goroutines racing to
// analyze the same method may both compute but only the first-stored result
// is ever handed out (results are immutable and structurally equivalent).
type ModelCache struct {
	model sem.Model
	timer *timing.Timer
	log   *zap.Logger

	knownOnce sync.Once
	known     *knownsym.Table

	analyses sync.Map
}

// NewModelCache returns an empty cache over model.
func NewModelCache(model sem.Model, log *zap.Logger) *ModelCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelCache{
		model: model,
		timer: timing.New(log),
		log:   log,
	}
}

// Known returns the knowledge base, resolving it on first use.
func (c *ModelCache) Known() *knownsym.Table {
	c.knownOnce.Do(func() {
		defer c.timer.Start("known_symbols")()
		var comp *sem.Compilation
		if c.model != nil {
			comp = c.model.Compilation()
		}
		c.known = knownsym.New(comp)
	})
	return c.known
}

// Analysis returns the memoized flow analysis for the method owning block,
// building it with build on a miss. Lost races discard their computation.
func (c *ModelCache) Analysis(owner sem.Symbol, block *syntax.CodeBlock, build func() *flow.Analysis) *flow.Analysis {
	var key any = owner
	if owner == nil {
		// Blocks without a resolvable owner memoize on node identity.
		key = block
	}
	if v, ok := c.analyses.Load(key); ok {
		c.log.Debug("method analysis cache hit")
		return v.(*flow.Analysis)
	}
	stop := c.timer.Start("method_analysis")
	a := build()
	stop()
	actual, _ := c.analyses.LoadOrStore(key, a)
	return actual.(*flow.Analysis)
}

// Timer exposes the cache's operation timer.
func (c *ModelCache) Timer() *timing.Timer { return c.timer }
