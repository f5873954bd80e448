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

// Package timing hosts the coarse operation timers: named accumulating
// stopwatches that report at debug level. They exist to answer "where does
// an analyzer invocation spend its time" without a profiler attached.
package timing

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Timer accumulates wall-clock totals per named operation. Safe for
// concurrent use.
type Timer struct {
	log *zap.Logger

	mu     sync.Mutex
	totals map[string]time.Duration
	counts map[string]int
}

// New returns a Timer logging through log; nil defaults to a nop logger.
func New(log *zap.Logger) *Timer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Timer{
		log:    log,
		totals: make(map[string]time.Duration),
		counts: make(map[string]int),
	}
}

// Start begins timing op and returns the stop function. The usual shape is
// defer t.Start("method_analysis")().
func (t *Timer) Start(op string) func() {
	began := time.Now()
	return func() {
		elapsed := time.Since(began)
		t.mu.Lock()
		t.totals[op] += elapsed
		t.counts[op]++
		t.mu.Unlock()
		t.log.Debug("operation timed", zap.String("op", op), zap.Duration("elapsed", elapsed))
	}
}

// Total returns the accumulated duration of op.
func (t *Timer) Total(op string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals[op]
}

// Count returns how many times op completed.
func (t *Timer) Count(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[op]
}
