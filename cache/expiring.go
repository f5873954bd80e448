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

package cache

import (
	"time"

	"go.uber.org/nullguard/config"
	"go.uber.org/zap"
)

// slider is the sliding-expiry metadata of one cache entry.
type slider struct {
	deadline time.Time
	window   time.Duration
}

// Expiring is a TTL map with sliding expiry for hosts that want to keep
// analyzer products alive across invocations. All operations acquire the
// cache mutex with a timeout and report failure instead of blocking the
// caller: losing a write or a slide is acceptable, stalling an analysis is
// not. A periodic purge removes entries whose slider deadline has passed;
// when the purge cannot take the mutex the tick is skipped and retried next
// interval.
type Expiring[K comparable, V any] struct {
	mu      chan struct{}
	values  map[K]V
	sliders map[K]slider

	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
	log      *zap.Logger
}

// NewExpiring returns a running cache purging every interval.
func NewExpiring[K comparable, V any](interval time.Duration, log *zap.Logger) *Expiring[K, V] {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Expiring[K, V]{
		mu:       make(chan struct{}, 1),
		values:   make(map[K]V),
		sliders:  make(map[K]slider),
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		log:      log,
	}
	go c.purgeLoop()
	return c
}

// Set stores value under key with the given sliding window. It reports
// false when the cache mutex could not be acquired in time.
func (c *Expiring[K, V]) Set(key K, value V, window time.Duration) bool {
	if !c.acquire(config.OperationLockTimeout) {
		c.log.Debug("expiring cache set skipped: lock busy")
		return false
	}
	defer c.release()
	c.values[key] = value
	c.sliders[key] = slider{deadline: time.Now().Add(window), window: window}
	return true
}

// Get returns the live value under key and slides its expiry. An entry past
// its deadline is removed and reported missing.
func (c *Expiring[K, V]) Get(key K) (V, bool) {
	var zero V
	if !c.acquire(config.OperationLockTimeout) {
		c.log.Debug("expiring cache get skipped: lock busy")
		return zero, false
	}
	v, ok := c.values[key]
	s, hasSlider := c.sliders[key]
	if ok && hasSlider && time.Now().After(s.deadline) {
		delete(c.values, key)
		delete(c.sliders, key)
		ok = false
	}
	c.release()
	if !ok {
		return zero, false
	}
	c.slide(key)
	return v, true
}

// slide pushes the entry's deadline out by its window. The touch uses the
// shorter lock timeout: losing a slide under contention is harmless.
func (c *Expiring[K, V]) slide(key K) {
	if !c.acquire(config.SlideLockTimeout) {
		c.log.Debug("expiring cache slide skipped: lock busy")
		return
	}
	defer c.release()
	if s, ok := c.sliders[key]; ok {
		s.deadline = time.Now().Add(s.window)
		c.sliders[key] = s
	}
}

// Remove deletes key. It reports false when the mutex was busy.
func (c *Expiring[K, V]) Remove(key K) bool {
	if !c.acquire(config.OperationLockTimeout) {
		return false
	}
	defer c.release()
	delete(c.values, key)
	delete(c.sliders, key)
	return true
}

// Len returns the number of stored entries, expired or not.
func (c *Expiring[K, V]) Len() int {
	if !c.acquire(config.OperationLockTimeout) {
		return 0
	}
	defer c.release()
	return len(c.values)
}

// Close stops the purge timer and waits for the purge goroutine to exit.
func (c *Expiring[K, V]) Close() {
	close(c.done)
	<-c.stopped
}

func (c *Expiring[K, V]) purgeLoop() {
	defer close(c.stopped)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

// purge removes expired entries directly while probing the slider map. The
// tick is skipped when the mutex is held elsewhere.
func (c *Expiring[K, V]) purge() {
	select {
	case c.mu <- struct{}{}:
	default:
		c.log.Debug("purge tick skipped: lock busy")
		return
	}
	defer c.release()
	now := time.Now()
	for key, s := range c.sliders {
		if now.After(s.deadline) {
			delete(c.values, key)
			delete(c.sliders, key)
		}
	}
}

func (c *Expiring[K, V]) acquire(timeout time.Duration) bool {
	select {
	case c.mu <- struct{}{}:
		return true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.mu <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (c *Expiring[K, V]) release() { <-c.mu }
