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

// Package nullguard implements the top-level analyzer: it wires the symbol
// knowledge base, the expression classifier, the method-local flow analyzer
// and the diagnostic engine together, and exposes the host entry points for
// analyzing code blocks against a semantic model.
package nullguard

import (
	"context"

	"go.uber.org/nullguard/cache"
	"go.uber.org/nullguard/diagnostic"
	"go.uber.org/nullguard/sem"
	"go.uber.org/nullguard/syntax"
	"go.uber.org/zap"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger routes the analyzer's debug traces and operation timings
// through log instead of discarding them.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithSink registers a callback observing every diagnostic as it is
// emitted, before Run returns the collected slice.
func WithSink(sink func(diagnostic.Diagnostic)) Option {
	return func(r *Runner) { r.sink = sink }
}

// Runner analyzes code blocks against one semantic model. It owns the
// per-model cache, so a host analyzing many blocks of one compilation in
// parallel should share a single Runner: the knowledge-base table is
// computed once and method analyses are memoized per method.
type Runner struct {
	model sem.Model
	cache *cache.ModelCache
	log   *zap.Logger
	sink  func(diagnostic.Diagnostic)
}

// NewRunner returns a runner over model.
func NewRunner(model sem.Model, opts ...Option) *Runner {
	r := &Runner{model: model}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.cache = cache.NewModelCache(model, r.log)
	return r
}

// Analyze runs the full analysis of one code block and returns its
// diagnostics. It is a pure function of the block and the model: the only
// shared state is the runner's memoization cache. On cancellation the
// partial diagnostics are returned alongside ctx's error; hosts discard
// them.
func (r *Runner) Analyze(ctx context.Context, block *syntax.CodeBlock) ([]diagnostic.Diagnostic, error) {
	defer r.cache.Timer().Start("check_block")()
	engine := diagnostic.NewEngine(r.model, r.cache, r.log, r.sink)
	if err := engine.CheckBlock(ctx, block); err != nil {
		return engine.Diagnostics(), err
	}
	return engine.Diagnostics(), nil
}

// Run analyzes a single code block with a throwaway runner. Hosts analyzing
// more than one block per model should construct a Runner instead.
func Run(ctx context.Context, model sem.Model, block *syntax.CodeBlock, opts ...Option) ([]diagnostic.Diagnostic, error) {
	return NewRunner(model, opts...).Analyze(ctx, block)
}
