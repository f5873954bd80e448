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

package diagnostic

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/nullguard/annotation"
	"go.uber.org/nullguard/cache"
	"go.uber.org/nullguard/classify"
	"go.uber.org/nullguard/flow"
	"go.uber.org/nullguard/sem"
	"go.uber.org/nullguard/syntax"
	"go.uber.org/zap"
)

// Engine drives the analysis of code blocks against one semantic model and
// accumulates diagnostics. One engine analyzes one block at a time; the
// shared state across parallel engines lives in the ModelCache.
type Engine struct {
	model      sem.Model
	cache      *cache.ModelCache
	classifier *classify.Classifier
	log        *zap.Logger

	sink  func(Diagnostic)
	diags []Diagnostic
}

// NewEngine returns an engine over model sharing mc with sibling engines.
// sink, when non-nil, observes every diagnostic as it is emitted.
func NewEngine(model sem.Model, mc *cache.ModelCache, log *zap.Logger, sink func(Diagnostic)) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		model:      model,
		cache:      mc,
		classifier: classify.New(model, mc.Known(), log),
		log:        log,
		sink:       sink,
	}
}

// Diagnostics returns everything emitted so far.
func (e *Engine) Diagnostics() []Diagnostic { return e.diags }

// CheckBlock analyzes one code block. Diagnostics are non-fatal and
// traversal continues after each; the returned error is only non-nil on
// cancellation. Panics out of the host semantic model are converted to a
// ParseFailure scoped to the block.
func (e *Engine) CheckBlock(ctx context.Context, block *syntax.CodeBlock) (err error) {
	if block == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.report(Diagnostic{
				Kind:    ParseFailure,
				Span:    block.Span(),
				Message: fmt.Sprintf("semantic model failure: %v", r),
			})
		}
	}()

	owner := e.model.DeclaredSymbolOf(block)
	analysis := e.cache.Analysis(owner, block, func() *flow.Analysis {
		return flow.Analyze(owner, block, e.classifier)
	})

	for _, perr := range analysis.ParseFailures() {
		e.parseFailure(perr)
	}
	e.checkConstraintCalls(analysis)
	for _, ev := range analysis.AssignmentsAfterConstraints() {
		e.report(Diagnostic{
			Kind:    AssignmentAfterConstraint,
			Span:    ev.Node.Span(),
			Message: fmt.Sprintf("`%s` is reassigned after a Constraint.NotNull call", ev.Key),
		})
	}

	if block.Initializer != nil {
		if m, ok := e.model.SymbolOf(block.Initializer).(*sem.Method); ok {
			e.checkArguments(analysis, m, block.Initializer.Args, true)
		}
	}

	if block.Body == nil {
		return nil
	}
	cancelled := false
	syntax.Walk(block.Body, func(n syntax.Node) bool {
		if cancelled {
			return false
		}
		if _, isStmt := n.(syntax.Stmt); isStmt && ctx.Err() != nil {
			cancelled = true
			return false
		}
		e.visit(analysis, owner, n)
		return true
	})
	if cancelled {
		return ctx.Err()
	}
	return nil
}

func (e *Engine) visit(a *flow.Analysis, owner sem.Symbol, n syntax.Node) {
	switch n := n.(type) {
	case *syntax.Binary:
		e.checkBinary(n)
	case *syntax.ConditionalAccess:
		if e.provablyNonNull(n.X) {
			e.unneededNullCheck(n.X)
		}
	case *syntax.Invocation:
		if flow.IsConstraintCall(n) {
			return
		}
		if m := e.classifier.ResolveMethod(n); m != nil {
			e.checkArguments(a, m, n.Args, false)
		}
	case *syntax.ObjectCreation:
		if m, ok := e.model.SymbolOf(n).(*sem.Method); ok {
			e.checkArguments(a, m, n.Args, false)
		}
	case *syntax.Assignment:
		e.checkAssignment(a, n)
	case *syntax.Return:
		e.checkReturn(a, owner, n)
	}
}

// checkBinary flags null comparisons and coalesces whose target can never
// be null.
func (e *Engine) checkBinary(b *syntax.Binary) {
	switch b.Op {
	case syntax.OpEq, syntax.OpNotEq:
		var other syntax.Expr
		if _, ok := b.X.(*syntax.NullLiteral); ok {
			other = b.Y
		} else if _, ok := b.Y.(*syntax.NullLiteral); ok {
			other = b.X
		}
		if other != nil && e.provablyNonNull(other) {
			e.unneededNullCheck(other)
		}
	case syntax.OpCoalesce:
		if e.provablyNonNull(b.X) {
			e.unneededNullCheck(b.X)
		}
	}
}

func (e *Engine) checkConstraintCalls(a *flow.Analysis) {
	for _, cc := range a.ConstraintCalls() {
		if cc.Target == nil {
			e.report(Diagnostic{
				Kind:    InvalidConstraint,
				Span:    cc.Call.Span(),
				Message: "Constraint.NotNull argument must be a member or a lambda returning one",
			})
			continue
		}
		if annotation.Has(e.symbolOfTarget(cc.Target), annotation.Contract) {
			e.report(Diagnostic{
				Kind:    UnneededConstraint,
				Span:    cc.Call.Span(),
				Message: fmt.Sprintf("`%s` already carries a null contract; the constraint is unneeded", cc.Key),
			})
		}
	}
}

// checkArguments walks an argument list against the callee's contracts. A
// params parameter terminates checking; by-ref passing of a contracted
// symbol is always flagged. Constructor initializers only report missing
// assignments: they run before the body's guards, so the weaker statuses
// would be noise.
func (e *Engine) checkArguments(a *flow.Analysis, m *sem.Method, args []*syntax.Argument, ctorInit bool) {
	for i, arg := range args {
		if i >= len(m.Params) || arg == nil || arg.Value == nil {
			return
		}
		p := m.Params[i]
		if p.IsParams {
			return
		}
		if arg.Ref != syntax.RefNone {
			if annotation.Has(e.symbolOfTarget(arg.Value), annotation.Contract) {
				e.report(Diagnostic{
					Kind:    NotNullAsRefParameter,
					Span:    arg.Value.Span(),
					Message: "a null-contracted symbol must not be passed by reference",
				})
			}
			continue
		}
		if !annotation.Has(p, annotation.Contract) {
			continue
		}
		status, err := a.IsAlwaysAssigned(arg.Value, arg)
		if err != nil {
			e.parseErr(err)
			continue
		}
		if ctorInit {
			if status == flow.NotAssigned {
				e.report(Diagnostic{
					Kind:    PropagateNotNullInCtors,
					Span:    arg.Value.Span(),
					Message: fmt.Sprintf("possibly null argument for non-null parameter `%s` in constructor chain", p.Name()),
				})
			}
			continue
		}
		e.reportStatus(status, arg.Value, fmt.Sprintf("argument for non-null parameter `%s`", p.Name()))
	}
}

func (e *Engine) checkAssignment(a *flow.Analysis, as *syntax.Assignment) {
	if !annotation.Has(e.symbolOfTarget(as.Left), annotation.Contract) {
		return
	}
	v, err := e.classifier.Classify(as.Right, &classify.Context{})
	if err != nil {
		e.parseErr(err)
		return
	}
	if v == classify.NotNull {
		return
	}
	status, err := a.IsAlwaysAssigned(as.Right, as)
	if err != nil {
		e.parseErr(err)
		return
	}
	e.reportStatus(status, as.Right, "value assigned to a non-null target")
}

func (e *Engine) checkReturn(a *flow.Analysis, owner sem.Symbol, ret *syntax.Return) {
	if ret.Result == nil || !annotation.Has(owner, annotation.Contract) {
		return
	}
	v, err := e.classifier.Classify(ret.Result, &classify.Context{})
	if err != nil {
		e.parseErr(err)
		return
	}
	if v == classify.NotNull {
		return
	}
	status, err := a.IsAlwaysAssigned(ret.Result, ret)
	if err != nil {
		e.parseErr(err)
		return
	}
	e.reportStatus(status, ret.Result, "returned value of a non-null method")
}

// reportStatus maps a flow status to its diagnostic; Assigned reports
// nothing.
func (e *Engine) reportStatus(status flow.Status, at syntax.Expr, what string) {
	switch status {
	case flow.NotAssigned:
		e.report(Diagnostic{
			Kind:    NullAssignment,
			Span:    at.Span(),
			Message: fmt.Sprintf("%s may be null", what),
		})
	case flow.ReassignedAfterCondition:
		e.report(Diagnostic{
			Kind:    AssignmentAfterCondition,
			Span:    at.Span(),
			Message: fmt.Sprintf("%s was proved non-null but reassigned on some path", what),
		})
	case flow.AssignedWithUnneededConstraint:
		e.report(Diagnostic{
			Kind:    UnneededConstraint,
			Span:    at.Span(),
			Message: fmt.Sprintf("%s is already non-null; the constraint is unneeded", what),
		})
	}
}

// provablyNonNull reports whether expr can never be null by annotation or
// classification alone, without flow reasoning.
func (e *Engine) provablyNonNull(expr syntax.Expr) bool {
	v, err := e.classifier.Classify(expr, &classify.Context{})
	if err != nil {
		e.parseErr(err)
		return false
	}
	if v == classify.NotNull {
		return true
	}
	return annotation.Has(e.symbolOfTarget(expr), annotation.Contract)
}

// symbolOfTarget resolves the symbol a guard or sink expression refers to,
// peeling wrappers first. Unknown shapes surface as parse failures.
func (e *Engine) symbolOfTarget(expr syntax.Expr) sem.Symbol {
	u, err := classify.Underlying(expr)
	if err != nil {
		e.parseErr(err)
		return nil
	}
	return e.model.SymbolOf(u)
}

func (e *Engine) unneededNullCheck(target syntax.Expr) {
	e.report(Diagnostic{
		Kind:    UnneededNullCheck,
		Span:    target.Span(),
		Message: "null check on a symbol that can never be null",
	})
}

func (e *Engine) parseErr(err error) {
	var perr *classify.ParseError
	if errors.As(err, &perr) {
		e.parseFailure(perr)
		return
	}
	e.log.Warn("unexpected analysis error", zap.Error(err))
}

func (e *Engine) parseFailure(perr *classify.ParseError) {
	e.report(Diagnostic{
		Kind:    ParseFailure,
		Span:    perr.Node.Span(),
		Message: perr.Error(),
	})
}

func (e *Engine) report(d Diagnostic) {
	e.diags = append(e.diags, d)
	if e.sink != nil {
		e.sink(d)
	}
}
