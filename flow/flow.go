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

// Package flow hosts the method-local flow analyzer. A single walk over a
// code block collects assignment, guard and constraint events per target
// key; queries then decide whether a target is guaranteed non-null at a
// program point, honoring reassignments that weaken earlier guarantees.
package flow

import (
	"errors"

	"go.uber.org/nullguard/annotation"
	"go.uber.org/nullguard/classify"
	"go.uber.org/nullguard/config"
	"go.uber.org/nullguard/sem"
	"go.uber.org/nullguard/syntax"
)

// Status is the outcome of asking whether an expression is safely assigned
// non-null at a program point.
type Status uint8

// Statuses.
const (
	NotAssigned Status = iota
	Assigned
	ReassignedAfterCondition
	AssignedWithUnneededConstraint
)

func (s Status) String() string {
	switch s {
	case Assigned:
		return "Assigned"
	case ReassignedAfterCondition:
		return "ReassignedAfterCondition"
	case AssignedWithUnneededConstraint:
		return "AssignedWithUnneededConstraint"
	}
	return "NotAssigned"
}

// TargetKey is the normalized identity of a tracked expression: the dotted
// identifier path from the outermost receiver, with an enclosing-instance
// receiver collapsed so `this.a.b` and `a.b` coincide.
type TargetKey string

// KeyFor normalizes e to its target key. Element accesses, method calls and
// casts break key identity, so expressions containing them are not tracked.
func KeyFor(e syntax.Expr) (TargetKey, bool) {
	switch e := e.(type) {
	case *syntax.Identifier:
		return TargetKey(e.Name), true
	case *syntax.Paren:
		return KeyFor(e.X)
	case *syntax.MemberAccess:
		if e.Sel == nil {
			return "", false
		}
		if _, ok := e.X.(*syntax.This); ok {
			return TargetKey(e.Sel.Name), true
		}
		base, ok := KeyFor(e.X)
		if !ok {
			return "", false
		}
		return base + "." + TargetKey(e.Sel.Name), true
	}
	return "", false
}

// EventKind discriminates flow events.
type EventKind uint8

// Flow event kinds.
const (
	EventAssignment EventKind = iota
	EventGuard
	EventConstraint
)

// Event is one flow fact: an assignment into a target, a guarded region
// proving the target non-null, or a constraint assertion.
type Event struct {
	Kind EventKind
	Key  TargetKey

	// Pos is the event's depth-first position; RegionEnd is the last
	// position the event covers (guards: the guarded branch; constraints:
	// the end of the method).
	Pos       int
	RegionEnd int

	// Value is the classified right-hand side of an assignment.
	Value classify.ValueType

	// Conditional marks assignments that do not occur on every path.
	Conditional bool

	Node syntax.Node
}

// ConstraintCall is a recognized (or rejected) Constraint.NotNull call.
type ConstraintCall struct {
	Call *syntax.Invocation

	// Target is the constrained expression; nil when the argument shape was
	// not a direct member or a lambda returning one.
	Target syntax.Expr
	Key    TargetKey
}

// Analysis is the per-method flow analysis: immutable after Analyze, safe
// for concurrent queries, memoized per (semantic model, method) by the
// caller.
type Analysis struct {
	Owner sem.Symbol
	Block *syntax.CodeBlock

	// HasConstraints is set when at least one constraint call was seen.
	HasConstraints bool

	Positions *syntax.PosTable

	events      *orderedEvents
	constraints []*ConstraintCall
	classifier  *classify.Classifier
	parseErrs   []*classify.ParseError
}

// Analyze walks block once and returns its flow analysis. Parse failures
// encountered while classifying right-hand sides are collected, not fatal.
func Analyze(owner sem.Symbol, block *syntax.CodeBlock, classifier *classify.Classifier) *Analysis {
	a := &Analysis{
		Owner:      owner,
		Block:      block,
		Positions:  syntax.Positions(block),
		events:     newOrderedEvents(),
		classifier: classifier,
	}
	b := &builder{a: a}
	if block != nil && block.Body != nil {
		b.stmt(block.Body)
	}
	a.events.sortByPos()
	return a
}

// ConstraintCalls returns every recognized or rejected constraint call in
// source order.
func (a *Analysis) ConstraintCalls() []*ConstraintCall { return a.constraints }

// ParseFailures returns the parse errors collected during the walk.
func (a *Analysis) ParseFailures() []*classify.ParseError { return a.parseErrs }

// IsAlwaysAssigned reports whether e is guaranteed non-null at the program
// point of node at, consulting the classifier first and the collected flow
// events second.
func (a *Analysis) IsAlwaysAssigned(e syntax.Expr, at syntax.Node) (Status, error) {
	pos := a.Positions.Pos(at)
	if pos < 0 {
		pos = a.Positions.SubtreeEnd(a.Block) + 1
	}

	ctx := &classify.Context{}
	v, err := a.classifier.Classify(e, ctx)
	if err != nil {
		return NotAssigned, err
	}
	key, tracked := KeyFor(e)
	if v == classify.NotNull {
		if tracked && a.liveConstraintBefore(key, pos) {
			return AssignedWithUnneededConstraint, nil
		}
		return Assigned, nil
	}
	if !tracked {
		return NotAssigned, nil
	}

	safe, reassigned := false, false
	for _, ev := range a.events.of(key) {
		if ev.Pos >= pos {
			break
		}
		switch ev.Kind {
		case EventAssignment:
			if ev.Value == classify.NotNull {
				if !ev.Conditional {
					safe, reassigned = true, false
				}
				// A branch-local non-null assignment proves nothing about
				// the other paths and weakens nothing.
				continue
			}
			if safe {
				reassigned = true
			}
			safe = false
		case EventGuard:
			if pos <= ev.RegionEnd {
				safe, reassigned = true, false
			}
		case EventConstraint:
			safe, reassigned = true, false
		}
	}
	switch {
	case safe:
		return Assigned, nil
	case reassigned:
		return ReassignedAfterCondition, nil
	}
	return NotAssigned, nil
}

// AssignmentsAfterConstraints yields every assignment whose target was
// constrained earlier in the flow and whose right-hand side is not provably
// non-null, in stable key order.
func (a *Analysis) AssignmentsAfterConstraints() []*Event {
	var out []*Event
	a.events.orderedRange(func(_ TargetKey, evs []*Event) bool {
		constrained := false
		for _, ev := range evs {
			switch ev.Kind {
			case EventConstraint:
				constrained = true
			case EventAssignment:
				if constrained && ev.Value != classify.NotNull {
					out = append(out, ev)
				}
			}
		}
		return true
	})
	return out
}

// liveConstraintBefore reports whether a constraint for key precedes pos
// without an intervening weakening assignment.
func (a *Analysis) liveConstraintBefore(key TargetKey, pos int) bool {
	live := false
	for _, ev := range a.events.of(key) {
		if ev.Pos >= pos {
			break
		}
		switch ev.Kind {
		case EventConstraint:
			live = true
		case EventAssignment:
			if ev.Value != classify.NotNull {
				live = false
			}
		}
	}
	return live
}

// builder performs the single event-collecting walk. depth counts the
// conditional nesting, so assignments under a branch are marked as not
// occurring on every path.
type builder struct {
	a     *Analysis
	depth int
}

func (b *builder) stmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.Block:
		for _, inner := range s.Stmts {
			b.stmt(inner)
		}
	case *syntax.If:
		b.expr(s.Cond)
		b.guard(s.Cond, s.Then, s.Else)
		b.depth++
		if s.Then != nil {
			b.stmt(s.Then)
		}
		if s.Else != nil {
			b.stmt(s.Else)
		}
		b.depth--
	case *syntax.While:
		b.expr(s.Cond)
		b.guard(s.Cond, s.Body, nil)
		b.depth++
		if s.Body != nil {
			b.stmt(s.Body)
		}
		b.depth--
	case *syntax.Foreach:
		b.expr(s.X)
		b.depth++
		if s.Body != nil {
			b.stmt(s.Body)
		}
		b.depth--
	case *syntax.Return:
		if s.Result != nil {
			b.expr(s.Result)
		}
	case *syntax.LocalDecl:
		if s.Init != nil {
			b.expr(s.Init)
			if s.Name != nil {
				b.assignment(TargetKey(s.Name.Name), s.Init, s)
			}
		}
	case *syntax.ExprStatement:
		b.expr(s.X)
	}
}

// expr walks an expression for assignments, constraint calls and ternary
// guards. Lambda bodies are separate flow scopes and are skipped.
func (b *builder) expr(e syntax.Expr) {
	switch e := e.(type) {
	case nil:
		return
	case *syntax.Lambda:
		return
	case *syntax.Assignment:
		b.expr(e.Right)
		if key, ok := KeyFor(e.Left); ok {
			b.assignment(key, e.Right, e)
		}
		return
	case *syntax.Invocation:
		if b.constraintCall(e) {
			return
		}
	case *syntax.Ternary:
		b.expr(e.Cond)
		b.guard(e.Cond, e.Then, e.Else)
		b.depth++
		b.expr(e.Then)
		b.expr(e.Else)
		b.depth--
		return
	}
	for _, c := range syntax.Children(e) {
		switch c := c.(type) {
		case *syntax.Argument:
			b.expr(c.Value)
		case syntax.Expr:
			b.expr(c)
		}
	}
}

func (b *builder) assignment(key TargetKey, rhs syntax.Expr, node syntax.Node) {
	v, err := b.a.classifier.Classify(rhs, &classify.Context{})
	if err != nil {
		var perr *classify.ParseError
		if errors.As(err, &perr) {
			b.a.parseErrs = append(b.a.parseErrs, perr)
		}
		v = classify.MaybeNull
	}
	b.a.events.append(key, &Event{
		Kind:        EventAssignment,
		Key:         key,
		Pos:         b.a.Positions.Pos(node),
		Value:       v,
		Conditional: b.depth > 0,
		Node:        node,
	})
}

// guard interprets cond and records guarded regions over the branch each
// fact proves non-null on.
func (b *builder) guard(cond syntax.Expr, onTrue, onFalse syntax.Node) {
	for _, f := range b.facts(cond, true) {
		region := onTrue
		if !f.onTrue {
			region = onFalse
		}
		if region == nil {
			continue
		}
		b.a.events.append(f.key, &Event{
			Kind:      EventGuard,
			Key:       f.key,
			Pos:       b.a.Positions.Pos(region),
			RegionEnd: b.a.Positions.SubtreeEnd(region),
			Node:      cond,
		})
	}
}

type fact struct {
	key    TargetKey
	onTrue bool
}

// facts extracts null-related predicates from cond. polarity tracks
// negations: a fact found under an odd number of `!` flips its branch.
func (b *builder) facts(cond syntax.Expr, polarity bool) []fact {
	switch cond := cond.(type) {
	case *syntax.Paren:
		return b.facts(cond.X, polarity)
	case *syntax.PrefixUnary:
		if cond.Op == syntax.OpNot {
			return b.facts(cond.X, !polarity)
		}
	case *syntax.Binary:
		var other syntax.Expr
		if _, ok := cond.X.(*syntax.NullLiteral); ok {
			other = cond.Y
		} else if _, ok := cond.Y.(*syntax.NullLiteral); ok {
			other = cond.X
		}
		if other == nil {
			return nil
		}
		key, ok := KeyFor(other)
		if !ok {
			return nil
		}
		switch cond.Op {
		case syntax.OpNotEq:
			return []fact{{key: key, onTrue: polarity}}
		case syntax.OpEq:
			return []fact{{key: key, onTrue: !polarity}}
		}
	case *syntax.Invocation:
		return b.invocationFacts(cond, polarity)
	}
	return nil
}

func (b *builder) invocationFacts(inv *syntax.Invocation, polarity bool) []fact {
	m := b.a.classifier.ResolveMethod(inv)
	if m == nil {
		return nil
	}

	// target.IsValid(...) with [IsNullCheck] asserts target != null when
	// truthy and proves nothing otherwise.
	if annotation.Has(m, annotation.IsNullCheck) {
		if ma, ok := inv.Fun.(*syntax.MemberAccess); ok && polarity {
			if key, ok := KeyFor(ma.X); ok {
				return []fact{{key: key, onTrue: true}}
			}
		}
		return nil
	}

	// string.IsNullOrEmpty(x) / IsNullOrWhiteSpace(x): the false branch
	// proves x non-null, so the usual spelling !IsNullOrEmpty(x) guards the
	// truthy branch.
	if b.a.classifier.Known().IsNullPredicate(m) && len(inv.Args) > 0 {
		if key, ok := KeyFor(inv.Args[0].Value); ok {
			return []fact{{key: key, onTrue: !polarity}}
		}
	}
	return nil
}

// constraintCall recognizes Constraint.NotNull(target) and records it.
// Returns true when inv was a constraint call (recognized or malformed).
func (b *builder) constraintCall(inv *syntax.Invocation) bool {
	if !IsConstraintCall(inv) {
		return false
	}
	b.a.HasConstraints = true

	call := &ConstraintCall{Call: inv}
	if target := constraintTarget(inv); target != nil {
		if key, ok := KeyFor(target); ok {
			call.Target = target
			call.Key = key
			b.a.events.append(key, &Event{
				Kind:      EventConstraint,
				Key:       key,
				Pos:       b.a.Positions.Pos(inv),
				RegionEnd: b.a.Positions.SubtreeEnd(b.a.Block),
				Node:      inv,
			})
		}
	}
	b.a.constraints = append(b.a.constraints, call)
	return true
}

// IsConstraintCall reports whether inv is Constraint.NotNull(...), matched
// structurally on the receiver type name.
func IsConstraintCall(inv *syntax.Invocation) bool {
	ma, ok := inv.Fun.(*syntax.MemberAccess)
	if !ok || ma.Sel == nil || ma.Sel.Name != config.ConstraintNotNullName {
		return false
	}
	recv, ok := ma.X.(*syntax.Identifier)
	return ok && recv.Name == config.ConstraintTypeName
}

// constraintTarget extracts the constrained expression: the first argument
// when it is a direct member access or identifier, or the body of a lambda
// returning one. Nil means the shape is invalid.
func constraintTarget(inv *syntax.Invocation) syntax.Expr {
	if len(inv.Args) == 0 || inv.Args[0] == nil {
		return nil
	}
	arg := inv.Args[0].Value
	if lam, ok := arg.(*syntax.Lambda); ok {
		body, ok := lam.Body.(syntax.Expr)
		if !ok {
			return nil
		}
		arg = body
	}
	switch arg.(type) {
	case *syntax.Identifier, *syntax.MemberAccess:
		return arg
	}
	return nil
}
