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

// Package classify assigns every expression one of the three nullness
// values by recursive structural descent, consulting the semantic model,
// the declared contract annotations, and the symbol knowledge base.
package classify

import (
	"go.uber.org/nullguard/annotation"
	"go.uber.org/nullguard/knownsym"
	"go.uber.org/nullguard/sem"
	"go.uber.org/nullguard/syntax"
	"go.uber.org/zap"
)

// ValueType is the nullness of an expression. The zero value is MaybeNull:
// anything the classifier cannot prove stays possibly null.
type ValueType uint8

// Nullness values.
const (
	MaybeNull ValueType = iota
	NotNull
	Null
)

func (v ValueType) String() string {
	switch v {
	case NotNull:
		return "NotNull"
	case Null:
		return "Null"
	}
	return "MaybeNull"
}

// Context accumulates facts discovered while classifying one expression.
type Context struct {
	// HasNotNullAttribute is set when the classification rests on a NotNull
	// contract (a setter value parameter or an annotated/trusted callee)
	// rather than on the expression's own shape.
	HasNotNullAttribute bool
}

// Classifier maps expressions to ValueTypes for one semantic model.
type Classifier struct {
	model sem.Model
	known *knownsym.Table
	log   *zap.Logger
}

// New returns a classifier over the given model and knowledge base. A nil
// logger defaults to a nop logger.
func New(model sem.Model, known *knownsym.Table, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	if known == nil {
		known = knownsym.New(nil)
	}
	return &Classifier{model: model, known: known, log: log}
}

// Classify returns the nullness of e. Shapes outside the case table are
// conservatively MaybeNull; a malformed coalesce right side surfaces as a
// *ParseError.
func (c *Classifier) Classify(e syntax.Expr, ctx *Context) (ValueType, error) {
	if ctx == nil {
		ctx = &Context{}
	}
	switch e := e.(type) {
	case *syntax.NullLiteral:
		return Null, nil
	case *syntax.StringLiteral, *syntax.InterpolatedString:
		return NotNull, nil
	case *syntax.ObjectCreation, *syntax.ArrayCreation, *syntax.ImplicitArrayCreation,
		*syntax.This, *syntax.Lambda:
		return NotNull, nil
	case *syntax.Throw:
		// The value is unreachable; treat it as non-null so it never poisons
		// the branch it terminates.
		return NotNull, nil
	case *syntax.Identifier:
		return c.classifyIdentifier(e, ctx)
	case *syntax.MemberBinding:
		return c.classifyIdentifier(e.Sel, ctx)
	case *syntax.Invocation:
		return c.classifyInvocation(e, ctx)
	case *syntax.Assignment:
		return c.Classify(e.Right, ctx)
	case *syntax.MemberAccess:
		return c.Classify(e.Sel, ctx)
	case *syntax.ConditionalAccess:
		return c.Classify(e.WhenNotNull, ctx)
	case *syntax.Ternary:
		return c.classifyTernary(e, ctx)
	case *syntax.Cast:
		return c.Classify(e.X, ctx)
	case *syntax.Paren:
		return c.Classify(e.X, ctx)
	case *syntax.Await:
		return c.classifyAwait(e, ctx)
	case *syntax.Binary:
		switch e.Op {
		case syntax.OpCoalesce:
			// The right side only evaluates on the null branch of the left,
			// so the whole expression is as null as b's underlying member.
			u, err := Underlying(e.Y)
			if err != nil {
				return MaybeNull, err
			}
			return c.Classify(u, ctx)
		case syntax.OpAs:
			return c.Classify(e.X, ctx)
		case syntax.OpAdd:
			return c.classifyAdd(e), nil
		}
	}
	c.log.Debug("classifier fallthrough", zap.Stringer("kind", e.Kind()))
	return MaybeNull, nil
}

func (c *Classifier) classifyTernary(e *syntax.Ternary, ctx *Context) (ValueType, error) {
	thenV, err := c.Classify(e.Then, ctx)
	if err != nil {
		return MaybeNull, err
	}
	elseV, err := c.Classify(e.Else, ctx)
	if err != nil {
		return MaybeNull, err
	}
	if thenV == NotNull && elseV == NotNull {
		return NotNull, nil
	}
	// Even two literal-null branches answer MaybeNull; the conservative
	// value for a branch merge is never Null.
	return MaybeNull, nil
}

func (c *Classifier) classifyIdentifier(id *syntax.Identifier, ctx *Context) (ValueType, error) {
	if id == nil {
		return MaybeNull, nil
	}
	sym := c.model.SymbolOf(id)
	switch sym := sym.(type) {
	case *sem.Local:
		if sym.ForEach {
			return NotNull, nil
		}
		return MaybeNull, nil
	case *sem.Parameter:
		return c.classifyParameter(sym, ctx)
	case *sem.Method:
		if c.known.IsKnownNonNullMethod(sym) || annotation.Has(sym, annotation.Contract) {
			return NotNull, nil
		}
	case *sem.Property:
		if c.known.IsKnownNonNullProperty(sym) || annotation.Has(sym, annotation.Contract) {
			return NotNull, nil
		}
	case nil:
	default:
		if annotation.Has(sym, annotation.Contract) {
			return NotNull, nil
		}
	}
	return MaybeNull, nil
}

func (c *Classifier) classifyParameter(p *sem.Parameter, ctx *Context) (ValueType, error) {
	if p.IsValueParameter {
		// The implicit value of a setter: the contract may sit on the setter
		// itself or on the associated property.
		if m, ok := p.Owner.(*sem.Method); ok {
			if annotation.Has(m, annotation.NotNull) {
				ctx.HasNotNullAttribute = true
				return NotNull, nil
			}
		}
		return MaybeNull, nil
	}
	if lam, ok := p.Owner.(*sem.Lambda); ok {
		return c.classifyLambdaParameter(p, lam), nil
	}
	if annotation.Has(p, annotation.Contract) {
		return NotNull, nil
	}
	return MaybeNull, nil
}

// classifyLambdaParameter decides the nullness of a lambda's parameter from
// the invocation the lambda is converted at. Enumerable combinators never
// pass null elements; otherwise the corresponding delegate parameter's
// contract decides, defaulting to Null when the delegate is silent.
func (c *Classifier) classifyLambdaParameter(p *sem.Parameter, lam *sem.Lambda) ValueType {
	if lam.Syntax == nil {
		return Null
	}
	inv, argIndex := enclosingInvocation(lam.Syntax)
	if inv == nil {
		return Null
	}
	callee, _ := c.resolveMethod(inv)
	if c.known.IsEnumerableCombinator(callee) {
		return NotNull
	}
	if callee == nil || argIndex < 0 || argIndex >= len(callee.Params) {
		return Null
	}
	delegate := callee.Params[argIndex].Type
	if delegate == nil {
		return Null
	}
	invoke := delegate.MethodNamed("Invoke")
	if invoke == nil || p.Index < 0 || p.Index >= len(invoke.Params) {
		return Null
	}
	if annotation.Has(invoke.Params[p.Index], annotation.Contract) {
		return NotNull
	}
	return Null
}

// enclosingInvocation finds the invocation a lambda is an argument of and
// the lambda's position in its argument list, walking out through argument
// wrappers only.
func enclosingInvocation(lam *syntax.Lambda) (*syntax.Invocation, int) {
	arg, ok := lam.Parent().(*syntax.Argument)
	if !ok {
		return nil, -1
	}
	inv, ok := arg.Parent().(*syntax.Invocation)
	if !ok {
		return nil, -1
	}
	for i, a := range inv.Args {
		if a == arg {
			return inv, i
		}
	}
	return nil, -1
}

func (c *Classifier) classifyInvocation(inv *syntax.Invocation, ctx *Context) (ValueType, error) {
	if inv.IsNameOf() {
		return NotNull, nil
	}
	m, _ := c.resolveMethod(inv)
	if m == nil {
		return MaybeNull, nil
	}
	if annotation.Has(m, annotation.NotNull) || c.known.IsKnownNonNullMethod(m) {
		ctx.HasNotNullAttribute = true
		return NotNull, nil
	}
	if UnwrapTask(m.Return).IsValueType() {
		return NotNull, nil
	}
	return MaybeNull, nil
}

func (c *Classifier) classifyAwait(aw *syntax.Await, ctx *Context) (ValueType, error) {
	if inv, ok := aw.X.(*syntax.Invocation); ok {
		m, _ := c.resolveMethod(inv)
		if c.known.IsConfigureAwait(m) {
			// await t.ConfigureAwait(...) is as null as awaiting t.
			if ma, ok := inv.Fun.(*syntax.MemberAccess); ok {
				return c.Classify(ma.X, ctx)
			}
		}
		return c.classifyInvocation(inv, ctx)
	}
	return c.Classify(aw.X, ctx)
}

// classifyAdd handles string and numeric concatenation: non-null when the
// converted type is a value type or the string type, or when the addition
// feeds directly into an enumerable ToList materialization.
func (c *Classifier) classifyAdd(e *syntax.Binary) ValueType {
	if t := c.model.TypeOf(e); t != nil {
		if t.IsValueType() {
			return NotNull
		}
		if st := c.known.StringType(); st != nil && t.Original() == st.Original() {
			return NotNull
		}
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		if inv, ok := p.(*syntax.Invocation); ok {
			if m, _ := c.resolveMethod(inv); c.known.IsEnumerableCombinator(m) && m.Name() == "ToList" {
				return NotNull
			}
			break
		}
	}
	return MaybeNull
}

// resolveMethod resolves the callee of an invocation, trying the invocation
// node first and falling back to its callee expression.
func (c *Classifier) resolveMethod(inv *syntax.Invocation) (*sem.Method, bool) {
	if m, ok := c.model.SymbolOf(inv).(*sem.Method); ok {
		return m, true
	}
	if m, ok := c.model.SymbolOf(inv.Fun).(*sem.Method); ok {
		return m, true
	}
	return nil, false
}

// ResolveMethod exposes callee resolution to the flow analyzer and the
// diagnostic engine.
func (c *Classifier) ResolveMethod(inv *syntax.Invocation) *sem.Method {
	m, _ := c.resolveMethod(inv)
	return m
}

// Model returns the semantic model the classifier consults.
func (c *Classifier) Model() sem.Model { return c.model }

// Known returns the knowledge base the classifier consults.
func (c *Classifier) Known() *knownsym.Table { return c.known }

// UnwrapTask unwraps Task<T> to T by probing for the Result property and a
// GetAwaiter method whose return's first type argument matches Result's
// type. Anything else comes back unchanged.
func UnwrapTask(t *sem.NamedType) *sem.NamedType {
	if t == nil {
		return nil
	}
	result := t.PropertyNamed("Result")
	awaiter := t.MethodNamed("GetAwaiter")
	if result == nil || awaiter == nil || awaiter.Return == nil {
		return t
	}
	if args := awaiter.Return.TypeArgs; len(args) > 0 && args[0] == result.Type {
		return result.Type
	}
	return t
}
