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

package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/nullguard/config"
	"go.uber.org/nullguard/knownsym"
	"go.uber.org/nullguard/sem"
	"go.uber.org/nullguard/syntax"
)

func newClassifier(model *sem.MapModel) *Classifier {
	return New(model, knownsym.New(model.Comp), nil)
}

func emptyModel() *sem.MapModel {
	return sem.NewMapModel(sem.NewCompilation())
}

func classifyOK(t *testing.T, c *Classifier, e syntax.Expr) ValueType {
	t.Helper()
	v, err := c.Classify(e, nil)
	require.NoError(t, err)
	return v
}

func TestLiteralAndCreationShapes(t *testing.T) {
	t.Parallel()

	c := newClassifier(emptyModel())
	testcases := []struct {
		name string
		expr syntax.Expr
		want ValueType
	}{
		{name: "null literal", expr: &syntax.NullLiteral{}, want: Null},
		{name: "string literal", expr: &syntax.StringLiteral{Value: "x"}, want: NotNull},
		{name: "interpolated string", expr: &syntax.InterpolatedString{}, want: NotNull},
		{name: "object creation", expr: &syntax.ObjectCreation{TypeName: "T"}, want: NotNull},
		{name: "array creation", expr: &syntax.ArrayCreation{}, want: NotNull},
		{name: "implicit array creation", expr: &syntax.ImplicitArrayCreation{}, want: NotNull},
		{name: "this", expr: &syntax.This{}, want: NotNull},
		{name: "lambda", expr: &syntax.Lambda{Body: &syntax.NullLiteral{}}, want: NotNull},
		{name: "throw", expr: &syntax.Throw{X: &syntax.ObjectCreation{TypeName: "E"}}, want: NotNull},
		{name: "nameof", expr: &syntax.Invocation{Fun: &syntax.Identifier{Name: "nameof"}}, want: NotNull},
		{name: "unknown identifier", expr: &syntax.Identifier{Name: "x"}, want: MaybeNull},
		{name: "equality", expr: &syntax.Binary{Op: syntax.OpEq, X: &syntax.NullLiteral{}, Y: &syntax.NullLiteral{}}, want: MaybeNull},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, classifyOK(t, c, tc.expr))
		})
	}
}

func TestWrappersAreTransparent(t *testing.T) {
	t.Parallel()

	c := newClassifier(emptyModel())
	inner := []struct {
		name string
		expr syntax.Expr
		want ValueType
	}{
		{name: "string", expr: &syntax.StringLiteral{Value: "s"}, want: NotNull},
		{name: "null", expr: &syntax.NullLiteral{}, want: Null},
		{name: "unknown", expr: &syntax.Identifier{Name: "x"}, want: MaybeNull},
	}
	for _, tc := range inner {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, classifyOK(t, c, &syntax.Paren{X: tc.expr}))
			require.Equal(t, tc.want, classifyOK(t, c, &syntax.Cast{TypeName: "T", X: tc.expr}))
			require.Equal(t, tc.want, classifyOK(t, c, &syntax.Binary{Op: syntax.OpAs, X: tc.expr, Y: &syntax.Identifier{Name: "T"}}))
			require.Equal(t, tc.want, classifyOK(t, c, &syntax.Assignment{Left: &syntax.Identifier{Name: "l"}, Right: tc.expr}))
		})
	}
}

func TestTernaryLaw(t *testing.T) {
	t.Parallel()

	c := newClassifier(emptyModel())
	str := func() syntax.Expr { return &syntax.StringLiteral{Value: "s"} }
	null := func() syntax.Expr { return &syntax.NullLiteral{} }
	maybe := func() syntax.Expr { return &syntax.Identifier{Name: "x"} }

	testcases := []struct {
		name      string
		then, els syntax.Expr
		want      ValueType
	}{
		{name: "both not null", then: str(), els: str(), want: NotNull},
		{name: "one branch maybe", then: str(), els: maybe(), want: MaybeNull},
		{name: "one branch null", then: str(), els: null(), want: MaybeNull},
		// Conservative merge: even two literal nulls are MaybeNull, not Null.
		{name: "both null", then: null(), els: null(), want: MaybeNull},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := &syntax.Ternary{Cond: maybe(), Then: tc.then, Else: tc.els}
			require.Equal(t, tc.want, classifyOK(t, c, e))
		})
	}
}

func TestCoalesceClassifiesUnderlyingRight(t *testing.T) {
	t.Parallel()

	c := newClassifier(emptyModel())
	left := &syntax.Identifier{Name: "a"}

	e := &syntax.Binary{Op: syntax.OpCoalesce, X: left, Y: &syntax.Paren{X: &syntax.StringLiteral{Value: "d"}}}
	require.Equal(t, NotNull, classifyOK(t, c, e))

	e = &syntax.Binary{Op: syntax.OpCoalesce, X: left, Y: &syntax.Identifier{Name: "b"}}
	require.Equal(t, MaybeNull, classifyOK(t, c, e))

	// A malformed right side must surface, not degrade to MaybeNull.
	bad := &syntax.Binary{Op: syntax.OpCoalesce, X: left, Y: &syntax.Binary{Op: syntax.OpAdd, X: left, Y: left}}
	_, err := c.Classify(bad, nil)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestConditionalAccessClassifiesContinuation(t *testing.T) {
	t.Parallel()

	model := emptyModel()
	c := newClassifier(model)
	sub := &sem.Method{SymbolInfo: sem.SymbolInfo{SymbolName: "Substring"}}
	bind := &syntax.MemberBinding{Sel: &syntax.Identifier{Name: "Substring"}}
	cont := &syntax.Invocation{Fun: bind}
	model.Symbols[cont] = sub

	e := &syntax.ConditionalAccess{X: &syntax.Identifier{Name: "s"}, WhenNotNull: cont}
	require.Equal(t, MaybeNull, classifyOK(t, c, e))
}

func TestForeachLocal(t *testing.T) {
	t.Parallel()

	model := emptyModel()
	c := newClassifier(model)
	loop := &syntax.Identifier{Name: "item"}
	plain := &syntax.Identifier{Name: "x"}
	model.Symbols[loop] = &sem.Local{SymbolInfo: sem.SymbolInfo{SymbolName: "item"}, ForEach: true}
	model.Symbols[plain] = &sem.Local{SymbolInfo: sem.SymbolInfo{SymbolName: "x"}}

	require.Equal(t, NotNull, classifyOK(t, c, loop))
	require.Equal(t, MaybeNull, classifyOK(t, c, plain))
}

func TestAnnotatedParameter(t *testing.T) {
	t.Parallel()

	model := emptyModel()
	c := newClassifier(model)
	id := &syntax.Identifier{Name: "s"}
	model.Symbols[id] = &sem.Parameter{SymbolInfo: sem.SymbolInfo{
		SymbolName: "s",
		Attrs:      []sem.Attribute{{TypeName: "NotNull"}},
	}}
	require.Equal(t, NotNull, classifyOK(t, c, id))
}

func TestSetterValueParameter(t *testing.T) {
	t.Parallel()

	model := emptyModel()
	c := newClassifier(model)

	prop := &sem.Property{SymbolInfo: sem.SymbolInfo{
		SymbolName: "Prop",
		Attrs:      []sem.Attribute{{TypeName: "NotNull"}},
	}}
	setter := &sem.Method{
		SymbolInfo: sem.SymbolInfo{SymbolName: "set_Prop"},
		MKind:      sem.MethodPropertySet,
		Assoc:      prop,
	}
	id := &syntax.Identifier{Name: "value"}
	model.Symbols[id] = &sem.Parameter{
		SymbolInfo:       sem.SymbolInfo{SymbolName: "value"},
		IsValueParameter: true,
		Owner:            setter,
	}

	ctx := &Context{}
	v, err := c.Classify(id, ctx)
	require.NoError(t, err)
	require.Equal(t, NotNull, v)
	require.True(t, ctx.HasNotNullAttribute)
}

func TestLambdaParameter(t *testing.T) {
	t.Parallel()

	t.Run("inside enumerable combinator", func(t *testing.T) {
		t.Parallel()

		where := &sem.Method{SymbolInfo: sem.SymbolInfo{SymbolName: "Where"}}
		comp := sem.NewCompilation(&sem.NamedType{
			SymbolInfo: sem.SymbolInfo{SymbolName: "Enumerable"},
			Metadata:   config.EnumerableMetadataName,
			Members:    map[string][]sem.Symbol{"Where": {where}},
		})
		model := sem.NewMapModel(comp)
		c := newClassifier(model)

		paramID := &syntax.Identifier{Name: "e"}
		lamSyntax := &syntax.Lambda{Params: []*syntax.Identifier{paramID}, Body: paramID}
		inv := &syntax.Invocation{
			Fun:  &syntax.MemberAccess{X: &syntax.Identifier{Name: "xs"}, Sel: &syntax.Identifier{Name: "Where"}},
			Args: []*syntax.Argument{{Value: lamSyntax}},
		}
		syntax.SetParents(inv)

		lamSym := &sem.Lambda{Syntax: lamSyntax}
		param := &sem.Parameter{SymbolInfo: sem.SymbolInfo{SymbolName: "e"}, Owner: lamSym}
		lamSym.Params = []*sem.Parameter{param}
		model.Symbols[paramID] = param
		model.Symbols[inv] = where

		require.Equal(t, NotNull, classifyOK(t, c, paramID))
	})

	t.Run("delegate contract decides", func(t *testing.T) {
		t.Parallel()

		model := emptyModel()
		c := newClassifier(model)

		delegateInvoke := &sem.Method{
			SymbolInfo: sem.SymbolInfo{SymbolName: "Invoke"},
			Params: []*sem.Parameter{{SymbolInfo: sem.SymbolInfo{
				SymbolName: "arg",
				Attrs:      []sem.Attribute{{TypeName: "CheckNull"}},
			}}},
		}
		delegateType := &sem.NamedType{
			SymbolInfo: sem.SymbolInfo{SymbolName: "Handler"},
			Members:    map[string][]sem.Symbol{"Invoke": {delegateInvoke}},
		}
		callee := &sem.Method{
			SymbolInfo: sem.SymbolInfo{SymbolName: "Register"},
			Params:     []*sem.Parameter{{SymbolInfo: sem.SymbolInfo{SymbolName: "handler"}, Type: delegateType}},
		}

		paramID := &syntax.Identifier{Name: "x"}
		lamSyntax := &syntax.Lambda{Params: []*syntax.Identifier{paramID}, Body: paramID}
		inv := &syntax.Invocation{
			Fun:  &syntax.Identifier{Name: "Register"},
			Args: []*syntax.Argument{{Value: lamSyntax}},
		}
		syntax.SetParents(inv)

		lamSym := &sem.Lambda{Syntax: lamSyntax}
		param := &sem.Parameter{SymbolInfo: sem.SymbolInfo{SymbolName: "x"}, Index: 0, Owner: lamSym}
		lamSym.Params = []*sem.Parameter{param}
		model.Symbols[paramID] = param
		model.Symbols[inv] = callee

		require.Equal(t, NotNull, classifyOK(t, c, paramID))
	})

	t.Run("silent delegate answers null", func(t *testing.T) {
		t.Parallel()

		model := emptyModel()
		c := newClassifier(model)

		paramID := &syntax.Identifier{Name: "x"}
		lamSyntax := &syntax.Lambda{Params: []*syntax.Identifier{paramID}, Body: paramID}
		param := &sem.Parameter{SymbolInfo: sem.SymbolInfo{SymbolName: "x"}, Owner: &sem.Lambda{Syntax: lamSyntax}}
		model.Symbols[paramID] = param

		require.Equal(t, Null, classifyOK(t, c, paramID))
	})
}

func TestInvocationContracts(t *testing.T) {
	t.Parallel()

	model := emptyModel()
	c := newClassifier(model)

	annotated := &sem.Method{SymbolInfo: sem.SymbolInfo{
		SymbolName: "Make",
		Attrs:      []sem.Attribute{{TypeName: "NotNull"}},
	}}
	inv := &syntax.Invocation{Fun: &syntax.Identifier{Name: "Make"}}
	model.Symbols[inv] = annotated

	ctx := &Context{}
	v, err := c.Classify(inv, ctx)
	require.NoError(t, err)
	require.Equal(t, NotNull, v)
	require.True(t, ctx.HasNotNullAttribute)
}

func TestInvocationValueTypeReturn(t *testing.T) {
	t.Parallel()

	model := emptyModel()
	c := newClassifier(model)

	intType := &sem.NamedType{SymbolInfo: sem.SymbolInfo{SymbolName: "Int32"}, Value: true}
	m := &sem.Method{SymbolInfo: sem.SymbolInfo{SymbolName: "Count"}, Return: intType}
	inv := &syntax.Invocation{Fun: &syntax.Identifier{Name: "Count"}}
	model.Symbols[inv] = m

	require.Equal(t, NotNull, classifyOK(t, c, inv))

	strType := &sem.NamedType{SymbolInfo: sem.SymbolInfo{SymbolName: "String"}}
	m2 := &sem.Method{SymbolInfo: sem.SymbolInfo{SymbolName: "Render"}, Return: strType}
	inv2 := &syntax.Invocation{Fun: &syntax.Identifier{Name: "Render"}}
	model.Symbols[inv2] = m2

	require.Equal(t, MaybeNull, classifyOK(t, c, inv2))
}

// taskOf builds a Task<T>-shaped type whose GetAwaiter return carries T as
// its first type argument, matching the unwrap probe.
func taskOf(elem *sem.NamedType) *sem.NamedType {
	awaiter := &sem.NamedType{
		SymbolInfo: sem.SymbolInfo{SymbolName: "TaskAwaiter"},
		TypeArgs:   []*sem.NamedType{elem},
	}
	task := &sem.NamedType{
		SymbolInfo: sem.SymbolInfo{SymbolName: "Task"},
		TypeArgs:   []*sem.NamedType{elem},
		Members:    make(map[string][]sem.Symbol),
	}
	task.Members["Result"] = []sem.Symbol{&sem.Property{SymbolInfo: sem.SymbolInfo{SymbolName: "Result"}, Type: elem}}
	task.Members["GetAwaiter"] = []sem.Symbol{&sem.Method{SymbolInfo: sem.SymbolInfo{SymbolName: "GetAwaiter"}, Return: awaiter}}
	return task
}

func TestUnwrapTask(t *testing.T) {
	t.Parallel()

	intType := &sem.NamedType{SymbolInfo: sem.SymbolInfo{SymbolName: "Int32"}, Value: true}
	require.Equal(t, intType, UnwrapTask(taskOf(intType)))

	// A type without the awaiter/result pairing is returned unchanged.
	plain := &sem.NamedType{SymbolInfo: sem.SymbolInfo{SymbolName: "String"}}
	require.Equal(t, plain, UnwrapTask(plain))
	require.Nil(t, UnwrapTask(nil))
}

func TestAwaitUnwrapsTask(t *testing.T) {
	t.Parallel()

	model := emptyModel()
	c := newClassifier(model)

	intType := &sem.NamedType{SymbolInfo: sem.SymbolInfo{SymbolName: "Int32"}, Value: true}
	m := &sem.Method{SymbolInfo: sem.SymbolInfo{SymbolName: "CountAsync"}, Return: taskOf(intType)}
	inv := &syntax.Invocation{Fun: &syntax.Identifier{Name: "CountAsync"}}
	model.Symbols[inv] = m

	require.Equal(t, NotNull, classifyOK(t, c, &syntax.Await{X: inv}))
}

func TestAwaitStripsConfigureAwait(t *testing.T) {
	t.Parallel()

	configureAwait := &sem.Method{SymbolInfo: sem.SymbolInfo{SymbolName: "ConfigureAwait"}}
	comp := sem.NewCompilation(&sem.NamedType{
		SymbolInfo: sem.SymbolInfo{SymbolName: "Task"},
		Metadata:   config.GenericTaskMetadataName,
		Members:    map[string][]sem.Symbol{"ConfigureAwait": {configureAwait}},
	})
	model := sem.NewMapModel(comp)
	c := newClassifier(model)

	receiver := &syntax.StringLiteral{Value: "ready"}
	inv := &syntax.Invocation{
		Fun: &syntax.MemberAccess{X: receiver, Sel: &syntax.Identifier{Name: "ConfigureAwait"}},
	}
	model.Symbols[inv] = configureAwait

	require.Equal(t, NotNull, classifyOK(t, c, &syntax.Await{X: inv}))
}

func TestAddExpression(t *testing.T) {
	t.Parallel()

	comp := sem.NewCompilation(&sem.NamedType{
		SymbolInfo: sem.SymbolInfo{SymbolName: "String"},
		Metadata:   config.StringMetadataName,
	})

	t.Run("string typed", func(t *testing.T) {
		t.Parallel()
		model := sem.NewMapModel(comp)
		c := newClassifier(model)
		e := &syntax.Binary{Op: syntax.OpAdd, X: &syntax.Identifier{Name: "a"}, Y: &syntax.Identifier{Name: "b"}}
		model.Types[e] = comp.TypeByMetadataName(config.StringMetadataName)
		require.Equal(t, NotNull, classifyOK(t, c, e))
	})

	t.Run("value typed", func(t *testing.T) {
		t.Parallel()
		model := sem.NewMapModel(comp)
		c := newClassifier(model)
		e := &syntax.Binary{Op: syntax.OpAdd, X: &syntax.Identifier{Name: "a"}, Y: &syntax.Identifier{Name: "b"}}
		model.Types[e] = &sem.NamedType{SymbolInfo: sem.SymbolInfo{SymbolName: "Int32"}, Value: true}
		require.Equal(t, NotNull, classifyOK(t, c, e))
	})

	t.Run("untyped", func(t *testing.T) {
		t.Parallel()
		model := sem.NewMapModel(comp)
		c := newClassifier(model)
		e := &syntax.Binary{Op: syntax.OpAdd, X: &syntax.Identifier{Name: "a"}, Y: &syntax.Identifier{Name: "b"}}
		require.Equal(t, MaybeNull, classifyOK(t, c, e))
	})
}
