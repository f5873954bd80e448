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
	"fmt"

	"go.uber.org/nullguard/syntax"
)

// ParseError reports an expression shape the analyzer does not understand.
// It is never swallowed: callers convert it into a ParseFailure diagnostic
// carrying the node's kind and location, so analyzer gaps stay visible.
type ParseError struct {
	Node syntax.Node
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unsupported expression shape %s at %s", e.Node.Kind(), e.Node.Span())
}

// Underlying peels syntactic wrappers off e until it reaches the expression
// whose symbol a null guard actually targets: parens, casts, awaits,
// assignments, prefix unaries, `as` binaries, coalesce right sides, member
// and conditional accesses. A ternary is returned as-is; callers split its
// branches. Unknown shapes return a *ParseError.
func Underlying(e syntax.Expr) (syntax.Expr, error) {
	switch e := e.(type) {
	case *syntax.MemberAccess:
		return Underlying(e.Sel)
	case *syntax.ConditionalAccess:
		return Underlying(e.WhenNotNull)
	case *syntax.MemberBinding:
		return Underlying(e.Sel)
	case *syntax.Paren:
		return Underlying(e.X)
	case *syntax.Assignment:
		return Underlying(e.Right)
	case *syntax.Await:
		return Underlying(e.X)
	case *syntax.Cast:
		return Underlying(e.X)
	case *syntax.PrefixUnary:
		return Underlying(e.X)
	case *syntax.Binary:
		switch e.Op {
		case syntax.OpAs:
			return Underlying(e.X)
		case syntax.OpCoalesce:
			return Underlying(e.Y)
		}
		return nil, &ParseError{Node: e}
	case *syntax.Ternary:
		// Branches classify independently; hand the node back whole.
		return e, nil
	case *syntax.Identifier,
		*syntax.NullLiteral,
		*syntax.StringLiteral,
		*syntax.InterpolatedString,
		*syntax.Invocation,
		*syntax.This,
		*syntax.ElementAccess,
		*syntax.ElementBinding,
		*syntax.ObjectCreation,
		*syntax.ArrayCreation,
		*syntax.ImplicitArrayCreation,
		*syntax.Throw,
		*syntax.Tuple:
		return e, nil
	}
	return nil, &ParseError{Node: e}
}
