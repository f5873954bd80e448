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

// Package diagnostic hosts the diagnostic engine: it walks a code block,
// consults the classifier and the method-local flow analyzer, and emits the
// fixed catalog of null-contract diagnostics.
package diagnostic

import "go.uber.org/nullguard/syntax"

// Kind enumerates the diagnostic catalog.
type Kind uint8

// The catalog.
const (
	// NullAssignment: a possibly-null value flows into a NotNull/CheckNull
	// sink.
	NullAssignment Kind = iota

	// AssignmentAfterCondition: a target proved non-null by a guard is
	// later reassigned on some path.
	AssignmentAfterCondition

	// AssignmentAfterConstraint: an assignment to a target occurring after
	// a Constraint.NotNull(target) call whose right side is not provably
	// non-null.
	AssignmentAfterConstraint

	// UnneededNullCheck: a null check, coalesce or conditional access
	// applied to a provably non-null symbol.
	UnneededNullCheck

	// UnneededConstraint: a Constraint.NotNull call on a symbol already
	// annotated NotNull/CheckNull.
	UnneededConstraint

	// InvalidConstraint: a Constraint.NotNull call whose argument is not a
	// direct member or a lambda returning one.
	InvalidConstraint

	// PropagateNotNullInCtors: a constructor chain call passes a possibly
	// null value to a NotNull parameter.
	PropagateNotNullInCtors

	// NotNullAsRefParameter: a NotNull/CheckNull symbol is passed by
	// reference.
	NotNullAsRefParameter

	// ParseFailure: the analyzer met an expression shape it could not
	// classify, or the semantic model failed.
	ParseFailure
)

var _kindNames = map[Kind]string{
	NullAssignment:            "NullAssignment",
	AssignmentAfterCondition:  "AssignmentAfterCondition",
	AssignmentAfterConstraint: "AssignmentAfterConstraint",
	UnneededNullCheck:         "UnneededNullCheck",
	UnneededConstraint:        "UnneededConstraint",
	InvalidConstraint:         "InvalidConstraint",
	PropagateNotNullInCtors:   "PropagateNotNullInCtors",
	NotNullAsRefParameter:     "NotNullAsRefParameter",
	ParseFailure:              "ParseFailure",
}

func (k Kind) String() string {
	if name, ok := _kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Diagnostic is one reported finding, located at the most specific node.
type Diagnostic struct {
	Kind    Kind
	Span    syntax.Span
	Message string
}
