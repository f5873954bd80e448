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

// Package knownsym resolves and caches the well-known framework members the
// analyzer trusts: members that never return null, the dictionary view
// properties, the enumerable combinators (which never pass null elements to
// their lambdas), and the string null-check predicates recognized as guards.
// Resolution is defensive: a member missing from the target framework
// profile is simply not registered and every query about it answers false.
package knownsym

import (
	"go.uber.org/nullguard/config"
	"go.uber.org/nullguard/sem"
)

// Table is the resolved knowledge base of one compilation. Construct it
// once per compilation (the per-model cache guards this) and share it
// freely; it is immutable after New returns.
type Table struct {
	notNullMethods    map[*sem.Method]struct{}
	notNullProperties map[*sem.Property]struct{}
	enumerable        map[*sem.Method]struct{}
	nullPredicates    map[*sem.Method]struct{}
	configureAwait    *sem.Method
	stringType        *sem.NamedType
}

// New resolves the framework members out of comp. A nil compilation yields
// an empty table whose queries all answer false.
func New(comp *sem.Compilation) *Table {
	t := &Table{
		notNullMethods:    make(map[*sem.Method]struct{}),
		notNullProperties: make(map[*sem.Property]struct{}),
		enumerable:        make(map[*sem.Method]struct{}),
		nullPredicates:    make(map[*sem.Method]struct{}),
	}
	if comp == nil {
		return t
	}

	str := comp.TypeByMetadataName(config.StringMetadataName)
	t.stringType = str
	t.addMethod(str, "IsNullOrEmpty")
	t.addMethod(str, "IsNullOrWhiteSpace")
	t.addMethod(str, "Substring")
	t.addPredicate(str, "IsNullOrEmpty")
	t.addPredicate(str, "IsNullOrWhiteSpace")

	uri := comp.TypeByMetadataName(config.URIMetadataName)
	t.addMethod(uri, "TryCreate")
	t.addMethod(uri, "ToString")

	dict := comp.TypeByMetadataName(config.DictionaryMetadataName)
	t.addProperty(dict, "Keys")
	t.addProperty(dict, "Values")

	enum := comp.TypeByMetadataName(config.EnumerableMetadataName)
	for _, name := range []string{"ToList", "ToArray", "Where", "Select"} {
		t.addMethod(enum, name)
		t.addCombinator(enum, name)
	}

	t.addMethod(comp.TypeByMetadataName(config.GuidMetadataName), "ToString")
	t.addMethod(comp.TypeByMetadataName(config.PathMetadataName), "GetTempPath")
	t.addMethod(comp.TypeByMetadataName(config.MarshalMetadataName), "PtrToStringAnsi")
	t.addMethod(comp.TypeByMetadataName(config.TaskMetadataName), "FromResult")

	if task := comp.TypeByMetadataName(config.GenericTaskMetadataName); task != nil {
		if m := task.MethodNamed("ConfigureAwait"); m != nil {
			t.configureAwait = m.Original()
			t.notNullMethods[t.configureAwait] = struct{}{}
		}
	}

	return t
}

func (t *Table) addMethod(typ *sem.NamedType, name string) {
	if m := typ.MethodNamed(name); m != nil {
		t.notNullMethods[m.Original()] = struct{}{}
	}
}

func (t *Table) addProperty(typ *sem.NamedType, name string) {
	if p := typ.PropertyNamed(name); p != nil {
		t.notNullProperties[p.Original()] = struct{}{}
	}
}

func (t *Table) addCombinator(typ *sem.NamedType, name string) {
	if m := typ.MethodNamed(name); m != nil {
		t.enumerable[m.Original()] = struct{}{}
	}
}

func (t *Table) addPredicate(typ *sem.NamedType, name string) {
	if m := typ.MethodNamed(name); m != nil {
		t.nullPredicates[m.Original()] = struct{}{}
	}
}

// IsKnownNonNullMethod reports whether m's original definition is in the
// trusted non-null method set. Extension reduction is normalized away so
// the reduced form of a combinator matches its static definition.
func (t *Table) IsKnownNonNullMethod(m *sem.Method) bool {
	if m == nil {
		return false
	}
	_, ok := t.notNullMethods[m.Original()]
	return ok
}

// IsKnownNonNullProperty reports whether p's original definition is one of
// the dictionary Keys/Values view properties.
func (t *Table) IsKnownNonNullProperty(p *sem.Property) bool {
	if p == nil {
		return false
	}
	_, ok := t.notNullProperties[p.Original()]
	return ok
}

// IsEnumerableCombinator reports whether m is one of the enumerable
// combinators whose lambdas never observe null elements.
func (t *Table) IsEnumerableCombinator(m *sem.Method) bool {
	if m == nil {
		return false
	}
	_, ok := t.enumerable[m.Original()]
	return ok
}

// IsNullPredicate reports whether m is one of the string null-check
// predicates (IsNullOrEmpty, IsNullOrWhiteSpace) whose negation guards its
// argument.
func (t *Table) IsNullPredicate(m *sem.Method) bool {
	if m == nil {
		return false
	}
	_, ok := t.nullPredicates[m.Original()]
	return ok
}

// IsConfigureAwait reports whether m is Task<T>.ConfigureAwait, which awaits
// strip before classification.
func (t *Table) IsConfigureAwait(m *sem.Method) bool {
	return m != nil && t.configureAwait != nil && m.Original() == t.configureAwait
}

// StringType returns the resolved string type, or nil.
func (t *Table) StringType() *sem.NamedType { return t.stringType }
