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

// Package sem defines the semantic-model contract between the host and the
// analyzer: resolved symbols, named types, the compilation, and the Model
// interface mapping syntax nodes to all of the above. Symbol identity is
// pointer identity; hosts must hand back the same *Method (etc.) for every
// occurrence of a symbol within one compilation.
package sem

import "go.uber.org/nullguard/syntax"

// Attribute is a declarative marker on a symbol. Only the bare type name is
// recorded; contract attributes are matched by name alone.
type Attribute struct {
	TypeName string
}

// Symbol is implemented by all resolved symbols.
type Symbol interface {
	Name() string
	Attributes() []Attribute
	symbol()
}

// SymbolInfo carries the name and attributes shared by every symbol kind.
// It is embedded exported so hosts can build symbols with composite
// literals.
type SymbolInfo struct {
	SymbolName string
	Attrs      []Attribute
}

// Name returns the symbol's declared name.
func (s *SymbolInfo) Name() string { return s.SymbolName }

// Attributes returns the attributes decorating the symbol's declaration.
func (s *SymbolInfo) Attributes() []Attribute { return s.Attrs }

func (s *SymbolInfo) symbol() {}

// MethodKind distinguishes ordinary methods from property accessors.
type MethodKind uint8

// Method kinds.
const (
	MethodOrdinary MethodKind = iota
	MethodPropertyGet
	MethodPropertySet
	MethodConstructor
)

// Method is a method, accessor or constructor symbol.
type Method struct {
	SymbolInfo
	MKind     MethodKind
	Params    []*Parameter
	Return    *NamedType
	Container *NamedType

	// Assoc links an accessor back to its property.
	Assoc *Property

	// ReducedFrom is set on the reduced form of an extension-method
	// invocation; it points at the original static definition.
	ReducedFrom *Method

	// Orig is the original (ungenericized) definition for instantiated
	// generics; nil means the method is its own original.
	Orig *Method
}

// Original returns the method's original definition, normalizing extension
// reduction first so that reduced forms compare equal to their static
// definitions.
func (m *Method) Original() *Method {
	if m == nil {
		return nil
	}
	if m.ReducedFrom != nil {
		m = m.ReducedFrom
	}
	if m.Orig != nil {
		return m.Orig
	}
	return m
}

// Property is a property symbol with optional accessor links.
type Property struct {
	SymbolInfo
	Type      *NamedType
	Getter    *Method
	Setter    *Method
	Container *NamedType
	Orig      *Property
}

// Original returns the property's original definition.
func (p *Property) Original() *Property {
	if p == nil {
		return nil
	}
	if p.Orig != nil {
		return p.Orig
	}
	return p
}

// Field is a field symbol.
type Field struct {
	SymbolInfo
	Type      *NamedType
	Container *NamedType
}

// Local is a local-variable symbol. ForEach is the typed accessor for
// "introduced by a foreach binding"; hosts whose trees do not expose it
// leave it false and the analyzer stays conservative.
type Local struct {
	SymbolInfo
	Type    *NamedType
	ForEach bool
}

// Parameter is a parameter of a method, delegate or lambda.
type Parameter struct {
	SymbolInfo
	Type  *NamedType
	Index int
	Ref   syntax.RefKind

	// IsParams marks the variadic tail parameter.
	IsParams bool

	// IsValueParameter marks the implicit value parameter of a setter.
	IsValueParameter bool

	// Owner is the declaring Method or Lambda symbol.
	Owner Symbol
}

// Lambda is the symbol of an anonymous function.
type Lambda struct {
	SymbolInfo
	Params []*Parameter

	// Syntax is the lambda's node, used to locate the enclosing invocation
	// when classifying lambda parameters.
	Syntax *syntax.Lambda
}

// NamedType is a named (possibly generic-instantiated) type. Value reports
// whether it is a value type; Members holds the declared members by name.
type NamedType struct {
	SymbolInfo
	Metadata string
	Value    bool
	TypeArgs []*NamedType
	Members  map[string][]Symbol
	Orig     *NamedType
}

// Original returns the type's original (uninstantiated) definition.
func (t *NamedType) Original() *NamedType {
	if t == nil {
		return nil
	}
	if t.Orig != nil {
		return t.Orig
	}
	return t
}

// IsValueType reports whether values of the type can never be null.
func (t *NamedType) IsValueType() bool { return t != nil && t.Value }

// MembersNamed returns the declared members with the given name.
func (t *NamedType) MembersNamed(name string) []Symbol {
	if t == nil || t.Members == nil {
		return nil
	}
	return t.Members[name]
}

// MethodNamed returns the first method member with the given name, or nil.
func (t *NamedType) MethodNamed(name string) *Method {
	for _, s := range t.MembersNamed(name) {
		if m, ok := s.(*Method); ok {
			return m
		}
	}
	return nil
}

// PropertyNamed returns the first property member with the given name, or
// nil.
func (t *NamedType) PropertyNamed(name string) *Property {
	for _, s := range t.MembersNamed(name) {
		if p, ok := s.(*Property); ok {
			return p
		}
	}
	return nil
}

// Compilation is the set of resolvable types of one host compilation.
type Compilation struct {
	byMetadata map[string]*NamedType
}

// NewCompilation indexes the given types by metadata name.
func NewCompilation(types ...*NamedType) *Compilation {
	c := &Compilation{byMetadata: make(map[string]*NamedType, len(types))}
	for _, t := range types {
		if t != nil && t.Metadata != "" {
			c.byMetadata[t.Metadata] = t
		}
	}
	return c
}

// AddType registers an additional type.
func (c *Compilation) AddType(t *NamedType) {
	if t != nil && t.Metadata != "" {
		c.byMetadata[t.Metadata] = t
	}
}

// TypeByMetadataName returns the type with the given fully qualified
// metadata name, or nil when the compilation does not contain it.
func (c *Compilation) TypeByMetadataName(name string) *NamedType {
	if c == nil {
		return nil
	}
	return c.byMetadata[name]
}

// Model is the semantic model the host supplies alongside the syntax tree.
// All methods return nil for nodes they cannot resolve; panics escaping a
// model implementation are converted to parse-failure diagnostics by the
// diagnostic engine.
type Model interface {
	// SymbolOf resolves the symbol an expression refers to.
	SymbolOf(n syntax.Node) Symbol

	// TypeOf resolves the converted type of an expression.
	TypeOf(n syntax.Node) *NamedType

	// DeclaredSymbolOf resolves the symbol a declaration introduces.
	DeclaredSymbolOf(n syntax.Node) Symbol

	// Compilation returns the enclosing compilation.
	Compilation() *Compilation
}

// MapModel is a map-backed Model. Tests build it directly and hosts with
// table-driven resolvers can embed it.
type MapModel struct {
	Symbols map[syntax.Node]Symbol
	Types   map[syntax.Node]*NamedType
	Decls   map[syntax.Node]Symbol
	Comp    *Compilation
}

// NewMapModel returns an empty MapModel over the given compilation.
func NewMapModel(comp *Compilation) *MapModel {
	return &MapModel{
		Symbols: make(map[syntax.Node]Symbol),
		Types:   make(map[syntax.Node]*NamedType),
		Decls:   make(map[syntax.Node]Symbol),
		Comp:    comp,
	}
}

// SymbolOf implements Model.
func (m *MapModel) SymbolOf(n syntax.Node) Symbol { return m.Symbols[n] }

// TypeOf implements Model.
func (m *MapModel) TypeOf(n syntax.Node) *NamedType { return m.Types[n] }

// DeclaredSymbolOf implements Model.
func (m *MapModel) DeclaredSymbolOf(n syntax.Node) Symbol { return m.Decls[n] }

// Compilation implements Model.
func (m *MapModel) Compilation() *Compilation { return m.Comp }
