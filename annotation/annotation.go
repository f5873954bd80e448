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

// Package annotation reads the null-contract markers off declared symbols.
// Markers are matched by bare attribute type name (with or without the
// "Attribute" suffix); NotNull and CheckNull are accepted interchangeably at
// every contract sink (union semantics).
package annotation

import (
	"strings"

	"go.uber.org/nullguard/config"
	"go.uber.org/nullguard/sem"
)

// Kind is a bitset of contract markers.
type Kind uint8

// Contract markers.
const (
	NotNull Kind = 1 << iota
	CheckNull
	IsNullCheck
)

// Contract is the union queried at every sink that accepts either marker.
const Contract = NotNull | CheckNull

var _byName = map[string]Kind{
	config.NotNullAttributeName:     NotNull,
	config.CheckNullAttributeName:   CheckNull,
	config.IsNullCheckAttributeName: IsNullCheck,
}

// KindOf maps an attribute type name to its marker, or 0.
func KindOf(typeName string) Kind {
	return _byName[strings.TrimSuffix(typeName, config.AttributeSuffix)]
}

// Has reports whether sym bears any of the wanted markers. Property
// accessors also expose the markers of their associated property, so a
// NotNull property answers NotNull for its getter and setter; no other
// transitive inheritance is performed.
func Has(sym sem.Symbol, want Kind) bool {
	if sym == nil {
		return false
	}
	if declared(sym)&want != 0 {
		return true
	}
	if m, ok := sym.(*sem.Method); ok && m.Assoc != nil {
		return declared(m.Assoc)&want != 0
	}
	return false
}

func declared(sym sem.Symbol) Kind {
	var k Kind
	for _, a := range sym.Attributes() {
		k |= KindOf(a.TypeName)
	}
	return k
}
