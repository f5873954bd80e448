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

// Package config hosts the non-user-configurable parameters of the analyzer:
// the contract attribute names, the constraint call shape, the metadata names
// of the framework types resolved into the symbol knowledge base, and the
// lock timeouts of the expiring cache provider.
package config

import "time"

// Contract attributes are matched purely by type name (with or without the
// conventional "Attribute" suffix), never by namespace or defining assembly,
// so users may declare the attributes in any library they like.
const (
	// NotNullAttributeName marks a symbol that promises non-null values.
	NotNullAttributeName = "NotNull"

	// CheckNullAttributeName marks a symbol whose consumers must treat the
	// value as possibly null while still participating in contract
	// propagation. It is accepted everywhere NotNull is.
	CheckNullAttributeName = "CheckNull"

	// IsNullCheckAttributeName marks a predicate method whose truthy return
	// implies its receiver is non-null.
	IsNullCheckAttributeName = "IsNullCheck"

	// AttributeSuffix is the conventional suffix stripped before matching.
	AttributeSuffix = "Attribute"
)

// Constraint calls are recognized structurally: a static call on a type named
// ConstraintTypeName invoking ConstraintNotNullName.
const (
	ConstraintTypeName    = "Constraint"
	ConstraintNotNullName = "NotNull"
)

// NameOfKeyword is the compiler-service invocation that always yields a
// non-null string.
const NameOfKeyword = "nameof"

// Metadata names of the framework types probed when building the symbol
// knowledge base. A missing type (different target framework profile) simply
// leaves its members unregistered.
const (
	StringMetadataName      = "System.String"
	URIMetadataName         = "System.Uri"
	DictionaryMetadataName  = "System.Collections.Generic.Dictionary`2"
	EnumerableMetadataName  = "System.Linq.Enumerable"
	GuidMetadataName        = "System.Guid"
	PathMetadataName        = "System.IO.Path"
	MarshalMetadataName     = "System.Runtime.InteropServices.Marshal"
	TaskMetadataName        = "System.Threading.Tasks.Task"
	GenericTaskMetadataName = "System.Threading.Tasks.Task`1"
)

// Expiring cache provider lock timeouts. Most operations wait up to
// OperationLockTimeout for the cache mutex; the sliding-expiry touch
// performed on reads gives up earlier since losing a slide is harmless.
const (
	OperationLockTimeout = 1000 * time.Millisecond
	SlideLockTimeout     = 500 * time.Millisecond
)
