// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "github.com/kraklabs/cie-graph/pkg/identity"

// EntityType is the closed tag set for Entity.EntityType. New variants are
// additive; nothing downstream switches exhaustively on this set.
const (
	EntityTypeFunction  = "function"
	EntityTypeMethod    = "method"
	EntityTypeClass     = "class"
	EntityTypeStruct    = "struct"
	EntityTypeEnum      = "enum"
	EntityTypeTrait     = "trait"
	EntityTypeInterface = "interface"
	EntityTypeImpl      = "impl"
	EntityTypeModule    = "module"
	EntityTypeFile      = "file"
	EntityTypeTable     = "table"
	EntityTypeView      = "view"
	EntityTypeExternal  = "external"
)

// EntityClass partitions entities by how they should be treated: normal
// code, detected test code, or external-dependency placeholders.
const (
	EntityClassCode               = "code"
	EntityClassTest               = "test"
	EntityClassExternalDependency = "external_dependency"
)

// EdgeType is the closed tag set for Edge.EdgeType.
const (
	EdgeTypeCalls       = "calls"
	EdgeTypeUses        = "uses"
	EdgeTypeImports     = "imports"
	EdgeTypeExtends     = "extends"
	EdgeTypeImplements  = "implements"
	EdgeTypeReads       = "reads"
	EdgeTypeWrites      = "writes"
	EdgeTypeFieldAccess = "field_access"
	EdgeTypeReturns     = "returns"
)

// Entity is one structural element of source code, keyed by its ISGL1 v2
// identity (§3.1). This is the row shape of the Entities relation.
type Entity struct {
	Key            identity.Key
	EntityType     string
	EntityClass    string
	Language       string
	FilePath       string
	StartLine      int
	EndLine        int
	Name           string
	ContentHash    string // empty for external_dependency entities (I2)
	BirthTimestamp int64
	Signature      string
}

// IsExternal reports whether e is an external-dependency placeholder (I2):
// line_range = (0,0) and no content hash.
func (e Entity) IsExternal() bool {
	return e.EntityClass == EntityClassExternalDependency
}

// Edge is a directed dependency edge between two entity keys (§3.2). The
// composite primary key is (FromKey, ToKey, EdgeType, SourceLine).
type Edge struct {
	FromKey    identity.Key
	ToKey      identity.Key
	EdgeType   string
	SourceLine int
}

// TestEntityExcluded is a detected test entity that was deliberately routed
// away from Entities (§3.5 relation 4), kept only for coverage diagnostics.
type TestEntityExcluded struct {
	Key        identity.Key
	EntityType string
	Language   string
	FilePath   string
	StartLine  int
	EndLine    int
	Name       string
}

// FileWordCoverage is a per-file diagnostic row (§3.5 relation 5): how much
// of a file's identifier vocabulary made it into an entity.
type FileWordCoverage struct {
	FilePath             string
	SourceWords          int
	EntityWords          int
	RawCoveragePct       float64
	EffectiveCoveragePct float64
}

// IgnoredFile records a file the walk (§4.4 step 1) or parser (§4.2)
// declined to index, and why.
type IgnoredFile struct {
	FilePath string
	Reason   string
}
