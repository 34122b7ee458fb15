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

// Package treesitter holds the grammar-specific AST extraction for each
// supported language. It is intentionally the "opaque parser component":
// callers outside this package never inspect tree-sitter nodes directly,
// only the language-agnostic entities and edges each ParseFile call
// returns. pkg/parser's facade converts that output into the shape C1/C3
// operate on.
package treesitter

// SourceFile describes one file on disk to be parsed.
type SourceFile struct {
	FullPath string // absolute or process-relative path to read bytes from
	Path     string // canonical workspace-relative path recorded on entities
	Language string // lowercase grammar tag: go, python, javascript, typescript
	Size     int64
}

// FileEntity is the file-level record produced alongside a file's parse.
type FileEntity struct {
	ID       string
	Path     string
	Hash     string
	Language string
	Size     int64
}

// FunctionEntity is a function or method extracted from source.
type FunctionEntity struct {
	ID        string
	Name      string
	Signature string
	FilePath  string
	CodeText  string
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
	IsMethod  bool
	IsTest    bool
}

// TypeEntity is a class/struct/interface/enum/trait definition.
type TypeEntity struct {
	ID        string
	Name      string
	Kind      string // struct, interface, class, enum, trait, type_alias
	FilePath  string
	CodeText  string
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
}

// FieldEntity is a struct/class field. The Go parser collects these for
// struct types, but ParseFile does not copy them into ParseResult.Fields,
// and pkg/ingestion does not read them.
type FieldEntity struct {
	StructName string
	FieldName  string
	FieldType  string
	FilePath   string
	Line       int
}

// DefinesEdge links a file to a function it defines.
type DefinesEdge struct {
	FileID     string
	FunctionID string
}

// DefinesTypeEdge links a file to a type it defines.
type DefinesTypeEdge struct {
	FileID string
	TypeID string
}

// CallsEdge is a same-file function-to-function call.
type CallsEdge struct {
	CallerID string
	CalleeID string
	CallLine int
}

// ImportEntity is an import/use statement.
type ImportEntity struct {
	ID         string
	FilePath   string
	ImportPath string
	Alias      string
	StartLine  int
}

// UnresolvedCall is a call the parser could not resolve to a same-file
// callee; pkg/ingestion's resolver settles these against the workspace-wide
// name index or an external-dependency placeholder.
type UnresolvedCall struct {
	CallerID   string
	CalleeName string
	FilePath   string
	Line       int
}

// ParseResult is one file's complete extraction.
type ParseResult struct {
	File            FileEntity
	Functions       []FunctionEntity
	Types           []TypeEntity
	Fields          []FieldEntity
	Defines         []DefinesEdge
	DefinesTypes    []DefinesTypeEdge
	Calls           []CallsEdge
	Imports         []ImportEntity
	UnresolvedCalls []UnresolvedCall
	PackageName     string
}
