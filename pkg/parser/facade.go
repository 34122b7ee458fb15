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

// Package parser is the Parser Facade (C2): parse(file_path, source_bytes)
// -> (entities, edges) | ParseError. It adapts pkg/parser/treesitter's
// grammar-specific AST extraction into the language-agnostic shape the
// rest of the system operates on, and performs test-entity detection
// (§4.2) before anything reaches identity assignment.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/parser/treesitter"
)

// Entity is one freshly parsed structural element, not yet assigned an
// ISGL1 v2 key (§4.2: key assignment happens later, in pkg/ingestion).
type Entity struct {
	Candidate   identity.Candidate
	LocalID     string // treesitter's intra-parse reference, for edge linking only
	BodySnippet string
	ContentHash string
	Signature   string
	IsTest      bool
}

// EdgeRef is one freshly parsed dependency edge. FromLocalID and ToLocalID
// are treesitter's intra-parse references; a non-empty ToReference means
// the callee could not be resolved within this file and must be settled
// against the workspace-wide name index or turned into an
// external-dependency placeholder (§3.4, §4.4 step 3).
type EdgeRef struct {
	FromLocalID string
	ToLocalID   string
	ToReference string
	EdgeType    string
	SourceLine  int
}

// Result is one file's complete parse.
type Result struct {
	Entities      []Entity
	TestEntities  []Entity
	Edges         []EdgeRef
	Imports       []treesitter.ImportEntity
	PackageName   string
	IgnoredReason string
}

// Facade owns one TreeSitterParser and is safe for concurrent use — the
// underlying parser keeps one sync.Pool of parser instances per language
// (§5 "thread-local parser caches"), so concurrent Parse calls from
// different ingestion workers do not contend on a single mutex-guarded
// parser instance.
type Facade struct {
	ts *treesitter.TreeSitterParser
}

// New creates a parser facade. Workers created by the ingestion pipeline's
// worker pool share one Facade; the pool inside TreeSitterParser is what
// actually avoids contention, not a facade-per-worker.
func New(logger *slog.Logger) *Facade {
	return &Facade{ts: treesitter.NewTreeSitterParser(logger)}
}

// supportedExtensions maps a file extension to its grammar tag. A file
// whose extension is absent is reported as IgnoredReason, not an error —
// §4.4 step 1 routes these into IgnoredFiles, not ParseError.
var supportedExtensions = map[string]string{
	".go":  "go",
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
}

// LanguageForPath returns the grammar tag for a file path, or "" if the
// extension is not one this parser supports.
func LanguageForPath(path string) string {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Parse implements the C2 contract. A file whose extension is unsupported
// returns a Result with IgnoredReason set and no error: it never fails the
// caller's per-file error handling (§4.4 error policy).
func (f *Facade) Parse(fullPath, relPath string) (*Result, error) {
	language := LanguageForPath(relPath)
	if language == "" {
		return &Result{IgnoredReason: "unsupported file extension"}, nil
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", relPath, err)
	}

	raw, err := f.ts.ParseFile(treesitter.SourceFile{
		FullPath: fullPath,
		Path:     relPath,
		Language: language,
		Size:     info.Size(),
	})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}

	return convert(language, relPath, raw), nil
}

// convert reshapes treesitter's per-language ParseResult into the
// generic Entity/EdgeRef shape and partitions test entities out of the
// primary set (§4.2 test-entity detection).
func convert(language, relPath string, raw *treesitter.ParseResult) *Result {
	result := &Result{Imports: raw.Imports, PackageName: raw.PackageName}

	// A file-level entity (§3.1's closed tag set includes "file") carries
	// raw.File.ID as its LocalID so imports edges — whose FromLocalID is
	// GenerateFileID(path) (treesitter/parser_treesitter.go) — resolve a
	// from_key instead of being silently dropped by the lookup miss.
	result.Entities = append(result.Entities, Entity{
		Candidate: identity.Candidate{
			Language:   language,
			EntityType: "file",
			Name:       filepath.Base(relPath),
			FilePath:   relPath,
			StartLine:  1,
			EndLine:    1,
		},
		LocalID:     raw.File.ID,
		ContentHash: raw.File.Hash,
	})

	for _, fn := range raw.Functions {
		entityType := "function"
		if fn.IsMethod || strings.Contains(fn.Name, ".") {
			entityType = "method"
		}
		isTest := fn.IsTest || IsTestEntity(language, relPath, fn.Name)
		e := Entity{
			Candidate: identity.Candidate{
				Language:   language,
				EntityType: entityType,
				Name:       fn.Name,
				FilePath:   relPath,
				StartLine:  fn.StartLine,
				EndLine:    fn.EndLine,
			},
			LocalID:     fn.ID,
			BodySnippet: fn.CodeText,
			ContentHash: identity.ContentHash(fn.CodeText),
			Signature:   fn.Signature,
			IsTest:      isTest,
		}
		if isTest {
			result.TestEntities = append(result.TestEntities, e)
		} else {
			result.Entities = append(result.Entities, e)
		}
	}

	for _, ty := range raw.Types {
		result.Entities = append(result.Entities, Entity{
			Candidate: identity.Candidate{
				Language:   language,
				EntityType: normalizeTypeKind(ty.Kind),
				Name:       ty.Name,
				FilePath:   relPath,
				StartLine:  ty.StartLine,
				EndLine:    ty.EndLine,
			},
			LocalID:     ty.ID,
			BodySnippet: ty.CodeText,
			ContentHash: identity.ContentHash(ty.CodeText),
		})
	}

	for _, c := range raw.Calls {
		result.Edges = append(result.Edges, EdgeRef{
			FromLocalID: c.CallerID,
			ToLocalID:   c.CalleeID,
			EdgeType:    "calls",
			SourceLine:  c.CallLine,
		})
	}
	for _, uc := range raw.UnresolvedCalls {
		result.Edges = append(result.Edges, EdgeRef{
			FromLocalID: uc.CallerID,
			ToReference: uc.CalleeName,
			EdgeType:    "calls",
			SourceLine:  uc.Line,
		})
	}
	for _, imp := range raw.Imports {
		result.Edges = append(result.Edges, EdgeRef{
			FromLocalID: treesitter.GenerateFileID(imp.FilePath),
			ToReference: imp.ImportPath,
			EdgeType:    "imports",
			SourceLine:  imp.StartLine,
		})
	}

	return result
}

func normalizeTypeKind(kind string) string {
	switch strings.ToLower(kind) {
	case "struct":
		return "struct"
	case "interface":
		return "interface"
	case "class":
		return "class"
	case "enum":
		return "enum"
	case "trait":
		return "trait"
	case "impl":
		return "impl"
	default:
		return "class"
	}
}

var testFileMarkers = []string{"_test.go", ".test.js", ".test.ts", ".spec.js", ".spec.ts"}

// IsTestEntity implements §4.2's test-entity detection: naming conventions
// per language (file suffix, directory, or identifier prefix) that mark a
// function as test code rather than production code.
func IsTestEntity(language, filePath, name string) bool {
	lowerPath := strings.ToLower(filePath)
	for _, marker := range testFileMarkers {
		if strings.HasSuffix(lowerPath, marker) {
			return true
		}
	}
	if strings.Contains(lowerPath, "/tests/") || strings.HasPrefix(lowerPath, "tests/") {
		return true
	}

	switch language {
	case "go":
		return strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") || strings.HasPrefix(name, "Fuzz") || strings.HasPrefix(name, "Example")
	case "python":
		base := filepath.Base(lowerPath)
		return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") || strings.HasPrefix(name, "test_")
	case "javascript", "typescript":
		return strings.HasPrefix(name, "test") || strings.Contains(lowerPath, "__tests__")
	default:
		return false
	}
}

// localIDLookup is a small helper the ingestion pipeline shares across
// every file of one run to resolve FromLocalID/ToLocalID back to the identity.Key it minted for
// that local entity. Kept here (not in pkg/ingestion) so the lookup logic
// travels with the shape it indexes.
type localIDLookup struct {
	mu sync.RWMutex
	m  map[string]identity.Key
}

func newLocalIDLookup() *localIDLookup {
	return &localIDLookup{m: make(map[string]identity.Key)}
}

func (l *localIDLookup) set(localID string, key identity.Key) {
	l.mu.Lock()
	l.m[localID] = key
	l.mu.Unlock()
}

func (l *localIDLookup) get(localID string) (identity.Key, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	k, ok := l.m[localID]
	return k, ok
}

// NewLocalIDLookup exposes localIDLookup's constructor for pkg/ingestion.
func NewLocalIDLookup() *LocalIDLookup { return &LocalIDLookup{inner: newLocalIDLookup()} }

// LocalIDLookup is the exported wrapper around localIDLookup.
type LocalIDLookup struct{ inner *localIDLookup }

// Set records the key minted for a treesitter local reference.
func (l *LocalIDLookup) Set(localID string, key identity.Key) { l.inner.set(localID, key) }

// Get resolves a treesitter local reference to its minted key.
func (l *LocalIDLookup) Get(localID string) (identity.Key, bool) { return l.inner.get(localID) }
