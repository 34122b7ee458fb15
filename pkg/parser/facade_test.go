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

package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestSource writes source to a temp file and returns the path pair
// (fullPath, relPath) the facade's Parse expects.
func writeTestSource(t *testing.T, name, source string) (string, string) {
	t.Helper()
	full := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(full, []byte(source), 0o644))
	return full, name
}

func TestParseExtractsFunctionsAndMethods(t *testing.T) {
	source := `package sample

func Add(a, b int) int {
	return a + b
}

type Server struct{}

func (s *Server) Handle() error {
	return nil
}
`
	full, rel := writeTestSource(t, "sample.go", source)
	f := New(nil)

	result, err := f.Parse(full, rel)
	require.NoError(t, err)
	require.Empty(t, result.IgnoredReason)
	require.Len(t, result.Entities, 4) // file, Add, Server, Server.Handle

	var sawFunction, sawMethod, sawStruct, sawFile bool
	for _, e := range result.Entities {
		switch {
		case e.Candidate.EntityType == "file":
			sawFile = true
			assert.NotEmpty(t, e.LocalID)
		case e.Candidate.Name == "Add":
			sawFunction = true
			assert.Equal(t, "function", e.Candidate.EntityType)
		case e.Candidate.Name == "Server.Handle":
			sawMethod = true
			assert.Equal(t, "method", e.Candidate.EntityType)
		case e.Candidate.Name == "Server":
			sawStruct = true
			assert.Equal(t, "struct", e.Candidate.EntityType)
		}
	}
	assert.True(t, sawFile, "expected a file-level entity to anchor import edges")
	assert.True(t, sawFunction, "expected Add to be extracted as a function")
	assert.True(t, sawMethod, "expected Server.Handle to be extracted as a method")
	assert.True(t, sawStruct, "expected Server to be extracted as a struct")
}

func TestParseRoutesTestFunctionsToTestEntities(t *testing.T) {
	source := `package sample

func TestSomething(t *testing.T) {
}
`
	full, rel := writeTestSource(t, "sample_test.go", source)
	f := New(nil)

	result, err := f.Parse(full, rel)
	require.NoError(t, err)
	require.Len(t, result.TestEntities, 1)
	require.Len(t, result.Entities, 1) // only the file entity; TestSomething routed out
	assert.Equal(t, "file", result.Entities[0].Candidate.EntityType)
	assert.True(t, result.TestEntities[0].IsTest)
	assert.Equal(t, "TestSomething", result.TestEntities[0].Candidate.Name)
}

func TestParseImportEdgeResolvesAgainstFileEntity(t *testing.T) {
	source := `package sample

import "fmt"

func Greet() {
	fmt.Println("hi")
}
`
	full, rel := writeTestSource(t, "sample.go", source)
	f := New(nil)

	result, err := f.Parse(full, rel)
	require.NoError(t, err)

	var fileLocalID string
	for _, e := range result.Entities {
		if e.Candidate.EntityType == "file" {
			fileLocalID = e.LocalID
		}
	}
	require.NotEmpty(t, fileLocalID, "expected a file entity carrying a LocalID")

	var sawImportEdge bool
	for _, edge := range result.Edges {
		if edge.EdgeType == "imports" {
			sawImportEdge = true
			assert.Equal(t, fileLocalID, edge.FromLocalID, "import edge must reference the file entity's LocalID")
		}
	}
	assert.True(t, sawImportEdge, "expected an imports edge for the fmt import")
}

func TestParseUnsupportedExtensionIsIgnoredNotErrored(t *testing.T) {
	full, rel := writeTestSource(t, "README.md", "# hello")
	f := New(nil)

	result, err := f.Parse(full, rel)
	require.NoError(t, err)
	assert.NotEmpty(t, result.IgnoredReason)
	assert.Empty(t, result.Entities)
}

func TestParseMissingFileReturnsError(t *testing.T) {
	f := New(nil)
	_, err := f.Parse(filepath.Join(t.TempDir(), "missing.go"), "missing.go")
	assert.Error(t, err)
}

func TestIsTestEntityByDirectoryConvention(t *testing.T) {
	assert.True(t, IsTestEntity("python", "pkg/tests/test_helpers.py", "helper"))
	assert.True(t, IsTestEntity("python", "pkg/test_helpers.py", "helper"))
	assert.False(t, IsTestEntity("python", "pkg/helpers.py", "helper"))
}

func TestIsTestEntityByGoNamingConvention(t *testing.T) {
	assert.True(t, IsTestEntity("go", "pkg/math.go", "TestAdd"))
	assert.True(t, IsTestEntity("go", "pkg/math.go", "BenchmarkAdd"))
	assert.False(t, IsTestEntity("go", "pkg/math.go", "Add"))
}

func TestIsTestEntityByJSNamingConvention(t *testing.T) {
	assert.True(t, IsTestEntity("javascript", "src/utils.js", "testSomething"))
	assert.True(t, IsTestEntity("javascript", "src/__tests__/utils.js", "run"))
	assert.False(t, IsTestEntity("javascript", "src/utils.js", "run"))
}

func TestLocalIDLookupRoundTrips(t *testing.T) {
	lookup := NewLocalIDLookup()
	_, ok := lookup.Get("missing")
	assert.False(t, ok)

	lookup.Set("func:abc", "go:function:Foo:__a.go:T1")
	key, ok := lookup.Get("func:abc")
	require.True(t, ok)
	assert.EqualValues(t, "go:function:Foo:__a.go:T1", key)
}

func TestLanguageForPathRecognizesAllSupportedExtensions(t *testing.T) {
	cases := map[string]string{
		"a.go":  "go",
		"a.py":  "python",
		"a.js":  "javascript",
		"a.jsx": "javascript",
		"a.ts":  "typescript",
		"a.tsx": "typescript",
		"a.rb":  "",
	}
	for path, want := range cases {
		assert.Equal(t, want, LanguageForPath(path), path)
	}
}
