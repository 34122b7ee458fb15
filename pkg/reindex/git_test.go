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

package reindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitDiffOutput(t *testing.T) {
	output := []byte("M\tpkg/foo.go\nA\tpkg/bar.go\nD\tpkg/old.go\nR100\tpkg/baz.go\tpkg/baz2.go\n")

	delta, err := parseGitDiffOutput(output)
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg/bar.go", "pkg/baz2.go", "pkg/foo.go"}, delta.Changed)
	assert.Equal(t, []string{"pkg/old.go"}, delta.Deleted)
}

func TestParseGitDiffOutputEmpty(t *testing.T) {
	delta, err := parseGitDiffOutput([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, delta.Changed)
	assert.Empty(t, delta.Deleted)
}

func TestFileHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0644))

	h1, err := fileHash(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, err := fileHash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc F() {}\n"), 0644))
	h3, err := fileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestExternalPackage(t *testing.T) {
	assert.Equal(t, "fmt", externalPackage("fmt.Println"))
	assert.Equal(t, "strings", externalPackage("strings.Builder.WriteString"))
	assert.Equal(t, "standalone", externalPackage("standalone"))
}
