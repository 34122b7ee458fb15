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

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyRoundTrip(t *testing.T) {
	c := Candidate{
		Language:   "Go",
		EntityType: "function",
		Name:       "Handle<Request>",
		FilePath:   "./internal/server/handler.go",
	}
	k := GenerateKey(c, 1700000000)
	assert.Equal(t, Key("go:function:Handle__lt__Request__gt__:__internal_server_handler.go:T1700000000"), k)

	lang, typ, name, path, birth, ok := Split(k)
	require.True(t, ok)
	assert.Equal(t, "go", lang)
	assert.Equal(t, "function", typ)
	assert.Equal(t, "Handle__lt__Request__gt__", name)
	assert.Equal(t, "__internal_server_handler.go", path)
	assert.Equal(t, int64(1700000000), birth)
	assert.Equal(t, "Handle<Request>", DesanitizeName(name))
}

func TestSplitRejectsMalformedKeys(t *testing.T) {
	_, _, _, _, _, ok := Split("not-a-key")
	assert.False(t, ok)

	_, _, _, _, _, ok = Split("go:function:name:path:1700000000")
	assert.False(t, ok, "missing T prefix on birth timestamp must fail")
}

func TestLanguage(t *testing.T) {
	k := GenerateKey(Candidate{Language: "Python", EntityType: "class", Name: "Foo", FilePath: "a/b.py"}, 1)
	assert.Equal(t, "python", Language(k))
}

func TestExternalKeyIsStableAcrossCalls(t *testing.T) {
	a := ExternalKey("go", "Marshal", "encoding/json")
	b := ExternalKey("go", "Marshal", "encoding/json")
	assert.Equal(t, a, b)

	_, typ, _, path, birth, ok := Split(a)
	require.True(t, ok)
	assert.Equal(t, "external", typ)
	assert.Equal(t, int64(0), birth)
	assert.Contains(t, string(path), "external-dependency")
}

func TestSemanticPathNeverCarriesLineNumbers(t *testing.T) {
	got := SemanticPath("./pkg/ingestion/local_pipeline.go")
	assert.Equal(t, "__pkg_ingestion_local_pipeline.go", got)
	assert.NotContains(t, got, "T")
}

func TestSanitizeNameRoundTripsReservedCharacters(t *testing.T) {
	names := []string{
		"Map[string,int]",
		"List<Map<K,V>>",
		"a::b\\c",
		"{field}",
		"plain_name",
		"already__has__dunder",
		"a__lt__b", // literal text shaped like another token's mnemonic, adjacent to an escaped dunder
	}
	for _, n := range names {
		got := DesanitizeName(SanitizeName(n))
		assert.Equal(t, n, got, "round trip failed for %q", n)
	}
}
