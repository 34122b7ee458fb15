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

package ingestion

import (
	"testing"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/parser"
	"github.com/stretchr/testify/assert"
)

func entity(localID, entityType, name, body string) parser.Entity {
	return parser.Entity{
		Candidate:   identity.Candidate{EntityType: entityType, Name: name},
		LocalID:     localID,
		BodySnippet: body,
	}
}

func TestBuildImplementsEdgesBasic(t *testing.T) {
	entities := []parser.Entity{
		entity("iface:writer", "interface", "Writer", "Writer interface {\n\tWrite(data []byte) error\n\tFlush() error\n}"),
		entity("type:cozodb", "struct", "CozoDB", ""),
		entity("m1", "method", "CozoDB.Write", ""),
		entity("m2", "method", "CozoDB.Flush", ""),
		entity("type:filestore", "struct", "FileStore", ""),
		entity("m3", "method", "FileStore.Write", ""),
		entity("m4", "method", "FileStore.Flush", ""),
		entity("m5", "method", "Unrelated.DoSomething", ""),
	}

	edges := buildImplementsEdges(entities)
	seen := map[string]bool{}
	for _, e := range edges {
		seen[e.TypeName] = true
		assert.Equal(t, "iface:writer", e.InterfaceKey)
	}
	assert.Len(t, edges, 2)
	assert.True(t, seen["CozoDB"])
	assert.True(t, seen["FileStore"])
	assert.False(t, seen["Unrelated"])
}

func TestBuildImplementsEdgesPartialDoesNotMatch(t *testing.T) {
	entities := []parser.Entity{
		entity("iface:writer", "interface", "Writer", "Writer interface {\n\tWrite(data []byte) error\n\tFlush() error\n}"),
		entity("m1", "method", "Partial.Write", ""),
	}
	assert.Empty(t, buildImplementsEdges(entities))
}

func TestBuildImplementsEdgesNoSelfMatch(t *testing.T) {
	entities := []parser.Entity{
		entity("iface:writer", "interface", "Writer", "Writer interface {\n\tWrite(data []byte) error\n}"),
		entity("m1", "method", "Writer.Write", ""),
	}
	for _, e := range buildImplementsEdges(entities) {
		assert.NotEqual(t, e.TypeName, "Writer")
	}
}

func TestBuildImplementsEdgesEmptyInterfaceMatchesNothing(t *testing.T) {
	entities := []parser.Entity{
		entity("iface:empty", "interface", "Empty", "Empty interface {}"),
		entity("m1", "method", "Foo.Bar", ""),
	}
	assert.Empty(t, buildImplementsEdges(entities))
}

func TestBuildImplementsEdgesMultipleInterfaces(t *testing.T) {
	entities := []parser.Entity{
		entity("iface:writer", "interface", "Writer", "Writer interface {\n\tWrite(data []byte) error\n}"),
		entity("iface:flusher", "interface", "Flusher", "Flusher interface {\n\tFlush() error\n}"),
		entity("m1", "method", "CozoDB.Write", ""),
		entity("m2", "method", "CozoDB.Flush", ""),
	}
	edges := buildImplementsEdges(entities)
	assert.Len(t, edges, 2)
	seen := map[string]bool{}
	for _, e := range edges {
		assert.Equal(t, "CozoDB", e.TypeName)
		seen[e.InterfaceKey] = true
	}
	assert.True(t, seen["iface:writer"])
	assert.True(t, seen["iface:flusher"])
}
