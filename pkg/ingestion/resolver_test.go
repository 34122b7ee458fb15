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
	"fmt"
	"testing"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityKeyFor(i int) identity.Key {
	return identity.Key(fmt.Sprintf("go:function:Func%d:__a.go:T%d", i, i))
}

func TestCallResolverDirectSimpleNameMatch(t *testing.T) {
	r := newCallResolver()
	r.index("Add", "go:function:Add:__math.go:T1")

	key, ok := r.resolve("Add")
	require.True(t, ok)
	assert.EqualValues(t, "go:function:Add:__math.go:T1", key)
}

func TestCallResolverQualifiedNameMatch(t *testing.T) {
	r := newCallResolver()
	r.index("Server.Handle", "go:method:Server.Handle:__server.go:T1")

	key, ok := r.resolve("Server.Handle")
	require.True(t, ok)
	assert.EqualValues(t, "go:method:Server.Handle:__server.go:T1", key)
}

func TestCallResolverFallsBackToLastDottedSegment(t *testing.T) {
	r := newCallResolver()
	r.index("Marshal", "go:function:Marshal:__json.go:T1")

	key, ok := r.resolve("json.Marshal")
	require.True(t, ok)
	assert.EqualValues(t, "go:function:Marshal:__json.go:T1", key)
}

func TestCallResolverInterfaceDispatchUnambiguous(t *testing.T) {
	r := newCallResolver()
	r.index("CozoDB.Write", "go:method:CozoDB.Write:__store.go:T1")

	key, ok := r.resolve("Write")
	require.True(t, ok)
	assert.EqualValues(t, "go:method:CozoDB.Write:__store.go:T1", key)
}

func TestCallResolverInterfaceDispatchAmbiguousIsUnresolved(t *testing.T) {
	r := newCallResolver()
	r.index("CozoDB.Write", "go:method:CozoDB.Write:__store.go:T1")
	r.index("FileStore.Write", "go:method:FileStore.Write:__filestore.go:T2")

	_, ok := r.resolve("Write")
	assert.False(t, ok, "ambiguous method name across two types must not guess")
}

func TestCallResolverUnknownReferenceIsUnresolved(t *testing.T) {
	r := newCallResolver()
	_, ok := r.resolve("NeverDefined")
	assert.False(t, ok)
}

func TestResolveReferencesParallelMatchesSequentialForLargeBatches(t *testing.T) {
	r := newCallResolver()
	for i := 0; i < 1500; i++ {
		r.index(fmt.Sprintf("Func%d", i), identityKeyFor(i))
	}

	refs := make([]string, 1500)
	for i := range refs {
		refs[i] = fmt.Sprintf("Func%d", i)
	}

	resolved := r.resolveReferencesParallel(refs)
	assert.Len(t, resolved, 1500)
	assert.EqualValues(t, identityKeyFor(42), resolved["Func42"])
}

func TestResolveReferencesParallelSkipsUnresolvedReferences(t *testing.T) {
	r := newCallResolver()
	r.index("Known", identityKeyFor(1))

	refs := []string{"Known", "Unknown"}
	resolved := r.resolveReferencesParallel(refs)
	assert.Len(t, resolved, 1)
	_, ok := resolved["Unknown"]
	assert.False(t, ok)
}
