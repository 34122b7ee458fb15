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

//go:build cgo

package query

import (
	"context"
	"testing"

	cieerrors "github.com/kraklabs/cie-graph/internal/errors"
	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/storage"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *storage.EmbeddedBackend) {
	t.Helper()
	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{DataDir: t.TempDir(), Engine: "mem"})
	require.NoError(t, err)
	require.NoError(t, backend.EnsureSchema())
	return New(backend, "", nil), backend
}

func seedEntities(t *testing.T, backend *storage.EmbeddedBackend) {
	t.Helper()
	ctx := context.Background()
	entities := []storage.Entity{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", EntityClass: "code", Language: "go", FilePath: "a.go", StartLine: 1, EndLine: 3, Name: "Foo", ContentHash: "h1", BirthTimestamp: 1},
		{Key: "go:function:Bar:__pkg_b_b.go:T2", EntityType: "function", EntityClass: "code", Language: "go", FilePath: "pkg/b/b.go", StartLine: 5, EndLine: 8, Name: "Bar", ContentHash: "h2", BirthTimestamp: 2},
	}
	require.NoError(t, backend.UpsertEntitiesBatch(ctx, entities))
	edges := []storage.Edge{
		{FromKey: "go:function:Foo:__a.go:T1", ToKey: "go:function:Bar:__pkg_b_b.go:T2", EdgeType: "calls", SourceLine: 2},
		{FromKey: "go:function:Foo:__a.go:T1", ToKey: identity.ExternalKey("go", "Println", "fmt"), EdgeType: "calls", SourceLine: 1},
	}
	require.NoError(t, backend.InsertEdgesBatch(ctx, edges))
}

func TestListEntitiesFiltersByScope(t *testing.T) {
	svc, backend := setupService(t)
	defer backend.Close()
	seedEntities(t, backend)

	got, err := svc.ListEntities(context.Background(), ListFilter{Scope: "pkg"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Bar", got[0].Name)
}

func TestListEntitiesUnknownScopeSuggestsFolders(t *testing.T) {
	svc, backend := setupService(t)
	defer backend.Close()
	seedEntities(t, backend)

	_, err := svc.ListEntities(context.Background(), ListFilter{Scope: "nonexistent"})
	require.Error(t, err)
	require.Equal(t, cieerrors.KindInput, cieerrors.KindOf(err))
}

func TestCalleesResolvesExternalPlaceholder(t *testing.T) {
	svc, backend := setupService(t)
	defer backend.Close()
	seedEntities(t, backend)

	callees, err := svc.Callees(context.Background(), "go:function:Foo:__a.go:T1")
	require.NoError(t, err)
	require.Len(t, callees, 2)

	var sawExternal bool
	for _, c := range callees {
		if c.EntityClass == storage.EntityClassExternalDependency {
			sawExternal = true
			require.Equal(t, "Println", c.Name)
		}
	}
	require.True(t, sawExternal, "external dependency placeholder should be synthesized, not dropped")
}

func TestCallersReturnsReverseNeighbors(t *testing.T) {
	svc, backend := setupService(t)
	defer backend.Close()
	seedEntities(t, backend)

	callers, err := svc.Callers(context.Background(), "go:function:Bar:__pkg_b_b.go:T2")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	require.Equal(t, "Foo", callers[0].Name)
}

func TestBlastRadiusFiltersDanglingEdges(t *testing.T) {
	svc, backend := setupService(t)
	defer backend.Close()
	seedEntities(t, backend)

	view, err := svc.BlastRadius(context.Background(), "go:function:Foo:__a.go:T1", 1, 0)
	require.NoError(t, err)
	for _, e := range view.Edges {
		var fromPresent, toPresent bool
		for _, n := range view.Nodes {
			if n.Key == e.FromKey {
				fromPresent = true
			}
			if n.Key == e.ToKey {
				toPresent = true
			}
		}
		require.True(t, fromPresent && toPresent)
	}
}

func TestGetEntityDetailNotFound(t *testing.T) {
	svc, backend := setupService(t)
	defer backend.Close()

	_, err := svc.GetEntityDetail(context.Background(), "go:function:Missing:__x.go:T9")
	require.Error(t, err)
	require.Equal(t, cieerrors.KindNotFound, cieerrors.KindOf(err))
}

func TestSmartContextDegradesGracefullyOnMissingFocus(t *testing.T) {
	svc, backend := setupService(t)
	defer backend.Close()
	seedEntities(t, backend)

	result, err := svc.SmartContext(context.Background(), identity.GenerateKey(identity.Candidate{
		Language: "go", EntityType: "function", Name: "Ghost", FilePath: "a.go",
	}, 1), 1000)
	require.NoError(t, err)
	require.True(t, result.Degraded)
	require.NotEmpty(t, result.Entries)
}
