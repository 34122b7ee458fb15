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

package storage

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/stretchr/testify/require"
)

// setupTestStorage creates an in-memory EmbeddedBackend with schema applied.
// The caller is responsible for calling Close() on the returned backend.
func setupTestStorage(t *testing.T) *EmbeddedBackend {
	t.Helper()
	backend, err := NewEmbeddedBackend(EmbeddedConfig{DataDir: t.TempDir(), Engine: "mem"})
	require.NoError(t, err)
	require.NoError(t, backend.EnsureSchema())
	return backend
}

func TestNewEmbeddedBackendSuccess(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()

	require.NotNil(t, backend.db)
	require.False(t, backend.closed)
}

func TestEmbeddedBackendQueryAfterClose(t *testing.T) {
	backend := setupTestStorage(t)
	require.NoError(t, backend.Close())

	_, err := backend.Query(context.Background(), "?[x] := x = 1", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "closed")
}

func TestEmbeddedBackendExecuteContextCanceled(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := backend.Execute(ctx, `?[key, value] <- [["k","v"]] :put cie_project_meta {key, value}`, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "context canceled")
}

func TestEmbeddedBackendCloseIdempotent(t *testing.T) {
	backend := setupTestStorage(t)
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())
	require.True(t, backend.closed)
}

func TestEmbeddedBackendEnsureSchemaIdempotent(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()

	require.NoError(t, backend.EnsureSchema())
}

func TestEmbeddedBackendProjectMeta(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()

	value, err := backend.GetProjectMeta("nonexistent")
	require.NoError(t, err)
	require.Equal(t, "", value)

	require.NoError(t, backend.SetProjectMeta("k", "v1"))
	value, err = backend.GetProjectMeta("k")
	require.NoError(t, err)
	require.Equal(t, "v1", value)

	require.NoError(t, backend.SetProjectMeta("k", "v2"))
	value, err = backend.GetProjectMeta("k")
	require.NoError(t, err)
	require.Equal(t, "v2", value)
}

func TestEmbeddedBackendLastIndexedSHA(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()

	sha, err := backend.GetLastIndexedSHA()
	require.NoError(t, err)
	require.Equal(t, "", sha)

	require.NoError(t, backend.SetLastIndexedSHA("abc123"))
	sha, err = backend.GetLastIndexedSHA()
	require.NoError(t, err)
	require.Equal(t, "abc123", sha)
}

func TestEmbeddedBackendUpsertAndGetEntitiesByFile(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	entities := []Entity{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", EntityClass: "code", Language: "go", FilePath: "a.go", StartLine: 1, EndLine: 3, Name: "Foo", ContentHash: "h1", BirthTimestamp: 1},
		{Key: "go:function:Bar:__a.go:T2", EntityType: "function", EntityClass: "code", Language: "go", FilePath: "a.go", StartLine: 5, EndLine: 8, Name: "Bar", ContentHash: "h2", BirthTimestamp: 2},
		{Key: "go:function:Baz:__b.go:T3", EntityType: "function", EntityClass: "code", Language: "go", FilePath: "b.go", StartLine: 1, EndLine: 2, Name: "Baz", ContentHash: "h3", BirthTimestamp: 3},
	}
	require.NoError(t, backend.UpsertEntitiesBatch(ctx, entities))

	got, err := backend.GetEntitiesByFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestEmbeddedBackendDeleteEntitiesByKeys(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	e := Entity{Key: "go:function:Foo:__a.go:T1", EntityType: "function", EntityClass: "code", Language: "go", FilePath: "a.go", StartLine: 1, EndLine: 3, Name: "Foo", ContentHash: "h1", BirthTimestamp: 1}
	require.NoError(t, backend.UpsertEntity(ctx, e))

	got, err := backend.GetEntitiesByFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, backend.DeleteEntitiesByKeys(ctx, []identity.Key{e.Key}))

	got, err = backend.GetEntitiesByFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, got, 0)
}

func TestEmbeddedBackendEdgesBatchAndDeleteFromKeys(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	edges := []Edge{
		{FromKey: "go:function:Foo:__a.go:T1", ToKey: "go:function:Bar:__a.go:T2", EdgeType: "calls", SourceLine: 2},
		{FromKey: "go:function:Bar:__a.go:T2", ToKey: "go:function:Foo:__a.go:T1", EdgeType: "calls", SourceLine: 6},
	}
	require.NoError(t, backend.InsertEdgesBatch(ctx, edges))

	result, err := backend.Query(ctx, `?[from_key] := *cie_edges{from_key}`, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	require.NoError(t, backend.DeleteEdgesFromKeys(ctx, []identity.Key{"go:function:Foo:__a.go:T1"}))

	result, err = backend.Query(ctx, `?[from_key] := *cie_edges{from_key}`, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
}

func TestEmbeddedBackendHashCache(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	hash, err := backend.GetCachedHash(ctx, "a.go")
	require.NoError(t, err)
	require.Equal(t, "", hash)

	require.NoError(t, backend.SetCachedHash(ctx, "a.go", "abc"))
	hash, err = backend.GetCachedHash(ctx, "a.go")
	require.NoError(t, err)
	require.Equal(t, "abc", hash)

	require.NoError(t, backend.ClearCachedHash(ctx, "a.go"))
	hash, err = backend.GetCachedHash(ctx, "a.go")
	require.NoError(t, err)
	require.Equal(t, "", hash)
}

func TestEmbeddedBackendFileWordCoverageReplace(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, backend.ReplaceFileWordCoverage(ctx, FileWordCoverage{FilePath: "a.go", SourceWords: 100, EntityWords: 40, RawCoveragePct: 40.0, EffectiveCoveragePct: 55.0}))
	require.NoError(t, backend.ReplaceFileWordCoverage(ctx, FileWordCoverage{FilePath: "a.go", SourceWords: 120, EntityWords: 60, RawCoveragePct: 50.0, EffectiveCoveragePct: 65.0}))

	result, err := backend.Query(ctx, `?[file_path, source_words] := *cie_file_word_coverage{file_path, source_words}`, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1, "replace must clear the previous row for this file")
}

func TestEmbeddedBackendConcurrentReads(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	const numReaders = 10
	var wg sync.WaitGroup
	wg.Add(numReaders)
	start := time.Now()
	for range numReaders {
		go func() {
			defer wg.Done()
			_, err := backend.Query(ctx, "?[x] := x = 1", nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Less(t, time.Since(start), time.Second)
}

func TestEmbeddedBackendConcurrentWritesToDistinctRelationsDoNotBlock(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = backend.UpsertEntity(ctx, Entity{Key: identity.Key("go:function:F:__a.go:T" + string(rune('0'+i%10))), EntityType: "function", EntityClass: "code", Language: "go", FilePath: "a.go", Name: "F", BirthTimestamp: int64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = backend.InsertEdgesBatch(ctx, []Edge{{FromKey: "go:function:F:__a.go:T1", ToKey: "go:function:G:__a.go:T2", EdgeType: "calls", SourceLine: i}})
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("entities and edges writers deadlocked against each other")
	}
}

func TestEmbeddedBackendIgnoredFilesAndExcludedTestEntities(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, backend.UpsertIgnoredFilesBatch(ctx, []IgnoredFile{{FilePath: "vendor/x.go", Reason: "vendored"}}))
	require.NoError(t, backend.UpsertTestEntitiesExcludedBatch(ctx, []TestEntityExcluded{
		{Key: "go:function:TestFoo:__a_test.go:T1", EntityType: "function", Language: "go", FilePath: "a_test.go", Name: "TestFoo", StartLine: 1, EndLine: 5},
	}))

	result, err := backend.Query(ctx, `?[file_path, reason] := *cie_ignored_files{file_path, reason}`, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	result, err = backend.Query(ctx, `?[name] := *cie_test_entities_excluded{name}`, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
}

func TestEmbeddedBackendDBDirectAccess(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()

	db := backend.DB()
	require.NotNil(t, db)

	result, err := db.RunReadOnly("?[x] := x = 1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Headers)
}

func TestEmbeddedBackendQueryContextCanceledMessage(t *testing.T) {
	backend := setupTestStorage(t)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Query(ctx, "?[x] := x = 1", nil)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "context canceled"))
}
