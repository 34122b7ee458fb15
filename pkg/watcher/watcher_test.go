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

package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDispatchesAfterDebounce(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var reindexed []string
	done := make(chan struct{}, 1)

	w, err := New(root, func(_ context.Context, _, relPath string) error {
		mu.Lock()
		reindexed = append(reindexed, relPath)
		mu.Unlock()
		return nil
	}, nil)
	require.NoError(t, err)
	w.onBatch = func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for debounced dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, reindexed, "a.go")
}

func TestWatcherExposesReindexErrorDiagnostics(t *testing.T) {
	root := t.TempDir()

	done := make(chan struct{}, 1)
	w, err := New(root, func(context.Context, string, string) error {
		return assert.AnError
	}, nil)
	require.NoError(t, err)
	w.onBatch = func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for debounced dispatch")
	}

	assert.GreaterOrEqual(t, w.EventsProcessed(), int64(1))
	assert.GreaterOrEqual(t, w.ErrorsTotal(), int64(1))
	assert.Equal(t, assert.AnError.Error(), w.LastError())
}

func TestWatcherDispatchesBatchFilesConcurrently(t *testing.T) {
	root := t.TempDir()

	const fileCount = 5
	release := make(chan struct{})
	var inFlight int64
	var maxInFlight int64
	var mu sync.Mutex
	done := make(chan struct{}, 1)

	w, err := New(root, func(context.Context, string, string) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		<-release
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}, nil)
	require.NoError(t, err)
	w.onBatch = func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	for i := 0; i < fileCount; i++ {
		path := filepath.Join(root, fmt.Sprintf("f%d.go", i))
		require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0644))
	}

	time.Sleep(500 * time.Millisecond) // let every reindex call reach the release gate
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for debounced dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, maxInFlight, int64(1), "expected reindex calls for different files to overlap")
}

func TestWatcherSkipsNoisyDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))

	w, err := New(root, func(context.Context, string, string) error { return nil }, nil)
	require.NoError(t, err)

	watched, skipped := w.addDirs(root)
	assert.GreaterOrEqual(t, watched, 2) // root + src
	assert.GreaterOrEqual(t, skipped, 1) // node_modules
}
