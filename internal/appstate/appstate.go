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

// Package appstate holds the serving process's shared state: the open
// storage backend, the query service, the file watcher, config, and the
// metrics registry. Its reason to exist is the file watcher's lifetime
// note (spec §9): a watcher constructed as a local inside a setup
// function dies silently once that function returns, so the handle must
// be owned by something that lives as long as the serving task itself.
// State is that something, constructed in cmd/cie's serve-http command
// before the HTTP router starts and closed on shutdown.
package appstate

import (
	"context"
	"log/slog"

	"github.com/kraklabs/cie-graph/internal/config"
	"github.com/kraklabs/cie-graph/internal/metrics"
	"github.com/kraklabs/cie-graph/pkg/parser"
	"github.com/kraklabs/cie-graph/pkg/query"
	"github.com/kraklabs/cie-graph/pkg/reindex"
	"github.com/kraklabs/cie-graph/pkg/storage"
	"github.com/kraklabs/cie-graph/pkg/watcher"
)

// State is the long-lived object graph for one serve-http process.
type State struct {
	Config    *config.Config
	Backend   *storage.EmbeddedBackend
	Query     *query.Service
	Reindexer *reindex.Reindexer
	Watcher   *watcher.Watcher
	Metrics   *metrics.Registry
	Logger    *slog.Logger

	RootDir string
}

// New opens storage, builds the parser facade, reindexer and query
// service, and wires them together. It does not start the watcher —
// callers decide that (serve-http always does; a future read-only mode
// might not).
func New(cfg *config.Config, dataDir, rootDir string, logger *slog.Logger) (*State, error) {
	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{DataDir: dataDir, Engine: "rocksdb"})
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureSchema(); err != nil {
		backend.Close()
		return nil, err
	}

	facade := parser.New(logger)
	reg := metrics.New()

	st := &State{
		Config:    cfg,
		Backend:   backend,
		Query:     query.New(backend, rootDir, logger),
		Reindexer: reindex.New(backend, facade, logger),
		Metrics:   reg,
		Logger:    logger,
		RootDir:   rootDir,
	}
	return st, nil
}

// StartWatcher constructs and starts the file watcher over RootDir,
// storing the handle on State so it outlives the function that called
// StartWatcher.
func (s *State) StartWatcher(ctx context.Context) error {
	w, err := watcher.New(s.RootDir, s.reindexOne, s.Logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.Watcher = w
	return nil
}

func (s *State) reindexOne(ctx context.Context, fullPath, relPath string) error {
	_, err := s.Reindexer.Reindex(ctx, fullPath, relPath)
	if err == nil {
		s.Metrics.WatcherEvents.Inc()
	} else {
		s.Metrics.WatcherErrors.Inc()
	}
	return err
}

// Close releases the watcher and storage backend.
func (s *State) Close() error {
	if s.Watcher != nil {
		_ = s.Watcher.Stop()
	}
	return s.Backend.Close()
}
