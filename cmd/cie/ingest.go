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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cie-graph/internal/config"
	cieerrors "github.com/kraklabs/cie-graph/internal/errors"
	"github.com/kraklabs/cie-graph/internal/logging"
	"github.com/kraklabs/cie-graph/pkg/ingestion"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

// runIngest executes the 'ingest' subcommand: a synchronous, one-shot walk
// and parse of a directory tree into the graph database. Adapted from the
// teacher's runIndex/runLocalIndex, dropping the async job-queue and
// remote-delegation paths (§6.2 calls for a single local command, not a
// client/server split) and the embedding-provider plumbing (out of scope).
func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	dbPath := fs.String("db", "", "CozoDB data directory (defaults to config-resolved data dir)")
	configPath := fs.String("config", "", "Path to .cie/project.yaml (defaults to discovery)")
	projectID := fs.String("project-id", "", "Project identifier (defaults to the directory name)")
	debug := fs.Bool("debug", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cie ingest [directory] [options]

Walks a directory tree, parses source files, and writes the extracted
entities and edges to the graph database. Runs once and exits; for
continuous reindexing on file changes use 'cie serve-http'.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	directory := "."
	if fs.NArg() > 0 {
		directory = fs.Arg(0)
	}
	absDir, err := filepath.Abs(directory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot resolve %q: %v\n", directory, err)
		return 1
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := logging.New(logging.Options{Level: level})

	cfg, err := loadOrDefaultConfig(*configPath, *projectID, absDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	dataDir := *dbPath
	if dataDir == "" {
		resolved, err := config.DataDir(cfg, filepath.Dir(absDir))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		dataDir = resolved
	}
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot create data directory %s: %v\n", dataDir, err)
		return 1
	}

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:   dataDir,
		Engine:    "rocksdb",
		ProjectID: cfg.ProjectID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot open database at %s: %v\n", dataDir, err)
		return 1
	}
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("ingest.shutdown.signal", "signal", sig.String())
		cancel()
	}()

	excludeGlobs := append(ingestion.DefaultExcludeGlobs(), cfg.Indexing.Exclude...)
	ingestCfg := ingestion.Config{
		RootDir:          absDir,
		MaxFileSizeBytes: cfg.Indexing.MaxFileSize,
		ExcludeGlobs:     excludeGlobs,
		Concurrency:      ingestion.ConcurrencyConfig{ParseWorkers: 4},
	}

	logger.Info("ingest.starting", "root_dir", absDir, "project_id", cfg.ProjectID, "data_dir", dataDir)

	bar := newCLIProgressBar("Ingesting")
	defer bar.Finish()

	pipeline := ingestion.NewPipeline(backend, logger)
	stats, err := pipeline.Run(ctx, ingestCfg)
	bar.Finish()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingestion failed: %v\n", err)
		return 1
	}

	printIngestSummary(cfg.ProjectID, dataDir, stats)
	return 0
}

// loadOrDefaultConfig loads .cie/project.yaml if present, else synthesizes
// a Default() config scoped to the target directory's basename — ingest
// should work against a directory that has never been configured.
func loadOrDefaultConfig(explicitPath, projectIDFlag, rootDir string) (*config.Config, error) {
	if explicitPath != "" {
		return config.Load(explicitPath)
	}
	if found, err := config.FindConfigFile(); err == nil {
		return config.Load(found)
	} else if cieerrors.KindOf(err) != cieerrors.KindInput {
		return nil, err
	}

	id := projectIDFlag
	if id == "" {
		id = filepath.Base(rootDir)
	}
	return config.Default(id), nil
}

func printIngestSummary(projectID, dataDir string, stats *ingestion.Stats) {
	fmt.Println()
	fmt.Printf("Project:          %s\n", projectID)
	fmt.Printf("Files parsed:     %d\n", stats.FilesParsed)
	fmt.Printf("Files ignored:    %d\n", stats.FilesIgnored)
	fmt.Printf("Entities indexed: %d\n", stats.EntitiesIndexed)
	fmt.Printf("Test entities:    %d (excluded)\n", stats.TestEntities)
	fmt.Printf("Edges indexed:    %d\n", stats.EdgesIndexed)
	fmt.Printf("Duration:         %s\n", stats.Duration.Round(1e6))
	fmt.Printf("Data stored in:   %s\n", dataDir)
}
