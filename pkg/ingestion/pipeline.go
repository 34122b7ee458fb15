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

// Package ingestion implements the full-repository ingestion pipeline (C4):
// walk -> parse -> assign identity -> resolve edges -> five-way concurrent
// batch insert (§4.4).
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/parser"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

// Stats summarizes one ingestion run.
type Stats struct {
	FilesParsed     int
	FilesIgnored    int
	EntitiesIndexed int
	TestEntities    int
	EdgesIndexed    int
	Duration        time.Duration
}

// parsedFile bundles one file's parse output with the data later pipeline
// stages need without re-reading the file.
type parsedFile struct {
	ref    FileRef
	result *parser.Result
	err    error
}

// Pipeline runs full ingestion (not incremental reindex — see pkg/reindex)
// over a directory tree into a storage backend.
type Pipeline struct {
	backend *storage.EmbeddedBackend
	facade  *parser.Facade
	logger  *slog.Logger
}

// NewPipeline constructs a Pipeline. The facade is shared across all parse
// workers; TreeSitterParser's internal per-language sync.Pool is what
// actually isolates concurrent parses, not one facade per worker.
func NewPipeline(backend *storage.EmbeddedBackend, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{backend: backend, facade: parser.New(logger), logger: logger}
}

// Run executes the five-step pipeline in §4.4 over cfg.RootDir.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*Stats, error) {
	start := time.Now()

	if err := p.backend.EnsureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	walk, err := WalkTree(cfg.RootDir, cfg.ExcludeGlobs, cfg.MaxFileSizeBytes, p.logger)
	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}

	parsed := p.parseFilesParallel(ctx, cfg, walk.Files)

	var (
		entities     []storage.Entity
		testEntities []storage.TestEntityExcluded
		ignored      = append([]storage.IgnoredFile{}, walk.Ignored...)
		coverage     []storage.FileWordCoverage
		resolver     = newCallResolver()
		lookup       = parser.NewLocalIDLookup()
		birth        = time.Now().Unix()
	)

	// Pass 1: assign identity to every entity and test-entity across every
	// successfully parsed file, and index names for edge resolution. This
	// must complete before edge resolution (pass 2) since a call can
	// reference an entity defined in any file, not just its own (§4.4 step 3).
	var allParsedEntities []parser.Entity
	for _, pf := range parsed {
		if pf.err != nil {
			ignored = append(ignored, storage.IgnoredFile{FilePath: pf.ref.Path, Reason: "parse_error"})
			p.logger.Warn("ingestion.parse.error", "path", pf.ref.Path, "err", pf.err)
			continue
		}
		if pf.result.IgnoredReason != "" {
			ignored = append(ignored, storage.IgnoredFile{FilePath: pf.ref.Path, Reason: pf.result.IgnoredReason})
			continue
		}

		sourceWords, entityWords := 0, 0

		for _, e := range pf.result.Entities {
			key := identity.GenerateKey(e.Candidate, birth)
			lookup.Set(e.LocalID, key)
			resolver.index(e.Candidate.Name, key)
			entities = append(entities, storage.Entity{
				Key:            key,
				EntityType:     e.Candidate.EntityType,
				EntityClass:    storage.EntityClassCode,
				Language:       e.Candidate.Language,
				FilePath:       e.Candidate.FilePath,
				StartLine:      e.Candidate.StartLine,
				EndLine:        e.Candidate.EndLine,
				Name:           e.Candidate.Name,
				ContentHash:    e.ContentHash,
				BirthTimestamp: birth,
				Signature:      e.Signature,
			})
			allParsedEntities = append(allParsedEntities, e)
			entityWords += wordCount(e.Name)
		}
		for _, e := range pf.result.TestEntities {
			key := identity.GenerateKey(e.Candidate, birth)
			lookup.Set(e.LocalID, key)
			testEntities = append(testEntities, storage.TestEntityExcluded{
				Key:        key,
				EntityType: e.Candidate.EntityType,
				Language:   e.Candidate.Language,
				FilePath:   e.Candidate.FilePath,
				StartLine:  e.Candidate.StartLine,
				EndLine:    e.Candidate.EndLine,
				Name:       e.Candidate.Name,
			})
		}

		sourceWords = wordCount(pf.result.PackageName)
		for _, e := range pf.result.Entities {
			sourceWords += wordCount(e.BodySnippet)
		}
		coverage = append(coverage, fileCoverage(pf.ref.Path, sourceWords, entityWords))
	}

	implementsEdges := buildImplementsEdges(allParsedEntities)

	// Pass 2: resolve every edge reference — intra-file local IDs resolve
	// directly through lookup; cross-file references go through the
	// resolver's name index; anything left becomes an external-dependency
	// placeholder so the graph stays closed (§3.4).
	var edges []storage.Edge
	for _, pf := range parsed {
		if pf.err != nil || pf.result == nil || pf.result.IgnoredReason != "" {
			continue
		}
		for _, er := range pf.result.Edges {
			fromKey, ok := lookup.Get(er.FromLocalID)
			if !ok {
				continue // caller's own entity failed identity assignment
			}

			var toKey identity.Key
			if er.ToLocalID != "" {
				toKey, ok = lookup.Get(er.ToLocalID)
			} else {
				toKey, ok = resolver.resolve(er.ToReference)
				if !ok {
					language := parser.LanguageForPath(pf.ref.Path)
					toKey = identity.ExternalKey(language, er.ToReference, externalPackage(er.ToReference))
					ok = true
				}
			}
			if !ok {
				continue
			}
			edges = append(edges, storage.Edge{FromKey: fromKey, ToKey: toKey, EdgeType: er.EdgeType, SourceLine: er.SourceLine})
		}
	}
	for _, ie := range implementsEdges {
		if ie.TypeKey == "" {
			continue
		}
		edges = append(edges, storage.Edge{FromKey: identity.Key(ie.TypeKey), ToKey: identity.Key(ie.InterfaceKey), EdgeType: storage.EdgeTypeImplements})
	}

	if err := p.writeRelations(ctx, entities, edges, testEntities, coverage, ignored); err != nil {
		return nil, err
	}

	for _, ref := range walk.Files {
		hash, herr := fileHash(ref.FullPath)
		if herr != nil {
			continue
		}
		if err := p.backend.SetCachedHash(ctx, ref.Path, hash); err != nil {
			p.logger.Warn("ingestion.hashcache.set.error", "path", ref.Path, "err", err)
		}
	}

	return &Stats{
		FilesParsed:     len(walk.Files),
		FilesIgnored:    len(ignored),
		EntitiesIndexed: len(entities),
		TestEntities:    len(testEntities),
		EdgesIndexed:    len(edges),
		Duration:        time.Since(start),
	}, nil
}

// parseFilesParallel fans files out across a worker pool, mirroring the
// teacher's parseFilesParallel — bounded by cfg.Concurrency.ParseWorkers
// (falling back to runtime.NumCPU(), capped at 8, when unset).
func (p *Pipeline) parseFilesParallel(ctx context.Context, cfg Config, files []FileRef) []parsedFile {
	workers := cfg.Concurrency.ParseWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > 8 {
			workers = 8
		}
	}

	jobs := make(chan int, len(files))
	results := make([]parsedFile, len(files))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					results[i] = parsedFile{ref: files[i], err: ctx.Err()}
					continue
				default:
				}
				res, err := p.facade.Parse(files[i].FullPath, files[i].Path)
				results[i] = parsedFile{ref: files[i], result: res, err: err}
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// writeRelations runs the five independent batch-insert tasks concurrently
// — Entities, Edges, TestEntitiesExcluded, FileWordCoverage, IgnoredFiles —
// each against its own relation lock, so none of the five blocks another
// (§4.4 step 4). One goroutine per relation, errors collected and joined.
func (p *Pipeline) writeRelations(
	ctx context.Context,
	entities []storage.Entity,
	edges []storage.Edge,
	testEntities []storage.TestEntityExcluded,
	coverage []storage.FileWordCoverage,
	ignored []storage.IgnoredFile,
) error {
	var wg sync.WaitGroup
	errs := make([]error, 5)

	tasks := []func() error{
		func() error { return p.backend.UpsertEntitiesBatch(ctx, entities) },
		func() error { return p.backend.InsertEdgesBatch(ctx, edges) },
		func() error { return p.backend.UpsertTestEntitiesExcludedBatch(ctx, testEntities) },
		func() error { return p.backend.ReplaceFileWordCoverageBatch(ctx, coverage) },
		func() error { return p.backend.UpsertIgnoredFilesBatch(ctx, ignored) },
	}
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func() error) {
			defer wg.Done()
			errs[i] = task()
		}(i, task)
	}
	wg.Wait()

	var joined []error
	for _, e := range errs {
		if e != nil {
			joined = append(joined, e)
		}
	}
	if len(joined) == 0 {
		return nil
	}
	msg := "write relations:"
	for _, e := range joined {
		msg += " " + e.Error() + ";"
	}
	return fmt.Errorf("%s", msg)
}
