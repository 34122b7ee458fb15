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

package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kraklabs/cie-graph/pkg/identity"
)

// UpsertEntity inserts or replaces a single entity. A thin wrapper around
// UpsertEntitiesBatch so callers never need two code paths.
func (b *EmbeddedBackend) UpsertEntity(ctx context.Context, e Entity) error {
	return b.UpsertEntitiesBatch(ctx, []Entity{e})
}

// UpsertEntitiesBatch inserts or replaces entities by primary key (the
// ISGL1 v2 key). Every string field passes through escapeForStorage before
// it is embedded in the Datalog literal (§4.3 escaping contract).
func (b *EmbeddedBackend) UpsertEntitiesBatch(ctx context.Context, entities []Entity) error {
	if len(entities) == 0 {
		return nil
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	var rows []string
	for _, e := range entities {
		rows = append(rows, fmt.Sprintf(`["%s","%s","%s","%s","%s",%d,%d,"%s","%s",%d,"%s"]`,
			escapeForStorage(string(e.Key)),
			escapeForStorage(e.EntityType),
			escapeForStorage(e.EntityClass),
			escapeForStorage(e.Language),
			escapeForStorage(e.FilePath),
			e.StartLine, e.EndLine,
			escapeForStorage(e.Name),
			escapeForStorage(e.ContentHash),
			e.BirthTimestamp,
			escapeForStorage(e.Signature),
		))
	}
	query := fmt.Sprintf(
		`?[key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature] <- [%s] :put %s {key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature}`,
		strings.Join(rows, ","), relEntities)

	b.locks.entities.Lock()
	defer b.locks.entities.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("upsert entities: %w", err)
	}
	return nil
}

// DeleteEntitiesByKeys removes entities by key (§4.5 step 6: removed_keys).
func (b *EmbeddedBackend) DeleteEntitiesByKeys(ctx context.Context, keys []identity.Key) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	var rows []string
	for _, k := range keys {
		rows = append(rows, fmt.Sprintf(`["%s"]`, escapeForStorage(string(k))))
	}
	query := fmt.Sprintf(`?[key] <- [%s] :rm %s {key}`, strings.Join(rows, ","), relEntities)

	b.locks.entities.Lock()
	defer b.locks.entities.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("delete entities: %w", err)
	}
	return nil
}

// GetEntitiesByFile returns every entity currently stored for a file path,
// the `existing` set §4.5 step 3 matches incoming candidates against.
func (b *EmbeddedBackend) GetEntitiesByFile(ctx context.Context, filePath string) ([]Entity, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`?[key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature] := *%s{key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature}, file_path = $path`,
		relEntities)
	params := map[string]any{"path": filePath}

	b.locks.entities.RLock()
	result, err := b.db.RunReadOnly(query, params)
	b.locks.entities.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("get entities by file: %w", err)
	}

	entities := make([]Entity, 0, len(result.Rows))
	for _, row := range result.Rows {
		entities = append(entities, rowToEntity(row))
	}
	return entities, nil
}

// FindEntitiesByName returns every entity (in any file) whose Name field
// matches exactly. Used by pkg/reindex to resolve a single file's
// cross-file call references without re-walking the whole workspace the
// way full ingestion's in-memory name index does (§4.4 step 3) — a single
// reindexed file instead queries the relation directly for candidate
// targets (§4.1/§4.5's "caller convert to_reference hints").
func (b *EmbeddedBackend) FindEntitiesByName(ctx context.Context, name string) ([]Entity, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`?[key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature] := *%s{key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature}, name = $name`,
		relEntities)
	params := map[string]any{"name": name}

	b.locks.entities.RLock()
	result, err := b.db.RunReadOnly(query, params)
	b.locks.entities.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("find entities by name: %w", err)
	}

	entities := make([]Entity, 0, len(result.Rows))
	for _, row := range result.Rows {
		entities = append(entities, rowToEntity(row))
	}
	return entities, nil
}

// EntityFilter narrows ListEntities per §4.7 list_entities(filters): entity
// type, language, and a folder-prefix scope. Empty fields are unfiltered.
type EntityFilter struct {
	EntityType  string
	Language    string
	ScopePrefix string
}

// ListEntities returns every entity matching filter, the backing query for
// the Query Layer's `list_entities` and the graph-export node source.
func (b *EmbeddedBackend) ListEntities(ctx context.Context, filter EntityFilter) ([]Entity, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	conds := []string{fmt.Sprintf("*%s{key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature}", relEntities)}
	params := map[string]any{}
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = $entity_type")
		params["entity_type"] = filter.EntityType
	}
	if filter.Language != "" {
		conds = append(conds, "language = $language")
		params["language"] = filter.Language
	}
	if filter.ScopePrefix != "" {
		conds = append(conds, "starts_with(file_path, $scope_prefix)")
		params["scope_prefix"] = filter.ScopePrefix
	}
	query := fmt.Sprintf(
		"?[key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature] := %s",
		strings.Join(conds, ", "))

	b.locks.entities.RLock()
	result, err := b.db.RunReadOnly(query, params)
	b.locks.entities.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	entities := make([]Entity, 0, len(result.Rows))
	for _, row := range result.Rows {
		entities = append(entities, rowToEntity(row))
	}
	return entities, nil
}

// SearchEntitiesFuzzy returns every entity whose name contains pattern,
// case-insensitively — §4.7 search_entities_fuzzy. Built on CozoScript's
// regex_matches with an (?i) case-insensitivity flag, the same operator
// the teacher's pkg/tools/schema.go documents for substring-style tests.
func (b *EmbeddedBackend) SearchEntitiesFuzzy(ctx context.Context, pattern string) ([]Entity, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`?[key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature] := *%s{key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature}, regex_matches(name, $pattern)`,
		relEntities)
	params := map[string]any{"pattern": "(?i)" + regexp.QuoteMeta(pattern)}

	b.locks.entities.RLock()
	result, err := b.db.RunReadOnly(query, params)
	b.locks.entities.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search entities fuzzy: %w", err)
	}

	entities := make([]Entity, 0, len(result.Rows))
	for _, row := range result.Rows {
		entities = append(entities, rowToEntity(row))
	}
	return entities, nil
}

// GetEntityByKey returns a single entity, or ok=false if no row has that key.
func (b *EmbeddedBackend) GetEntityByKey(ctx context.Context, key identity.Key) (Entity, bool, error) {
	if err := ctxDone(ctx); err != nil {
		return Entity{}, false, err
	}

	query := fmt.Sprintf(
		`?[key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature] := *%s{key, entity_type, entity_class, language, file_path, start_line, end_line, name, content_hash, birth_timestamp, signature}, key = $key`,
		relEntities)
	params := map[string]any{"key": string(key)}

	b.locks.entities.RLock()
	result, err := b.db.RunReadOnly(query, params)
	b.locks.entities.RUnlock()
	if err != nil {
		return Entity{}, false, fmt.Errorf("get entity by key: %w", err)
	}
	if len(result.Rows) == 0 {
		return Entity{}, false, nil
	}
	return rowToEntity(result.Rows[0]), true, nil
}

// ListAllEdges returns every edge in the workspace — the source data for
// graph-export, blast-radius, and every C8 analytics algorithm.
func (b *EmbeddedBackend) ListAllEdges(ctx context.Context) ([]Edge, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`?[from_key, to_key, edge_type, source_line] := *%s{from_key, to_key, edge_type, source_line}`, relEdges)

	b.locks.edges.RLock()
	result, err := b.db.RunReadOnly(query, nil)
	b.locks.edges.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("list all edges: %w", err)
	}

	edges := make([]Edge, 0, len(result.Rows))
	for _, row := range result.Rows {
		edges = append(edges, Edge{
			FromKey:    identity.Key(asString(row[0])),
			ToKey:      identity.Key(asString(row[1])),
			EdgeType:   asString(row[2]),
			SourceLine: asInt(row[3]),
		})
	}
	return edges, nil
}

// EdgesFrom returns every outgoing edge from key (§4.7 callees).
func (b *EmbeddedBackend) EdgesFrom(ctx context.Context, key identity.Key) ([]Edge, error) {
	return b.edgesBy(ctx, "from_key", key)
}

// EdgesTo returns every incoming edge to key (§4.7 callers).
func (b *EmbeddedBackend) EdgesTo(ctx context.Context, key identity.Key) ([]Edge, error) {
	return b.edgesBy(ctx, "to_key", key)
}

func (b *EmbeddedBackend) edgesBy(ctx context.Context, column string, key identity.Key) ([]Edge, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`?[from_key, to_key, edge_type, source_line] := *%s{from_key, to_key, edge_type, source_line}, %s = $key`,
		relEdges, column)
	params := map[string]any{"key": string(key)}

	b.locks.edges.RLock()
	result, err := b.db.RunReadOnly(query, params)
	b.locks.edges.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("edges by %s: %w", column, err)
	}

	edges := make([]Edge, 0, len(result.Rows))
	for _, row := range result.Rows {
		edges = append(edges, Edge{
			FromKey:    identity.Key(asString(row[0])),
			ToKey:      identity.Key(asString(row[1])),
			EdgeType:   asString(row[2]),
			SourceLine: asInt(row[3]),
		})
	}
	return edges, nil
}

func rowToEntity(row []any) Entity {
	return Entity{
		Key:            identity.Key(asString(row[0])),
		EntityType:     asString(row[1]),
		EntityClass:    asString(row[2]),
		Language:       asString(row[3]),
		FilePath:       asString(row[4]),
		StartLine:      asInt(row[5]),
		EndLine:        asInt(row[6]),
		Name:           asString(row[7]),
		ContentHash:    asString(row[8]),
		BirthTimestamp: asInt64(row[9]),
		Signature:      asString(row[10]),
	}
}

// InsertEdgesBatch inserts edges; idempotent on the composite primary key
// (from_key, to_key, edge_type, source_line).
func (b *EmbeddedBackend) InsertEdgesBatch(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	var rows []string
	for _, e := range edges {
		rows = append(rows, fmt.Sprintf(`["%s","%s","%s",%d]`,
			escapeForStorage(string(e.FromKey)),
			escapeForStorage(string(e.ToKey)),
			escapeForStorage(e.EdgeType),
			e.SourceLine,
		))
	}
	query := fmt.Sprintf(
		`?[from_key, to_key, edge_type, source_line] <- [%s] :put %s {from_key, to_key, edge_type, source_line}`,
		strings.Join(rows, ","), relEdges)

	b.locks.edges.Lock()
	defer b.locks.edges.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("insert edges: %w", err)
	}
	return nil
}

// DeleteEdgesFromKeys removes every edge whose from_key is in keys (§4.5
// step 6). Edges pointing *at* a removed entity are left in place on
// purpose: §4.8's graph-export filters dangling edges at read time rather
// than chasing them down at every possible deletion site.
func (b *EmbeddedBackend) DeleteEdgesFromKeys(ctx context.Context, keys []identity.Key) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	var rows []string
	for _, k := range keys {
		rows = append(rows, fmt.Sprintf(`["%s"]`, escapeForStorage(string(k))))
	}
	query := fmt.Sprintf(
		"removed[from_key] <- [%s]\n?[from_key, to_key, edge_type, source_line] := *%s{from_key, to_key, edge_type, source_line}, removed[from_key] :rm %s {from_key, to_key, edge_type, source_line}",
		strings.Join(rows, ","), relEdges, relEdges)

	b.locks.edges.Lock()
	defer b.locks.edges.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("delete edges from keys: %w", err)
	}
	return nil
}

// GetCachedHash returns FileHashCache[filePath], or "" if absent.
func (b *EmbeddedBackend) GetCachedHash(ctx context.Context, filePath string) (string, error) {
	if err := ctxDone(ctx); err != nil {
		return "", err
	}

	query := fmt.Sprintf(`?[content_hash] := *%s{file_path, content_hash}, file_path = $path`, relFileHashCache)
	params := map[string]any{"path": filePath}

	b.locks.fileHashCache.RLock()
	result, err := b.db.RunReadOnly(query, params)
	b.locks.fileHashCache.RUnlock()
	if err != nil {
		return "", fmt.Errorf("get cached hash: %w", err)
	}
	if len(result.Rows) == 0 {
		return "", nil
	}
	return asString(result.Rows[0][0]), nil
}

// SetCachedHash updates FileHashCache[filePath] after a successful
// ingestion or reindex (§4.4 step 5, §4.5 step 9).
func (b *EmbeddedBackend) SetCachedHash(ctx context.Context, filePath, hash string) error {
	if err := ctxDone(ctx); err != nil {
		return err
	}

	query := fmt.Sprintf(`?[file_path, content_hash] <- [["%s","%s"]] :put %s {file_path, content_hash}`,
		escapeForStorage(filePath), escapeForStorage(hash), relFileHashCache)

	b.locks.fileHashCache.Lock()
	defer b.locks.fileHashCache.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("set cached hash: %w", err)
	}
	return nil
}

// ClearCachedHash removes a file's hash-cache row, forcing the next
// reindex past the fast path (used when a parse failure invalidates a
// file per §4.5 step 4).
func (b *EmbeddedBackend) ClearCachedHash(ctx context.Context, filePath string) error {
	if err := ctxDone(ctx); err != nil {
		return err
	}

	query := fmt.Sprintf(`?[file_path] <- [["%s"]] :rm %s {file_path}`, escapeForStorage(filePath), relFileHashCache)

	b.locks.fileHashCache.Lock()
	defer b.locks.fileHashCache.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("clear cached hash: %w", err)
	}
	return nil
}

// UpsertTestEntitiesExcludedBatch records detected-but-excluded test
// entities for coverage diagnostics (§3.5 relation 4).
func (b *EmbeddedBackend) UpsertTestEntitiesExcludedBatch(ctx context.Context, entities []TestEntityExcluded) error {
	if len(entities) == 0 {
		return nil
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	var rows []string
	for _, e := range entities {
		rows = append(rows, fmt.Sprintf(`["%s","%s","%s","%s",%d,%d,"%s"]`,
			escapeForStorage(string(e.Key)),
			escapeForStorage(e.EntityType),
			escapeForStorage(e.Language),
			escapeForStorage(e.FilePath),
			e.StartLine, e.EndLine,
			escapeForStorage(e.Name),
		))
	}
	query := fmt.Sprintf(
		`?[key, entity_type, language, file_path, start_line, end_line, name] <- [%s] :put %s {key, entity_type, language, file_path, start_line, end_line, name}`,
		strings.Join(rows, ","), relTestEntitiesExcluded)

	b.locks.testEntitiesExcluded.Lock()
	defer b.locks.testEntitiesExcluded.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("upsert excluded test entities: %w", err)
	}
	return nil
}

// ReplaceFileWordCoverage clears any existing coverage row for filePath and
// writes a fresh one. Diagnostics relations are append-on-reingest,
// cleared per-file before reinsert (§3.5 lifecycle).
func (b *EmbeddedBackend) ReplaceFileWordCoverage(ctx context.Context, c FileWordCoverage) error {
	if err := ctxDone(ctx); err != nil {
		return err
	}

	del := fmt.Sprintf(`?[file_path] <- [["%s"]] :rm %s {file_path}`, escapeForStorage(c.FilePath), relFileWordCoverage)
	put := fmt.Sprintf(
		`?[file_path, source_words, entity_words, raw_coverage_pct, effective_coverage_pct] <- [["%s",%d,%d,%f,%f]] :put %s {file_path, source_words, entity_words, raw_coverage_pct, effective_coverage_pct}`,
		escapeForStorage(c.FilePath), c.SourceWords, c.EntityWords, c.RawCoveragePct, c.EffectiveCoveragePct, relFileWordCoverage)

	b.locks.fileWordCoverage.Lock()
	defer b.locks.fileWordCoverage.Unlock()
	if _, err := b.db.Run(del, nil); err != nil {
		return fmt.Errorf("clear file word coverage: %w", err)
	}
	if _, err := b.db.Run(put, nil); err != nil {
		return fmt.Errorf("put file word coverage: %w", err)
	}
	return nil
}

// ReplaceFileWordCoverageBatch clears and rewrites coverage rows for every
// file in the batch in one statement, the batched counterpart of
// ReplaceFileWordCoverage used by the ingestion pipeline's per-relation
// fan-out (§4.4 step 4) so this relation's task doesn't serialize into one
// Datalog round-trip per file.
func (b *EmbeddedBackend) ReplaceFileWordCoverageBatch(ctx context.Context, coverage []FileWordCoverage) error {
	if len(coverage) == 0 {
		return nil
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	var delRows, putRows []string
	for _, c := range coverage {
		delRows = append(delRows, fmt.Sprintf(`["%s"]`, escapeForStorage(c.FilePath)))
		putRows = append(putRows, fmt.Sprintf(`["%s",%d,%d,%f,%f]`,
			escapeForStorage(c.FilePath), c.SourceWords, c.EntityWords, c.RawCoveragePct, c.EffectiveCoveragePct))
	}
	del := fmt.Sprintf(`?[file_path] <- [%s] :rm %s {file_path}`, strings.Join(delRows, ","), relFileWordCoverage)
	put := fmt.Sprintf(
		`?[file_path, source_words, entity_words, raw_coverage_pct, effective_coverage_pct] <- [%s] :put %s {file_path, source_words, entity_words, raw_coverage_pct, effective_coverage_pct}`,
		strings.Join(putRows, ","), relFileWordCoverage)

	b.locks.fileWordCoverage.Lock()
	defer b.locks.fileWordCoverage.Unlock()
	if _, err := b.db.Run(del, nil); err != nil {
		return fmt.Errorf("clear file word coverage batch: %w", err)
	}
	if _, err := b.db.Run(put, nil); err != nil {
		return fmt.Errorf("put file word coverage batch: %w", err)
	}
	return nil
}

// UpsertIgnoredFilesBatch records files the walk or parser declined to
// index, with a reason (§3.5 relation 5, §4.4 step 1).
func (b *EmbeddedBackend) UpsertIgnoredFilesBatch(ctx context.Context, files []IgnoredFile) error {
	if len(files) == 0 {
		return nil
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	var rows []string
	for _, f := range files {
		rows = append(rows, fmt.Sprintf(`["%s","%s"]`, escapeForStorage(f.FilePath), escapeForStorage(f.Reason)))
	}
	query := fmt.Sprintf(`?[file_path, reason] <- [%s] :put %s {file_path, reason}`, strings.Join(rows, ","), relIgnoredFiles)

	b.locks.ignoredFiles.Lock()
	defer b.locks.ignoredFiles.Unlock()
	_, err := b.db.Run(query, nil)
	if err != nil {
		return fmt.Errorf("upsert ignored files: %w", err)
	}
	return nil
}

func ctxDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
