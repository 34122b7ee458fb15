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

// Package query implements the Query Layer (C7): read-only primitives over
// the storage engine, built from the teacher's pkg/tools (search.go,
// trace.go, find_type.go, status.go) — those functions already run
// Datalog against a Querier-shaped interface and already implement
// one-hop callers/callees and BFS-style path search. This package
// generalizes their text-formatted MCP-tool output into the JSON-
// returning query functions spec.md §4.7 names, keeping the teacher's
// interface-dispatch-aware resolution as the grounding for `calls` edge
// traversal (pkg/ingestion/resolver.go carries that same idea forward
// into C4's edge resolution).
package query

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	cieerrors "github.com/kraklabs/cie-graph/internal/errors"
	"github.com/kraklabs/cie-graph/pkg/analytics"
	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/sigparse"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

// Service answers every C7 query against one storage backend. rootDir is
// needed only by GetEntityDetail, which re-reads an entity's source lines
// from disk rather than duplicating file contents into the database.
type Service struct {
	backend *storage.EmbeddedBackend
	rootDir string
	logger  *slog.Logger
}

// New constructs a query Service.
func New(backend *storage.EmbeddedBackend, rootDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, rootDir: rootDir, logger: logger}
}

// ListFilter narrows ListEntities: entity type, language, and scope
// (§4.7 "folder prefix"). Scope accepts the `L1||L2` OR-of-prefixes
// syntax (see scope.go).
type ListFilter struct {
	EntityType string
	Language   string
	Scope      string
}

// ListEntities implements list_entities(filters).
func (s *Service) ListEntities(ctx context.Context, filter ListFilter) ([]storage.Entity, error) {
	prefixes, err := s.resolveScope(ctx, filter.Scope)
	if err != nil {
		return nil, err
	}

	if len(prefixes) <= 1 {
		prefix := ""
		if len(prefixes) == 1 {
			prefix = prefixes[0]
		}
		return s.backend.ListEntities(ctx, storage.EntityFilter{
			EntityType: filter.EntityType, Language: filter.Language, ScopePrefix: prefix,
		})
	}

	// Multiple OR'd scope prefixes: CozoScript modeling them as one
	// Datalog query needs a union rule per prefix; it is simpler and
	// exactly as correct to query once per prefix and merge in Go, since
	// scope specs are small (a handful of folders at most).
	seen := make(map[identity.Key]bool)
	var merged []storage.Entity
	for _, prefix := range prefixes {
		rows, err := s.backend.ListEntities(ctx, storage.EntityFilter{
			EntityType: filter.EntityType, Language: filter.Language, ScopePrefix: prefix,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range rows {
			if !seen[e.Key] {
				seen[e.Key] = true
				merged = append(merged, e)
			}
		}
	}
	return merged, nil
}

// SearchEntitiesFuzzy implements search_entities_fuzzy(pattern).
func (s *Service) SearchEntitiesFuzzy(ctx context.Context, pattern string) ([]storage.Entity, error) {
	return s.backend.SearchEntitiesFuzzy(ctx, pattern)
}

// EntityDetail is an entity plus its source body, reconstructed from disk
// at query time (§4.7 get_entity_detail: "entity + its code body").
type EntityDetail struct {
	storage.Entity
	Body   string
	Params []sigparse.ParamInfo
}

// GetEntityDetail implements get_entity_detail(key).
func (s *Service) GetEntityDetail(ctx context.Context, key identity.Key) (*EntityDetail, error) {
	entity, ok, err := s.backend.GetEntityByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cieerrors.NewNotFoundError(
			"entity not found", fmt.Sprintf("no entity with key %q", key),
			"verify the key via /code-entities-search-fuzzy", nil,
		)
	}
	body, _ := s.readBody(entity.FilePath, entity.StartLine, entity.EndLine)
	detail := &EntityDetail{Entity: entity, Body: body}
	if entity.Language == "go" && (entity.EntityType == "function" || entity.EntityType == "method") {
		detail.Params = sigparse.ParseGoParams(entity.Signature)
	}
	return detail, nil
}

func (s *Service) readBody(relPath string, start, end int) (string, error) {
	if s.rootDir == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(s.rootDir, relPath)) //nolint:gosec // relPath is a stored entity path, not user-controlled at this layer
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(data), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", nil
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

// EdgeFilter narrows ListEdges (§4.7 list_edges(filters)).
type EdgeFilter struct {
	EdgeType string
}

// ListEdges implements list_edges(filters).
func (s *Service) ListEdges(ctx context.Context, filter EdgeFilter) ([]storage.Edge, error) {
	all, err := s.backend.ListAllEdges(ctx)
	if err != nil {
		return nil, err
	}
	if filter.EdgeType == "" {
		return all, nil
	}
	var filtered []storage.Edge
	for _, e := range all {
		if e.EdgeType == filter.EdgeType {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// resolveEntityOrExternal returns the stored entity for key, or a
// synthesized stand-in when key is an external-dependency placeholder
// that was never written to Entities (§3.4: external placeholders close
// the graph but are not themselves indexed as code).
func (s *Service) resolveEntityOrExternal(ctx context.Context, key identity.Key) (storage.Entity, error) {
	entity, ok, err := s.backend.GetEntityByKey(ctx, key)
	if err != nil {
		return storage.Entity{}, err
	}
	if ok {
		return entity, nil
	}
	language, entityType, sanitizedName, _, _, splitOK := identity.Split(key)
	if !splitOK || entityType != "external" {
		return storage.Entity{Key: key, Name: string(key)}, nil
	}
	return storage.Entity{
		Key:         key,
		EntityType:  storage.EntityTypeExternal,
		EntityClass: storage.EntityClassExternalDependency,
		Language:    language,
		Name:        identity.DesanitizeName(sanitizedName),
	}, nil
}

// Callers implements callers(key): one-hop reverse neighbors via Edges.
func (s *Service) Callers(ctx context.Context, key identity.Key) ([]storage.Entity, error) {
	edges, err := s.backend.EdgesTo(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.entitiesForEdgeEnds(ctx, edges, true)
}

// Callees implements callees(key): one-hop forward neighbors via Edges.
func (s *Service) Callees(ctx context.Context, key identity.Key) ([]storage.Entity, error) {
	edges, err := s.backend.EdgesFrom(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.entitiesForEdgeEnds(ctx, edges, false)
}

func (s *Service) entitiesForEdgeEnds(ctx context.Context, edges []storage.Edge, fromEnd bool) ([]storage.Entity, error) {
	seen := make(map[identity.Key]bool)
	var out []storage.Entity
	for _, e := range edges {
		k := e.ToKey
		if fromEnd {
			k = e.FromKey
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		entity, err := s.resolveEntityOrExternal(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// GraphView bundles nodes and edges for an exported subgraph (§4.7
// subgraph_export, graph_export_full).
type GraphView struct {
	Nodes     []storage.Entity
	Edges     []storage.Edge
	Truncated bool
}

// Cycles implements cycles(): Tarjan's SCC over the full Edges relation
// (§4.8).
func (s *Service) Cycles(ctx context.Context) ([]analytics.Component, error) {
	edges, err := s.backend.ListAllEdges(ctx)
	if err != nil {
		return nil, err
	}
	g := analytics.BuildGraph(toAnalyticsEdges(edges))
	return analytics.TarjanSCC(g), nil
}

func toAnalyticsEdges(edges []storage.Edge) []analytics.Edge {
	out := make([]analytics.Edge, len(edges))
	for i, e := range edges {
		out[i] = analytics.Edge{FromKey: e.FromKey, ToKey: e.ToKey}
	}
	return out
}
