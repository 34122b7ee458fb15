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

package httpapi

import (
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	cieerrors "github.com/kraklabs/cie-graph/internal/errors"
	"github.com/kraklabs/cie-graph/pkg/analytics"
	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/query"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":              "ok",
		"uptime_seconds":      time.Since(s.startedAt).Seconds(),
		"file_watcher_active": s.state.Watcher != nil,
	}
	if fw := s.state.Watcher; fw != nil {
		body["events_processed_total"] = fw.EventsProcessed()
		body["watcher_errors_total"] = fw.ErrorsTotal()
		body["last_error"] = fw.LastError()
	}
	writeJSON(w, "/server-health-check-status", body, 0)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entities, err := s.state.Query.ListEntities(ctx, query.ListFilter{})
	if err != nil {
		writeError(w, err)
		return
	}
	edges, err := s.state.Query.ListEdges(ctx, query.EdgeFilter{})
	if err != nil {
		writeError(w, err)
		return
	}
	languages := map[string]bool{}
	for _, e := range entities {
		languages[e.Language] = true
	}
	var langList []string
	for l := range languages {
		langList = append(langList, l)
	}
	sort.Strings(langList)

	writeJSON(w, "/codebase-statistics-overview-summary", map[string]any{
		"entity_count": len(entities),
		"edge_count":   len(edges),
		"languages":    langList,
	}, 0)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entities, err := s.state.Query.ListEntities(r.Context(), query.ListFilter{
		EntityType: q.Get("entity_type"),
		Language:   q.Get("language"),
		Scope:      q.Get("scope"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if q.Get("preview") == "true" {
		previews := make([]map[string]any, len(entities))
		for i, e := range entities {
			previews[i] = map[string]any{
				"key": e.Key, "name": e.Name, "entity_type": e.EntityType,
				"signature": e.Signature, "content_hash": e.ContentHash,
			}
		}
		writeJSON(w, "/code-entities-list-all", previews, 0)
		return
	}
	writeJSON(w, "/code-entities-list-all", entities, 0)
}

func (s *Server) handleEntityDetail(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, cieerrors.NewInputError("missing key", "?key= is required", "pass the entity key as a query parameter", nil))
		return
	}
	detail, err := s.state.Query.GetEntityDetail(r.Context(), identity.Key(key))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/code-entity-detail-view", detail, 0)
}

func (s *Server) handleSearchFuzzy(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("q")
	if pattern == "" {
		writeError(w, cieerrors.NewInputError("missing query", "?q= is required", "pass a search substring as a query parameter", nil))
		return
	}
	results, err := s.state.Query.SearchEntitiesFuzzy(r.Context(), pattern)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/code-entities-search-fuzzy", results, 0)
}

func (s *Server) handleListEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := s.state.Query.ListEdges(r.Context(), query.EdgeFilter{EdgeType: r.URL.Query().Get("edge_type")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/dependency-edges-list-all", edges, 0)
}

func (s *Server) handleCallers(w http.ResponseWriter, r *http.Request) {
	key, ok := requireEntity(w, r)
	if !ok {
		return
	}
	result, err := s.state.Query.Callers(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/reverse-callers-query-graph", result, 0)
}

func (s *Server) handleCallees(w http.ResponseWriter, r *http.Request) {
	key, ok := requireEntity(w, r)
	if !ok {
		return
	}
	result, err := s.state.Query.Callees(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/forward-callees-query-graph", result, 0)
}

func (s *Server) handleBlastRadius(w http.ResponseWriter, r *http.Request) {
	key, ok := requireEntity(w, r)
	if !ok {
		return
	}
	hops := intParam(r, "hops", 2)
	maxNodes := intParam(r, "max_nodes", 0)
	view, err := s.state.Query.BlastRadius(r.Context(), key, hops, maxNodes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/blast-radius-impact-analysis", graphViewPayload(view), 0)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	components, err := s.state.Query.Cycles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/circular-dependency-detection-scan", components, 0)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	top := intParam(r, "top", 20)

	edges, err := s.state.Query.ListEdges(ctx, query.EdgeFilter{})
	if err != nil {
		writeError(w, err)
		return
	}
	analyticsEdges := make([]analytics.Edge, len(edges))
	for i, e := range edges {
		analyticsEdges[i] = analytics.Edge{FromKey: e.FromKey, ToKey: e.ToKey}
	}
	g := analytics.BuildGraph(analyticsEdges)
	results := analytics.Centrality(g, analytics.DefaultCentralityWeights)

	sort.Slice(results, func(i, j int) bool { return results[i].Composite > results[j].Composite })
	if top > 0 && len(results) > top {
		results = results[:top]
	}
	writeJSON(w, "/complexity-hotspots-ranking-view", results, 0)
}

func (s *Server) handleSmartContext(w http.ResponseWriter, r *http.Request) {
	focus := r.URL.Query().Get("focus")
	if focus == "" {
		writeError(w, cieerrors.NewInputError("missing focus", "?focus= is required", "pass the focus entity key as a query parameter", nil))
		return
	}
	tokens := intParam(r, "tokens", 4000)
	result, err := s.state.Query.SmartContext(r.Context(), identity.Key(focus), tokens)
	if err != nil {
		writeError(w, err)
		return
	}
	spent := 0
	for _, e := range result.Entries {
		spent += e.EstTokens
	}
	writeJSON(w, "/smart-context-token-budget", result, spent)
}

func (s *Server) handleSubgraphExport(w http.ResponseWriter, r *http.Request) {
	key, ok := requireEntity(w, r)
	if !ok {
		return
	}
	hops := intParam(r, "hops", 2)
	maxNodes := intParam(r, "max_nodes", 0)
	view, err := s.state.Query.SubgraphExport(r.Context(), key, hops, maxNodes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/dependency-subgraph-entity-export", graphViewPayload(view), 0)
}

func (s *Server) handleGraphExportFull(w http.ResponseWriter, r *http.Request) {
	maxNodes := intParam(r, "max_nodes", 5000)
	maxEdges := intParam(r, "max_edges", 20000)
	view, err := s.state.Query.GraphExportFull(r.Context(), maxNodes, maxEdges)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/dependency-graph-export-full", graphViewPayload(view), 0)
}

func (s *Server) handleReindexFile(w http.ResponseWriter, r *http.Request) {
	relPath := r.URL.Query().Get("file_path")
	if relPath == "" {
		writeError(w, cieerrors.NewInputError("missing file_path", "?file_path= is required", "pass a repo-relative file path", nil))
		return
	}
	fullPath := filepath.Join(s.state.RootDir, relPath)
	diff, err := s.state.Reindexer.Reindex(r.Context(), fullPath, relPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, "/incremental-reindex-file-update", diff, 0)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := make([]map[string]string, len(routes))
	for i, rt := range routes {
		catalog[i] = map[string]string{"path": rt.path, "purpose": rt.purpose}
	}
	writeJSON(w, "/api-reference-documentation-help", map[string]any{
		"routes": catalog,
		"count":  len(routes),
	}, 0)
}

func requireEntity(w http.ResponseWriter, r *http.Request) (identity.Key, bool) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		writeError(w, cieerrors.NewInputError("missing entity", "?entity= is required", "pass the entity key as a query parameter", nil))
		return "", false
	}
	return identity.Key(entity), true
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func graphViewPayload(view *query.GraphView) map[string]any {
	return map[string]any{
		"nodes":     nodesOrEmpty(view.Nodes),
		"edges":     edgesOrEmpty(view.Edges),
		"truncated": view.Truncated,
	}
}

func nodesOrEmpty(nodes []storage.Entity) []storage.Entity {
	if nodes == nil {
		return []storage.Entity{}
	}
	return nodes
}

func edgesOrEmpty(edges []storage.Edge) []storage.Edge {
	if edges == nil {
		return []storage.Edge{}
	}
	return edges
}
