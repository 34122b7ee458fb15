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

// Package httpapi is the local HTTP surface over the query layer. It is
// built from cmd/cie/serve.go's plain net/http.ServeMux (the teacher adds
// no router framework, so neither does this package) but re-routed to the
// descriptive endpoint names spec.md §6.1 names instead of the teacher's
// /v1/* RPC-style paths, and wrapped in a {success, endpoint, data}
// envelope the teacher's raw-CozoDB-row responses never had.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/cie-graph/internal/appstate"
	cieerrors "github.com/kraklabs/cie-graph/internal/errors"
)

// route is one registered endpoint: its path, purpose (for the
// self-describing catalog), and handler method.
type route struct {
	path    string
	purpose string
	handler func(*Server, http.ResponseWriter, *http.Request)
}

// routes is the single source of truth for both mux registration and the
// /api-reference-documentation-help catalog, so the two can never drift
// apart (spec.md §6.1 calls out exactly that drift as a historical defect
// source).
var routes = []route{
	{"/server-health-check-status", "Liveness, uptime, file_watcher_active, events_processed_total, and last_error.", (*Server).handleHealth},
	{"/codebase-statistics-overview-summary", "Entity/edge counts and languages detected.", (*Server).handleStats},
	{"/code-entities-list-all", "List entities; supports ?scope=, ?entity_type=, ?language=, ?preview=true.", (*Server).handleListEntities},
	{"/code-entity-detail-view", "Full entity detail including body, by ?key=.", (*Server).handleEntityDetail},
	{"/code-entities-search-fuzzy", "Case-insensitive substring search via ?q=.", (*Server).handleSearchFuzzy},
	{"/dependency-edges-list-all", "All edges; optional ?edge_type=.", (*Server).handleListEdges},
	{"/reverse-callers-query-graph", "One-hop reverse neighbors of ?entity=.", (*Server).handleCallers},
	{"/forward-callees-query-graph", "One-hop forward neighbors of ?entity=.", (*Server).handleCallees},
	{"/blast-radius-impact-analysis", "Bidirectional BFS from ?entity= out to ?hops=.", (*Server).handleBlastRadius},
	{"/circular-dependency-detection-scan", "Strongly connected components (Tarjan).", (*Server).handleCycles},
	{"/complexity-hotspots-ranking-view", "Entities ranked by composite centrality, top ?top=.", (*Server).handleHotspots},
	{"/smart-context-token-budget", "Knapsack-selected context bundle for ?focus= within ?tokens=.", (*Server).handleSmartContext},
	{"/dependency-subgraph-entity-export", "{nodes, edges} reachable from ?entity= within ?hops=.", (*Server).handleSubgraphExport},
	{"/dependency-graph-export-full", "{nodes, edges} for the whole graph, capped by ?max_nodes=/?max_edges=.", (*Server).handleGraphExportFull},
	{"/incremental-reindex-file-update", "Manually trigger a reindex of ?file_path=.", (*Server).handleReindexFile},
	{"/api-reference-documentation-help", "This catalog.", (*Server).handleCatalog},
}

// Server wires application state into the HTTP surface.
type Server struct {
	state     *appstate.State
	startedAt time.Time
	mux       *http.ServeMux
}

// New builds a Server and its mux. Call Handler() to obtain the
// http.Handler to serve.
func New(state *appstate.State) *Server {
	s := &Server{state: state, startedAt: time.Now(), mux: http.NewServeMux()}
	for _, r := range routes {
		handler := r.handler
		s.mux.HandleFunc(r.path, s.instrument(r.path, func(w http.ResponseWriter, req *http.Request) {
			handler(s, w, req)
		}))
	}
	s.mux.Handle("/metrics", promhttp.HandlerFor(state.Metrics.Registerer(), promhttp.HandlerOpts{}))
	return s
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		class := statusClass(rec.status)
		s.state.Metrics.HTTPRequestsTotal.WithLabelValues(path, class).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// envelope is every successful response's shape (spec.md §6.1).
type envelope struct {
	Success  bool   `json:"success"`
	Endpoint string `json:"endpoint"`
	Data     any    `json:"data"`
	Tokens   int    `json:"tokens,omitempty"`
}

// errorEnvelope is every failed response's shape.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, endpoint string, data any, tokens int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Endpoint: endpoint, Data: data, Tokens: tokens})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch cieerrors.KindOf(err) {
	case cieerrors.KindInput, cieerrors.KindParse:
		status = http.StatusBadRequest
	case cieerrors.KindNotFound:
		status = http.StatusNotFound
	case cieerrors.KindTransient:
		status = http.StatusServiceUnavailable
	case cieerrors.KindStorage, cieerrors.KindFatal:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Success: false, Error: err.Error()})
}
