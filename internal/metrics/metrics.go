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

// Package metrics exposes the process's Prometheus counters and
// histograms on /metrics. The teacher's go.mod already required
// github.com/prometheus/client_golang without wiring it into any kept
// file; this package gives that dependency its home: ingestion and
// reindex counters, watcher event counters, and query-duration
// histograms, all scraped from internal/httpapi's own mux.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the set of metrics one serving process exposes. It is
// constructed once by New (called from internal/appstate.New) and threaded through the
// components that increment it — never a package-level global, so tests
// can construct isolated registries.
type Registry struct {
	FilesIndexed      prometheus.Counter
	EntitiesIndexed   prometheus.Counter
	EdgesIndexed      prometheus.Counter
	ReindexLatency    prometheus.Histogram
	ReindexFastPath   prometheus.Counter
	WatcherEvents     prometheus.Counter
	WatcherErrors     prometheus.Counter
	QueryDuration     *prometheus.HistogramVec
	HTTPRequestsTotal *prometheus.CounterVec

	reg *prometheus.Registry
}

// New constructs a Registry with its own prometheus.Registry so multiple
// serve-http instances in the same test process never collide on
// default-registerer global state.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		FilesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cie_files_indexed_total",
			Help: "Files successfully parsed and written to the graph.",
		}),
		EntitiesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cie_entities_indexed_total",
			Help: "Entities written to the Entities relation.",
		}),
		EdgesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cie_edges_indexed_total",
			Help: "Edges written to the Edges relation.",
		}),
		ReindexLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cie_reindex_duration_seconds",
			Help:    "Wall-clock time of one incremental reindex (C5).",
			Buckets: prometheus.DefBuckets,
		}),
		ReindexFastPath: factory.NewCounter(prometheus.CounterOpts{
			Name: "cie_reindex_fast_path_total",
			Help: "Reindex calls short-circuited by an unchanged hash (§4.5 step 2, P5).",
		}),
		WatcherEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "cie_watcher_events_processed_total",
			Help: "File-watcher events dispatched to a reindex (§4.6 status telemetry).",
		}),
		WatcherErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cie_watcher_errors_total",
			Help: "File-watcher dispatch failures, isolated per file.",
		}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cie_query_duration_seconds",
			Help:    "Query-layer (C7) call duration by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cie_http_requests_total",
			Help: "HTTP requests by route and status class.",
		}, []string{"route", "status"}),
	}
}

// Registerer exposes the underlying prometheus.Registry for promhttp.HandlerFor.
func (r *Registry) Registerer() *prometheus.Registry { return r.reg }
