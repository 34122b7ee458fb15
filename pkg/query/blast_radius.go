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

package query

import (
	"context"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

// BlastRadius implements blast_radius(key, hops, max_nodes): a bidirectional
// breadth-first walk out to hops levels, exploring both callers and callees
// at every step so the result captures "what breaks if this changes" in
// either direction. maxNodes <= 0 means unbounded.
func (s *Service) BlastRadius(ctx context.Context, focus identity.Key, hops, maxNodes int) (*GraphView, error) {
	allEdges, err := s.backend.ListAllEdges(ctx)
	if err != nil {
		return nil, err
	}

	adjOut := make(map[identity.Key][]identity.Key)
	adjIn := make(map[identity.Key][]identity.Key)
	for _, e := range allEdges {
		adjOut[e.FromKey] = append(adjOut[e.FromKey], e.ToKey)
		adjIn[e.ToKey] = append(adjIn[e.ToKey], e.FromKey)
	}

	visited := map[identity.Key]bool{focus: true}
	frontier := []identity.Key{focus}
	truncated := false

	for level := 0; level < hops && len(frontier) > 0; level++ {
		var next []identity.Key
		for _, k := range frontier {
			for _, n := range append(append([]identity.Key{}, adjOut[k]...), adjIn[k]...) {
				if visited[n] {
					continue
				}
				if maxNodes > 0 && len(visited) >= maxNodes {
					truncated = true
					continue
				}
				visited[n] = true
				next = append(next, n)
			}
		}
		frontier = next
	}

	nodes := make([]storage.Entity, 0, len(visited))
	for k := range visited {
		entity, err := s.resolveEntityOrExternal(ctx, k)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, entity)
	}

	var edges []storage.Edge
	for _, e := range allEdges {
		if visited[e.FromKey] && visited[e.ToKey] {
			edges = append(edges, e)
		}
	}

	return &GraphView{Nodes: nodes, Edges: edges, Truncated: truncated}, nil
}

// SubgraphExport implements subgraph_export(key, hops, max_nodes): identical
// traversal to BlastRadius, exposed separately because the spec treats them
// as distinct named operations with independent callers (impact analysis
// vs. LLM-context graph export), even though both walk the same bidirectional
// BFS.
func (s *Service) SubgraphExport(ctx context.Context, focus identity.Key, hops, maxNodes int) (*GraphView, error) {
	return s.BlastRadius(ctx, focus, hops, maxNodes)
}

// GraphExportFull implements graph_export_full(max_nodes, max_edges): the
// whole indexed graph, truncated to the given caps with dangling edges
// (either endpoint missing from the truncated node set) dropped.
func (s *Service) GraphExportFull(ctx context.Context, maxNodes, maxEdges int) (*GraphView, error) {
	entities, err := s.backend.ListEntities(ctx, storage.EntityFilter{})
	if err != nil {
		return nil, err
	}
	allEdges, err := s.backend.ListAllEdges(ctx)
	if err != nil {
		return nil, err
	}

	truncated := false
	if maxNodes > 0 && len(entities) > maxNodes {
		entities = entities[:maxNodes]
		truncated = true
	}

	present := make(map[identity.Key]bool, len(entities))
	for _, e := range entities {
		present[e.Key] = true
	}

	var edges []storage.Edge
	for _, e := range allEdges {
		if !present[e.FromKey] || !present[e.ToKey] {
			continue
		}
		if maxEdges > 0 && len(edges) >= maxEdges {
			truncated = true
			break
		}
		edges = append(edges, e)
	}

	return &GraphView{Nodes: entities, Edges: edges, Truncated: truncated}, nil
}
