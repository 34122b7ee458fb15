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

// Package analytics implements the Graph Analytics component (C8): seven
// independent, read-only algorithms over an in-memory adjacency-list view
// of the Edges relation. None of the teacher's packages touch graph
// algorithms — this package is grounded instead on the worker-pool and
// BFS idioms already established elsewhere in the transformed module
// (pkg/ingestion/resolver.go's bounded worker pool, the BFS shape
// pkg/query's traversal functions share), applied fresh to graph theory.
package analytics

import "github.com/kraklabs/cie-graph/pkg/identity"

// Graph is a directed adjacency-list snapshot: read-only once built, safe
// for concurrent use by any number of algorithms at once (§4.8 "none
// mutate the graph").
type Graph struct {
	nodes []identity.Key
	index map[identity.Key]int
	out   [][]int // out[i] = indices of nodes i has an edge to
	in    [][]int // in[i] = indices of nodes with an edge to i
}

// Edge is the minimal shape BuildGraph needs from storage.Edge, kept
// decoupled from pkg/storage so this package has no import-cycle risk
// with the query layer that constructs it.
type Edge struct {
	FromKey identity.Key
	ToKey   identity.Key
}

// BuildGraph constructs an adjacency-list view from a flat edge list.
// Duplicate edges collapse (multigraphs have no extra meaning for any of
// C8's seven algorithms). Isolated nodes (entities with no edges) are not
// included — every algorithm here operates on connectivity, and a node
// with no edges contributes nothing to any of the seven outputs.
func BuildGraph(edges []Edge) *Graph {
	g := &Graph{index: make(map[identity.Key]int)}

	nodeID := func(k identity.Key) int {
		if id, ok := g.index[k]; ok {
			return id
		}
		id := len(g.nodes)
		g.index[k] = id
		g.nodes = append(g.nodes, k)
		g.out = append(g.out, nil)
		g.in = append(g.in, nil)
		return id
	}

	seen := make(map[[2]int]bool)
	for _, e := range edges {
		from := nodeID(e.FromKey)
		to := nodeID(e.ToKey)
		if from == to {
			continue
		}
		pair := [2]int{from, to}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		g.out[from] = append(g.out[from], to)
		g.in[to] = append(g.in[to], from)
	}
	return g
}

// NodeCount returns the number of distinct nodes touched by at least one edge.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Key returns the identity.Key for an internal node index.
func (g *Graph) Key(i int) identity.Key { return g.nodes[i] }

// Degree returns a node's out-degree and in-degree.
func (g *Graph) Degree(i int) (out, in int) { return len(g.out[i]), len(g.in[i]) }
