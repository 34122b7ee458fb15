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

package analytics

import "github.com/kraklabs/cie-graph/pkg/identity"

// CentralityWeights controls how PageRank and betweenness combine into
// one composite score (§4.8 "composite score with weights settable").
type CentralityWeights struct {
	PageRank    float64
	Betweenness float64
}

// DefaultCentralityWeights favors PageRank, which is cheap and stable,
// over betweenness, which is informative but expensive on dense graphs.
var DefaultCentralityWeights = CentralityWeights{PageRank: 0.6, Betweenness: 0.4}

// CentralityResult is one node's ranking.
type CentralityResult struct {
	Key         identity.Key
	PageRank    float64
	Betweenness float64
	Composite   float64
}

const (
	pageRankDamping    = 0.85
	pageRankIterations = 50
	pageRankTolerance  = 1e-9
)

// Centrality computes PageRank (power iteration over the directed graph)
// and Brandes' betweenness centrality, then combines them per weights.
func Centrality(g *Graph, weights CentralityWeights) []CentralityResult {
	n := g.NodeCount()
	pr := pageRank(g)
	bc := betweenness(g)

	maxBC := 0.0
	for _, v := range bc {
		if v > maxBC {
			maxBC = v
		}
	}

	results := make([]CentralityResult, n)
	for i := 0; i < n; i++ {
		normBC := 0.0
		if maxBC > 0 {
			normBC = bc[i] / maxBC
		}
		results[i] = CentralityResult{
			Key:         g.Key(i),
			PageRank:    pr[i],
			Betweenness: normBC,
			Composite:   weights.PageRank*pr[i] + weights.Betweenness*normBC,
		}
	}
	return results
}

func pageRank(g *Graph) []float64 {
	n := g.NodeCount()
	if n == 0 {
		return nil
	}
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < pageRankIterations; iter++ {
		next := make([]float64, n)
		base := (1 - pageRankDamping) / float64(n)
		for i := range next {
			next[i] = base
		}
		var danglingMass float64
		for i := 0; i < n; i++ {
			outDeg := len(g.out[i])
			if outDeg == 0 {
				danglingMass += rank[i]
				continue
			}
			share := pageRankDamping * rank[i] / float64(outDeg)
			for _, w := range g.out[i] {
				next[w] += share
			}
		}
		if danglingMass > 0 {
			redistribute := pageRankDamping * danglingMass / float64(n)
			for i := range next {
				next[i] += redistribute
			}
		}

		delta := 0.0
		for i := range next {
			d := next[i] - rank[i]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < pageRankTolerance {
			break
		}
	}
	return rank
}

// betweenness implements Brandes' algorithm (unweighted, directed):
// O(V*E) single-source shortest-path accumulation from every node.
func betweenness(g *Graph) []float64 {
	n := g.NodeCount()
	centrality := make([]float64, n)

	for s := 0; s < n; s++ {
		stack := make([]int, 0, n)
		preds := make([][]int, n)
		sigma := make([]float64, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
		}
		sigma[s] = 1
		dist[s] = 0

		queue := []int{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range g.out[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		delta := make([]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				if sigma[w] > 0 {
					delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
				}
			}
			if w != s {
				centrality[w] += delta[w]
			}
		}
	}
	return centrality
}
