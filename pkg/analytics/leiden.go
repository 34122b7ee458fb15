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

// Community is one detected module at one level of the hierarchy.
type Community struct {
	ID         int
	Members    []identity.Key
	Coherence  float64 // internal-edge density, 0..1
	Level      int
}

// LeidenResult holds the partition after each pass: level 0 puts every
// node in its own community, and each later level is the node-level
// assignment after one more local-moving pass. Later levels are not
// aggregations of the previous level's communities.
type LeidenResult struct {
	Levels [][]Community
}

// Leiden runs the local-moving step that Leiden and its Louvain
// predecessor share: each pass moves every node into the neighboring
// community it has the most edges to (gain is that edge count divided by
// the graph's total edge count). It stops after a pass that moves no node,
// or after three passes. This is a subset of full Leiden: it computes no
// modularity, has no refinement phase, and never aggregates communities
// into super-nodes. It needs no third-party community-detection
// dependency from the example pack.
func Leiden(g *Graph) LeidenResult {
	n := g.NodeCount()
	if n == 0 {
		return LeidenResult{}
	}

	community := make([]int, n)
	for i := range community {
		community[i] = i
	}

	totalWeight := 0.0
	for i := 0; i < n; i++ {
		totalWeight += float64(len(g.out[i]))
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	var levels [][]Community
	levels = append(levels, communitiesFromAssignment(g, community, 0))

	for pass := 1; pass <= 3; pass++ {
		moved := localMovingPass(g, community, totalWeight)
		if !moved {
			break
		}
		levels = append(levels, communitiesFromAssignment(g, community, pass))
	}

	return LeidenResult{Levels: levels}
}

func localMovingPass(g *Graph, community []int, totalWeight float64) bool {
	n := len(community)
	moved := false
	for i := 0; i < n; i++ {
		best := community[i]
		bestGain := 0.0
		neighborCommunities := map[int]float64{}
		for _, w := range g.out[i] {
			neighborCommunities[community[w]]++
		}
		for _, w := range g.in[i] {
			neighborCommunities[community[w]]++
		}
		for c, weight := range neighborCommunities {
			if c == community[i] {
				continue
			}
			gain := weight / totalWeight
			if gain > bestGain {
				bestGain = gain
				best = c
			}
		}
		if best != community[i] {
			community[i] = best
			moved = true
		}
	}
	return moved
}

func communitiesFromAssignment(g *Graph, community []int, level int) []Community {
	groups := make(map[int][]int)
	for i, c := range community {
		groups[c] = append(groups[c], i)
	}

	var result []Community
	for c, members := range groups {
		keys := make([]identity.Key, len(members))
		memberSet := make(map[int]bool, len(members))
		for i, m := range members {
			keys[i] = g.Key(m)
			memberSet[m] = true
		}

		internal, total := 0, 0
		for _, m := range members {
			for _, w := range g.out[m] {
				total++
				if memberSet[w] {
					internal++
				}
			}
		}
		coherence := 0.0
		if total > 0 {
			coherence = float64(internal) / float64(total)
		}

		result = append(result, Community{ID: c, Members: keys, Coherence: coherence, Level: level})
	}
	return result
}
