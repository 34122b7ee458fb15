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
	"sort"

	"github.com/kraklabs/cie-graph/pkg/analytics"
	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

// Smart context scoring weights (spec §4.7 smart_context): dependency
// distance from focus, shared-cluster membership, graph centrality, and
// temporal coupling, combined as a weighted sum before the greedy
// knapsack fill.
const (
	weightDependencyDistance = 0.30
	weightSharedCluster      = 0.25
	weightCentrality         = 0.20
	weightTemporalCoupling   = 0.25
)

// roughTokensPerLine approximates an entity's token cost from its line
// span, since the database does not store a body length; GetEntityDetail
// reads the real body only when a caller asks for one entity's detail,
// which would be too many file reads to do for every candidate in a
// budget fill.
const roughTokensPerLine = 12

// ContextEntry is one entity admitted into a smart_context bundle.
type ContextEntry struct {
	Entity    storage.Entity
	Score     float64
	EstTokens int
}

// SmartContextResult is the full bundle plus whether the budget forced a
// truncation before every reachable entity could be admitted.
type SmartContextResult struct {
	Entries     []ContextEntry
	Truncated   bool
	Degraded    bool
	DegradedWhy string
}

// SmartContext implements smart_context(focus, token_budget): a greedy
// knapsack over entities reachable from focus, admitting candidates in
// descending score order and skipping any whose token cost would exceed
// the budget left. When focus does not resolve to a known entity, this
// falls back to a file-scoped bundle (every entity whose semantic path
// equals focus's encoded semantic path, i.e. the same file, if any)
// rather than failing outright.
func (s *Service) SmartContext(ctx context.Context, focus identity.Key, tokenBudget int) (*SmartContextResult, error) {
	entities, err := s.backend.ListEntities(ctx, storage.EntityFilter{})
	if err != nil {
		return nil, err
	}
	allEdges, err := s.backend.ListAllEdges(ctx)
	if err != nil {
		return nil, err
	}

	focusEntity, ok, err := s.backend.GetEntityByKey(ctx, focus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.fileScopedFallback(entities, focus, tokenBudget)
	}

	g := analytics.BuildGraph(toAnalyticsEdges(allEdges))
	centrality := analytics.Centrality(g, analytics.DefaultCentralityWeights)
	centralityByKey := make(map[identity.Key]float64, len(centrality))
	for _, c := range centrality {
		centralityByKey[c.Key] = c.Composite
	}

	communities := analytics.Leiden(g)
	communityOf := make(map[identity.Key]int)
	if len(communities.Levels) > 0 {
		finest := communities.Levels[0]
		for _, c := range finest {
			for _, m := range c.Members {
				communityOf[m] = c.ID
			}
		}
	}
	focusCommunity, hasFocusCommunity := communityOf[focus]

	distances := bfsDistances(allEdges, focus)
	maxDist := 0
	for _, d := range distances {
		if d > maxDist {
			maxDist = d
		}
	}
	if maxDist == 0 {
		maxDist = 1
	}

	type scored struct {
		entity storage.Entity
		score  float64
	}
	var candidates []scored
	for _, e := range entities {
		if e.Key == focus {
			continue
		}
		dist, reachable := distances[e.Key]
		if !reachable {
			continue
		}

		distanceScore := 1.0 - float64(dist)/float64(maxDist+1)

		clusterScore := 0.0
		if hasFocusCommunity {
			if c, ok := communityOf[e.Key]; ok && c == focusCommunity {
				clusterScore = 1.0
			}
		}

		centralityScore := centralityByKey[e.Key]

		// Real temporal coupling needs git-log co-change history, which is
		// out of scope for a single embedded query call; same-file
		// co-location is used as a proxy signal (entities that change
		// together tend to live together), documented as a deliberate
		// approximation.
		temporalScore := 0.0
		if e.FilePath == focusEntity.FilePath {
			temporalScore = 1.0
		}

		score := weightDependencyDistance*distanceScore +
			weightSharedCluster*clusterScore +
			weightCentrality*centralityScore +
			weightTemporalCoupling*temporalScore

		candidates = append(candidates, scored{entity: e, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var entries []ContextEntry
	budget := tokenBudget
	truncated := false
	for _, c := range candidates {
		est := estTokens(c.entity)
		if tokenBudget > 0 && est > budget {
			truncated = true
			continue
		}
		entries = append(entries, ContextEntry{Entity: c.entity, Score: c.score, EstTokens: est})
		budget -= est
	}

	return &SmartContextResult{
		Entries:     entries,
		Truncated:   truncated,
		Degraded:    true,
		DegradedWhy: "temporal coupling approximated via same-file co-location, not git history",
	}, nil
}

func (s *Service) fileScopedFallback(entities []storage.Entity, focus identity.Key, tokenBudget int) (*SmartContextResult, error) {
	_, _, _, semanticPath, _, ok := identity.Split(focus)
	if !ok || semanticPath == "" {
		return &SmartContextResult{Degraded: true, DegradedWhy: "focus entity not found and has no recoverable file scope"}, nil
	}
	// SemanticPath folds every file path into the same encoding a key
	// carries, so re-deriving it from each candidate entity's FilePath is
	// the correct way to test "same file as focus" without a lossy
	// reverse transform.
	var entries []ContextEntry
	budget := tokenBudget
	truncated := false
	for _, e := range entities {
		if identity.SemanticPath(e.FilePath) != semanticPath {
			continue
		}
		est := estTokens(e)
		if tokenBudget > 0 && est > budget {
			truncated = true
			continue
		}
		entries = append(entries, ContextEntry{Entity: e, Score: 1.0, EstTokens: est})
		budget -= est
	}

	return &SmartContextResult{
		Entries:     entries,
		Truncated:   truncated,
		Degraded:    true,
		DegradedWhy: "focus entity not found in index, fell back to file-scoped bundle",
	}, nil
}

func estTokens(e storage.Entity) int {
	lines := e.EndLine - e.StartLine + 1
	if lines < 1 {
		lines = 1
	}
	return lines * roughTokensPerLine
}

func bfsDistances(edges []storage.Edge, focus identity.Key) map[identity.Key]int {
	adj := make(map[identity.Key][]identity.Key)
	for _, e := range edges {
		adj[e.FromKey] = append(adj[e.FromKey], e.ToKey)
		adj[e.ToKey] = append(adj[e.ToKey], e.FromKey)
	}

	dist := map[identity.Key]int{focus: 0}
	queue := []identity.Key{focus}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range adj[cur] {
			if _, seen := dist[n]; seen {
				continue
			}
			dist[n] = dist[cur] + 1
			queue = append(queue, n)
		}
	}
	return dist
}
