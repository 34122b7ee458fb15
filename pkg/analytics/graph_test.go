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

import (
	"testing"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/stretchr/testify/assert"
)

func key(s string) identity.Key { return identity.Key(s) }

func edges(pairs ...[2]string) []Edge {
	var es []Edge
	for _, p := range pairs {
		es = append(es, Edge{FromKey: key(p[0]), ToKey: key(p[1])})
	}
	return es
}

func TestBuildGraphDedupesAndDropsSelfLoops(t *testing.T) {
	g := BuildGraph(edges(
		[2]string{"a", "b"},
		[2]string{"a", "b"}, // duplicate
		[2]string{"a", "a"}, // self-loop
		[2]string{"b", "c"},
	))
	assert.Equal(t, 3, g.NodeCount())
}

func TestTarjanSCCFindsCycle(t *testing.T) {
	g := BuildGraph(edges(
		[2]string{"a", "b"},
		[2]string{"b", "c"},
		[2]string{"c", "a"},
		[2]string{"c", "d"}, // d is acyclic, should not appear in any component
	))

	components := TarjanSCC(g)
	assert.Len(t, components, 1)
	assert.Len(t, components[0].Members, 3)
	assert.NotEmpty(t, components[0].Cycle)
}

func TestTarjanSCCNoCycles(t *testing.T) {
	g := BuildGraph(edges([2]string{"a", "b"}, [2]string{"b", "c"}))
	assert.Empty(t, TarjanSCC(g))
}

func TestKCoreAssignsHigherKToDenserSubgraph(t *testing.T) {
	// a,b,c form a dense triangle (mutual edges); d only points into the triangle.
	g := BuildGraph(edges(
		[2]string{"a", "b"}, [2]string{"b", "a"},
		[2]string{"b", "c"}, [2]string{"c", "b"},
		[2]string{"a", "c"}, [2]string{"c", "a"},
		[2]string{"d", "a"},
	))
	results := KCore(g)
	byKey := map[identity.Key]CoreResult{}
	for _, r := range results {
		byKey[r.Key] = r
	}
	assert.Greater(t, byKey[key("a")].Kcore, byKey[key("d")].Kcore)
}

func TestCentralityRanksHubHigher(t *testing.T) {
	g := BuildGraph(edges(
		[2]string{"a", "hub"},
		[2]string{"b", "hub"},
		[2]string{"c", "hub"},
		[2]string{"hub", "d"},
	))
	results := Centrality(g, DefaultCentralityWeights)
	byKey := map[identity.Key]CentralityResult{}
	for _, r := range results {
		byKey[r.Key] = r
	}
	assert.Greater(t, byKey[key("hub")].PageRank, byKey[key("a")].PageRank)
}

func TestEntropyFlagsTrivialBody(t *testing.T) {
	results := Entropy(map[identity.Key]string{key("f"): ""})
	assert.Equal(t, "trivial", results[0].Interpretation)
}

func TestCKMetricsCountsCrossModuleCoupling(t *testing.T) {
	g := BuildGraph(edges(
		[2]string{"TypeA.Method1", "TypeB.Method1"},
		[2]string{"TypeA.Method2", "TypeA.Method1"},
	))
	modules := []Module{
		{Key: key("TypeA"), Methods: []identity.Key{key("TypeA.Method1"), key("TypeA.Method2")}},
		{Key: key("TypeB"), Methods: []identity.Key{key("TypeB.Method1")}},
	}
	moduleOf := map[identity.Key]identity.Key{
		key("TypeA.Method1"): key("TypeA"),
		key("TypeA.Method2"): key("TypeA"),
		key("TypeB.Method1"): key("TypeB"),
	}
	results := CKMetrics(g, modules, moduleOf)
	var typeA CKResult
	for _, r := range results {
		if r.Key == key("TypeA") {
			typeA = r
		}
	}
	assert.Equal(t, 1, typeA.CBO)
	assert.Equal(t, 2, typeA.WMC)
}

func TestLeidenProducesAtLeastOneLevel(t *testing.T) {
	g := BuildGraph(edges([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"c", "d"}))
	result := Leiden(g)
	assert.NotEmpty(t, result.Levels)
}
