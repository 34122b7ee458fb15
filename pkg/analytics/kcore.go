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

// Layer is the coarse label a k-value maps to for human consumption.
type Layer string

const (
	LayerCore       Layer = "core"
	LayerBusiness   Layer = "business"
	LayerPeripheral Layer = "peripheral"
)

// CoreResult is one node's k-core assignment.
type CoreResult struct {
	Key   identity.Key
	Kcore int
	Layer Layer
}

// KCore runs the standard peeling algorithm over the graph's undirected
// degree (out-degree + in-degree, a dependency either direction counts):
// repeatedly strip every node whose remaining degree is at most the
// current k, raising k until the graph empties. Each node's k-value is the
// highest k for which it still belonged to a non-empty k-core at the
// moment it was peeled.
func KCore(g *Graph) []CoreResult {
	n := g.NodeCount()
	degree := make([]int, n)
	removed := make([]bool, n)
	for i := 0; i < n; i++ {
		o, in := g.Degree(i)
		degree[i] = o + in
	}

	kvalue := make([]int, n)
	remaining := n
	k := 0
	for remaining > 0 {
		// Peel every node with degree <= k until none remain at this level.
		progressed := true
		for progressed {
			progressed = false
			for i := 0; i < n; i++ {
				if removed[i] || degree[i] > k {
					continue
				}
				removed[i] = true
				kvalue[i] = k
				remaining--
				progressed = true
				for _, w := range neighbors(g, i) {
					if !removed[w] {
						degree[w]--
					}
				}
			}
		}
		k++
	}

	results := make([]CoreResult, n)
	maxK := 0
	for i := 0; i < n; i++ {
		if kvalue[i] > maxK {
			maxK = kvalue[i]
		}
	}
	for i := 0; i < n; i++ {
		results[i] = CoreResult{Key: g.Key(i), Kcore: kvalue[i], Layer: layerFor(kvalue[i], maxK)}
	}
	return results
}

// layerFor buckets a k-value into three coarse bands relative to the
// graph's observed maximum, so the label is meaningful across codebases
// of very different connectivity density rather than anchored to a fixed
// absolute threshold.
func layerFor(k, maxK int) Layer {
	if maxK == 0 {
		return LayerPeripheral
	}
	ratio := float64(k) / float64(maxK)
	switch {
	case ratio >= 0.66:
		return LayerCore
	case ratio >= 0.33:
		return LayerBusiness
	default:
		return LayerPeripheral
	}
}

func neighbors(g *Graph, i int) []int {
	all := make([]int, 0, len(g.out[i])+len(g.in[i]))
	all = append(all, g.out[i]...)
	all = append(all, g.in[i]...)
	return all
}
