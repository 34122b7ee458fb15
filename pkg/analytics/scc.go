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

// Component is one strongly connected component. Cycle is a representative
// cycle path through the component's members, present whenever the
// component has more than one node (a self-loop never reaches here since
// BuildGraph drops them).
type Component struct {
	Members []identity.Key
	Cycle   []identity.Key
}

// TarjanSCC finds every strongly connected component of g, iteratively
// (not recursively) so a long dependency chain cannot blow the call
// stack. Components of size 1 are included only when a self-loop would
// have made them cyclic, which BuildGraph already excludes, so singleton
// components here represent ordinary acyclic nodes and are filtered out —
// callers only want genuine cycles (§4.7 `cycles()`, §4.8 Tarjan row).
func TarjanSCC(g *Graph) []Component {
	n := g.NodeCount()
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	nextIndex := 0
	var components []Component

	type frame struct {
		node    int
		childAt int
	}

	for start := 0; start < n; start++ {
		if index[start] != -1 {
			continue
		}
		var call []frame
		call = append(call, frame{node: start})

		for len(call) > 0 {
			top := &call[len(call)-1]
			v := top.node

			if top.childAt == 0 {
				index[v] = nextIndex
				lowlink[v] = nextIndex
				nextIndex++
				stack = append(stack, v)
				onStack[v] = true
			}

			recursed := false
			for top.childAt < len(g.out[v]) {
				w := g.out[v][top.childAt]
				top.childAt++
				if index[w] == -1 {
					call = append(call, frame{node: w})
					recursed = true
					break
				} else if onStack[w] {
					if index[w] < lowlink[v] {
						lowlink[v] = index[w]
					}
				}
			}
			if recursed {
				continue
			}

			if lowlink[v] == index[v] {
				var members []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					members = append(members, w)
					if w == v {
						break
					}
				}
				if len(members) > 1 {
					keys := make([]identity.Key, len(members))
					for i, m := range members {
						keys[i] = g.Key(m)
					}
					components = append(components, Component{
						Members: keys,
						Cycle:   cyclePath(g, members),
					})
				}
			}

			call = call[:len(call)-1]
			if len(call) > 0 {
				parent := &call[len(call)-1]
				if lowlink[v] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[v]
				}
			}
		}
	}

	return components
}

// cyclePath returns one concrete cycle through members by walking forward
// along out-edges that stay within the component until it returns to the
// start, a simple witness path rather than an exhaustive enumeration of
// every cycle the component contains.
func cyclePath(g *Graph, members []int) []identity.Key {
	inComponent := make(map[int]bool, len(members))
	for _, m := range members {
		inComponent[m] = true
	}
	start := members[0]
	visited := map[int]bool{start: true}
	path := []int{start}
	cur := start
	for {
		next := -1
		for _, w := range g.out[cur] {
			if !inComponent[w] {
				continue
			}
			if w == start && len(path) > 1 {
				next = w
				break
			}
			if !visited[w] {
				next = w
				break
			}
		}
		if next == -1 {
			break
		}
		if next == start {
			break
		}
		visited[next] = true
		path = append(path, next)
		cur = next
	}
	keys := make([]identity.Key, len(path))
	for i, p := range path {
		keys[i] = g.Key(p)
	}
	return keys
}
