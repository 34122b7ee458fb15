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

// Module is one CK-metrics subject: a type/class/struct entity plus the
// method keys that belong to it. CK metrics need this grouping — the flat
// Edges relation alone does not say which methods belong to which type,
// so CKMetrics takes Module values its caller has already assembled.
// Nothing in pkg/query or internal/httpapi builds them; only this
// package's tests call CKMetrics.
type Module struct {
	Key     identity.Key
	Methods []identity.Key
}

// RiskBand labels a CK composite score.
type RiskBand string

const (
	RiskLow      RiskBand = "low"
	RiskModerate RiskBand = "moderate"
	RiskHigh     RiskBand = "high"
)

// CKResult holds the four Chidamber-Kemerer metrics for one module.
type CKResult struct {
	Key  identity.Key
	CBO  int // coupling between objects: distinct other modules this one's methods touch
	LCOM int // lack of cohesion: method pairs sharing no callee, approximated via shared neighbors
	RFC  int // response for class: methods + distinct methods called
	WMC  int // weighted methods per class: method count (each weighted 1, i.e. unweighted complexity proxy)
	Risk RiskBand
}

// CKMetrics computes CBO/LCOM/RFC/WMC for each module using the call
// graph g. moduleOf maps every method key back to the module key that
// owns it, letting CBO count only edges crossing a module boundary.
func CKMetrics(g *Graph, modules []Module, moduleOf map[identity.Key]identity.Key) []CKResult {
	results := make([]CKResult, 0, len(modules))

	for _, m := range modules {
		wmc := len(m.Methods)

		coupledModules := make(map[identity.Key]bool)
		calledMethods := make(map[identity.Key]bool)
		methodCallees := make([][]identity.Key, len(m.Methods))

		for mi, method := range m.Methods {
			idx, ok := g.index[method]
			if !ok {
				continue
			}
			for _, w := range g.out[idx] {
				callee := g.Key(w)
				calledMethods[callee] = true
				methodCallees[mi] = append(methodCallees[mi], callee)
				if owner, ok := moduleOf[callee]; ok && owner != m.Key {
					coupledModules[owner] = true
				} else if !ok {
					coupledModules[callee] = true // external-dependency placeholder, still a coupling
				}
			}
		}

		lcom := lackOfCohesion(methodCallees)
		rfc := wmc + len(calledMethods)

		results = append(results, CKResult{
			Key:  m.Key,
			CBO:  len(coupledModules),
			LCOM: lcom,
			RFC:  rfc,
			WMC:  wmc,
			Risk: ckRiskBand(len(coupledModules), lcom, wmc),
		})
	}
	return results
}

// lackOfCohesion counts method pairs that share no callee minus pairs
// that do, floored at zero — the classic LCOM1 definition adapted to
// "callee set" as the stand-in for "field access set" since the graph
// view has no field-level data.
func lackOfCohesion(methodCallees [][]identity.Key) int {
	n := len(methodCallees)
	disjoint, shared := 0, 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sharesAny(methodCallees[i], methodCallees[j]) {
				shared++
			} else {
				disjoint++
			}
		}
	}
	if disjoint > shared {
		return disjoint - shared
	}
	return 0
}

func sharesAny(a, b []identity.Key) bool {
	set := make(map[identity.Key]bool, len(a))
	for _, k := range a {
		set[k] = true
	}
	for _, k := range b {
		if set[k] {
			return true
		}
	}
	return false
}

func ckRiskBand(cbo, lcom, wmc int) RiskBand {
	score := cbo + lcom + wmc
	switch {
	case score >= 30:
		return RiskHigh
	case score >= 12:
		return RiskModerate
	default:
		return RiskLow
	}
}
