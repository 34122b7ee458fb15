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

// SQALEResult is one entity's technical-debt estimate in remediation hours,
// the ISO 25010 "SQALE" model's unit of account.
type SQALEResult struct {
	Key       identity.Key
	DebtHours float64
}

// sqaleWeights convert each contributing signal into an hours-per-unit
// remediation estimate: one high-variety entropy alert costs 1.0h, more
// than a coupling (CBO) point at 0.5h, which costs more than a cohesion
// (LCOM) point at 0.25h or a complexity (WMC) point at 0.1h.
const (
	hoursPerCBOPoint     = 0.5
	hoursPerLCOMPoint    = 0.25
	hoursPerWMCPoint     = 0.1
	hoursPerEntropyAlert = 1.0
)

// SQALE combines CK metrics and entropy results into a per-entity debt
// estimate. Entities present in only one of the two inputs still get a
// score from whichever signal covers them.
func SQALE(ck []CKResult, entropy []EntropyResult) []SQALEResult {
	debt := make(map[identity.Key]float64)

	for _, r := range ck {
		debt[r.Key] += float64(r.CBO)*hoursPerCBOPoint + float64(r.LCOM)*hoursPerLCOMPoint + float64(r.WMC)*hoursPerWMCPoint
	}
	for _, e := range entropy {
		if e.Interpretation == "high_variety" {
			debt[e.Key] += hoursPerEntropyAlert
		}
	}

	results := make([]SQALEResult, 0, len(debt))
	for key, hours := range debt {
		results = append(results, SQALEResult{Key: key, DebtHours: hours})
	}
	return results
}
