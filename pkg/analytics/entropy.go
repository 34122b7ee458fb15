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
	"math"
	"regexp"
	"strings"

	"github.com/kraklabs/cie-graph/pkg/identity"
)

// EntropyResult is one entity's identifier-distribution entropy.
type EntropyResult struct {
	Key           identity.Key
	Bits          float64
	Interpretation string
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Entropy computes Shannon entropy H(X) = -sum(p(x) * log2(p(x))) over the
// frequency distribution of identifier tokens appearing in each entity's
// body (§4.8 "per-entity H(X) over identifier/flow distributions"). Low
// entropy (few repeated tokens, e.g. a thin wrapper) and very high entropy
// (no two tokens alike, often a stretch of literals/data) both get flagged
// by Interpretation; the useful middle band is where most hand-written
// logic sits.
func Entropy(bodies map[identity.Key]string) []EntropyResult {
	results := make([]EntropyResult, 0, len(bodies))
	for key, body := range bodies {
		tokens := identifierPattern.FindAllString(body, -1)
		if len(tokens) == 0 {
			results = append(results, EntropyResult{Key: key, Bits: 0, Interpretation: "trivial"})
			continue
		}
		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[strings.ToLower(t)]++
		}
		total := float64(len(tokens))
		var bits float64
		for _, c := range counts {
			p := float64(c) / total
			bits -= p * math.Log2(p)
		}
		results = append(results, EntropyResult{Key: key, Bits: bits, Interpretation: interpretEntropy(bits)})
	}
	return results
}

func interpretEntropy(bits float64) string {
	switch {
	case bits < 1.5:
		return "low_variety" // likely boilerplate or a thin delegator
	case bits > 4.5:
		return "high_variety" // dense unique-token logic, a candidate for review
	default:
		return "typical"
	}
}
