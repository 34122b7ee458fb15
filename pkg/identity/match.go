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

package identity

import "sort"

// PositionWindow is P from §4.1/§9: the maximum line-start distance a
// PositionMatch will accept. It is a single fixed constant, not computed
// per-file — workloads with very long functions may want a different
// value, but that is an open question the spec defers, not something
// this package guesses at.
const PositionWindow = 10

// MatchKind is the outcome of matching one new candidate against the
// entities already on file for its path.
type MatchKind int

const (
	// NewEntity means no existing entity could be reused; the caller
	// must mint a fresh birth timestamp and key.
	NewEntity MatchKind = iota
	// ContentMatch means an old entity with identical (file_path,
	// entity_type, name, content_hash) was found; its key is reused.
	ContentMatch
	// PositionMatch means an old entity with the same (file_path,
	// entity_type, name) and a line_start within PositionWindow was
	// found; its key is reused, its content hash and lines update.
	PositionMatch
)

func (k MatchKind) String() string {
	switch k {
	case ContentMatch:
		return "ContentMatch"
	case PositionMatch:
		return "PositionMatch"
	default:
		return "NewEntity"
	}
}

// Existing describes a previously stored entity as the matcher needs to
// see it: enough to test content/position equality, nothing more.
type Existing struct {
	Key         Key
	EntityType  string
	Name        string
	StartLine   int
	ContentHash string
}

// Result is the outcome of matching one candidate.
type Result struct {
	Kind   MatchKind
	OldKey Key // valid when Kind != NewEntity
}

// MatchAll aligns a batch of freshly parsed candidates (all from the same
// file) against the entities previously stored for that file, per the
// priority-ordered algorithm in §4.1:
//
//  1. ContentMatch: identical (entity_type, name, content_hash).
//  2. PositionMatch: identical (entity_type, name), |line_start diff| <= P,
//     preferring the old entity with the smallest line distance; an old
//     entity already consumed by a ContentMatch is not eligible.
//  3. NewEntity otherwise.
//
// An old entity is matched to at most one new candidate. Results are
// returned in the same order as candidates.
func MatchAll(candidateTypes []string, candidateNames []string, candidateStartLines []int, candidateHashes []string, old []Existing) []Result {
	n := len(candidateTypes)
	results := make([]Result, n)
	consumed := make([]bool, len(old))

	// Group old entities by (entity_type, name) for fast lookup; within a
	// group, several old entities can share a name (overloads across
	// languages, or a rename-in-place that briefly duplicates a name).
	type key struct{ t, name string }
	byKey := make(map[key][]int)
	for i, e := range old {
		k := key{e.EntityType, e.Name}
		byKey[k] = append(byKey[k], i)
	}

	// Pass 1: content match. Process in input order so ties within a
	// single pass favor the first-seen candidate; cross-candidate ties on
	// the same old entity cannot occur here because content_hash equality
	// combined with (type, name) uniqueness in byKey already disambiguates
	// in practice, but guard with `consumed` regardless.
	for i := 0; i < n; i++ {
		k := key{candidateTypes[i], candidateNames[i]}
		for _, oi := range byKey[k] {
			if consumed[oi] {
				continue
			}
			if old[oi].ContentHash != "" && old[oi].ContentHash == candidateHashes[i] {
				results[i] = Result{Kind: ContentMatch, OldKey: old[oi].Key}
				consumed[oi] = true
				break
			}
		}
	}

	// Pass 2: position match. Collect all (candidate, old) pairs within
	// the window that are still unresolved, sort by line distance, and
	// greedily assign smallest-distance-first so ties fall through to
	// NewEntity for whichever candidate loses the tie-break (§4.1).
	type pair struct {
		ci, oi   int
		distance int
	}
	var pairs []pair
	for i := 0; i < n; i++ {
		if results[i].Kind != NewEntity {
			continue // already content-matched
		}
		k := key{candidateTypes[i], candidateNames[i]}
		for _, oi := range byKey[k] {
			if consumed[oi] {
				continue
			}
			d := candidateStartLines[i] - old[oi].StartLine
			if d < 0 {
				d = -d
			}
			if d <= PositionWindow {
				pairs = append(pairs, pair{ci: i, oi: oi, distance: d})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].distance < pairs[b].distance })

	candidateDone := make([]bool, n)
	for _, p := range pairs {
		if candidateDone[p.ci] || consumed[p.oi] {
			continue
		}
		results[p.ci] = Result{Kind: PositionMatch, OldKey: old[p.oi].Key}
		consumed[p.oi] = true
		candidateDone[p.ci] = true
	}

	// Anything left is genuinely new.
	for i := 0; i < n; i++ {
		if results[i].Kind == NewEntity {
			results[i] = Result{Kind: NewEntity}
		}
	}

	return results
}

// RemovedKeys returns the keys of old entities that were not consumed by
// any candidate in the most recent MatchAll call — the removed_keys set
// from §4.5 step 5.
func RemovedKeys(old []Existing, results []Result) []Key {
	matched := make(map[Key]bool, len(results))
	for _, r := range results {
		if r.Kind != NewEntity {
			matched[r.OldKey] = true
		}
	}
	var removed []Key
	for _, e := range old {
		if !matched[e.Key] {
			removed = append(removed, e.Key)
		}
	}
	return removed
}
