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

package ingestion

import (
	"runtime"
	"strings"
	"sync"

	"github.com/kraklabs/cie-graph/pkg/identity"
)

// callResolver turns the raw-name references left on parser.EdgeRef.ToReference
// into concrete identity.Key values, or into external-dependency placeholders
// when nothing in the workspace matches (§3.4, §4.4 step 3).
//
// Two resolution strategies, tried in order:
//  1. Direct name match — the referenced name (or its last dotted segment)
//     matches an entity's simple name or its "Type.Method" qualified name
//     exactly, anywhere in the workspace.
//  2. Interface dispatch — the referenced method name belongs to exactly one
//     type's method set, looked up in the methodNameToKeys index that
//     index() builds from "Type.Method" names. Ambiguous matches (more than
//     one type has a method by that name) are left unresolved rather than
//     guessed at.
type callResolver struct {
	mu sync.RWMutex

	// byQualifiedName: "Type.Method" -> key
	byQualifiedName map[string]identity.Key
	// bySimpleName: unqualified name -> key (last writer wins on collision,
	// same simplification the teacher's pipeline made for same-package calls)
	bySimpleName map[string]identity.Key
	// methodNameToKeys: bare method name -> candidate keys across all types,
	// used for interface-dispatch fallback
	methodNameToKeys map[string][]identity.Key
}

func newCallResolver() *callResolver {
	return &callResolver{
		byQualifiedName:  make(map[string]identity.Key),
		bySimpleName:     make(map[string]identity.Key),
		methodNameToKeys: make(map[string][]identity.Key),
	}
}

// index records one entity's assigned key under every name a call-reference
// might plausibly use to reach it.
func (r *callResolver) index(name string, key identity.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.Contains(name, ".") {
		r.byQualifiedName[name] = key
		parts := strings.SplitN(name, ".", 2)
		method := parts[1]
		r.methodNameToKeys[method] = append(r.methodNameToKeys[method], key)
		return
	}
	r.bySimpleName[name] = key
}

// resolve returns the key a reference resolves to, and whether it was found
// unambiguously. Dotted references (e.g. "pkg.Func") are also tried by their
// last segment, since cross-package qualification isn't tracked by name
// alone.
func (r *callResolver) resolve(reference string) (identity.Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if key, ok := r.byQualifiedName[reference]; ok {
		return key, true
	}
	if key, ok := r.bySimpleName[reference]; ok {
		return key, true
	}

	lastSegment := reference
	if idx := strings.LastIndex(reference, "."); idx >= 0 {
		lastSegment = reference[idx+1:]
	}
	if lastSegment != reference {
		if key, ok := r.bySimpleName[lastSegment]; ok {
			return key, true
		}
	}

	if candidates := r.methodNameToKeys[lastSegment]; len(candidates) == 1 {
		return candidates[0], true
	}

	return "", false
}

// resolveReferencesParallel resolves a batch of raw EdgeRef references into
// keys. Small batches resolve inline; large ones fan out across a worker
// pool, mirroring the teacher's resolveCallsParallel cap of 8 workers — the
// resolver's maps are read-only once indexing is complete, so concurrent
// lookups need no additional locking beyond the RWMutex already in place.
func (r *callResolver) resolveReferencesParallel(refs []string) map[string]identity.Key {
	resolved := make(map[string]identity.Key, len(refs))
	if len(refs) < 1000 {
		for _, ref := range refs {
			if key, ok := r.resolve(ref); ok {
				resolved[ref] = key
			}
		}
		return resolved
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8
	}

	type pair struct {
		ref string
		key identity.Key
	}
	jobs := make(chan string, len(refs))
	results := make(chan pair, len(refs))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				if key, ok := r.resolve(ref); ok {
					results <- pair{ref: ref, key: key}
				}
			}
		}()
	}
	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)
	go func() { wg.Wait(); close(results) }()

	for p := range results {
		resolved[p.ref] = p.key
	}
	return resolved
}
