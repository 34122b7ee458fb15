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

package storage

import "sync"

// Relation names for the five independent tables (§3.5). Kept as named
// constants because the ingestion pipeline's five concurrent batch tasks
// (§4.4 step 4) and the reindex pipeline (§4.5) both need to name them.
const (
	relEntities             = "cie_entities"
	relEdges                = "cie_edges"
	relFileHashCache        = "cie_file_hash_cache"
	relTestEntitiesExcluded = "cie_test_entities_excluded"
	relFileWordCoverage     = "cie_file_word_coverage"
	relIgnoredFiles         = "cie_ignored_files"
)

// ddlStatements creates the five relations. CozoDB has no ALTER TABLE, and
// this package contains no migration code for a change to these strings.
var ddlStatements = []string{
	`:create ` + relEntities + ` {
		key: String
		=>
		entity_type: String,
		entity_class: String,
		language: String,
		file_path: String,
		start_line: Int,
		end_line: Int,
		name: String,
		content_hash: String default '',
		birth_timestamp: Int,
		signature: String default ''
	}`,
	`:create ` + relEdges + ` {
		from_key: String,
		to_key: String,
		edge_type: String,
		source_line: Int
	}`,
	`:create ` + relFileHashCache + ` {
		file_path: String
		=>
		content_hash: String
	}`,
	`:create ` + relTestEntitiesExcluded + ` {
		key: String
		=>
		entity_type: String,
		language: String,
		file_path: String,
		start_line: Int,
		end_line: Int,
		name: String
	}`,
	`:create ` + relFileWordCoverage + ` {
		file_path: String
		=>
		source_words: Int,
		entity_words: Int,
		raw_coverage_pct: Float,
		effective_coverage_pct: Float
	}`,
	`:create ` + relIgnoredFiles + ` {
		file_path: String
		=>
		reason: String
	}`,
}

// relationLocks gives each of the five relations its own RWMutex so that a
// batch write to Edges never blocks a concurrent batch write to Entities
// (§4.3 concurrency discipline, §4.4 step 4). A single global lock was the
// rejected predecessor design.
type relationLocks struct {
	entities             sync.RWMutex
	edges                sync.RWMutex
	fileHashCache        sync.RWMutex
	testEntitiesExcluded sync.RWMutex
	fileWordCoverage     sync.RWMutex
	ignoredFiles         sync.RWMutex
}

// forRelation returns the lock guarding a named relation. The single-
// relation reads and writes in entities.go lock their relation directly
// (a read lock for reads, the write lock for writes). Generic Datalog
// queries through Query, which can join across relations, take none of
// these locks and rely on CozoDB's own internal consistency.
func (l *relationLocks) forRelation(name string) *sync.RWMutex {
	switch name {
	case relEntities:
		return &l.entities
	case relEdges:
		return &l.edges
	case relFileHashCache:
		return &l.fileHashCache
	case relTestEntitiesExcluded:
		return &l.testEntitiesExcluded
	case relFileWordCoverage:
		return &l.fileWordCoverage
	case relIgnoredFiles:
		return &l.ignoredFiles
	default:
		return nil
	}
}
