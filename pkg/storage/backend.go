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

// Package storage is the storage engine (C3): five independent Datalog
// relations (Entities, Edges, FileHashCache, TestEntitiesExcluded,
// FileWordCoverage/IgnoredFiles), each guarded by its own lock so that
// writes to distinct relations never contend with each other.
package storage

import (
	"context"

	cozo "github.com/kraklabs/cie-graph/pkg/cozodb"
)

// Backend is the interface every storage implementation provides. The
// embedded CozoDB backend is the only one shipped; the interface exists so
// the query and ingestion layers never depend on CozoDB directly.
type Backend interface {
	// Query executes a read-only Datalog query and returns the results.
	Query(ctx context.Context, datalog string, params map[string]any) (*QueryResult, error)

	// Execute runs a Datalog mutation (insert, update, delete).
	Execute(ctx context.Context, datalog string, params map[string]any) error

	// Close releases any resources held by the backend.
	Close() error
}

// QueryResult is the result of a Datalog query.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// ToNamedRows converts a QueryResult back to CozoDB's NamedRows shape.
func (r *QueryResult) ToNamedRows() cozo.NamedRows {
	return cozo.NamedRows{Headers: r.Headers, Rows: r.Rows}
}

// FromNamedRows converts CozoDB NamedRows to a QueryResult.
func FromNamedRows(nr cozo.NamedRows) *QueryResult {
	return &QueryResult{Headers: nr.Headers, Rows: nr.Rows}
}
