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

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	cozo "github.com/kraklabs/cie-graph/pkg/cozodb"
)

// EmbeddedBackend implements Backend using a local CozoDB instance. It is
// the only backend this system ships — everything runs in one process
// against one on-disk database (Non-goals: no distributed replication, no
// cross-process concurrency on the same database).
type EmbeddedBackend struct {
	db       *cozo.CozoDB
	locks    relationLocks
	stateMu  sync.RWMutex
	closed   bool
	metaLock sync.Mutex
}

// EmbeddedConfig configures the embedded backend.
type EmbeddedConfig struct {
	// DataDir is the directory where CozoDB stores its data. Defaults to
	// ~/.cie/data/<project_id>.
	DataDir string

	// Engine is the CozoDB storage engine: "rocksdb", "sqlite", or "mem".
	// Defaults to "rocksdb" for persistence.
	Engine string

	// ProjectID namespaces the data directory.
	ProjectID string
}

// NewEmbeddedBackend creates a new embedded CozoDB backend.
func NewEmbeddedBackend(config EmbeddedConfig) (*EmbeddedBackend, error) {
	if config.Engine == "" {
		config.Engine = "rocksdb"
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".cie", "data")
		if config.ProjectID != "" {
			config.DataDir = filepath.Join(config.DataDir, config.ProjectID)
		}
	}

	if err := os.MkdirAll(config.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := cozo.New(config.Engine, config.DataDir, nil)
	if err != nil {
		return nil, fmt.Errorf("open cozodb: %w", err)
	}

	return &EmbeddedBackend{db: &db}, nil
}

// Query executes a read-only Datalog query. Readers are not serialized
// against each other or against writers at this layer — CozoDB itself
// guarantees each relation is read at a consistent snapshot (§4.3); this
// backend only guards against use-after-close.
func (b *EmbeddedBackend) Query(ctx context.Context, datalog string, params map[string]any) (*QueryResult, error) {
	b.stateMu.RLock()
	closed := b.closed
	b.stateMu.RUnlock()
	if closed {
		return nil, fmt.Errorf("backend is closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	result, err := b.db.RunReadOnly(datalog, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return FromNamedRows(result), nil
}

// Execute runs a Datalog mutation that does not belong to one of the five
// named relations (schema DDL, project metadata). Callers writing to a
// named relation should go through the relation-specific batch methods in
// entities.go instead, which take the matching per-relation lock.
func (b *EmbeddedBackend) Execute(ctx context.Context, datalog string, params map[string]any) error {
	b.stateMu.RLock()
	closed := b.closed
	b.stateMu.RUnlock()
	if closed {
		return fmt.Errorf("backend is closed")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := b.db.Run(datalog, params)
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}
	return nil
}

// Close closes the database connection. Idempotent.
func (b *EmbeddedBackend) Close() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.db.Close()
	return nil
}

// DB returns the underlying CozoDB instance for advanced operations. Use
// with caution — prefer the Backend interface methods.
func (b *EmbeddedBackend) DB() *cozo.CozoDB {
	return b.db
}

// EnsureSchema creates the five relations if they don't already exist.
// Idempotent and safe to call multiple times; this is the "schema-creation
// barrier" C4 step 4 requires before the concurrent batch insert begins.
func (b *EmbeddedBackend) EnsureSchema() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	for _, stmt := range ddlStatements {
		if _, err := b.db.Run(stmt, nil); err != nil {
			errStr := err.Error()
			if strings.Contains(errStr, "already exists") ||
				strings.Contains(errStr, "conflicts with an existing one") {
				continue
			}
			return fmt.Errorf("create relation failed: %w", err)
		}
	}

	return b.ensureProjectMetaTable()
}

// GetProjectMeta retrieves a metadata value by key, or "" if unset.
func (b *EmbeddedBackend) GetProjectMeta(key string) (string, error) {
	query := `?[value] := *cie_project_meta{key, value}, key = $key`
	params := map[string]any{"key": key}

	b.metaLock.Lock()
	result, err := b.db.Run(query, params)
	b.metaLock.Unlock()
	if err != nil {
		return "", err
	}
	if len(result.Rows) == 0 {
		return "", nil
	}
	if val, ok := result.Rows[0][0].(string); ok {
		return val, nil
	}
	return "", nil
}

// SetProjectMeta sets a metadata value by key.
func (b *EmbeddedBackend) SetProjectMeta(key, value string) error {
	query := `?[key, value] <- [[$key, $value]] :put cie_project_meta { key, value }`
	params := map[string]any{"key": key, "value": value}

	b.metaLock.Lock()
	_, err := b.db.Run(query, params)
	b.metaLock.Unlock()
	return err
}

// GetLastIndexedSHA retrieves the last successfully indexed git SHA stored
// by SetLastIndexedSHA. Only this package's tests call it.
func (b *EmbeddedBackend) GetLastIndexedSHA() (string, error) {
	return b.GetProjectMeta("last_indexed_sha")
}

// SetLastIndexedSHA stores the last successfully indexed git SHA.
func (b *EmbeddedBackend) SetLastIndexedSHA(sha string) error {
	return b.SetProjectMeta("last_indexed_sha", sha)
}

// ensureProjectMetaTable creates the lone auxiliary table backing
// GetProjectMeta/SetProjectMeta. It is not one of the five relations §3.5
// enumerates — it holds process bookkeeping, not graph data — so it has no
// dedicated entry in relationLocks.
func (b *EmbeddedBackend) ensureProjectMetaTable() error {
	_, err := b.db.Run(`:create cie_project_meta { key: String => value: String }`, nil)
	if err != nil && !strings.Contains(err.Error(), "already exists") &&
		!strings.Contains(err.Error(), "conflicts with an existing one") {
		return err
	}
	return nil
}
