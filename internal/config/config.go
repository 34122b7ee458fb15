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

// Package config loads .cie/project.yaml (teacher's config format and
// library, gopkg.in/yaml.v3), overridable by CIE_* environment variables,
// exactly as cmd/cie/config.go does for the original CLI. Configuration
// (database path, port, watched extensions, parser mode) is immutable
// after startup (spec §5) — each subcommand (cmd/cie/ingest.go,
// cmd/cie/servehttp.go) loads it once and passes the *Config down from
// there.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	cieerrors "github.com/kraklabs/cie-graph/internal/errors"
)

const (
	configDirName  = ".cie"
	configFileName = "project.yaml"
	configVersion  = "1"
)

// Config is the on-disk .cie/project.yaml shape. Fields the teacher had
// for enterprise replication (CIE.PrimaryHub/EdgeCache), embeddings, and
// LLM narrative generation are dropped — those features are out of
// SPEC_FULL's scope (see DESIGN.md).
type Config struct {
	Version   string   `yaml:"version"`
	ProjectID string   `yaml:"project_id"`
	Port      int      `yaml:"port"`
	Indexing  Indexing `yaml:"indexing"`
}

// Indexing controls the ingestion/reindex pipeline's behavior.
type Indexing struct {
	// ParserMode is currently always "treesitter"; kept as a field (not a
	// constant) because the teacher's config exposed it and a future
	// grammar backend would read it the same way.
	ParserMode string `yaml:"parser_mode"`

	// MaxFileSize is the per-file size ceiling in bytes; larger files are
	// recorded in IgnoredFiles (§4.4 step 1).
	MaxFileSize int64 `yaml:"max_file_size"`

	// Exclude is additional exclude globs appended to
	// ingestion.DefaultExcludeGlobs().
	Exclude []string `yaml:"exclude"`

	// Extensions is loaded from project.yaml, but no component reads it:
	// neither the file watcher (§4.6) nor the ingestion walk (§4.4 step 1)
	// filters paths by this list.
	Extensions []string `yaml:"extensions"`

	// LocalDataDir overrides the default ~/.cie/data/<project_id> storage
	// root, resolved relative to the config file's directory when not
	// absolute.
	LocalDataDir string `yaml:"local_data_dir"`
}

// Default returns a Config with sensible defaults for local development.
func Default(projectID string) *Config {
	return &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Port:      8420,
		Indexing: Indexing{
			ParserMode:  "treesitter",
			MaxFileSize: 1048576,
		},
	}
}

// Load reads and parses the config file at path, applying CIE_* env
// overrides. An empty path triggers discovery via FindConfigFile.
func Load(path string) (*Config, error) {
	resolved := path
	if resolved == "" {
		found, err := FindConfigFile()
		if err != nil {
			return nil, err
		}
		resolved = found
	}

	data, err := os.ReadFile(resolved) //nolint:gosec // path comes from discovery or explicit flag
	if err != nil {
		return nil, cieerrors.NewConfigError(
			"cannot read configuration file",
			fmt.Sprintf("failed to read %s", resolved),
			"check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cieerrors.NewConfigError(
			"invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("edit %s to fix syntax errors, or delete it to regenerate defaults", resolved),
			err,
		)
	}
	if cfg.Version != "" && cfg.Version != configVersion {
		return nil, cieerrors.NewConfigError(
			"unsupported configuration version",
			fmt.Sprintf("config version %q is not supported (expected %q)", cfg.Version, configVersion),
			"regenerate the configuration file for this version",
			nil,
		)
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return cieerrors.NewInternalError(
			"cannot encode configuration", "YAML marshaling failed unexpectedly",
			"this is a bug; please report it with your configuration details", err,
		)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return cieerrors.NewPermissionError(
			"cannot create configuration directory",
			fmt.Sprintf("permission denied creating %s", filepath.Dir(path)),
			"check directory permissions", err,
		)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return cieerrors.NewPermissionError(
			"cannot write configuration file",
			fmt.Sprintf("permission denied writing to %s", path),
			"check file permissions and available disk space", err,
		)
	}
	return nil
}

// FindConfigFile walks up from the current directory looking for
// .cie/project.yaml, the same discovery rule the teacher's CLI used so a
// subcommand works from any subdirectory of the project.
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", cieerrors.NewInternalError("cannot determine working directory", "", "", err)
	}
	for {
		candidate := filepath.Join(dir, configDirName, configFileName)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", cieerrors.NewInputError(
		"no .cie/project.yaml found",
		"searched the current directory and its parents",
		"run in a directory with an existing .cie/project.yaml, or pass --config",
		nil,
	)
}

// DataDir resolves the effective per-project CozoDB data directory, honoring
// CIE_DATA_DIR, then Indexing.LocalDataDir (relative to configDir when not
// absolute), then ~/.cie/data/<project_id>.
func DataDir(cfg *Config, configDir string) (string, error) {
	if envDir := os.Getenv("CIE_DATA_DIR"); envDir != "" {
		return filepath.Abs(envDir)
	}
	if cfg.Indexing.LocalDataDir != "" {
		if filepath.IsAbs(cfg.Indexing.LocalDataDir) {
			return filepath.Clean(cfg.Indexing.LocalDataDir), nil
		}
		return filepath.Clean(filepath.Join(configDir, cfg.Indexing.LocalDataDir)), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cieerrors.NewInternalError("cannot determine home directory", "", "set HOME", err)
	}
	return filepath.Join(home, configDirName, "data", cfg.ProjectID), nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CIE_PROJECT_ID"); v != "" {
		c.ProjectID = v
	}
	if v := os.Getenv("CIE_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			c.Port = port
		}
	}
}
