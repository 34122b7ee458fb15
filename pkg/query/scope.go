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

package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	cieerrors "github.com/kraklabs/cie-graph/internal/errors"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

// ParseScope splits a scope spec of the form "L1||L2||L3" into its OR'd
// folder prefixes. An empty spec means "no scope filter".
func ParseScope(scope string) []string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil
	}
	parts := strings.Split(scope, "||")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveScope validates a scope spec against the indexed folder tree,
// returning the parsed prefixes on a match. An unrecognized prefix
// produces a structured "did you mean" error listing discoverable
// top-level folders, rather than silently returning zero results.
func (s *Service) resolveScope(ctx context.Context, scope string) ([]string, error) {
	prefixes := ParseScope(scope)
	if len(prefixes) == 0 {
		return nil, nil
	}

	tree, err := s.folderTree(ctx)
	if err != nil {
		return nil, err
	}

	for _, prefix := range prefixes {
		if !folderTreeHasPrefix(tree, prefix) {
			return nil, cieerrors.NewInputError(
				"unknown scope prefix",
				fmt.Sprintf("scope %q has no indexed files under %q", scope, prefix),
				fmt.Sprintf("did you mean one of: %s", strings.Join(tree, ", ")),
				nil,
			)
		}
	}
	return prefixes, nil
}

func folderTreeHasPrefix(tree []string, prefix string) bool {
	for _, folder := range tree {
		if strings.HasPrefix(folder, prefix) || strings.HasPrefix(prefix, folder) {
			return true
		}
	}
	return false
}

// folderTree enumerates the distinct top-level directories under which
// indexed entities live, for "did you mean" suggestions.
func (s *Service) folderTree(ctx context.Context) ([]string, error) {
	entities, err := s.backend.ListEntities(ctx, storage.EntityFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, e := range entities {
		if top := topLevelDir(e.FilePath); top != "" {
			seen[top] = true
		}
	}
	folders := make([]string, 0, len(seen))
	for f := range seen {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	return folders, nil
}

func topLevelDir(filePath string) string {
	idx := strings.IndexByte(filePath, '/')
	if idx < 0 {
		return ""
	}
	return filePath[:idx]
}
