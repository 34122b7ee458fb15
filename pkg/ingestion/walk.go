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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/cie-graph/pkg/parser"
	"github.com/kraklabs/cie-graph/pkg/storage"
)

// FileRef is one file discovered by WalkTree, ready to be handed to the
// parser facade.
type FileRef struct {
	Path     string // workspace-relative, forward-slash normalized
	FullPath string
	Size     int64
}

// WalkResult is the outcome of walking one directory tree.
type WalkResult struct {
	Files     []FileRef
	Ignored   []storage.IgnoredFile
	Languages map[string]int
}

// WalkTree walks rootDir, filters by ExcludeGlobs, and separates parseable
// files from ones recorded directly as ignored (unsupported extension or
// over the size limit) — step 1 of the ingestion pipeline (§4.4).
func WalkTree(rootDir string, excludeGlobs []string, maxFileSize int64, logger *slog.Logger) (*WalkResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root dir: %w", err)
	}
	if err := validateLocalPath(absRoot); err != nil {
		return nil, fmt.Errorf("invalid root dir: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root dir is not a directory: %s", absRoot)
	}

	result := &WalkResult{Languages: make(map[string]int)}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("ingestion.walk.error", "path", path, "err", err)
			return nil
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && shouldExclude(relPath, excludeGlobs) {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldExclude(relPath, excludeGlobs) {
			return nil
		}

		fi, fiErr := d.Info()
		if fiErr != nil {
			return nil
		}

		if maxFileSize > 0 && fi.Size() > maxFileSize {
			result.Ignored = append(result.Ignored, storage.IgnoredFile{FilePath: relPath, Reason: "too_large"})
			return nil
		}

		language := parser.LanguageForPath(relPath)
		if language == "" {
			result.Ignored = append(result.Ignored, storage.IgnoredFile{FilePath: relPath, Reason: "unsupported_extension"})
			return nil
		}

		result.Languages[language]++
		result.Files = append(result.Files, FileRef{Path: relPath, FullPath: path, Size: fi.Size()})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk tree: %w", walkErr)
	}

	return result, nil
}

// validateLocalPath rejects paths that escape themselves via traversal or
// point at sensitive system directories — ingestion reads arbitrary
// caller-supplied directories, so this is a real trust boundary.
func validateLocalPath(path string) error {
	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		return fmt.Errorf("path did not resolve to absolute path: %s", path)
	}
	if cleaned == "" || cleaned == "/" {
		return fmt.Errorf("path is empty or root directory, which is not allowed")
	}

	sensitiveDirs := []string{"/etc", "/sys", "/proc", "/dev", "/boot"}
	for _, sensitive := range sensitiveDirs {
		if cleaned == sensitive || strings.HasPrefix(cleaned, sensitive+"/") {
			return fmt.Errorf("path is in a sensitive system directory: %s", cleaned)
		}
	}
	return nil
}

// shouldExclude reports whether relPath matches any exclude glob pattern.
func shouldExclude(relPath string, excludeGlobs []string) bool {
	normalized := filepath.ToSlash(relPath)
	for _, pattern := range excludeGlobs {
		if matchesGlob(normalized, pattern) {
			return true
		}
	}
	return false
}

// matchesGlob supports the subset of glob syntax used by ExcludeGlobs: "*",
// "**", "?", and "[...]" character classes, matched either from the root or
// against any path suffix (so "vendor/**" excludes a nested vendor/ dir too).
func matchesGlob(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
		parts := strings.Split(path, "/")
		for i := range parts {
			subpath := strings.Join(parts[i:], "/")
			if subpath == prefix || strings.HasPrefix(subpath, prefix+"/") {
				return true
			}
		}
		return false
	}

	if strings.HasPrefix(pattern, "*.") && !strings.Contains(pattern, "/") {
		return strings.HasSuffix(path, pattern[1:])
	}

	if !strings.ContainsAny(pattern, "*?[") {
		return path == pattern || strings.HasSuffix(path, "/"+pattern) || strings.HasPrefix(path, pattern+"/")
	}

	if matchGlobPattern(path, pattern) {
		return true
	}
	parts := strings.Split(path, "/")
	for i := range parts {
		if matchGlobPattern(strings.Join(parts[i:], "/"), pattern) {
			return true
		}
	}
	return false
}

func matchGlobPattern(path, pattern string) bool {
	return matchGlobRecursive(path, pattern, 0, 0)
}

func matchGlobRecursive(path, pattern string, pi, pti int) bool {
	for pi < len(path) || pti < len(pattern) {
		if pti >= len(pattern) {
			return false
		}

		if pti+1 < len(pattern) && pattern[pti] == '*' && pattern[pti+1] == '*' {
			nextPti := pti + 2
			if nextPti < len(pattern) && pattern[nextPti] == '/' {
				nextPti++
			}
			if nextPti >= len(pattern) {
				return true
			}
			for i := pi; i <= len(path); i++ {
				if matchGlobRecursive(path, pattern, i, nextPti) {
					return true
				}
			}
			return false
		}

		if pattern[pti] == '*' {
			nextPti := pti + 1
			for i := pi; i <= len(path); i++ {
				if i > pi && path[i-1] == '/' {
					break
				}
				if matchGlobRecursive(path, pattern, i, nextPti) {
					return true
				}
			}
			return false
		}

		if pattern[pti] == '?' {
			if pi >= len(path) || path[pi] == '/' {
				return false
			}
			pi++
			pti++
			continue
		}

		if pattern[pti] == '[' {
			closeIdx := strings.IndexByte(pattern[pti:], ']')
			if closeIdx < 0 {
				if pi >= len(path) || path[pi] != '[' {
					return false
				}
				pi++
				pti++
				continue
			}
			closeIdx += pti
			if pi >= len(path) || !matchCharClass(path[pi], pattern[pti+1:closeIdx]) {
				return false
			}
			pi++
			pti = closeIdx + 1
			continue
		}

		if pi >= len(path) || path[pi] != pattern[pti] {
			return false
		}
		pi++
		pti++
	}
	return pi == len(path) && pti == len(pattern)
}

func matchCharClass(c byte, class string) bool {
	if class == "" {
		return false
	}
	negated := false
	idx := 0
	if class[0] == '!' || class[0] == '^' {
		negated = true
		idx = 1
	}
	matched := false
	for idx < len(class) {
		if idx+2 < len(class) && class[idx+1] == '-' {
			if c >= class[idx] && c <= class[idx+2] {
				matched = true
			}
			idx += 3
			continue
		}
		if c == class[idx] {
			matched = true
		}
		idx++
	}
	if negated {
		return !matched
	}
	return matched
}
