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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/kraklabs/cie-graph/pkg/storage"
)

// wordCount splits s on runs of non-identifier characters and counts the
// resulting tokens — a deliberately crude vocabulary measure, good enough
// to compare a file's raw word count against the words its entities cover
// (§3.5 relation 5) without pulling in a tokenizer.
func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		isWord := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		if isWord && !inWord {
			n++
		}
		inWord = isWord
	}
	return n
}

// fileCoverage computes FileWordCoverage for one file: what fraction of its
// vocabulary fell inside an extracted entity. "Raw" coverage is the plain
// ratio; "effective" coverage floors sourceWords at entityWords so a file
// with zero source words outside its entities (everything captured) never
// reports a coverage above 100%.
func fileCoverage(path string, sourceWords, entityWords int) storage.FileWordCoverage {
	raw := 0.0
	if sourceWords > 0 {
		raw = float64(entityWords) / float64(sourceWords) * 100
	}
	effective := raw
	if effective > 100 {
		effective = 100
	}
	return storage.FileWordCoverage{
		FilePath:             path,
		SourceWords:          sourceWords,
		EntityWords:          entityWords,
		RawCoveragePct:       raw,
		EffectiveCoveragePct: effective,
	}
}

// externalPackage extracts the leading package/module qualifier from a
// dotted reference (e.g. "fmt.Sprintf" -> "fmt", "requests.get" ->
// "requests"), used to name an external-dependency placeholder's synthetic
// file_path (§3.4: file_path = "external-dependency-{pkg}"). A reference
// with no dot is its own package name — this is the common case for bare
// builtins.
func externalPackage(reference string) string {
	if idx := strings.Index(reference, "."); idx > 0 {
		return reference[:idx]
	}
	return reference
}

// fileHash computes the SHA-256 digest of a file's raw bytes for
// FileHashCache (§3.5 relation 3). Unlike identity.ContentHash, this is the
// *uncanonicalized* file hash: the hash-cache fast path (§4.5 step 2) must
// detect any byte-level change, including pure whitespace, to decide
// whether it is even worth re-parsing the file.
func fileHash(fullPath string) (string, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
