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

package treesitter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// These Generate*ID helpers produce an ephemeral reference used only to
// link Defines/Calls/Imports edges to the right entity within a single
// parse pass — they never reach storage. The persisted identity is
// pkg/identity's ISGL1 v2 key, assigned later once the caller knows the
// entity's birth timestamp (§4.2: "resolution to a concrete to_key happens
// later"). An earlier generation of this parser used this same
// line-range-keyed scheme as the persisted entity ID; keeping the shape
// here for intra-file linkage is fine because it never outlives one parse.

// GenerateFileID returns a within-pipeline reference for a file path.
func GenerateFileID(filePath string) string {
	return "file:" + hashHex(filePath)
}

// GenerateFunctionID returns a within-pipeline reference for a function or
// method candidate, scoped to this parse pass only.
func GenerateFunctionID(filePath, name, signature string, startLine, endLine, startCol, endCol int) string {
	return "func:" + hashHex(fmt.Sprintf("%s|%s|%s|%d|%d|%d|%d", filePath, name, signature, startLine, endLine, startCol, endCol))
}

// GenerateTypeID returns a within-pipeline reference for a type candidate.
func GenerateTypeID(filePath, name string, startLine, endLine int) string {
	return "type:" + hashHex(fmt.Sprintf("%s|%s|%d|%d", filePath, name, startLine, endLine))
}

// GenerateImportID returns a within-pipeline reference for an import
// statement, used only to dedupe within one file's parse result.
func GenerateImportID(filePath, importPath string) string {
	return "import:" + hashHex(filePath+"|"+importPath)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
