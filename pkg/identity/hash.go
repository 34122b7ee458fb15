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

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash canonicalizes an entity body (normalize line endings, trim
// trailing whitespace per line, drop blank lines at the edges) and returns
// its SHA-256 digest. Two bodies that differ only in formatting hash the
// same, which is what lets ContentMatch survive pure reformatting (P2).
func ContentHash(body string) string {
	canon := Canonicalize(body)
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])
}

// Canonicalize normalizes a source body for hashing: CRLF/CR become LF,
// trailing whitespace is trimmed from every line, and leading/trailing
// blank lines are dropped. It does not strip comments, and neither does
// pkg/parser, which passes each entity's raw code text to ContentHash:
// two bodies that differ only in their comments hash differently.
func Canonicalize(body string) string {
	s := strings.ReplaceAll(body, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
