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

// Package identity implements the ISGL1 v2 entity key scheme: a stable,
// line-number-free identifier plus the content/position matcher that lets
// small edits reuse an entity's key instead of minting a new one.
//
// Format: {language}:{type}:{sanitized_name}:{semantic_path}:T{birth_timestamp}
//
// Line numbers are never part of the key. An earlier generation of this
// engine hashed file_path+name+line_range into the entity ID, which meant
// any edit that shifted line numbers below a function invalidated its
// identity (and every edge pointing at it). This package replaces that
// scheme entirely: identity survives until the matcher decides the entity
// is genuinely gone.
package identity

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Key is an ISGL1 v2 entity identifier.
type Key string

// Candidate describes a freshly parsed entity before a key is assigned.
type Candidate struct {
	Language   string
	EntityType string
	Name       string
	FilePath   string
	StartLine  int
	EndLine    int
}

// Split returns the five colon-separated components of a key, or false if
// the key is not well-formed ISGL1 v2.
func Split(k Key) (language, entityType, sanitizedName, semanticPath string, birth int64, ok bool) {
	parts := strings.SplitN(string(k), ":", 5)
	if len(parts) != 5 {
		return "", "", "", "", 0, false
	}
	tsPart := parts[4]
	if !strings.HasPrefix(tsPart, "T") {
		return "", "", "", "", 0, false
	}
	var ts int64
	if _, err := fmt.Sscanf(tsPart[1:], "%d", &ts); err != nil {
		return "", "", "", "", 0, false
	}
	return parts[0], parts[1], parts[2], parts[3], ts, true
}

// Language returns split(key, ":")[0], the value invariant I1 requires to
// equal the entity's language field.
func Language(k Key) string {
	if i := strings.IndexByte(string(k), ':'); i >= 0 {
		return string(k)[:i]
	}
	return ""
}

// GenerateKey composes the ISGL1 v2 string for a candidate and a birth
// timestamp. birth is assigned once, at first creation, by the caller
// (ingestion for brand-new entities, reindex for NewEntity results) and
// never recomputed for an entity that already has a key.
func GenerateKey(c Candidate, birth int64) Key {
	return Key(fmt.Sprintf("%s:%s:%s:%s:T%d",
		strings.ToLower(c.Language),
		c.EntityType,
		SanitizeName(c.Name),
		SemanticPath(c.FilePath),
		birth,
	))
}

// ExternalKey composes the key for an external-dependency placeholder
// (§3.4): fixed birth timestamp T0, file_path is synthetic.
func ExternalKey(language, name, pkg string) Key {
	return Key(fmt.Sprintf("%s:external:%s:__external-dependency-%s:T0",
		strings.ToLower(language),
		SanitizeName(name),
		SanitizeName(pkg),
	))
}

// SemanticPath normalizes a file path the way a key embeds it: forward
// slashes, a "__" prefix anchoring it at the repository root, "/" replaced
// by "_". Line numbers never appear here — that is the whole point of the
// scheme (spec §3.3).
func SemanticPath(filePath string) string {
	p := filepath.ToSlash(filePath)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	p = strings.ReplaceAll(p, "/", "_")
	return "__" + p
}
