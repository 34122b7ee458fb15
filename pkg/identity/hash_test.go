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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashIgnoresTrailingWhitespace(t *testing.T) {
	a := "func Foo() {  \n\treturn  \n}\t\n"
	b := "func Foo() {\n\treturn\n}\n"
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHashIgnoresLineEndingStyle(t *testing.T) {
	lf := "func Foo() {\n\treturn\n}\n"
	crlf := "func Foo() {\r\n\treturn\r\n}\r\n"
	assert.Equal(t, ContentHash(lf), ContentHash(crlf))
}

func TestContentHashIgnoresSurroundingBlankLines(t *testing.T) {
	a := "\n\nfunc Foo() {}\n\n\n"
	b := "func Foo() {}"
	assert.Equal(t, ContentHash(a), ContentHash(b))
}

func TestContentHashDiffersOnRealChange(t *testing.T) {
	a := "func Foo() { return 1 }"
	b := "func Foo() { return 2 }"
	assert.NotEqual(t, ContentHash(a), ContentHash(b))
}

func TestCanonicalizePreservesInternalBlankLines(t *testing.T) {
	body := "line one\n\nline three"
	assert.Equal(t, "line one\n\nline three", Canonicalize(body))
}
