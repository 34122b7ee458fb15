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
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestEscapeForStorageWindowsPath(t *testing.T) {
	got := escapeForStorage(`C:\repo\pkg\foo.go`)
	assert.Equal(t, `C:\\repo\\pkg\\foo.go`, got)
}

func TestEscapeForStoragePHPNamespace(t *testing.T) {
	got := escapeForStorage(`App\Models\User`)
	assert.Equal(t, `App\\Models\\User`, got)
}

func TestEscapeForStorageQuote(t *testing.T) {
	got := escapeForStorage(`say "hi"`)
	assert.Equal(t, `say \"hi\"`, got)
}

// TestEscapeForStorageNeverLeavesUnescapedBackslash fuzzes arbitrary
// strings and asserts no lone backslash survives — the historical failure
// mode this function exists to close off.
func TestEscapeForStorageNeverLeavesUnescapedBackslash(t *testing.T) {
	f := func(s string) bool {
		escaped := escapeForStorage(s)
		for i := 0; i < len(escaped); i++ {
			if escaped[i] == '\\' {
				if i+1 >= len(escaped) {
					return false
				}
				if escaped[i+1] != '\\' && escaped[i+1] != '"' {
					return false
				}
				i++ // skip the escaped character
			}
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
