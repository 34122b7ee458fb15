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

package reindex

import (
	"testing"

	"github.com/kraklabs/cie-graph/pkg/identity"
	"github.com/kraklabs/cie-graph/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestKeyForReusesOldKeyOnMatch(t *testing.T) {
	candidate := identity.Candidate{Language: "go", EntityType: "function", Name: "Foo", FilePath: "a.go", StartLine: 1, EndLine: 5}

	matched := identity.Result{Kind: identity.ContentMatch, OldKey: identity.Key("go:function:Foo:__a_go:T100")}
	assert.Equal(t, matched.OldKey, keyFor(matched, candidate, 999))

	fresh := identity.Result{Kind: identity.NewEntity}
	assert.Equal(t, identity.GenerateKey(candidate, 999), keyFor(fresh, candidate, 999))
}

func TestBirthForPreservesOriginalTimestamp(t *testing.T) {
	oldKey := identity.Key("go:function:Foo:__a_go:T100")
	existing := []storage.Entity{{Key: oldKey, BirthTimestamp: 100}}

	matched := identity.Result{Kind: identity.PositionMatch, OldKey: oldKey}
	assert.Equal(t, int64(100), birthFor(matched, existing, 999))

	fresh := identity.Result{Kind: identity.NewEntity}
	assert.Equal(t, int64(999), birthFor(fresh, existing, 999))
}
