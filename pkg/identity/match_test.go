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
	"github.com/stretchr/testify/require"
)

// TestContentMatchSurvivesBlankLineInsertion covers P2: inserting blank
// lines above a function shifts its line_start but not its content hash,
// so the old key must be reused via ContentMatch, not PositionMatch.
func TestContentMatchSurvivesBlankLineInsertion(t *testing.T) {
	old := []Existing{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", Name: "Foo", StartLine: 5, ContentHash: "h1"},
	}
	results := MatchAll(
		[]string{"function"},
		[]string{"Foo"},
		[]int{25}, // far outside the position window, but same hash
		[]string{"h1"},
		old,
	)
	require.Len(t, results, 1)
	assert.Equal(t, ContentMatch, results[0].Kind)
	assert.Equal(t, Key("go:function:Foo:__a.go:T1"), results[0].OldKey)
}

// TestPositionMatchSurvivesInPlaceEdit covers P3: editing a function body
// (different hash) without moving it far keeps its key via PositionMatch.
func TestPositionMatchSurvivesInPlaceEdit(t *testing.T) {
	old := []Existing{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", Name: "Foo", StartLine: 10, ContentHash: "h1"},
	}
	results := MatchAll(
		[]string{"function"},
		[]string{"Foo"},
		[]int{12}, // within PositionWindow
		[]string{"h2"},
		old,
	)
	require.Len(t, results, 1)
	assert.Equal(t, PositionMatch, results[0].Kind)
	assert.Equal(t, Key("go:function:Foo:__a.go:T1"), results[0].OldKey)
}

func TestBeyondWindowAndHashMismatchIsNewEntity(t *testing.T) {
	old := []Existing{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", Name: "Foo", StartLine: 10, ContentHash: "h1"},
	}
	results := MatchAll(
		[]string{"function"},
		[]string{"Foo"},
		[]int{50},
		[]string{"h2"},
		old,
	)
	require.Len(t, results, 1)
	assert.Equal(t, NewEntity, results[0].Kind)
}

// TestOldEntityMatchedAtMostOnce covers the invariant that two new
// candidates cannot both claim the same old entity: the closer one wins
// the PositionMatch and the other falls through to NewEntity.
func TestOldEntityMatchedAtMostOnce(t *testing.T) {
	old := []Existing{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", Name: "Foo", StartLine: 10, ContentHash: "h1"},
	}
	results := MatchAll(
		[]string{"function", "function"},
		[]string{"Foo", "Foo"},
		[]int{11, 15}, // both within window; 11 is closer
		[]string{"h2", "h3"},
		old,
	)
	require.Len(t, results, 2)
	assert.Equal(t, PositionMatch, results[0].Kind)
	assert.Equal(t, Key("go:function:Foo:__a.go:T1"), results[0].OldKey)
	assert.Equal(t, NewEntity, results[1].Kind)
}

func TestDifferentEntityTypesDoNotCrossMatch(t *testing.T) {
	old := []Existing{
		{Key: "go:class:Foo:__a.go:T1", EntityType: "class", Name: "Foo", StartLine: 10, ContentHash: "h1"},
	}
	results := MatchAll(
		[]string{"function"},
		[]string{"Foo"},
		[]int{10},
		[]string{"h1"},
		old,
	)
	require.Len(t, results, 1)
	assert.Equal(t, NewEntity, results[0].Kind, "same name, different entity_type must not match")
}

func TestRemovedKeysReportsUnmatchedEntities(t *testing.T) {
	old := []Existing{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", Name: "Foo", StartLine: 10, ContentHash: "h1"},
		{Key: "go:function:Bar:__a.go:T2", EntityType: "function", Name: "Bar", StartLine: 40, ContentHash: "h4"},
	}
	results := MatchAll(
		[]string{"function"},
		[]string{"Foo"},
		[]int{10},
		[]string{"h1"},
		old,
	)
	removed := RemovedKeys(old, results)
	require.Len(t, removed, 1)
	assert.Equal(t, Key("go:function:Bar:__a.go:T2"), removed[0])
}

func TestPositionWindowBoundaryIsInclusive(t *testing.T) {
	old := []Existing{
		{Key: "go:function:Foo:__a.go:T1", EntityType: "function", Name: "Foo", StartLine: 10, ContentHash: "h1"},
	}
	results := MatchAll(
		[]string{"function"},
		[]string{"Foo"},
		[]int{10 + PositionWindow},
		[]string{"h2"},
		old,
	)
	require.Len(t, results, 1)
	assert.Equal(t, PositionMatch, results[0].Kind, "distance exactly P must still match")
}
