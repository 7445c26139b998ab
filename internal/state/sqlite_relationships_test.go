package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianyh/castle/pkg/core"
)

func groupFor(groups []core.RelationshipGroup, sheetTitle string) *core.RelationshipGroup {
	for i := range groups {
		if groups[i].SheetTitle == sheetTitle {
			return &groups[i]
		}
	}
	return nil
}

func TestRelationships_CharacterReferences(t *testing.T) {
	store := setupSearchTestStore(t)

	// Tidus is referenced through "Character" columns in Abilities and
	// Soul Breaks.
	groups, err := store.Relationships(context.Background(), "Characters-00000")
	require.NoError(t, err)

	abilities := groupFor(groups, "Abilities")
	require.NotNil(t, abilities)
	assert.Equal(t, []string{"Abilities-00000"}, abilities.RowIDs)

	soulBreaks := groupFor(groups, "Soul Breaks")
	require.NotNil(t, soulBreaks)
	assert.Equal(t, []string{"Soul Breaks-00000"}, soulBreaks.RowIDs)
}

func TestRelationships_GroupsSortedBySheet(t *testing.T) {
	store := setupSearchTestStore(t)

	groups, err := store.Relationships(context.Background(), "Characters-00000")
	require.NoError(t, err)
	require.True(t, len(groups) >= 2)
	for i := 1; i < len(groups); i++ {
		assert.Less(t, groups[i-1].SheetTitle, groups[i].SheetTitle)
	}
}

func TestRelationships_SoulBreakSource(t *testing.T) {
	store := setupSearchTestStore(t)

	// Blitz Ace is named by the Other row's "Source" column, and its
	// effects cast Follow-Up Strike and grant [Haste].
	groups, err := store.Relationships(context.Background(), "Soul Breaks-00000")
	require.NoError(t, err)

	other := groupFor(groups, "Other")
	require.NotNil(t, other)
	assert.Equal(t, []string{"Other-00000"}, other.RowIDs)

	status := groupFor(groups, "Status")
	require.NotNil(t, status)
	assert.Equal(t, []string{"Status-00000"}, status.RowIDs)
}

func TestRelationships_EffectsStatusReference(t *testing.T) {
	store := setupSearchTestStore(t)

	// Spiral Cut grants [Haste]; the Status row named Haste is related.
	groups, err := store.Relationships(context.Background(), "Abilities-00000")
	require.NoError(t, err)

	status := groupFor(groups, "Status")
	require.NotNil(t, status)
	assert.Equal(t, []string{"Status-00000"}, status.RowIDs)
}

func TestRelationships_ExcludesSelf(t *testing.T) {
	store := setupSearchTestStore(t)

	groups, err := store.Relationships(context.Background(), "Soul Breaks-00000")
	require.NoError(t, err)
	for _, g := range groups {
		for _, id := range g.RowIDs {
			assert.NotEqual(t, "Soul Breaks-00000", id)
		}
	}
}

func TestRelationships_RowNotFound(t *testing.T) {
	store := setupSearchTestStore(t)

	_, err := store.Relationships(context.Background(), "Characters-99999")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRelationships_NoReferences(t *testing.T) {
	store := setupSearchTestStore(t)

	// Yuna's ability has a plain effects text and nothing references it.
	groups, err := store.Relationships(context.Background(), "Abilities-00001")
	require.NoError(t, err)
	assert.Empty(t, groups)
}
