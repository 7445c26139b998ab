package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianyh/castle/internal/cli/config"
	"github.com/ianyh/castle/internal/state"
	"github.com/ianyh/castle/pkg/core"
)

// seedDatabase writes a one-sheet snapshot to a database file for the
// read-only commands to query.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "castle.db")

	store := state.NewSQLiteStore(state.Config{
		SearchSheets: config.DefaultSearchSheets(),
	})
	require.NoError(t, store.Open(path))
	require.NoError(t, store.Migrate())

	sheet := &core.Sheet{Title: "Characters", SheetID: 10}
	sheet.Columns = []*core.Column{
		{Key: "10-Name", Title: "Name", IsFrozen: true, Position: 0},
	}
	sheet.Rows = []*core.Row{{
		ID:         "Characters-00000",
		SheetTitle: "Characters",
		Position:   0,
		Values: []*core.Value{
			{ID: "Characters-00000-00000", Title: "Name", Value: "Tidus", Position: 0},
		},
	}}
	require.NoError(t, store.ReplaceSnapshot(context.Background(), []*core.Sheet{sheet}))
	require.NoError(t, store.Close())
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	t.Chdir(t.TempDir())

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Search(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "--database", db, "search", "Tidus")
	require.NoError(t, err)
	assert.Contains(t, out, "Tidus")
	assert.Contains(t, out, "Characters-00000")
}

func TestRootCommand_Sheets(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "--database", db, "sheets")
	require.NoError(t, err)
	assert.Contains(t, out, "Characters")

	out, err = runCommand(t, "--database", db, "sheets", "Characters")
	require.NoError(t, err)
	assert.Contains(t, out, "Characters-00000")
	assert.Contains(t, out, "(1 rows)")
}

func TestRootCommand_Row(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "--database", db, "row", "Characters-00000")
	require.NoError(t, err)
	assert.Contains(t, out, "Tidus")

	_, err = runCommand(t, "--database", db, "row", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRootCommand_Status(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "--database", db, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Last sync:")
}

func TestRootCommand_StatusNeverSynced(t *testing.T) {
	out, err := runCommand(t, "--database", filepath.Join(t.TempDir(), "fresh.db"), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Never synced")
}

func TestRootCommand_SpecialsList(t *testing.T) {
	db := seedDatabase(t)

	out, err := runCommand(t, "--database", db, "specials")
	require.NoError(t, err)
	assert.Contains(t, out, "Aegis Break")
	assert.Contains(t, out, "Full Break Counter")
}
