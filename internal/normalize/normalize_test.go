package normalize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianyh/castle/internal/sheets"
	"github.com/ianyh/castle/pkg/core"
)

func fixtureData() sheets.SheetData {
	return sheets.SheetData{
		Meta: core.SheetMeta{
			ID:                7,
			Title:             "Characters",
			FrozenColumnCount: 2,
		},
		Values: [][]string{
			{"Img", "Character Name", "Element", "ID"},
			{"", "Tidus", "Water", "101"},
			{"", "Yuna", "Holy", "102"},
			{"", "Auron", "Fire", ""},
		},
		Raw: [][]core.RawValue{
			{core.String("Img"), core.String("Character Name"), core.String("Element"), core.String("ID")},
			{core.String(`=image("http://img/" & B2 & ".png")`), core.String("tidus"), core.String("Water"), core.Absent()},
			{core.Absent(), core.String("yuna"), core.String("Holy"), core.Absent()},
			{core.Absent(), core.String("auron"), core.String("Fire"), core.Absent()},
		},
	}
}

func TestSheet_ColumnOrdering(t *testing.T) {
	sheet := New(Config{}).Sheet(fixtureData())

	require.Len(t, sheet.Columns, 3, "Img must not become a column")
	assert.Equal(t, "Character Name", sheet.Columns[0].Title, "Name column moves to the front")
	assert.Equal(t, "Element", sheet.Columns[1].Title)
	assert.Equal(t, "ID", sheet.Columns[2].Title)

	for i, c := range sheet.Columns {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, fmt.Sprintf("7-%s", c.Title), c.Key)
	}
}

func TestSheet_FrozenFlags(t *testing.T) {
	sheet := New(Config{}).Sheet(fixtureData())

	// Positional: header indexes 0 ("Img", dropped) and 1 ("Character Name")
	// fall inside frozenColumnCount=2.
	byTitle := map[string]*core.Column{}
	for _, c := range sheet.Columns {
		byTitle[c.Title] = c
	}
	assert.True(t, byTitle["Character Name"].IsFrozen)
	assert.False(t, byTitle["Element"].IsFrozen)
	assert.False(t, byTitle["ID"].IsFrozen)
}

func TestSheet_ForceFrozenOverride(t *testing.T) {
	n := New(Config{ForceFrozenColumns: []string{"Element"}})
	sheet := n.Sheet(fixtureData())

	for _, c := range sheet.Columns {
		if c.Title == "Element" {
			assert.True(t, c.IsFrozen, "force-frozen set overrides position")
		}
	}
}

func TestSheet_RowAndValueIDs(t *testing.T) {
	sheet := New(Config{}).Sheet(fixtureData())

	require.Len(t, sheet.Rows, 3)
	for i, row := range sheet.Rows {
		assert.Equal(t, fmt.Sprintf("Characters-%05d", i), row.ID)
		assert.Equal(t, i, row.Position)
		require.Len(t, row.Values, 4, "values cover every header cell, Img included")
		for vi, v := range row.Values {
			assert.Equal(t, fmt.Sprintf("%s-%05d", row.ID, vi), v.ID)
		}
	}

	// Ids are strictly increasing lexicographically.
	for i := 1; i < len(sheet.Rows); i++ {
		assert.Less(t, sheet.Rows[i-1].ID, sheet.Rows[i].ID)
	}
}

func TestSheet_ValueTitlesAndImageURL(t *testing.T) {
	sheet := New(Config{}).Sheet(fixtureData())

	tidus := sheet.Rows[0]
	assert.Equal(t, "Img", tidus.Values[0].Title)
	assert.Equal(t, "", tidus.Values[0].ColumnKey, "dropped Img column leaves no reference")
	assert.Equal(t, "http://img/tidus.png", tidus.Values[0].ImageURL)

	assert.Equal(t, "Character Name", tidus.Values[1].Title)
	assert.Equal(t, "Tidus", tidus.Values[1].Value)
	assert.Equal(t, "7-Character Name", tidus.Values[1].ColumnKey)

	var withImage int
	for _, row := range sheet.Rows {
		for _, v := range row.Values {
			if v.ImageURL != "" {
				withImage++
			}
		}
	}
	assert.Equal(t, 1, withImage, "only the formula cell yields an image URL")
}

func TestSheet_DBID(t *testing.T) {
	sheet := New(Config{}).Sheet(fixtureData())

	assert.Equal(t, "Characters-101", sheet.Rows[0].DBID)
	assert.Equal(t, "Characters-102", sheet.Rows[1].DBID)
	assert.Equal(t, "", sheet.Rows[2].DBID, "empty ID cell leaves no secondary id")
}

func TestSheet_TruncatesRaggedRows(t *testing.T) {
	data := fixtureData()
	// Extra cells beyond the header are ignored; short rows are tolerated.
	data.Values[1] = append(data.Values[1], "extra", "cells")
	data.Raw[1] = append(data.Raw[1], core.String("extra"), core.String("cells"))
	data.Values[2] = data.Values[2][:2]
	data.Raw[2] = data.Raw[2][:2]

	sheet := New(Config{}).Sheet(data)
	require.Len(t, sheet.Rows, 3)
	assert.Len(t, sheet.Rows[0].Values, 4)
	assert.Len(t, sheet.Rows[1].Values, 2)
}

func TestSheet_NoHeader(t *testing.T) {
	sheet := New(Config{}).Sheet(sheets.SheetData{Meta: core.SheetMeta{Title: "Empty"}})
	assert.Empty(t, sheet.Columns)
	assert.Empty(t, sheet.Rows)
}

func TestSheet_NormalizedNameAndEffects(t *testing.T) {
	sheet := New(Config{}).Sheet(fixtureData())

	assert.Equal(t, "Character", sheet.NormalizedName())
	assert.Equal(t, "Tidus", sheet.Rows[0].NormalizedName())
	assert.Equal(t, "", sheet.Rows[0].Effects())
}
