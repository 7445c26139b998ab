// Package normalize converts fetched sheet matrices into the persisted
// Sheet/Column/Row/Value entities, applying the column ordering and frozen
// header policies.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ianyh/castle/internal/formula"
	"github.com/ianyh/castle/internal/sheets"
	"github.com/ianyh/castle/pkg/core"
)

// idColumnTitle marks the column whose content feeds a row's secondary DBID.
const idColumnTitle = "ID"

// imgColumnTitle is dropped from the column list: images are a derived
// property of a Value, not a column of their own.
const imgColumnTitle = "Img"

// Config holds normalizer configuration.
type Config struct {
	// ForceFrozenColumns lists column titles treated as frozen regardless of
	// the sheet's positional frozen-column count.
	ForceFrozenColumns []string
	// Logger is optional.
	Logger *slog.Logger
}

// Normalizer builds normalized sheet entities from fetched matrices.
type Normalizer struct {
	forceFrozen map[string]struct{}
	logger      *slog.Logger
}

// New creates a Normalizer.
func New(cfg Config) *Normalizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	forceFrozen := make(map[string]struct{}, len(cfg.ForceFrozenColumns))
	for _, title := range cfg.ForceFrozenColumns {
		forceFrozen[title] = struct{}{}
	}

	return &Normalizer{forceFrozen: forceFrozen, logger: logger}
}

// Sheet converts one fetched sheet into its normalized entity. Malformed
// matrices never fail: rows are truncated to the header length, missing raw
// cells are tolerated, and unparseable formulas degrade to no image URL.
func (n *Normalizer) Sheet(data sheets.SheetData) *core.Sheet {
	sheet := &core.Sheet{
		Title:   data.Meta.Title,
		SheetID: data.Meta.ID,
	}
	if len(data.Values) == 0 {
		n.logger.Warn("sheet has no header row", "sheet", data.Meta.Title)
		return sheet
	}

	headers := data.Values[0]
	sheet.Columns = n.columns(data.Meta, headers)

	// First column key per title, for the Value -> Column weak reference.
	keysByTitle := make(map[string]string, len(sheet.Columns))
	for _, c := range sheet.Columns {
		if _, ok := keysByTitle[c.Title]; !ok {
			keysByTitle[c.Title] = c.Key
		}
	}

	idIndex := -1
	for i, title := range headers {
		if title == idColumnTitle {
			idIndex = i
			break
		}
	}

	rowCount := len(data.Values)
	if len(data.Raw) < rowCount {
		rowCount = len(data.Raw)
	}

	for ri := 1; ri < rowCount; ri++ {
		index := ri - 1
		row := &core.Row{
			ID:         fmt.Sprintf("%s-%05d", sheet.Title, index),
			SheetTitle: sheet.Title,
			Position:   index,
		}

		cells := data.Values[ri]
		rawCells := data.Raw[ri]
		width := len(headers)
		if len(cells) < width {
			width = len(cells)
		}
		if len(rawCells) < width {
			width = len(rawCells)
		}

		for vi := 0; vi < width; vi++ {
			value := &core.Value{
				ID:        fmt.Sprintf("%s-%05d", row.ID, vi),
				ColumnKey: keysByTitle[headers[vi]],
				Title:     headers[vi],
				Value:     cells[vi],
				Position:  vi,
			}
			if rawCells[vi].Valid {
				if url, ok := formula.ImageURL(rawCells[vi].Value, rawCells); ok {
					value.ImageURL = url
				}
			}
			row.Values = append(row.Values, value)
		}

		if idIndex >= 0 && idIndex < len(cells) && cells[idIndex] != "" {
			row.DBID = sheet.Title + "-" + cells[idIndex]
		}

		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet
}

// columns builds the ordered column list: "Img" headers are dropped, frozen
// flags applied, and the column whose title ends in "Name" moved to the
// front with all other columns keeping their relative order.
func (n *Normalizer) columns(meta core.SheetMeta, headers []string) []*core.Column {
	var cols []*core.Column
	for i, title := range headers {
		if title == imgColumnTitle {
			continue
		}
		_, forced := n.forceFrozen[title]
		cols = append(cols, &core.Column{
			Key:      fmt.Sprintf("%d-%s", meta.ID, title),
			Title:    title,
			IsFrozen: int64(i) < meta.FrozenColumnCount || forced,
		})
	}

	nameIndex := -1
	for i, c := range cols {
		if strings.HasSuffix(c.Title, "Name") {
			nameIndex = i
			break
		}
	}
	if nameIndex > 0 {
		name := cols[nameIndex]
		cols = append(cols[:nameIndex], cols[nameIndex+1:]...)
		cols = append([]*core.Column{name}, cols...)
	}

	for i, c := range cols {
		c.Position = i
	}
	return cols
}
