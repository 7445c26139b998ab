package state

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ianyh/castle/pkg/core"
)

// baseIndexFields are always part of the search index definition.
var baseIndexFields = []string{"Effects", "Element", "Tier"}

// jpNameField is indexed whenever any synced sheet carries it.
const jpNameField = "Name (JP)"

// ReplaceSnapshot atomically replaces the stored snapshot of every given
// sheet, updates the last-sync marker, and rebuilds the search index. On any
// error nothing is committed and the previous snapshot and index stay
// authoritative.
func (s *SQLiteStore) ReplaceSnapshot(ctx context.Context, sheets []*core.Sheet) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, sheet := range sheets {
		if err := replaceSheet(tx, sheet); err != nil {
			return fmt.Errorf("failed to replace sheet %q: %w", sheet.Title, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO last_sync (id, synced_at) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET synced_at = excluded.synced_at`,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to update last sync time: %w", err)
	}

	if err := rebuildSearchIndex(tx, sheets); err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.Info("committed snapshot", "sheets", len(sheets))
	return nil
}

// replaceSheet upserts the sheet record and replaces its columns, rows, and
// values wholesale. Upsert-by-title keeps a resynced sheet from duplicating.
func replaceSheet(tx *sql.Tx, sheet *core.Sheet) error {
	if _, err := tx.Exec(
		`INSERT INTO sheets (title, sheet_id) VALUES (?, ?)
		 ON CONFLICT(title) DO UPDATE SET sheet_id = excluded.sheet_id`,
		sheet.Title, sheet.SheetID,
	); err != nil {
		return fmt.Errorf("failed to upsert sheet: %w", err)
	}

	// Replace, not merge: the snapshot for a title is whatever this sync
	// produced.
	if _, err := tx.Exec(
		`DELETE FROM row_values WHERE row_id IN (SELECT id FROM rows WHERE sheet_title = ?)`,
		sheet.Title,
	); err != nil {
		return fmt.Errorf("failed to delete old values: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM rows WHERE sheet_title = ?`, sheet.Title); err != nil {
		return fmt.Errorf("failed to delete old rows: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM columns WHERE sheet_title = ?`, sheet.Title); err != nil {
		return fmt.Errorf("failed to delete old columns: %w", err)
	}

	colStmt, err := tx.Prepare(
		`INSERT INTO columns (key, sheet_title, title, is_frozen, position) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare column insert: %w", err)
	}
	defer colStmt.Close()
	for _, c := range sheet.Columns {
		if _, err := colStmt.Exec(c.Key, sheet.Title, c.Title, c.IsFrozen, c.Position); err != nil {
			return fmt.Errorf("failed to insert column %q: %w", c.Title, err)
		}
	}

	rowStmt, err := tx.Prepare(
		`INSERT INTO rows (id, sheet_title, db_id, position) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer rowStmt.Close()

	valueStmt, err := tx.Prepare(
		`INSERT INTO row_values (id, row_id, column_key, title, value, image_url, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer valueStmt.Close()

	for _, r := range sheet.Rows {
		if _, err := rowStmt.Exec(r.ID, sheet.Title, nullString(r.DBID), r.Position); err != nil {
			return fmt.Errorf("failed to insert row %q: %w", r.ID, err)
		}
		for _, v := range r.Values {
			if _, err := valueStmt.Exec(
				v.ID, r.ID, nullString(v.ColumnKey), v.Title, v.Value, nullString(v.ImageURL), v.Position,
			); err != nil {
				return fmt.Errorf("failed to insert value %q: %w", v.ID, err)
			}
		}
	}

	return nil
}

// rebuildSearchIndex drops and recreates the FTS5 virtual table for the
// snapshot's accumulated field set and writes one document per row. A field
// indexed for one sheet is available for all.
func rebuildSearchIndex(tx *sql.Tx, sheets []*core.Sheet) error {
	fields := indexFields(sheets)
	slugs := fieldSlugs(fields)

	if _, err := tx.Exec(`DROP TABLE IF EXISTS search_index`); err != nil {
		return fmt.Errorf("failed to drop index table: %w", err)
	}

	cols := make([]string, 0, len(fields)+3)
	for _, field := range fields {
		cols = append(cols, quoteIdent(slugs[field]))
	}
	cols = append(cols, "row_id UNINDEXED", "sheet_title UNINDEXED", "image_url UNINDEXED")

	createSQL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE search_index USING fts5(%s, tokenize = 'unicode61')`,
		strings.Join(cols, ", "),
	)
	if _, err := tx.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create index table: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM search_fields`); err != nil {
		return fmt.Errorf("failed to clear field mapping: %w", err)
	}
	for _, field := range fields {
		if _, err := tx.Exec(
			`INSERT INTO search_fields (field, slug) VALUES (?, ?)`, field, slugs[field],
		); err != nil {
			return fmt.Errorf("failed to record field mapping: %w", err)
		}
	}

	insertCols := make([]string, 0, len(fields)+3)
	placeholders := make([]string, 0, len(fields)+3)
	for _, field := range fields {
		insertCols = append(insertCols, quoteIdent(slugs[field]))
		placeholders = append(placeholders, "?")
	}
	insertCols = append(insertCols, "row_id", "sheet_title", "image_url")
	placeholders = append(placeholders, "?", "?", "?")

	docStmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO search_index (%s) VALUES (%s)`,
		strings.Join(insertCols, ", "), strings.Join(placeholders, ", "),
	))
	if err != nil {
		return fmt.Errorf("failed to prepare document insert: %w", err)
	}
	defer docStmt.Close()

	for _, sheet := range sheets {
		for _, row := range sheet.Rows {
			doc := make(map[string]string, len(row.Values))
			imageURL := ""
			for _, v := range row.Values {
				if imageURL == "" && v.ImageURL != "" {
					imageURL = v.ImageURL
				}
				if v.Title == "" || v.Value == "" {
					continue
				}
				doc[v.Title] = v.Value
			}

			args := make([]any, 0, len(fields)+3)
			for _, field := range fields {
				args = append(args, doc[field])
			}
			args = append(args, row.ID, sheet.Title, imageURL)

			if _, err := docStmt.Exec(args...); err != nil {
				return fmt.Errorf("failed to index row %q: %w", row.ID, err)
			}
		}
	}

	return nil
}

// indexFields accumulates the indexed field set across all synced sheets:
// the base set, every non-empty frozen column title, and "Name (JP)" when
// any sheet carries it. Sorted for a deterministic table definition.
func indexFields(sheets []*core.Sheet) []string {
	set := make(map[string]struct{}, len(baseIndexFields))
	for _, field := range baseIndexFields {
		set[field] = struct{}{}
	}
	for _, sheet := range sheets {
		for _, c := range sheet.Columns {
			if c.Title == "" {
				continue
			}
			if c.IsFrozen || c.Title == jpNameField {
				set[c.Title] = struct{}{}
			}
		}
	}

	fields := make([]string, 0, len(set))
	for field := range set {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// fieldSlugs maps field titles to valid, unique FTS5 column names.
func fieldSlugs(fields []string) map[string]string {
	slugs := make(map[string]string, len(fields))
	taken := map[string]struct{}{
		// Reserved by the index table and FTS5 itself.
		"row_id":      {},
		"sheet_title": {},
		"image_url":   {},
		"rank":        {},
		"rowid":       {},
	}

	for _, field := range fields {
		slug := slugify(field)
		if _, exists := taken[slug]; exists {
			for i := 2; ; i++ {
				candidate := fmt.Sprintf("%s_%d", slug, i)
				if _, exists := taken[candidate]; !exists {
					slug = candidate
					break
				}
			}
		}
		taken[slug] = struct{}{}
		slugs[field] = slug
	}
	return slugs
}

// slugify lowers a field title into identifier form: letter/digit runs
// joined by single underscores.
func slugify(field string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(field) {
		isWord := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isWord {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	slug := b.String()
	if slug == "" || (slug[0] >= '0' && slug[0] <= '9') {
		slug = "f_" + slug
	}
	return slug
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
