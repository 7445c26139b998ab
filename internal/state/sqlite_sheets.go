package state

import (
	"database/sql"
	"fmt"

	"github.com/ianyh/castle/pkg/core"
)

// ListSheets returns all sheets with their ordered columns, sorted by title.
// Rows are not loaded; use GetSheet for the full snapshot of one sheet.
func (s *SQLiteStore) ListSheets() ([]*core.Sheet, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT title, sheet_id FROM sheets ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}
	defer rows.Close()

	var sheets []*core.Sheet
	byTitle := make(map[string]*core.Sheet)
	for rows.Next() {
		sheet := &core.Sheet{}
		if err := rows.Scan(&sheet.Title, &sheet.SheetID); err != nil {
			return nil, fmt.Errorf("failed to scan sheet: %w", err)
		}
		sheets = append(sheets, sheet)
		byTitle[sheet.Title] = sheet
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	colRows, err := s.db.Query(
		`SELECT sheet_title, key, title, is_frozen, position FROM columns ORDER BY sheet_title, position`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var sheetTitle string
		col := &core.Column{}
		if err := colRows.Scan(&sheetTitle, &col.Key, &col.Title, &col.IsFrozen, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if sheet, ok := byTitle[sheetTitle]; ok {
			sheet.Columns = append(sheet.Columns, col)
		}
	}

	return sheets, colRows.Err()
}

// GetSheet retrieves one sheet with its ordered columns, rows, and values.
func (s *SQLiteStore) GetSheet(title string) (*core.Sheet, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sheet := &core.Sheet{}
	err := s.db.QueryRow(`SELECT title, sheet_id FROM sheets WHERE title = ?`, title).
		Scan(&sheet.Title, &sheet.SheetID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sheet %q: %w", title, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet: %w", err)
	}

	colRows, err := s.db.Query(
		`SELECT key, title, is_frozen, position FROM columns WHERE sheet_title = ? ORDER BY position`,
		title,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer colRows.Close()
	for colRows.Next() {
		col := &core.Column{}
		if err := colRows.Scan(&col.Key, &col.Title, &col.IsFrozen, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		sheet.Columns = append(sheet.Columns, col)
	}
	if err := colRows.Err(); err != nil {
		return nil, err
	}

	rowRows, err := s.db.Query(
		`SELECT id, db_id, position FROM rows WHERE sheet_title = ? ORDER BY position`, title,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	defer rowRows.Close()

	byID := make(map[string]*core.Row)
	for rowRows.Next() {
		row := &core.Row{SheetTitle: title}
		var dbID sql.NullString
		if err := rowRows.Scan(&row.ID, &dbID, &row.Position); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row.DBID = dbID.String
		sheet.Rows = append(sheet.Rows, row)
		byID[row.ID] = row
	}
	if err := rowRows.Err(); err != nil {
		return nil, err
	}

	valueRows, err := s.db.Query(
		`SELECT v.row_id, v.id, v.column_key, v.title, v.value, v.image_url, v.position
		 FROM row_values v
		 JOIN rows r ON r.id = v.row_id
		 WHERE r.sheet_title = ?
		 ORDER BY r.position, v.position`,
		title,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get values: %w", err)
	}
	defer valueRows.Close()

	for valueRows.Next() {
		var rowID string
		value, err := scanValue(valueRows, &rowID)
		if err != nil {
			return nil, err
		}
		if row, ok := byID[rowID]; ok {
			row.Values = append(row.Values, value)
		}
	}

	return sheet, valueRows.Err()
}

// GetRow retrieves one row with its ordered values.
func (s *SQLiteStore) GetRow(id string) (*core.Row, error) {
	return s.getRow(`SELECT id, sheet_title, db_id, position FROM rows WHERE id = ?`, id)
}

// GetRowByDBID retrieves a row by its secondary id derived from the sheet's
// "ID" column.
func (s *SQLiteStore) GetRowByDBID(dbID string) (*core.Row, error) {
	return s.getRow(`SELECT id, sheet_title, db_id, position FROM rows WHERE db_id = ?`, dbID)
}

func (s *SQLiteStore) getRow(query, key string) (*core.Row, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := &core.Row{}
	var dbID sql.NullString
	err := s.db.QueryRow(query, key).Scan(&row.ID, &row.SheetTitle, &dbID, &row.Position)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("row %q: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get row: %w", err)
	}
	row.DBID = dbID.String

	valueRows, err := s.db.Query(
		`SELECT row_id, id, column_key, title, value, image_url, position
		 FROM row_values WHERE row_id = ? ORDER BY position`,
		row.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get values: %w", err)
	}
	defer valueRows.Close()

	for valueRows.Next() {
		var rowID string
		value, err := scanValue(valueRows, &rowID)
		if err != nil {
			return nil, err
		}
		row.Values = append(row.Values, value)
	}

	return row, valueRows.Err()
}

// ListImageURLs returns every distinct non-null image URL in the snapshot,
// sorted, for the image preloader.
func (s *SQLiteStore) ListImageURLs() ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT DISTINCT image_url FROM row_values WHERE image_url IS NOT NULL ORDER BY image_url`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list image urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan image url: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func scanValue(rows *sql.Rows, rowID *string) (*core.Value, error) {
	value := &core.Value{}
	var columnKey, imageURL sql.NullString
	if err := rows.Scan(rowID, &value.ID, &columnKey, &value.Title, &value.Value, &imageURL, &value.Position); err != nil {
		return nil, fmt.Errorf("failed to scan value: %w", err)
	}
	value.ColumnKey = columnKey.String
	value.ImageURL = imageURL.String
	return value, nil
}
