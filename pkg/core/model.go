package core

import (
	"strings"
	"time"
)

// SheetMeta is the transient metadata of one spreadsheet tab as reported by
// the backing service. It is fetched fresh on every sync and never persisted.
type SheetMeta struct {
	ID                int64  `json:"sheetId"`
	Title             string `json:"title"`
	RowCount          int64  `json:"rowCount"`
	ColumnCount       int64  `json:"columnCount"`
	FrozenRowCount    int64  `json:"frozenRowCount"`
	FrozenColumnCount int64  `json:"frozenColumnCount"`
}

// RawValue is the unevaluated formula text of a single cell. A cell whose
// raw representation is not a string (numbers, booleans, empty grid slots)
// decodes as absent rather than failing the sync.
type RawValue struct {
	Value string
	Valid bool
}

// String returns a present raw value.
func String(v string) RawValue {
	return RawValue{Value: v, Valid: true}
}

// Absent returns an absent raw value.
func Absent() RawValue {
	return RawValue{}
}

// Sheet is one normalized spreadsheet tab. Sheets are keyed by title;
// a resync with the same title replaces the previous snapshot.
type Sheet struct {
	Title   string    `json:"title"`
	SheetID int64     `json:"sheetId"`
	Columns []*Column `json:"columns,omitempty"`
	Rows    []*Row    `json:"rows,omitempty"`
}

// NormalizedName strips a trailing plural "s" from the sheet title. Other
// sheets reference rows of this sheet through a column carrying the
// singular form (e.g. rows of "Abilities" have a "Character" column).
func (s *Sheet) NormalizedName() string {
	return strings.TrimSuffix(s.Title, "s")
}

// FrozenColumns returns the columns belonging to the identifying header
// region, in display order.
func (s *Sheet) FrozenColumns() []*Column {
	var frozen []*Column
	for _, c := range s.Columns {
		if c.IsFrozen {
			frozen = append(frozen, c)
		}
	}
	return frozen
}

// Column is one header cell of a sheet, keyed by "<sheet-id>-<title>".
type Column struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	IsFrozen bool   `json:"isFrozen"`
	Position int    `json:"position"`
}

// Row is one data row of a sheet. The id is synthetic
// ("<sheet-title>-<5-digit index>") and lexicographically ordered; DBID is a
// secondary id derived from an "ID" column when the sheet has one, used for
// point lookups such as the specials feature.
type Row struct {
	ID         string   `json:"id"`
	SheetTitle string   `json:"sheetTitle"`
	DBID       string   `json:"dbId,omitempty"`
	Position   int      `json:"position"`
	Values     []*Value `json:"values,omitempty"`
}

// NormalizedName returns the row's identifying value: the first value whose
// column title ends in "Name".
func (r *Row) NormalizedName() string {
	for _, v := range r.Values {
		if strings.HasSuffix(v.Title, "Name") {
			return v.Value
		}
	}
	return ""
}

// Effects returns the row's free-text effects description, if any.
func (r *Row) Effects() string {
	for _, v := range r.Values {
		if v.Title == "Effects" {
			return v.Value
		}
	}
	return ""
}

// Value is one cell of a normalized row. Title is a denormalized copy of the
// producing column's title, frozen at normalization time. ColumnKey is a weak
// reference to the Column; it is empty for cells whose header column was
// dropped (e.g. "Img"). ImageURL is the URL recovered from the cell's raw
// formula, when the cell held an =image(...) formula.
type Value struct {
	ID        string `json:"id"`
	ColumnKey string `json:"columnKey,omitempty"`
	Title     string `json:"title"`
	Value     string `json:"value"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Position  int    `json:"position"`
}

// SearchResult is one ranked hit of a full-text or specials query.
type SearchResult struct {
	RowID      string `json:"rowId"`
	Name       string `json:"name"`
	SheetTitle string `json:"sheetTitle"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// RelationshipGroup collects the rows of one target sheet that reference a
// given row, discovered by cross-sheet value matching.
type RelationshipGroup struct {
	SheetTitle string   `json:"sheetTitle"`
	RowIDs     []string `json:"rowIds"`
}

// Special is a curated group of status effects resolved by fixed status ids.
type Special struct {
	Name      string   `json:"name" koanf:"name"`
	StatusIDs []string `json:"statusIds" koanf:"status_ids"`
}

// SyncStatus is the lifecycle state of a sync run.
type SyncStatus string

// Sync run states.
const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncRun records one execution of the sync pipeline.
type SyncRun struct {
	ID          string     `json:"id"`
	Status      SyncStatus `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}
