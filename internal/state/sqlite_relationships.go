package state

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ianyh/castle/pkg/core"
)

// statusRefPattern matches bracketed status references inside an effects
// description, e.g. "grants [Haste] to the user".
var statusRefPattern = regexp.MustCompile(`\[(.+?)\]`)

// castsAfterPattern matches trigger references of the form
// "casts X after ...".
var castsAfterPattern = regexp.MustCompile(`[Cc]asts (.+?) after`)

// Relationships finds the rows related to the given row, grouped by sheet:
// rows in other sheets whose column titled after this row's sheet (singular)
// carries this row's identifying name, plus the statuses and trigger
// abilities its effects description references.
func (s *SQLiteStore) Relationships(ctx context.Context, rowID string) ([]core.RelationshipGroup, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row, err := s.GetRow(rowID)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]map[string]struct{})
	add := func(sheetTitle, id string) {
		if id == row.ID {
			return
		}
		if groups[sheetTitle] == nil {
			groups[sheetTitle] = make(map[string]struct{})
		}
		groups[sheetTitle][id] = struct{}{}
	}

	name := row.NormalizedName()
	if name != "" {
		singular := strings.TrimSuffix(row.SheetTitle, "s")
		titles := []string{singular}
		// Soul Break rows are referenced through a "Source" column as
		// well as the singular sheet name.
		if singular == "Soul Break" {
			titles = append(titles, "Source")
		}
		if err := s.collectNamed(ctx, titles, name, "", add); err != nil {
			return nil, err
		}
	}

	if effects := row.Effects(); effects != "" {
		for _, m := range statusRefPattern.FindAllStringSubmatch(effects, -1) {
			err := s.collectNamed(ctx, []string{"Common Name", "Name"}, m[1], "", add)
			if err != nil {
				return nil, err
			}
		}
		for _, m := range castsAfterPattern.FindAllStringSubmatch(effects, -1) {
			err := s.collectNamed(ctx, []string{"Name"}, m[1], "Other", add)
			if err != nil {
				return nil, err
			}
		}
	}

	titles := make([]string, 0, len(groups))
	for title := range groups {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	result := make([]core.RelationshipGroup, 0, len(titles))
	for _, title := range titles {
		ids := make([]string, 0, len(groups[title]))
		for id := range groups[title] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		result = append(result, core.RelationshipGroup{SheetTitle: title, RowIDs: ids})
	}
	return result, nil
}

// collectNamed finds rows carrying the given value under any of the given
// column titles, optionally restricted to one sheet.
func (s *SQLiteStore) collectNamed(
	ctx context.Context, valueTitles []string, value, sheetTitle string, add func(sheetTitle, id string),
) error {
	var sb strings.Builder
	sb.WriteString(
		`SELECT DISTINCT r.id, r.sheet_title
		 FROM rows r JOIN row_values v ON v.row_id = r.id
		 WHERE v.value = ? AND v.title IN (`,
	)
	args := []any{value}
	for i, title := range valueTitles {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, title)
	}
	sb.WriteString(`)`)
	if sheetTitle != "" {
		sb.WriteString(` AND r.sheet_title = ?`)
		args = append(args, sheetTitle)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("failed to query related rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, sheet string
		if err := rows.Scan(&id, &sheet); err != nil {
			return fmt.Errorf("failed to scan related row: %w", err)
		}
		add(sheet, id)
	}
	return rows.Err()
}
