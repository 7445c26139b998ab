package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ianyh/castle/pkg/core"
)

// minQueryLength is the exclusive free-text length threshold. Queries of
// this many characters or fewer return no results.
const minQueryLength = 2

// statusSheetTitle is the sheet holding status rows referenced by specials.
const statusSheetTitle = "Status"

// nameFields are the identifying fields that get prefix matching, in
// query order.
var nameFields = []string{"Name", "Common Name", jpNameField}

// Search runs a free-text query over the search index: prefix matches on
// the identifying name fields plus a raw match over all indexed fields,
// restricted to the configured search sheets, ranked by relevance, capped
// at 50 hits.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]core.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	query = strings.TrimSpace(query)
	if len(query) <= minQueryLength {
		return nil, nil
	}

	slugs, err := s.loadFieldSlugs(ctx)
	if err != nil {
		return nil, err
	}
	if len(slugs) == 0 {
		// No index yet; nothing has been synced.
		return nil, nil
	}

	term := escapeFTS(query)
	var parts []string
	for _, field := range nameFields {
		if slug, ok := slugs[field]; ok {
			parts = append(parts, fmt.Sprintf(`(%s : "%s"*)`, slug, term))
		}
	}
	parts = append(parts, fmt.Sprintf(`"%s"`, term))
	match := strings.Join(parts, " OR ")

	return s.queryIndex(ctx, match, s.searchSheets, 50)
}

// SearchSpecial resolves a curated special to its status rows by secondary
// id and returns every row whose effects mention one of those statuses by
// name, restricted to the configured specials sheets.
func (s *SQLiteStore) SearchSpecial(ctx context.Context, special core.Special) ([]core.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	slugs, err := s.loadFieldSlugs(ctx)
	if err != nil {
		return nil, err
	}
	effectsSlug, ok := slugs["Effects"]
	if !ok {
		return nil, nil
	}

	var parts []string
	seen := make(map[string]struct{}, len(special.StatusIDs))
	for _, id := range special.StatusIDs {
		row, err := s.GetRowByDBID(statusSheetTitle + "-" + id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		name := row.NormalizedName()
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		parts = append(parts, fmt.Sprintf(`(%s : "%s")`, effectsSlug, escapeFTS(name)))
	}
	if len(parts) == 0 {
		return nil, nil
	}

	return s.queryIndex(ctx, strings.Join(parts, " OR "), s.specialSheets, 50)
}

// displayNameSubquery resolves a hit's display name: the row's Name value,
// falling back to Common Name.
const displayNameSubquery = `COALESCE(
	NULLIF((SELECT v.value FROM row_values v
	 WHERE v.row_id = search_index.row_id AND v.title = 'Name' LIMIT 1), ''),
	(SELECT v.value FROM row_values v
	 WHERE v.row_id = search_index.row_id AND v.title = 'Common Name' LIMIT 1),
	'')`

// queryIndex runs one MATCH against the index table and scans ranked hits,
// skipping anything without a displayable name. limit 0 means unlimited.
func (s *SQLiteStore) queryIndex(
	ctx context.Context, match string, sheetTitles []string, limit int,
) ([]core.SearchResult, error) {
	var sb strings.Builder
	args := []any{match}
	fmt.Fprintf(&sb,
		`SELECT row_id, %s AS display_name, sheet_title, COALESCE(image_url, '')
		 FROM search_index WHERE search_index MATCH ?`, displayNameSubquery,
	)
	if len(sheetTitles) > 0 {
		sb.WriteString(` AND sheet_title IN (`)
		for i, title := range sheetTitles {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, title)
		}
		sb.WriteString(`)`)
	}
	sb.WriteString(` ORDER BY rank`)
	if limit > 0 {
		fmt.Fprintf(&sb, ` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query search index: %w", err)
	}
	defer rows.Close()

	var results []core.SearchResult
	for rows.Next() {
		var r core.SearchResult
		if err := rows.Scan(&r.RowID, &r.Name, &r.SheetTitle, &r.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		if r.Name == "" {
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// loadFieldSlugs reads the persisted field-title-to-column mapping written
// alongside the index.
func (s *SQLiteStore) loadFieldSlugs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, slug FROM search_fields`)
	if err != nil {
		return nil, fmt.Errorf("failed to load search fields: %w", err)
	}
	defer rows.Close()

	slugs := make(map[string]string)
	for rows.Next() {
		var field, slug string
		if err := rows.Scan(&field, &slug); err != nil {
			return nil, fmt.Errorf("failed to scan search field: %w", err)
		}
		slugs[field] = slug
	}
	return slugs, rows.Err()
}

// escapeFTS doubles embedded quotes so a term is safe inside an FTS5
// quoted string.
func escapeFTS(term string) string {
	return strings.ReplaceAll(term, `"`, `""`)
}
