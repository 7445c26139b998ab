// Package sheets retrieves the source spreadsheet: sheet metadata plus two
// parallel renderings of every eligible sheet's cells (formatted values and
// raw formulas). It is a thin wrapper over the Google Sheets v4 API.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ianyh/castle/pkg/core"
)

// defaultTimeout bounds a full fetch. The batch payload covers every sheet
// of the spreadsheet and can run to tens of megabytes, so it is generous.
// Failures propagate to the caller; retrying is a caller concern.
const defaultTimeout = 2 * time.Minute

// SheetData pairs one eligible sheet's metadata with its two fetched
// matrices. Row 0 of each matrix is the header row.
type SheetData struct {
	Meta   core.SheetMeta
	Values [][]string        // FORMATTED_VALUE rendering
	Raw    [][]core.RawValue // FORMULA rendering of the same range
}

// Config holds client configuration.
type Config struct {
	// SpreadsheetID identifies the source spreadsheet.
	SpreadsheetID string
	// APIKey authenticates against the Sheets API (required).
	APIKey string
	// IgnoredSheets lists tab titles excluded from sync.
	IgnoredSheets []string
	// Timeout bounds one full fetch (default 2m).
	Timeout time.Duration
	// Endpoint overrides the API base URL (tests).
	Endpoint string
	// Logger is optional.
	Logger *slog.Logger

	// ClientOptions are appended to the service options (tests).
	ClientOptions []option.ClientOption
}

// Client fetches spreadsheet data.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	ignored       map[string]struct{}
	timeout       time.Duration
	logger        *slog.Logger
}

// New creates a Sheets API client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, cfg.ClientOptions...)

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	ignored := make(map[string]struct{}, len(cfg.IgnoredSheets))
	for _, title := range cfg.IgnoredSheets {
		ignored[title] = struct{}{}
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		ignored:       ignored,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// Fetch retrieves metadata for every eligible sheet, then both value
// renderings of each sheet's full range. The two batch requests run
// concurrently and both must succeed before normalization can start.
func (c *Client) Fetch(ctx context.Context) ([]SheetData, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spreadsheet metadata: %w", err)
	}

	var eligible []core.SheetMeta
	for _, sh := range meta.Sheets {
		if sh.Properties == nil || sh.Properties.GridProperties == nil {
			continue
		}
		grid := sh.Properties.GridProperties
		m := core.SheetMeta{
			ID:                sh.Properties.SheetId,
			Title:             sh.Properties.Title,
			RowCount:          grid.RowCount,
			ColumnCount:       grid.ColumnCount,
			FrozenRowCount:    grid.FrozenRowCount,
			FrozenColumnCount: grid.FrozenColumnCount,
		}
		if c.eligible(m) {
			eligible = append(eligible, m)
		}
	}

	c.logger.Debug("fetched spreadsheet metadata", "sheets", len(meta.Sheets), "eligible", len(eligible))

	if len(eligible) == 0 {
		return nil, nil
	}

	ranges := make([]string, len(eligible))
	for i, m := range eligible {
		ranges[i] = m.Title
	}

	var formatted, raw *sheetsapi.BatchGetValuesResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := c.batchGet(gctx, ranges, "FORMATTED_VALUE")
		if err != nil {
			return fmt.Errorf("failed to fetch formatted values: %w", err)
		}
		formatted = resp
		return nil
	})
	g.Go(func() error {
		resp, err := c.batchGet(gctx, ranges, "FORMULA")
		if err != nil {
			return fmt.Errorf("failed to fetch raw values: %w", err)
		}
		raw = resp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return c.pair(eligible, formatted, raw)
}

func (c *Client) batchGet(ctx context.Context, ranges []string, renderOption string) (*sheetsapi.BatchGetValuesResponse, error) {
	return c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption(renderOption).
		Context(ctx).
		Do()
}

// eligible filters out structural and archived tabs: single-column sheets,
// the configured ignore list, and anything marked "(old)".
func (c *Client) eligible(m core.SheetMeta) bool {
	if m.ColumnCount <= 1 {
		return false
	}
	if _, ok := c.ignored[m.Title]; ok {
		return false
	}
	if strings.Contains(strings.ToLower(m.Title), "(old)") {
		return false
	}
	return true
}

// pair zips the two batch responses and resolves each returned range back to
// its originating sheet.
func (c *Client) pair(metas []core.SheetMeta, formatted, raw *sheetsapi.BatchGetValuesResponse) ([]SheetData, error) {
	if len(formatted.ValueRanges) != len(raw.ValueRanges) {
		return nil, fmt.Errorf("value range count mismatch: %d formatted, %d raw",
			len(formatted.ValueRanges), len(raw.ValueRanges))
	}

	data := make([]SheetData, 0, len(metas))
	for i, vr := range formatted.ValueRanges {
		meta, ok := matchRange(metas, vr.Range)
		if !ok {
			c.logger.Warn("no sheet matches returned range", "range", vr.Range)
			continue
		}
		data = append(data, SheetData{
			Meta:   meta,
			Values: formattedRows(vr.Values),
			Raw:    rawRows(raw.ValueRanges[i].Values),
		})
	}
	return data, nil
}

// matchRange resolves a returned A1 range such as "'Soul Breaks'!A1:Z999"
// back to its sheet by title prefix. Titles containing special characters
// come back single-quoted.
func matchRange(metas []core.SheetMeta, r string) (core.SheetMeta, bool) {
	r = strings.TrimPrefix(r, "'")
	for _, m := range metas {
		if strings.HasPrefix(r, m.Title) {
			return m, true
		}
	}
	return core.SheetMeta{}, false
}

// formattedRows converts a FORMATTED_VALUE matrix. Formatted cells are
// strings; anything else is stringified.
func formattedRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, cells := range values {
		row := make([]string, len(cells))
		for j, cell := range cells {
			switch v := cell.(type) {
			case string:
				row[j] = v
			case nil:
			default:
				row[j] = fmt.Sprint(v)
			}
		}
		rows[i] = row
	}
	return rows
}

// rawRows converts a FORMULA matrix. A cell that is not a string (numbers,
// booleans, empty slots) is absent, not an error.
func rawRows(values [][]interface{}) [][]core.RawValue {
	rows := make([][]core.RawValue, len(values))
	for i, cells := range values {
		row := make([]core.RawValue, len(cells))
		for j, cell := range cells {
			if s, ok := cell.(string); ok {
				row[j] = core.String(s)
			} else {
				row[j] = core.Absent()
			}
		}
		rows[i] = row
	}
	return rows
}
