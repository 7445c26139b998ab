package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianyh/castle/internal/engine"
	"github.com/ianyh/castle/internal/normalize"
	"github.com/ianyh/castle/internal/notifier"
	"github.com/ianyh/castle/internal/sheets"
	"github.com/ianyh/castle/internal/state"
	"github.com/ianyh/castle/pkg/core"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context) ([]sheets.SheetData, error) {
	return []sheets.SheetData{{
		Meta:   core.SheetMeta{ID: 10, Title: "Characters", ColumnCount: 2, FrozenColumnCount: 1},
		Values: [][]string{{"Name", "Element"}, {"Tidus", "Water"}},
		Raw:    [][]core.RawValue{{core.String("Name"), core.String("Element")}, {core.String("Tidus"), core.String("Water")}},
	}}, nil
}

func snapshot() []*core.Sheet {
	sheet := &core.Sheet{Title: "Soul Breaks", SheetID: 30}
	sheet.Columns = []*core.Column{
		{Key: "30-Name", Title: "Name", IsFrozen: true, Position: 0},
		{Key: "30-Effects", Title: "Effects", Position: 1},
		{Key: "30-ID", Title: "ID", Position: 2},
	}
	addRow := func(i int, name, effects, id string) {
		row := &core.Row{
			ID:         fmt.Sprintf("Soul Breaks-%05d", i),
			SheetTitle: "Soul Breaks",
			DBID:       "Soul Breaks-" + id,
			Position:   i,
		}
		for vi, v := range []struct{ title, value string }{
			{"Name", name}, {"Effects", effects}, {"ID", id},
		} {
			row.Values = append(row.Values, &core.Value{
				ID:       fmt.Sprintf("%s-%05d", row.ID, vi),
				Title:    v.title,
				Value:    v.value,
				Position: vi,
			})
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	addRow(0, "Blitz Ace", "Deals massive damage", "601")
	addRow(1, "Energy Rain", "Grants [Haste]", "602")

	status := &core.Sheet{Title: "Status", SheetID: 40}
	status.Columns = []*core.Column{
		{Key: "40-Common Name", Title: "Common Name", IsFrozen: true, Position: 0},
		{Key: "40-ID", Title: "ID", Position: 1},
	}
	status.Rows = []*core.Row{{
		ID:         "Status-00000",
		SheetTitle: "Status",
		DBID:       "Status-505",
		Position:   0,
		Values: []*core.Value{
			{ID: "Status-00000-00000", Title: "Common Name", Value: "Haste", Position: 0},
			{ID: "Status-00000-00001", Title: "ID", Value: "505", Position: 1},
		},
	}}

	return []*core.Sheet{sheet, status}
}

func setupTestServer(t *testing.T) (*httptest.Server, *notifier.Notifier) {
	t.Helper()

	store := state.NewSQLiteStore(state.Config{
		SearchSheets:  []string{"Soul Breaks", "Characters"},
		SpecialSheets: []string{"Soul Breaks"},
	})
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	require.NoError(t, store.ReplaceSnapshot(context.Background(), snapshot()))
	t.Cleanup(func() { _ = store.Close() })

	events := notifier.New()
	eng, err := engine.New(engine.Config{
		Store:      store,
		Fetcher:    stubFetcher{},
		Normalizer: normalize.New(normalize.Config{}),
		Notifier:   events,
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Store:    store,
		Engine:   eng,
		Notifier: events,
		Specials: []core.Special{{Name: "Haste Effects", StatusIDs: []string{"505"}}},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, events
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandleListSheets(t *testing.T) {
	ts, _ := setupTestServer(t)

	var body struct {
		Sheets []core.Sheet `json:"sheets"`
	}
	status := getJSON(t, ts.URL+"/api/sheets", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Sheets, 2)
	assert.Equal(t, "Soul Breaks", body.Sheets[0].Title)
	assert.Equal(t, "Status", body.Sheets[1].Title)
}

func TestHandleGetSheet(t *testing.T) {
	ts, _ := setupTestServer(t)

	var sheet core.Sheet
	status := getJSON(t, ts.URL+"/api/sheets/Soul%20Breaks", &sheet)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, sheet.Rows, 2)

	status = getJSON(t, ts.URL+"/api/sheets/Missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleGetRow(t *testing.T) {
	ts, _ := setupTestServer(t)

	var row core.Row
	status := getJSON(t, ts.URL+"/api/rows/Soul%20Breaks-00000", &row)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Blitz Ace", row.NormalizedName())

	status = getJSON(t, ts.URL+"/api/rows/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleSearch(t *testing.T) {
	ts, _ := setupTestServer(t)

	var body struct {
		Results []core.SearchResult `json:"results"`
	}
	status := getJSON(t, ts.URL+"/api/search?q=Blitz", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Blitz Ace", body.Results[0].Name)

	// Short queries come back empty, not failing.
	status = getJSON(t, ts.URL+"/api/search?q=ab", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Results)
}

func TestHandleSpecials(t *testing.T) {
	ts, _ := setupTestServer(t)

	var list struct {
		Specials []string `json:"specials"`
	}
	status := getJSON(t, ts.URL+"/api/specials", &list)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Haste Effects"}, list.Specials)

	var body struct {
		Results []core.SearchResult `json:"results"`
	}
	status = getJSON(t, ts.URL+"/api/specials/Haste%20Effects", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Energy Rain", body.Results[0].Name)

	status = getJSON(t, ts.URL+"/api/specials/Unknown", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleRelationships(t *testing.T) {
	ts, _ := setupTestServer(t)

	var body struct {
		Relationships []core.RelationshipGroup `json:"relationships"`
	}
	// Energy Rain grants [Haste]; the status row is related.
	status := getJSON(t, ts.URL+"/api/rows/Soul%20Breaks-00001/relationships", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Relationships, 1)
	assert.Equal(t, "Status", body.Relationships[0].SheetTitle)
	assert.Equal(t, []string{"Status-00000"}, body.Relationships[0].RowIDs)
}

func TestHandleStatusAndSync(t *testing.T) {
	ts, events := setupTestServer(t)

	var status map[string]any
	code := getJSON(t, ts.URL+"/api/status", &status)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, status["syncing"])
	assert.Contains(t, status, "lastSync")

	ch := events.Subscribe()
	defer events.Unsubscribe(ch)

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The background sync runs to completion.
	waitForEvent(t, ch, notifier.EventSyncStarted)
	waitForEvent(t, ch, notifier.EventSyncCompleted)

	code = getJSON(t, ts.URL+"/api/status", &status)
	assert.Equal(t, http.StatusOK, code)
	latest, ok := status["latestRun"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(core.SyncStatusCompleted), latest["status"])
}

func waitForEvent(t *testing.T, ch chan notifier.Event, want notifier.EventType) {
	t.Helper()
	select {
	case event := <-ch:
		assert.Equal(t, want, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}
