package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"caixinhas/internal/core"
)

// fakeSheets records write calls and serves column A from ids.
type fakeSheets struct {
	mu    sync.Mutex
	ids   [][]any
	calls []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		json.NewEncoder(w).Encode(map[string]any{"values": f.ids})
	case strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append "+string(body))
		w.Write([]byte(`{}`))
	case strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+8:], ":clear")
		f.calls = append(f.calls, "clear "+rng)
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update "+path[strings.Index(path, "/values/")+8:])
		w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func testSaving() core.Saving {
	return core.Saving{
		ID:           7,
		Description:  "Viagem",
		Goal:         decimal.RequireFromString("1200"),
		Accumulated:  decimal.RequireFromString("100.5"),
		MonthsToGoal: 12,
		Priority:     1,
		UpdatedAt:    time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
	}
}

func TestExportAppendsWithHeaderOnEmptySheet(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	require.NoError(t, c.ExportSaving(context.Background(), testSaving(), nil))
	require.Len(t, fake.calls, 1)
	assert.True(t, strings.HasPrefix(fake.calls[0], "append "))
	assert.Contains(t, fake.calls[0], "Descrição")
	assert.Contains(t, fake.calls[0], "1200.00")
}

func TestExportUpdatesExistingRow(t *testing.T) {
	fake := &fakeSheets{ids: [][]any{{"ID"}, {"3"}, {"7"}}}
	c := newTestClient(t, fake)

	snap := &core.ProjectionSnapshot{CDB: decimal.RequireFromString("1290.456"), RatesSource: "bcb"}
	require.NoError(t, c.ExportSaving(context.Background(), testSaving(), snap))
	assert.Equal(t, []string{"update Caixinhas!A3:M3"}, fake.calls)
}

func TestRemoveSaving(t *testing.T) {
	fake := &fakeSheets{ids: [][]any{{"ID"}, {"7"}}}
	c := newTestClient(t, fake)

	require.NoError(t, c.RemoveSaving(context.Background(), 7))
	require.NoError(t, c.RemoveSaving(context.Background(), 99))
	assert.Equal(t, []string{"clear Caixinhas!A2:M2"}, fake.calls)
}

func TestSavingRow(t *testing.T) {
	s := testSaving()
	row := savingRow(s, nil)
	require.Len(t, row, len(header))
	assert.Equal(t, "7", row[0])
	assert.Equal(t, "100.50", row[3])
	assert.Equal(t, "Não", row[5])
	assert.Equal(t, "", row[9])

	snap := &core.ProjectionSnapshot{
		MonthlyContribution: decimal.RequireFromString("100"),
		CDB:                 decimal.RequireFromString("1290.456"),
		Poupanca:            decimal.RequireFromString("1253.1"),
		RatesSource:         "static",
		ComputedAt:          time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC),
	}
	row = savingRow(s, snap)
	require.Len(t, row, len(header))
	assert.Equal(t, "1290.46", row[9])
	assert.Equal(t, "1253.10", row[10])
	assert.Equal(t, "2025-06-18T09:00:00Z", row[12])
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"ID"}, {}, {" 12 "}, {float64(13)}}
	assert.Equal(t, 3, findRow(values, 12))
	assert.Equal(t, 4, findRow(values, 13))
	assert.Equal(t, 0, findRow(values, 1))
}

func TestNewRequiresSpreadsheet(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err = New(context.Background(), Config{SpreadsheetID: "x"})
	require.ErrorContains(t, err, "missing service account credentials")
}
