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

	"allowance/internal/core"

	goption "google.golang.org/api/option"
)

type call struct {
	method string
	path   string
	body   map[string]any
}

// fakeSheets answers the three Values endpoints the mirror uses.
type fakeSheets struct {
	mu       sync.Mutex
	calls    []call
	existing [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)

	f.mu.Lock()
	f.calls = append(f.calls, call{method: r.Method, path: r.URL.Path, body: body})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Allowance!A:A", "values": f.existing})
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id", SheetName: "Allowance"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("got %v", err)
	}
}

func TestAppendEntryAfterExistingRows(t *testing.T) {
	fake := &fakeSheets{existing: [][]any{{"date"}, {"2025-09-01"}, {"2025-09-02"}}}
	c := newTestClient(t, fake)

	ref, err := c.AppendEntry(context.Background(), core.Entry{Date: "2025-09-12", Item: "bonus", Amount: 500, Balance: 1400})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Allowance!A4:D4" {
		t.Fatalf("ref = %q", ref)
	}
	if len(fake.calls) != 2 || fake.calls[1].method != http.MethodPut {
		t.Fatalf("calls = %+v", fake.calls)
	}
	if !strings.Contains(fake.calls[1].path, "Allowance!A4:D4") {
		t.Fatalf("update path %q", fake.calls[1].path)
	}
	rows, _ := fake.calls[1].body["values"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %v", fake.calls[1].body)
	}
}

func TestAppendEntryToEmptySheetWritesHeader(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.AppendEntry(context.Background(), core.Entry{Date: "2025-09-12", Item: "first", Amount: 10, Balance: 10})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Allowance!A2:D2" {
		t.Fatalf("ref = %q", ref)
	}
	rows, _ := fake.calls[1].body["values"].([]any)
	if len(rows) != 2 {
		t.Fatalf("expected header and row, got %v", fake.calls[1].body)
	}
}

func TestReplaceEntriesClearsThenWrites(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	entries := []core.Entry{
		{Date: "2025-09-01", Item: "a", Amount: 100, Balance: 100},
		{Date: "2025-09-02", Item: "b", Amount: -40, Balance: 60},
	}
	if err := c.ReplaceEntries(context.Background(), entries); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("calls = %+v", fake.calls)
	}
	if fake.calls[0].method != http.MethodPost || !strings.HasSuffix(fake.calls[0].path, ":clear") {
		t.Fatalf("first call should clear, got %+v", fake.calls[0])
	}
	if !strings.Contains(fake.calls[1].path, "Allowance!A1:D3") {
		t.Fatalf("update path %q", fake.calls[1].path)
	}
}

func TestNilServiceFails(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheet: "Allowance"}
	if _, err := c.AppendEntry(context.Background(), core.Entry{}); err == nil {
		t.Fatal("expected error")
	}
	if err := c.ReplaceEntries(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}
