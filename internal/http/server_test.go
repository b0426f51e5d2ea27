package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"allowance/internal/core"
	applog "allowance/internal/log"
	"allowance/internal/services"
	"allowance/internal/sheets/flatfile"
)

var fixedNow = time.Date(2025, 9, 12, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *flatfile.Store) {
	t.Helper()
	now := func() time.Time { return fixedNow }
	store, err := flatfile.Open(t.TempDir(), flatfile.Options{Now: now, Logger: applog.Discard()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.EnsureTables(context.Background()); err != nil {
		t.Fatalf("ensure tables: %v", err)
	}
	svc := services.NewLedgerService(store.Ledger, store.Goals, store.Presets, store.Gateway, nil,
		services.Config{RecentDays: 7, SummaryCacheTTL: time.Minute, Now: now}, applog.Discard())
	if opts.Ready == nil {
		opts.Ready = store.Ready
	}
	srv := NewServer(svc, opts, applog.Discard())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func writeTable(t *testing.T, store *flatfile.Store, table core.Table, content string) {
	t.Helper()
	if err := os.WriteFile(store.Path(table), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<title>Allowance</title>") || !strings.Contains(rr.Body.String(), `value="2025-09"`) {
		t.Fatalf("index body missing title or month")
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing middleware headers: %v", rr.Header())
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/app.js"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/api/records", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestReadyzReportsStorageFailure(t *testing.T) {
	srv, _ := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("disk gone") }})
	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "not_ready" {
		t.Fatalf("unexpected body %v", body)
	}
}

// Seed rows plus two appends, checked through the HTTP surface.
func TestSelfTestScenario(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	writeTable(t, store, core.TableLedger, "date,item,amount,balance\n"+
		"2025-08-31,init,200,200\n"+
		"2025-09-10,a,1000,1200\n"+
		"2025-09-11,b,-300,900\n")
	writeTable(t, store, core.TableGoals, "goal,amount\nSwitch,25000\n")
	writeTable(t, store, core.TablePresets, "label,amount\n皿洗い,100\n")

	sum := decode[map[string]any](t, do(t, srv, http.MethodGet, "/api/summary?month=2025-09", ""))
	if sum["income"] != 1000.0 || sum["expense"] != 300.0 || sum["net"] != 700.0 || sum["month"] != "2025-09" {
		t.Fatalf("unexpected summary %v", sum)
	}

	rr := do(t, srv, http.MethodPost, "/api/records", `{"item":"bonus","amount":500,"date":"2025-09-12"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("append status=%d body=%s", rr.Code, rr.Body.String())
	}
	if e := decode[core.Entry](t, rr); e.Balance != 1400 {
		t.Fatalf("expected balance 1400, got %+v", e)
	}
	if e := decode[core.Entry](t, do(t, srv, http.MethodPost, "/api/records", `{"item":"snack","amount":-200,"date":"2025-09-13"}`)); e.Balance != 1200 {
		t.Fatalf("expected balance 1200, got %+v", e)
	}

	recs := decode[services.Records](t, do(t, srv, http.MethodGet, "/api/records", ""))
	if recs.Balance != 1200 || len(recs.Records) != 5 || recs.Records[0].Item != "snack" {
		t.Fatalf("unexpected records %+v", recs)
	}

	home := decode[services.Home](t, do(t, srv, http.MethodGet, "/api/home", ""))
	if home.Balance != 1200 {
		t.Fatalf("unexpected home balance %d", home.Balance)
	}
	if len(home.Goals) != 1 || home.Goals[0].Remaining != 23800 {
		t.Fatalf("unexpected goals %+v", home.Goals)
	}
	if len(home.Presets) != 1 || home.Presets[0].Label != "皿洗い" {
		t.Fatalf("unexpected presets %+v", home.Presets)
	}
	if home.Last7 == nil {
		t.Fatalf("last7 should never be null")
	}
}

func TestAddRecordValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"invalid json", `{"item":`, http.StatusBadRequest, "invalid json"},
		{"array body", `[1,2]`, http.StatusBadRequest, "invalid json"},
		{"missing item", `{"amount":10}`, http.StatusBadRequest, "item required"},
		{"blank item", `{"item":"   ","amount":10}`, http.StatusBadRequest, "item required"},
		{"text amount", `{"item":"x","amount":"ten"}`, http.StatusBadRequest, "amount must be int"},
		{"fractional amount", `{"item":"x","amount":1.5}`, http.StatusBadRequest, "amount must be int"},
		{"missing amount", `{"item":"x"}`, http.StatusBadRequest, "amount must be int"},
		{"bad date", `{"item":"x","amount":1,"date":"2025-13-01"}`, http.StatusBadRequest, "invalid date"},
		{"string amount", `{"item":"x","amount":"10"}`, http.StatusOK, ""},
		{"no date means today", `{"item":"y","amount":5}`, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/records", tt.body)
			if rr.Code != tt.code {
				t.Fatalf("status %d want %d (%s)", rr.Code, tt.code, rr.Body.String())
			}
			if tt.msg != "" && rr.Body.String() != tt.msg {
				t.Fatalf("message %q want %q", rr.Body.String(), tt.msg)
			}
		})
	}

	recs := decode[services.Records](t, do(t, srv, http.MethodGet, "/api/records", ""))
	if len(recs.Records) != 2 || recs.Records[0].Date != "2025-09-12" || recs.Balance != 15 {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestAddRecordBalanceOverflow(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	writeTable(t, store, core.TableLedger, "date,item,amount,balance\n2025-09-01,jackpot,9223372036854775807,9223372036854775807\n")

	rr := do(t, srv, http.MethodPost, "/api/records", `{"item":"x","amount":1}`)
	if rr.Code != http.StatusBadRequest || rr.Body.String() != "balance out of range" {
		t.Fatalf("expected 400 balance out of range, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestAddRecordForm(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader("item=chores&amount=100&date=2025-09-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if e := decode[core.Entry](t, rr); e.Item != "chores" || e.Balance != 100 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestSummaryMonthHandling(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	sum := decode[map[string]any](t, do(t, srv, http.MethodGet, "/api/summary", ""))
	if sum["month"] != "2025-09" || sum["net"] != 0.0 {
		t.Fatalf("missing month should mean the current month, got %v", sum)
	}
	rr := do(t, srv, http.MethodGet, "/api/summary?month=2025-13", "")
	if rr.Code != http.StatusBadRequest || rr.Body.String() != "invalid month" {
		t.Fatalf("expected 400 invalid month, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestGoalsAndPresetsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, body := range []string{`{"goal":"","amount":1}`, `{"goal":"Bike","amount":"lots"}`} {
		rr := do(t, srv, http.MethodPost, "/api/goals", body)
		if rr.Code != http.StatusBadRequest || rr.Body.String() != "bad params" {
			t.Fatalf("%s: expected bad params, got %d %q", body, rr.Code, rr.Body.String())
		}
	}

	if rr := do(t, srv, http.MethodPost, "/api/goals", `{"goal":"Switch","amount":25000}`); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok":true`) {
		t.Fatalf("add goal: %d %s", rr.Code, rr.Body.String())
	}
	goals := decode[[]core.Goal](t, do(t, srv, http.MethodGet, "/api/goals", ""))
	if len(goals) != 1 || goals[0] != (core.Goal{Goal: "Switch", Amount: 25000}) {
		t.Fatalf("unexpected goals %+v", goals)
	}
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodDelete, "/api/goals?goal=Switch", ""); rr.Code != http.StatusOK {
			t.Fatalf("delete %d: %d", i, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodDelete, "/api/goals", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("delete without key should be rejected, got %d", rr.Code)
	}
	if goals := decode[[]core.Goal](t, do(t, srv, http.MethodGet, "/api/goals", "")); len(goals) != 0 {
		t.Fatalf("goals should be empty, got %+v", goals)
	}

	if rr := do(t, srv, http.MethodPost, "/api/presets", `{"label":"dishes","amount":"100"}`); rr.Code != http.StatusOK {
		t.Fatalf("add preset: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodPost, "/api/presets", `{"label":"dishes"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("preset without amount should be rejected, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/presets?label=dishes", ""); rr.Code != http.StatusOK {
		t.Fatalf("delete preset: %d", rr.Code)
	}
	if presets := decode[[]core.Preset](t, do(t, srv, http.MethodGet, "/api/presets", "")); len(presets) != 0 {
		t.Fatalf("presets should be empty, got %+v", presets)
	}
}

func TestExport(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	raw := "date,item,amount,balance\n2025-09-01,a,5,5\nbroken line\n"
	writeTable(t, store, core.TableLedger, raw)

	rr := do(t, srv, http.MethodGet, "/export", "")
	if rr.Code != http.StatusOK || rr.Body.String() != raw {
		t.Fatalf("export should be verbatim, got %d %q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="allowance.csv"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}

	if rr := do(t, srv, http.MethodGet, "/export?file=goals", ""); rr.Body.String() != "goal,amount\n" {
		t.Fatalf("unexpected goals export %q", rr.Body.String())
	}
	rr = do(t, srv, http.MethodGet, "/export?file=passwords", "")
	if rr.Code != http.StatusBadRequest || rr.Body.String() != "unknown table" {
		t.Fatalf("expected unknown table, got %d %q", rr.Code, rr.Body.String())
	}
}

func multipartImport(t *testing.T, fields map[string]string, csv string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if csv != "" {
		fw, err := mw.CreateFormFile("csvfile", "upload.csv")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(csv)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImport(t *testing.T) {
	srv, store := newTestServer(t, Options{MaxUploadBytes: 4096})

	upload := "goal,amount\nSwitch,25000\nBook,700\n"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, multipartImport(t, map[string]string{"file": "goals"}, upload))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect, got %d %v", rr.Code, rr.Header())
	}
	got, err := os.ReadFile(store.Path(core.TableGoals))
	if err != nil || string(got) != upload {
		t.Fatalf("goals file %q %v", got, err)
	}

	tests := []struct {
		name   string
		fields map[string]string
		csv    string
		code   int
	}{
		{"missing table", map[string]string{}, upload, http.StatusBadRequest},
		{"missing file", map[string]string{"file": "goals"}, "", http.StatusBadRequest},
		{"unknown table", map[string]string{"file": "secrets"}, upload, http.StatusBadRequest},
		{"too large", map[string]string{"file": "goals"}, "goal,amount\n" + strings.Repeat("x,1\n", 2000), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, multipartImport(t, tt.fields, tt.csv))
			if rr.Code != tt.code {
				t.Fatalf("status %d want %d (%s)", rr.Code, tt.code, rr.Body.String())
			}
		})
	}
}

type failingService struct {
	LedgerService
}

func (failingService) Records(context.Context) (services.Records, error) {
	return services.Records{}, &core.StorageError{Op: "read", Path: "allowance.csv", Err: os.ErrPermission}
}

func TestStorageErrorIs500(t *testing.T) {
	srv := NewServer(failingService{}, Options{}, applog.Discard())
	rr := do(t, srv, http.MethodGet, "/api/records", "")
	if rr.Code != http.StatusInternalServerError || rr.Body.String() != "internal error" {
		t.Fatalf("expected opaque 500, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 1})
	if rr := do(t, srv, http.MethodPost, "/api/records", `{"item":"a","amount":1}`); rr.Code != http.StatusOK {
		t.Fatalf("first post: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/records", `{"item":"b","amount":1}`); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post should be limited, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/records", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rr.Code)
	}
}
