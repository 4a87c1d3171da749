package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/machinelog/internal/config"
	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const validPayload = `{
	"date": "2026-02-11",
	"factory": "THHM",
	"ownership": "Owned",
	"operatorName": "Somchai",
	"machines": [{"type": "Over Lock", "statuses": {"Absent": 3}}]
}`

type fixture struct {
	srv   *Server
	store *grid.MemoryStore
}

func newFixture(t *testing.T, env map[string]string) fixture {
	t.Helper()
	vars := map[string]string{"RATE_LIMIT_ENABLED": "false", "STORE_BACKEND": "memory"}
	for k, v := range env {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})
	require.NoError(t, err)

	store := grid.NewMemoryStore()
	svc, err := core.NewService(core.Options{Schema: schema.Default(), Store: store})
	require.NoError(t, err)

	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return fixture{srv: srv, store: store}
}

func (f fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/", "/api/status"} {
		rec := f.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)

		body := decode(t, rec)
		assert.Equal(t, "online", body["status"])
		assert.Equal(t, "Machine Daily Recording System is running.", body["message"])
		assert.Len(t, body["factories"], 5)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	}
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/", "/api/submissions"} {
		rec := f.do(t, http.MethodPost, path, validPayload)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "Data saved successfully for THHM (Owned) on 2026-02-11", body["message"])
	}

	g, err := f.store.GetOrCreate(t.Context(), "11/02", nil)
	require.NoError(t, err)
	row, _ := schema.Default().RowFor("Over Lock", "Absent")
	col, _ := schema.Default().ColumnFor("THHM", schema.Owned)
	v, err := g.Get(t.Context(), grid.At(row, col))
	require.NoError(t, err)
	n, _ := v.Float()
	assert.Equal(t, float64(6), n)
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"malformed json", `{"date":`, http.StatusBadRequest, "VAL006", "invalid JSON payload"},
		{"missing fields", `{"machines":[]}`, http.StatusBadRequest, "VAL001", "missing required fields"},
		{"unknown factory", `{"date":"2026-02-11","factory":"XYZZ","ownership":"Owned","machines":[{"type":"Over Lock","statuses":{"Absent":1}}]}`,
			http.StatusBadRequest, "VAL002", "invalid factory: XYZZ"},
		{"bad ownership", `{"date":"2026-02-11","factory":"THHM","ownership":"Leased","machines":[{"type":"Over Lock","statuses":{"Absent":1}}]}`,
			http.StatusBadRequest, "VAL003", "invalid ownership type: Leased"},
		{"bad date", `{"date":"11/02/2026","factory":"THHM","ownership":"Owned","machines":[{"type":"Over Lock","statuses":{"Absent":1}}]}`,
			http.StatusBadRequest, "VAL004", "invalid date format"},
		{"no machines", `{"date":"2026-02-11","factory":"THHM","ownership":"Owned","machines":[]}`,
			http.StatusBadRequest, "VAL005", "no machine data provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(t, http.MethodPost, "/api/submissions", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Contains(t, body["message"], tt.wantMsg)
			assert.Empty(t, f.store.Names(), "rejected submission must not create sheets")
		})
	}
}

func TestSubmit_BodyTooLarge(t *testing.T) {
	f := newFixture(t, map[string]string{"SUBMISSION_MAX_BODY_BYTES": "64"})

	rec := f.do(t, http.MethodPost, "/api/submissions", validPayload)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "VAL007", decode(t, rec)["code"])
}

func TestSummary(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/", validPayload).Code)

	rec := f.do(t, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum core.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, []string{"11/02"}, sum.Sheets)
	assert.Equal(t, float64(3), sum.GrandTotal)

	// Reading the summary writes nothing.
	assert.NotContains(t, f.store.Names(), schema.SummarySheetName)
}

func TestRebuildSummary_RequiresAPIKey(t *testing.T) {
	f := newFixture(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "secret"})

	rec := f.do(t, http.MethodPost, "/api/summary/rebuild", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, f.store.Names(), schema.SummarySheetName)

	rec = f.do(t, http.MethodPost, "/api/summary/rebuild", "", "X-API-Key", "secret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", decode(t, rec)["status"])
	assert.Contains(t, f.store.Names(), schema.SummarySheetName)
}

func TestSummaryExport(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/", validPayload).Code)

	rec := f.do(t, http.MethodGet, "/api/summary.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "machine_summary_")

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()

	got, err := wb.GetCellValue("Summary", "C9")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, map[string]string{
		"RATE_LIMIT_ENABLED":    "true",
		"RATE_LIMIT_SUBMISSION": "2",
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/", validPayload).Code)
	}
	rec := f.do(t, http.MethodPost, "/", validPayload)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decode(t, rec)["code"])
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Reads have their own budget.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/status", "").Code)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := newRateLimiter(1, time.Millisecond)
	defer rl.stop()

	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"))

	time.Sleep(5 * time.Millisecond)
	assert.True(t, rl.allow("1.2.3.4"))
}
