package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/session"
	"github.com/AngelCh415/campaign-dash/internal/store"
)

type stubFetcher struct {
	recs []models.CanonicalRecord
	err  error
	got  *models.DateRange
}

func (s *stubFetcher) Fetch(_ context.Context, rng *models.DateRange) ([]models.CanonicalRecord, error) {
	s.got = rng
	return s.recs, s.err
}

type harness struct {
	srv     *httptest.Server
	fetcher *stubFetcher
	sheets  *store.MemorySheets
}

func newHarness(t *testing.T, checker CredentialChecker) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{SheetName: "campaigns"}
	sheets := store.NewMemorySheets()
	require.NoError(t, sheets.Replace(context.Background(), "campaigns", [][]any{
		{"Date", "Campaign Name", "Spent", "CPC", "ROAS", "CVR", "CPA"},
		{"2024-01-01", "Camp A", 100.0, 2.0, 1.5, 0.05, 20.0},
		{"2024-01-02", "Camp B", 50.0, 5.0, 2.0, 0.1, 25.0},
	}))
	ws := store.NewWorkingSet()
	f := &stubFetcher{}
	sess := session.NewMemoryStore()
	etl := ingest.NewETL(http.DefaultClient, sheets, ws, f, sess, log, cfg)
	_, err := etl.Reload(context.Background())
	require.NoError(t, err)

	h := NewRouter(Deps{
		Log:        log,
		ETL:        etl,
		Metrics:    metrics.NewService(ws),
		Sessions:   sess,
		Checker:    checker,
		SessionTTL: time.Hour,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, fetcher: f, sheets: sheets}
}

func (h *harness) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = h.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "dash_rows_total")
}

func TestCampaignReport(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/report/campaigns?sort=spent&order=asc", "", nil, "")
	require.Equal(t, 200, resp.StatusCode, string(body))

	var rep metrics.Report
	require.NoError(t, json.Unmarshal(body, &rep))
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "Camp B", rep.Rows[0].CampaignName)
	assert.Equal(t, 150.0, rep.Totals.Spent)

	resp, _ = h.do(t, http.MethodGet, "/report/daily?from=garbage", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportWorkbookMultipartAndRaw(t *testing.T) {
	h := newHarness(t, nil)

	xlsx := buildXLSX(t, [][]any{
		{"날짜", "캠페인 이름", "지출 금액", "CPC"},
		{"2024-01-03", "Camp C", 10, 1},
	})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, body := h.do(t, http.MethodPost, "/import/workbook", "", &buf, mw.FormDataContentType())
	require.Equal(t, 200, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"inserted":1,"skipped":0,"records":3}`, string(body))

	resp, body = h.do(t, http.MethodPost, "/import/workbook", "", bytes.NewReader(xlsx), "application/octet-stream")
	require.Equal(t, 200, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"inserted":0,"skipped":1,"records":3}`, string(body))

	resp, _ = h.do(t, http.MethodPost, "/import/workbook", "", strings.NewReader("not a workbook"), "application/octet-stream")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInsightsSync(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.recs = []models.CanonicalRecord{
		{Date: "2024-01-01", CampaignName: "camp a", MetaSpend: models.Float(10), Impressions: models.Int(100)},
	}
	resp, body := h.do(t, http.MethodPost, "/insights/sync?since=2024-01-01&until=2024-01-31", "", nil, "")
	require.Equal(t, 200, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"updated":1,"unmatched":0,"records":2}`, string(body))
	assert.Equal(t, &models.DateRange{Since: "2024-01-01", Until: "2024-01-31"}, h.fetcher.got)

	resp, _ = h.do(t, http.MethodPost, "/insights/sync?since=2024-01-01", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	h.fetcher.err = &ingest.APIError{Message: "Invalid OAuth access token."}
	resp, body = h.do(t, http.MethodPost, "/insights/sync", "", nil, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "Invalid OAuth access token.")
	assert.Nil(t, h.fetcher.got)
}

func TestExportWithoutSinkIsUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	resp, _ := h.do(t, http.MethodPost, "/export/run?date=2024-01-01", "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLoginProtectsDataRoutes(t *testing.T) {
	h := newHarness(t, StaticChecker{User: "admin", Secret: "pw"})

	resp, _ := h.do(t, http.MethodPost, "/store/reload", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	for _, path := range []string{"/records", "/report/campaigns", "/report/daily", "/session/status"} {
		resp, _ = h.do(t, http.MethodGet, path, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
	resp, _ = h.do(t, http.MethodGet, "/records", "not-a-session", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/login", "", strings.NewReader(`{"user":"admin","secret":"wrong"}`), "application/json")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/login", "", strings.NewReader(`{"user":"admin","secret":"pw"}`), "application/json")
	require.Equal(t, 200, resp.StatusCode, string(body))
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)

	resp, body = h.do(t, http.MethodPost, "/store/reload", out.Token, nil, "")
	require.Equal(t, 200, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"rows":2,"mapped":2,"dropped":0}`, string(body))

	resp, body = h.do(t, http.MethodGet, "/report/campaigns", out.Token, nil, "")
	require.Equal(t, 200, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "Camp A")

	resp, _ = h.do(t, http.MethodPost, "/logout", out.Token, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPost, "/store/reload", out.Token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/records", out.Token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginDisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, NewStaticChecker(config.Config{DashUser: "admin", DashSecret: "changeme"}))
	assert.NotNil(t, NewStaticChecker(config.Config{DashUser: "admin", DashSecret: "s3cret"}))

	h := newHarness(t, nil)
	resp, _ := h.do(t, http.MethodPost, "/login", "", strings.NewReader(`{"user":"a","secret":"b"}`), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSessionStatus(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/session/status", "", nil, "")
	require.Equal(t, 200, resp.StatusCode)
	var st ingest.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.Records)
	assert.Nil(t, st.LastImport)
}

func buildXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
