package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/models"
)

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestSplitRange(t *testing.T) {
	got := SplitRange(day("2024-01-01"), day("2024-03-05"), 30)
	assert.Equal(t, []models.DateRange{
		{Since: "2024-01-01", Until: "2024-01-30"},
		{Since: "2024-01-31", Until: "2024-02-29"},
		{Since: "2024-03-01", Until: "2024-03-05"},
	}, got)

	assert.Equal(t, []models.DateRange{{Since: "2024-01-01", Until: "2024-01-01"}},
		SplitRange(day("2024-01-01"), day("2024-01-01"), 30))
	assert.Len(t, SplitRange(day("2024-01-01"), day("2024-01-30"), 30), 1)
	assert.Len(t, SplitRange(day("2024-01-01"), day("2024-01-31"), 30), 2)
	assert.Nil(t, SplitRange(day("2024-02-01"), day("2024-01-01"), 30))

	assert.Len(t, SplitRange(day("2024-01-01"), day("2024-03-05"), 90), 3, "windows never exceed 30 days")
	assert.Len(t, SplitRange(day("2024-01-01"), day("2024-03-05"), 0), 3)
	assert.Len(t, SplitRange(day("2024-01-01"), day("2024-03-05"), 10), 7)
}

type fakeInsights struct {
	mu       sync.Mutex
	requests []string
	srv      *httptest.Server
	fail     string
}

func newFakeInsights(t *testing.T) *fakeInsights {
	f := &fakeInsights{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeInsights) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path+"?"+r.URL.RawQuery)
	f.mu.Unlock()

	q := r.URL.Query()
	tr := models.DateRange{Since: "2023-12-31", Until: "2023-12-31"}
	if raw := q.Get("time_range"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &tr)
	}

	page := map[string]any{}
	switch r.URL.Path {
	case "/act_42/insights":
		if f.fail != "" && tr.Since == f.fail {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"(#17) User request limit reached","type":"OAuthException","code":17}}`))
			return
		}
		page["data"] = []any{entry(tr.Since, "Camp A", "100.50", "2000", 40, 2)}
		page["paging"] = map[string]any{"next": fmt.Sprintf("%s/next?since=%s&until=%s", f.srv.URL, tr.Since, tr.Until)}
	case "/next":
		page["data"] = []any{entry(q.Get("until"), "Camp B", "0", "0", 0, 0)}
	default:
		http.NotFound(w, r)
		return
	}
	json.NewEncoder(w).Encode(page)
}

func entry(date, name, spend, impressions string, clicks, purchases int) map[string]any {
	return map[string]any{
		"date_start":    date,
		"date_stop":     date,
		"campaign_id":   "c-" + name,
		"campaign_name": name,
		"spend":         spend,
		"impressions":   impressions,
		"reach":         "1000",
		"frequency":     "2.0",
		"actions": []any{
			map[string]any{"action_type": "link_click", "value": fmt.Sprint(clicks)},
			map[string]any{"action_type": "omni_purchase", "value": fmt.Sprint(purchases)},
			map[string]any{"action_type": "video_view", "value": "999"},
		},
	}
}

func (f *fakeInsights) client() *InsightsClient {
	return f.clientWithChunk(30)
}

func (f *fakeInsights) clientWithChunk(days int) *InsightsClient {
	return NewInsightsClient(f.srv.Client(), InsightsConfig{
		BaseURL:   f.srv.URL,
		Token:     "EAAtoken",
		AccountID: "42",
		ChunkDays: days,
		PageLimit: 100,
	}, nil)
}

func TestFetchChunksAndDrainsPagination(t *testing.T) {
	f := newFakeInsights(t)
	recs, err := f.client().Fetch(context.Background(), &models.DateRange{Since: "2024-01-01", Until: "2024-03-05"})
	require.NoError(t, err)

	require.Len(t, f.requests, 6, "three chunks, two pages each")
	assert.Contains(t, f.requests[0], "/act_42/insights?")
	assert.Contains(t, f.requests[1], "/next?since=2024-01-01")
	assert.Contains(t, f.requests[2], "/act_42/insights?")
	assert.Contains(t, f.requests[3], "/next?since=2024-01-31")
	assert.Contains(t, f.requests[5], "/next?since=2024-03-01")

	require.Len(t, recs, 6)
	assert.Equal(t, "2024-01-01", recs[0].Date)
	assert.Equal(t, "2024-01-30", recs[1].Date)
	assert.Equal(t, "2024-03-05", recs[5].Date)
}

func TestFetchCapsOversizedChunks(t *testing.T) {
	f := newFakeInsights(t)
	recs, err := f.clientWithChunk(90).Fetch(context.Background(), &models.DateRange{Since: "2024-01-01", Until: "2024-03-05"})
	require.NoError(t, err)

	require.Len(t, f.requests, 6, "three 30-day chunks, two pages each")
	assert.Contains(t, f.requests[3], "/next?since=2024-01-31&until=2024-02-29")
	require.Len(t, recs, 6)
	assert.Equal(t, "2024-01-30", recs[1].Date)
}

func TestFetchRequestParameters(t *testing.T) {
	f := newFakeInsights(t)
	_, err := f.client().Fetch(context.Background(), &models.DateRange{Since: "2024-01-01", Until: "2024-01-10"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://x"+f.requests[0], nil)
	require.NoError(t, err)
	q := req.URL.Query()
	assert.Equal(t, "campaign_id,campaign_name,spend,impressions,reach,frequency,actions", q.Get("fields"))
	assert.Equal(t, "campaign", q.Get("level"))
	assert.Equal(t, "1", q.Get("time_increment"))
	assert.Equal(t, "100", q.Get("limit"))
	assert.Equal(t, "EAAtoken", q.Get("access_token"))
	assert.JSONEq(t, `{"since":"2024-01-01","until":"2024-01-10"}`, q.Get("time_range"))
	assert.JSONEq(t, `[{"field":"action_type","operator":"IN","value":["link_click","omni_purchase"]}]`, q.Get("filtering"))
	assert.Empty(t, q.Get("date_preset"))
}

func TestFetchWithoutRangeUsesMaximumPreset(t *testing.T) {
	f := newFakeInsights(t)
	recs, err := f.client().Fetch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, f.requests, 2)
	assert.Contains(t, f.requests[0], "date_preset=maximum")
	assert.NotContains(t, f.requests[0], "time_range")
	assert.Len(t, recs, 2)
}

func TestFetchEntryMetrics(t *testing.T) {
	f := newFakeInsights(t)
	recs, err := f.client().Fetch(context.Background(), &models.DateRange{Since: "2024-01-01", Until: "2024-01-01"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	a := recs[0]
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Camp A", a.CampaignName)
	assert.Equal(t, "c-Camp A", *a.CampaignID)
	assert.Equal(t, 100.5, *a.MetaSpend)
	assert.Equal(t, int64(2000), *a.Impressions)
	assert.Equal(t, int64(40), *a.LinkClicks, "only link_click actions count")
	assert.Equal(t, int64(2), *a.Purchases)
	assert.InDelta(t, 100.5/40, *a.MetaCPC, 1e-9)
	assert.InDelta(t, 0.02, *a.CTR, 1e-9)
	assert.InDelta(t, 50.25, *a.MetaCPA, 1e-9)
	assert.InDelta(t, 0.05, *a.MetaCVR, 1e-9)
	assert.InDelta(t, 50.25, *a.CPM, 1e-9)
	assert.InDelta(t, 2.0, *a.Frequency, 1e-9)
	assert.Zero(t, a.Spent, "platform A spend untouched")

	b := recs[1]
	assert.Zero(t, *b.MetaCPC)
	assert.Zero(t, *b.CTR)
	assert.Zero(t, *b.MetaCPA)
	assert.Zero(t, *b.MetaCVR)
	assert.Zero(t, *b.CPM)
}

func TestFetchAbortsOnAPIError(t *testing.T) {
	f := newFakeInsights(t)
	f.fail = "2024-01-31"
	recs, err := f.client().Fetch(context.Background(), &models.DateRange{Since: "2024-01-01", Until: "2024-03-05"})
	assert.Nil(t, recs, "partial results are discarded")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "(#17) User request limit reached", apiErr.Message)
	assert.Equal(t, 17, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Len(t, f.requests, 3, "no request after the failure")
}

func TestFetchErrorObjectWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token."}}`))
	}))
	defer srv.Close()

	ic := NewInsightsClient(srv.Client(), InsightsConfig{BaseURL: srv.URL, Token: "t", AccountID: "act_1"}, nil)
	_, err := ic.Fetch(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid OAuth access token.", apiErr.Message)
	assert.Zero(t, apiErr.Status)
}

func TestFetchRequiresConfiguration(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	for _, cfg := range []InsightsConfig{
		{BaseURL: srv.URL, Token: "YOUR_ACCESS_TOKEN", AccountID: "act_1"},
		{BaseURL: srv.URL, Token: "t", AccountID: ""},
	} {
		_, err := NewInsightsClient(srv.Client(), cfg, nil).Fetch(context.Background(), nil)
		assert.ErrorIs(t, err, config.ErrNotConfigured)
	}
	assert.Zero(t, calls)
}

func TestFetchRejectsInvertedRange(t *testing.T) {
	f := newFakeInsights(t)
	_, err := f.client().Fetch(context.Background(), &models.DateRange{Since: "2024-02-01", Until: "2024-01-01"})
	assert.Error(t, err)
	assert.Empty(t, f.requests)
}
