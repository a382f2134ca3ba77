package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/parse"
	"github.com/AngelCh415/campaign-dash/internal/utils"
)

const (
	actionLinkClick = "link_click"
	actionPurchase  = "omni_purchase"

	insightsFields = "campaign_id,campaign_name,spend,impressions,reach,frequency,actions"

	// MaxChunkDays is the widest time_range the insights API serves per request.
	MaxChunkDays = 30
)

// APIError is an error reported by the insights platform. Message is the
// upstream text, unchanged.
type APIError struct {
	Status  int
	Code    int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("insights api: %s (status %d)", e.Message, e.Status)
	}
	return "insights api: " + e.Message
}

type InsightsConfig struct {
	BaseURL   string
	Token     string
	AccountID string
	ChunkDays int
	PageLimit int
	RPS       float64
}

func InsightsConfigFrom(cfg config.Config) InsightsConfig {
	return InsightsConfig{
		BaseURL:   cfg.InsightsBaseURL,
		Token:     cfg.InsightsToken,
		AccountID: cfg.InsightsAccountID,
		ChunkDays: cfg.InsightsChunkDays,
		PageLimit: cfg.InsightsPageLimit,
		RPS:       cfg.InsightsRPS,
	}
}

// InsightsClient pulls per-day, per-campaign delivery from the ads insights
// API. Requests are issued one at a time.
type InsightsClient struct {
	c   HTTPClient
	cfg InsightsConfig
	lim *rate.Limiter
	log *slog.Logger
}

func NewInsightsClient(c HTTPClient, cfg InsightsConfig, log *slog.Logger) *InsightsClient {
	cfg.ChunkDays = clampChunk(cfg.ChunkDays)
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 500
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	if log == nil {
		log = slog.Default()
	}
	return &InsightsClient{c: c, cfg: cfg, lim: lim, log: log}
}

// SplitRange cuts [since, until] into consecutive inclusive windows of at most
// maxDays days, never more than MaxChunkDays. It returns nil when since is
// after until.
func SplitRange(since, until time.Time, maxDays int) []models.DateRange {
	maxDays = clampChunk(maxDays)
	since, until = dayUTC(since), dayUTC(until)
	var out []models.DateRange
	for start := since; !start.After(until); {
		end := start.AddDate(0, 0, maxDays-1)
		if end.After(until) {
			end = until
		}
		out = append(out, models.DateRange{Since: start.Format(time.DateOnly), Until: end.Format(time.DateOnly)})
		start = end.AddDate(0, 0, 1)
	}
	return out
}

// Fetch returns one record per (day, campaign) the platform reports. A nil
// range asks for the account's whole history in one request chain. Any
// failure discards everything fetched so far.
func (ic *InsightsClient) Fetch(ctx context.Context, rng *models.DateRange) ([]models.CanonicalRecord, error) {
	if err := config.Require(
		config.Setting{Name: "INSIGHTS_ACCESS_TOKEN", Value: ic.cfg.Token},
		config.Setting{Name: "INSIGHTS_ACCOUNT_ID", Value: ic.cfg.AccountID},
		config.Setting{Name: "INSIGHTS_BASE_URL", Value: ic.cfg.BaseURL},
	); err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}

	if rng == nil {
		return ic.drain(ctx, ic.firstPage(nil))
	}
	since, err := time.Parse(time.DateOnly, parse.NormalizeDate(rng.Since))
	if err != nil {
		return nil, fmt.Errorf("insights: bad since %q", rng.Since)
	}
	until, err := time.Parse(time.DateOnly, parse.NormalizeDate(rng.Until))
	if err != nil {
		return nil, fmt.Errorf("insights: bad until %q", rng.Until)
	}
	if since.After(until) {
		return nil, fmt.Errorf("insights: since %s is after until %s", rng.Since, rng.Until)
	}

	var out []models.CanonicalRecord
	for _, chunk := range SplitRange(since, until, ic.cfg.ChunkDays) {
		recs, err := ic.drain(ctx, ic.firstPage(&chunk))
		if err != nil {
			return nil, err
		}
		ic.log.Debug("insights chunk", slog.String("since", chunk.Since), slog.String("until", chunk.Until), slog.Int("records", len(recs)))
		out = append(out, recs...)
	}
	return out, nil
}

func (ic *InsightsClient) firstPage(rng *models.DateRange) string {
	account := ic.cfg.AccountID
	if !strings.HasPrefix(account, "act_") {
		account = "act_" + account
	}
	filtering, _ := json.Marshal([]map[string]any{{
		"field":    "action_type",
		"operator": "IN",
		"value":    []string{actionLinkClick, actionPurchase},
	}})

	q := url.Values{}
	q.Set("fields", insightsFields)
	q.Set("level", "campaign")
	q.Set("time_increment", "1")
	q.Set("filtering", string(filtering))
	q.Set("limit", fmt.Sprint(ic.cfg.PageLimit))
	q.Set("access_token", ic.cfg.Token)
	if rng == nil {
		q.Set("date_preset", "maximum")
	} else {
		tr, _ := json.Marshal(map[string]string{"since": rng.Since, "until": rng.Until})
		q.Set("time_range", string(tr))
	}
	return strings.TrimRight(ic.cfg.BaseURL, "/") + "/" + account + "/insights?" + q.Encode()
}

type insightsPage struct {
	Data   []insightsEntry `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// The API sends most numbers as strings; the scalar parsers take either.
type insightsEntry struct {
	DateStart    string `json:"date_start"`
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Spend        any    `json:"spend"`
	Impressions  any    `json:"impressions"`
	Reach        any    `json:"reach"`
	Frequency    any    `json:"frequency"`
	Actions      []struct {
		ActionType string `json:"action_type"`
		Value      any    `json:"value"`
	} `json:"actions"`
}

// drain follows paging.next until the chain ends.
func (ic *InsightsClient) drain(ctx context.Context, next string) ([]models.CanonicalRecord, error) {
	var out []models.CanonicalRecord
	seen := map[string]bool{}
	for next != "" && !seen[next] {
		seen[next] = true
		if err := ic.lim.Wait(ctx); err != nil {
			return nil, fmt.Errorf("insights: %w", err)
		}
		var page insightsPage
		status, body, err := getJSON(ctx, ic.c, next, &page)
		switch {
		case page.Error != nil:
			utils.InsightsRequests.WithLabelValues("api_error").Inc()
			return nil, &APIError{Status: statusIfFailed(status), Code: page.Error.Code, Type: page.Error.Type, Message: page.Error.Message}
		case status != 0 && (status < 200 || status >= 300):
			utils.InsightsRequests.WithLabelValues("http_error").Inc()
			return nil, &APIError{Status: status, Message: strings.TrimSpace(string(truncate(body, 1024)))}
		case err != nil:
			utils.InsightsRequests.WithLabelValues("transport_error").Inc()
			return nil, fmt.Errorf("insights: %w", err)
		}
		utils.InsightsRequests.WithLabelValues("ok").Inc()

		for _, e := range page.Data {
			if r, ok := e.record(); ok {
				out = append(out, r)
			}
		}
		next = page.Paging.Next
	}
	utils.InsightsEntries.Add(float64(len(out)))
	return out, nil
}

func (e insightsEntry) record() (models.CanonicalRecord, bool) {
	date := parse.NormalizeDate(e.DateStart)
	name := strings.TrimSpace(e.CampaignName)
	if date == "" || name == "" {
		return models.CanonicalRecord{}, false
	}
	var clicks, purchases int64
	for _, a := range e.Actions {
		switch a.ActionType {
		case actionLinkClick:
			clicks += parse.ParseInt(a.Value)
		case actionPurchase:
			purchases += parse.ParseInt(a.Value)
		}
	}
	r := models.CanonicalRecord{
		ID:           uuid.NewString(),
		Date:         date,
		CampaignName: name,
		MetaSpend:    models.Float(parse.ParseNumber(e.Spend)),
		Impressions:  models.Int(parse.ParseInt(e.Impressions)),
		LinkClicks:   models.Int(clicks),
		Purchases:    models.Int(purchases),
	}
	if id := strings.TrimSpace(e.CampaignID); id != "" {
		r.CampaignID = models.String(id)
	}
	if e.Reach != nil {
		r.Reach = models.Int(parse.ParseInt(e.Reach))
	}
	r.DeriveInsights()
	if r.Frequency == nil && e.Frequency != nil {
		r.Frequency = models.Float(parse.ParseNumber(e.Frequency))
	}
	return r, true
}

func clampChunk(days int) int {
	if days <= 0 || days > MaxChunkDays {
		return MaxChunkDays
	}
	return days
}

func statusIfFailed(code int) int {
	if code >= 200 && code < 300 {
		return 0
	}
	return code
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
