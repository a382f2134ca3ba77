package metrics

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/parse"
	"github.com/AngelCh415/campaign-dash/internal/store"
)

// Service answers dashboard queries against the current working set.
type Service struct{ ws *store.WorkingSet }

func NewService(ws *store.WorkingSet) *Service { return &Service{ws: ws} }

// Page is one slice of a sorted result.
type Page[T any] struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Rows   []T `json:"rows"`
}

// Report is a grouped view plus the totals over every filtered record.
type Report struct {
	Page[models.Summary]
	Totals models.Summary `json:"totals"`
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func csvSet(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[norm(p)]; dup {
			continue
		}
		seen[norm(p)] = struct{}{}
		out = append(out, p)
	}
	return out
}

// FilterFromQuery reads from, to, campaign (comma separated) and q.
// Dates may be in any layout NormalizeDate accepts.
func FilterFromQuery(v url.Values) (Filter, error) {
	f := Filter{Campaigns: csvSet(v.Get("campaign")), Search: strings.TrimSpace(v.Get("q"))}
	var err error
	if f.From, err = queryDate(v, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(v, "to"); err != nil {
		return f, err
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return f, fmt.Errorf("from %s is after to %s", f.From, f.To)
	}
	return f, nil
}

func queryDate(v url.Values, key string) (string, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return "", nil
	}
	d := parse.NormalizeDate(raw)
	if d == "" {
		return "", fmt.Errorf("bad %s date %q", key, raw)
	}
	return d, nil
}

// sortParams reads sort and order. A field known() rejects falls back to def.
// order defaults to descending for metric columns and ascending for date and
// name.
func sortParams(v url.Values, def string, known func(string) bool) (string, bool) {
	field := norm(v.Get("sort"))
	if field == "" || !known(field) {
		field = def
	}
	switch norm(v.Get("order")) {
	case "asc":
		return field, false
	case "desc":
		return field, true
	}
	return field, field != "date" && field != "campaign_name" && field != "key"
}

// Records lists filtered records, sorted and paginated.
func (s *Service) Records(v url.Values) (Page[models.CanonicalRecord], error) {
	f, err := FilterFromQuery(v)
	if err != nil {
		return Page[models.CanonicalRecord]{}, err
	}
	rows := s.ws.Query(f.From, f.To, f.Match)
	if field, desc := sortParams(v, "date", RecordSortable); field != "date" || desc {
		SortRecords(rows, field, desc)
	}
	return pageOf(rows, v), nil
}

// Campaigns groups the filtered records per campaign.
func (s *Service) Campaigns(v url.Values) (Report, error) {
	f, err := FilterFromQuery(v)
	if err != nil {
		return Report{}, err
	}
	recs := s.ws.Query(f.From, f.To, f.Match)
	rows := ByCampaign(recs)
	field, desc := sortParams(v, "spent", SortableField)
	SortSummaries(rows, field, desc)
	return report(rows, recs, v), nil
}

// Daily groups the filtered records per day. The default order is ascending
// by date so the rows plot as a time series.
func (s *Service) Daily(v url.Values) (Report, error) {
	f, err := FilterFromQuery(v)
	if err != nil {
		return Report{}, err
	}
	recs := s.ws.Query(f.From, f.To, f.Match)
	rows := ByDate(recs)
	if field, desc := sortParams(v, "date", SortableField); field != "date" || desc {
		SortSummaries(rows, field, desc)
	}
	return report(rows, recs, v), nil
}

func report(rows []models.Summary, recs []models.CanonicalRecord, v url.Values) Report {
	for i := range rows {
		present(&rows[i])
	}
	totals := Totals(recs)
	present(&totals)
	return Report{Page: pageOf(rows, v), Totals: totals}
}

func pageOf[T any](rows []T, v url.Values) Page[T] {
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	return Page[T]{Total: len(rows), Limit: limit, Offset: offset, Rows: paginate(rows, limit, offset)}
}

// present rounds a summary for display: money to cents, fractions to four
// places.
func present(s *models.Summary) {
	for _, p := range []*float64{&s.Spent, &s.Revenue, &s.MetaSpend, &s.CPC, &s.CPA, &s.CPM, &s.MetaCPC, &s.MetaCPA} {
		*p = round2(*p)
	}
	for _, p := range []*float64{&s.Clicks, &s.Conversions, &s.ROAS, &s.CVR, &s.CTR, &s.Frequency, &s.MetaCVR} {
		*p = round4(*p)
	}
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
