package metrics

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

type accessor[T any] func(T) any

var summaryFields = map[string]accessor[models.Summary]{
	"key":           func(s models.Summary) any { return s.Key },
	"campaign_name": func(s models.Summary) any { return s.CampaignName },
	"date":          func(s models.Summary) any { return s.Date },
	"records":       func(s models.Summary) any { return float64(s.Records) },
	"spent":         func(s models.Summary) any { return s.Spent },
	"revenue":       func(s models.Summary) any { return s.Revenue },
	"clicks":        func(s models.Summary) any { return s.Clicks },
	"conversions":   func(s models.Summary) any { return s.Conversions },
	"impressions":   func(s models.Summary) any { return float64(s.Impressions) },
	"link_clicks":   func(s models.Summary) any { return float64(s.LinkClicks) },
	"purchases":     func(s models.Summary) any { return float64(s.Purchases) },
	"reach":         func(s models.Summary) any { return float64(s.Reach) },
	"meta_spend":    func(s models.Summary) any { return s.MetaSpend },
	"roas":          func(s models.Summary) any { return s.ROAS },
	"cpc":           func(s models.Summary) any { return s.CPC },
	"cvr":           func(s models.Summary) any { return s.CVR },
	"cpa":           func(s models.Summary) any { return s.CPA },
	"cpm":           func(s models.Summary) any { return s.CPM },
	"ctr":           func(s models.Summary) any { return s.CTR },
	"frequency":     func(s models.Summary) any { return s.Frequency },
	"meta_cpc":      func(s models.Summary) any { return s.MetaCPC },
	"meta_cpa":      func(s models.Summary) any { return s.MetaCPA },
	"meta_cvr":      func(s models.Summary) any { return s.MetaCVR },
}

var recordFields = map[string]accessor[models.CanonicalRecord]{
	"date":          func(r models.CanonicalRecord) any { return r.Date },
	"campaign_name": func(r models.CanonicalRecord) any { return r.CampaignName },
	"spent":         func(r models.CanonicalRecord) any { return r.Spent },
	"cpc":           func(r models.CanonicalRecord) any { return r.CPC },
	"roas":          func(r models.CanonicalRecord) any { return r.ROAS },
	"cvr":           func(r models.CanonicalRecord) any { return r.CVR },
	"cpa":           func(r models.CanonicalRecord) any { return r.CPA },
	"clicks":        func(r models.CanonicalRecord) any { return r.Clicks },
	"conversions":   func(r models.CanonicalRecord) any { return r.Conversions },
	"revenue":       func(r models.CanonicalRecord) any { return r.Revenue },
	"impressions":   func(r models.CanonicalRecord) any { return optInt(r.Impressions) },
	"reach":         func(r models.CanonicalRecord) any { return optInt(r.Reach) },
	"link_clicks":   func(r models.CanonicalRecord) any { return optInt(r.LinkClicks) },
	"purchases":     func(r models.CanonicalRecord) any { return optInt(r.Purchases) },
	"cpm":           func(r models.CanonicalRecord) any { return optFloat(r.CPM) },
	"ctr":           func(r models.CanonicalRecord) any { return optFloat(r.CTR) },
	"frequency":     func(r models.CanonicalRecord) any { return optFloat(r.Frequency) },
	"meta_spend":    func(r models.CanonicalRecord) any { return optFloat(r.MetaSpend) },
	"meta_cpc":      func(r models.CanonicalRecord) any { return optFloat(r.MetaCPC) },
	"meta_cpa":      func(r models.CanonicalRecord) any { return optFloat(r.MetaCPA) },
	"meta_cvr":      func(r models.CanonicalRecord) any { return optFloat(r.MetaCVR) },
}

// SortSummaries orders rows in place by field. Unknown fields leave the order
// unchanged.
func SortSummaries(rows []models.Summary, field string, desc bool) {
	sortBy(rows, summaryFields[field], desc)
}

// SortRecords orders records in place by field. Undefined enrichment values
// compare equal to everything.
func SortRecords(rows []models.CanonicalRecord, field string, desc bool) {
	sortBy(rows, recordFields[field], desc)
}

// SortableField reports whether field is known for summaries.
func SortableField(field string) bool {
	_, ok := summaryFields[field]
	return ok
}

// RecordSortable reports whether field is known for records.
func RecordSortable(field string) bool {
	_, ok := recordFields[field]
	return ok
}

func sortBy[T any](rows []T, get accessor[T], desc bool) {
	if get == nil {
		return
	}
	col := collate.New(language.Und)
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(col, get(rows[i]), get(rows[j]))
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// compare returns 0 for mismatched or missing values so they keep their
// relative order.
func compare(col *collate.Collator, a, b any) int {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0
		}
		return col.CompareString(x, y)
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func optInt(p *int64) any {
	if p == nil {
		return nil
	}
	return float64(*p)
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
