package metrics

import (
	"sort"

	"github.com/AngelCh415/campaign-dash/internal/merge"
	"github.com/AngelCh415/campaign-dash/internal/models"
)

// ByCampaign groups records by campaign name (compared like merge keys) and
// recomputes every ratio from the group sums. Groups keep the first-seen
// display name and appear in first-seen order.
func ByCampaign(recs []models.CanonicalRecord) []models.Summary {
	return group(recs, func(r models.CanonicalRecord) string { return merge.NormalizeName(r.CampaignName) },
		func(s *models.Summary, r models.CanonicalRecord) {
			s.CampaignName = r.CampaignName
		})
}

// ByDate groups records per day, ascending.
func ByDate(recs []models.CanonicalRecord) []models.Summary {
	out := group(recs, func(r models.CanonicalRecord) string { return r.Date },
		func(s *models.Summary, r models.CanonicalRecord) {
			s.Date = r.Date
		})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Totals folds all records into a single summary.
func Totals(recs []models.CanonicalRecord) models.Summary {
	out := group(recs, func(models.CanonicalRecord) string { return "total" }, func(*models.Summary, models.CanonicalRecord) {})
	if len(out) == 0 {
		return models.Summary{Key: "total"}
	}
	return out[0]
}

func group(recs []models.CanonicalRecord, keyFn func(models.CanonicalRecord) string, first func(*models.Summary, models.CanonicalRecord)) []models.Summary {
	idx := make(map[string]int)
	var out []models.Summary
	for _, r := range recs {
		k := keyFn(r)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			s := models.Summary{Key: k}
			first(&s, r)
			out = append(out, s)
		}
		accumulate(&out[i], r)
	}
	for i := range out {
		finalize(&out[i])
	}
	return out
}

func accumulate(s *models.Summary, r models.CanonicalRecord) {
	s.Records++
	s.Spent += r.Spent
	s.Revenue += r.Revenue
	s.Clicks += r.Clicks
	s.Conversions += r.Conversions
	s.Impressions += deref(r.Impressions)
	s.LinkClicks += deref(r.LinkClicks)
	s.Purchases += deref(r.Purchases)
	s.Reach += deref(r.Reach)
	if r.MetaSpend != nil {
		s.MetaSpend += *r.MetaSpend
	}
}

// finalize derives every ratio from the group sums, never from row ratios.
func finalize(s *models.Summary) {
	impressions := float64(s.Impressions)
	linkClicks := float64(s.LinkClicks)
	purchases := float64(s.Purchases)

	s.ROAS = models.SafeDiv(s.Revenue, s.Spent)
	s.CPC = models.SafeDiv(s.Spent, s.Clicks)
	s.CVR = models.SafeDiv(s.Conversions, s.Clicks)
	s.CPA = models.SafeDiv(s.Spent, s.Conversions)
	s.CPM = models.SafeDiv(s.Spent, impressions/1000)
	s.CTR = models.SafeDiv(linkClicks, impressions)
	s.Frequency = models.SafeDiv(impressions, float64(s.Reach))
	s.MetaCPC = models.SafeDiv(s.MetaSpend, linkClicks)
	s.MetaCPA = models.SafeDiv(s.MetaSpend, purchases)
	s.MetaCVR = models.SafeDiv(purchases, linkClicks)
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
