package metrics

import (
	"strings"

	"github.com/AngelCh415/campaign-dash/internal/merge"
	"github.com/AngelCh415/campaign-dash/internal/models"
)

// Filter selects records before aggregation. Zero values match everything.
type Filter struct {
	From      string   // inclusive YYYY-MM-DD
	To        string   // inclusive YYYY-MM-DD
	Campaigns []string // exact names, compared like merge keys
	Search    string   // substring of the campaign name, case-insensitive
}

func (f Filter) Match(r models.CanonicalRecord) bool {
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	name := merge.NormalizeName(r.CampaignName)
	if len(f.Campaigns) > 0 {
		found := false
		for _, c := range f.Campaigns {
			if merge.NormalizeName(c) == name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q := merge.NormalizeName(f.Search); q != "" && !strings.Contains(name, q) {
		return false
	}
	return true
}

// Apply returns the records that match, in their original order.
func (f Filter) Apply(recs []models.CanonicalRecord) []models.CanonicalRecord {
	out := make([]models.CanonicalRecord, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
