// Package merge combines record sets keyed by (date, campaign name).
//
// Import keeps what is already there; Enrich only overlays insights fields
// onto records the tabular sources established. Neither mutates its inputs.
package merge

import (
	"sort"
	"strings"

	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/parse"
)

// Key identifies a record for merging: the normalized date and the campaign
// name lower-cased with whitespace collapsed. Two different campaigns that
// share a display name share a key.
func Key(date, campaign string) string {
	d := parse.NormalizeDate(date)
	if d == "" {
		d = strings.TrimSpace(date)
	}
	return d + "|" + NormalizeName(campaign)
}

// NormalizeName folds a campaign name for comparisons.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func keyOf(r models.CanonicalRecord) string { return Key(r.Date, r.CampaignName) }

// Result reports what a merge did.
type Result struct {
	Records   []models.CanonicalRecord
	Inserted  int
	Updated   int
	Discarded int
}

// Import adds incoming rows whose key is not present yet. Existing rows,
// enrichment included, are left as they are; repeated keys inside incoming
// collapse to the first occurrence.
func Import(existing, incoming []models.CanonicalRecord) Result {
	out := make([]models.CanonicalRecord, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	seen := make(map[string]struct{}, len(out))
	for _, r := range out {
		seen[keyOf(r)] = struct{}{}
	}

	res := Result{}
	for _, r := range incoming {
		k := keyOf(r)
		if _, ok := seen[k]; ok {
			res.Discarded++
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
		res.Inserted++
	}
	SortByDate(out)
	res.Records = out
	return res
}

// Enrich overlays insights fields from external onto matching records.
// External rows with no match are dropped; the external source never creates
// records. Rows in external that share a key are combined first.
func Enrich(existing, external []models.CanonicalRecord) Result {
	combined, order := combine(external)

	out := make([]models.CanonicalRecord, len(existing))
	copy(out, existing)
	index := make(map[string]int, len(out))
	for i, r := range out {
		if _, dup := index[keyOf(r)]; !dup {
			index[keyOf(r)] = i
		}
	}

	res := Result{}
	for _, k := range order {
		i, ok := index[k]
		if !ok {
			res.Discarded++
			continue
		}
		Overlay(&out[i], combined[k])
		res.Updated++
	}
	SortByDate(out)
	res.Records = out
	return res
}

// Overlay copies every enrichment field set on src onto dst. Core fields
// (spent and the platform A ratios) are never touched, so the back-computed
// counts on dst stay consistent.
func Overlay(dst *models.CanonicalRecord, src models.CanonicalRecord) {
	overlayString(&dst.CampaignID, src.CampaignID)
	overlayInt(&dst.Impressions, src.Impressions)
	overlayInt(&dst.Reach, src.Reach)
	overlayInt(&dst.LinkClicks, src.LinkClicks)
	overlayInt(&dst.Purchases, src.Purchases)
	overlayFloat(&dst.CPM, src.CPM)
	overlayFloat(&dst.CTR, src.CTR)
	overlayFloat(&dst.Frequency, src.Frequency)
	overlayFloat(&dst.MetaSpend, src.MetaSpend)
	overlayFloat(&dst.MetaCPC, src.MetaCPC)
	overlayFloat(&dst.MetaCPA, src.MetaCPA)
	overlayFloat(&dst.MetaCVR, src.MetaCVR)
}

func overlayString(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func overlayInt(dst **int64, src *int64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func overlayFloat(dst **float64, src *float64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// SortByDate orders records by date ascending, keeping the relative order of
// records on the same day.
func SortByDate(recs []models.CanonicalRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date < recs[j].Date })
}
