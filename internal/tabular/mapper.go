package tabular

import (
	"strings"

	"github.com/google/uuid"

	"github.com/AngelCh415/campaign-dash/internal/models"
	"github.com/AngelCh415/campaign-dash/internal/parse"
)

// MapRow builds a canonical record from one row. Rows without a usable date
// or campaign name yield ok=false. Missing core columns read as 0, missing
// enrichment columns stay nil.
func MapRow(row []any, cols Columns) (models.CanonicalRecord, bool) {
	date := parse.NormalizeDate(cell(row, cols.Index(FieldDate)))
	name := cellString(cell(row, cols.Index(FieldCampaign)))
	if date == "" || name == "" {
		return models.CanonicalRecord{}, false
	}

	rec := models.CanonicalRecord{
		ID:           uuid.NewString(),
		Date:         date,
		CampaignName: name,
		Spent:        parse.ParseNumber(cell(row, cols.Index(FieldSpent))),
		CPC:          parse.ParseNumber(cell(row, cols.Index(FieldCPC))),
		ROAS:         parse.ParseRatio(cell(row, cols.Index(FieldROAS))),
		CVR:          parse.ParsePercentage(cell(row, cols.Index(FieldCVR))),
		CPA:          parse.ParseNumber(cell(row, cols.Index(FieldCPA))),
	}
	rec.Derive()

	if v := cellString(cell(row, cols.Index(FieldCampaignID))); v != "" {
		rec.CampaignID = models.String(v)
	}
	rec.Impressions = optInt(row, cols.Index(FieldImpressions))
	rec.Reach = optInt(row, cols.Index(FieldReach))
	rec.LinkClicks = optInt(row, cols.Index(FieldLinkClicks))
	rec.Purchases = optInt(row, cols.Index(FieldPurchases))
	rec.CPM = optFloat(row, cols.Index(FieldCPM), parse.ParseNumber)
	rec.CTR = optFloat(row, cols.Index(FieldCTR), parse.ParsePercentage)
	rec.Frequency = optFloat(row, cols.Index(FieldFrequency), parse.ParseNumber)
	rec.MetaSpend = optFloat(row, cols.Index(FieldMetaSpend), parse.ParseNumber)
	rec.MetaCPC = optFloat(row, cols.Index(FieldMetaCPC), parse.ParseNumber)
	rec.MetaCPA = optFloat(row, cols.Index(FieldMetaCPA), parse.ParseNumber)
	rec.MetaCVR = optFloat(row, cols.Index(FieldMetaCVR), parse.ParsePercentage)
	return rec, true
}

func cell(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(toString(s))
	}
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func optInt(row []any, idx int) *int64 {
	v := cell(row, idx)
	if blank(v) {
		return nil
	}
	return models.Int(parse.ParseInt(v))
}

func optFloat(row []any, idx int, conv func(any) float64) *float64 {
	v := cell(row, idx)
	if blank(v) {
		return nil
	}
	return models.Float(conv(v))
}
