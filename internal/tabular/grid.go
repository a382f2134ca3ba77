package tabular

import (
	"fmt"
	"strconv"

	"github.com/AngelCh415/campaign-dash/internal/models"
)

// CanonicalHeaders is the persisted sheet layout, in column order.
var CanonicalHeaders = []string{
	"Date", "Campaign Name", "Spent", "CPC", "ROAS", "CVR", "CPA",
	"Campaign ID", "Impressions", "Reach", "CPM", "CTR", "Link Clicks",
	"Frequency", "Purchases", "Meta Spend", "Meta CPC", "Meta CPA", "Meta CVR",
}

// Stats counts what happened to the rows of one conversion.
type Stats struct {
	Rows    int
	Mapped  int
	Dropped int
}

// FromGrid converts a store grid whose first row holds the headers.
// Rows that cannot be mapped are skipped.
func FromGrid(grid [][]any) ([]models.CanonicalRecord, Stats) {
	var st Stats
	if len(grid) == 0 {
		return nil, st
	}
	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = cellString(h)
	}
	cols := ResolveColumns(headers)

	out := make([]models.CanonicalRecord, 0, len(grid)-1)
	for _, row := range grid[1:] {
		st.Rows++
		rec, ok := MapRow(row, cols)
		if !ok {
			st.Dropped++
			continue
		}
		st.Mapped++
		out = append(out, rec)
	}
	return out, st
}

// ToGrid renders records in the CanonicalHeaders layout. Numbers are written
// as plain numbers and undefined enrichment fields as "".
func ToGrid(recs []models.CanonicalRecord) [][]any {
	grid := make([][]any, 0, len(recs)+1)
	header := make([]any, len(CanonicalHeaders))
	for i, h := range CanonicalHeaders {
		header[i] = h
	}
	grid = append(grid, header)
	for _, r := range recs {
		grid = append(grid, []any{
			r.Date, r.CampaignName, r.Spent, r.CPC, r.ROAS, r.CVR, r.CPA,
			optString(r.CampaignID), optIntCell(r.Impressions), optIntCell(r.Reach),
			optFloatCell(r.CPM), optFloatCell(r.CTR), optIntCell(r.LinkClicks),
			optFloatCell(r.Frequency), optIntCell(r.Purchases), optFloatCell(r.MetaSpend),
			optFloatCell(r.MetaCPC), optFloatCell(r.MetaCPA), optFloatCell(r.MetaCVR),
		})
	}
	return grid
}

func optString(p *string) any {
	if p == nil {
		return ""
	}
	return *p
}

func optIntCell(p *int64) any {
	if p == nil {
		return ""
	}
	return *p
}

func optFloatCell(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func toString(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}
