package tabular

import (
	"strings"
	"unicode"
)

// NotFound is returned by ResolveColumn when no header matches.
const NotFound = -1

// Field names a logical column of the canonical record.
type Field string

const (
	FieldDate        Field = "date"
	FieldCampaign    Field = "campaign"
	FieldSpent       Field = "spent"
	FieldCPC         Field = "cpc"
	FieldROAS        Field = "roas"
	FieldCVR         Field = "cvr"
	FieldCPA         Field = "cpa"
	FieldCampaignID  Field = "campaign_id"
	FieldImpressions Field = "impressions"
	FieldReach       Field = "reach"
	FieldCPM         Field = "cpm"
	FieldCTR         Field = "ctr"
	FieldLinkClicks  Field = "link_clicks"
	FieldFrequency   Field = "frequency"
	FieldPurchases   Field = "purchases"
	FieldMetaSpend   Field = "meta_spend"
	FieldMetaCPC     Field = "meta_cpc"
	FieldMetaCPA     Field = "meta_cpa"
	FieldMetaCVR     Field = "meta_cvr"
)

// FieldLabels lists candidate header labels per field: the Korean label the
// dashboard sheet uses first, English synonyms after. Platform specific
// fields come before the generic ones so the substring pass does not let
// "CPC" claim a "Meta CPC" column or "Campaign" claim "Campaign ID".
var FieldLabels = []struct {
	Field  Field
	Labels []string
}{
	{FieldDate, []string{"날짜", "일자", "Date", "Day", "Reporting starts"}},
	{FieldCampaignID, []string{"캠페인 ID", "Campaign ID"}},
	{FieldCampaign, []string{"캠페인 이름", "캠페인", "Campaign Name", "Campaign"}},
	{FieldMetaSpend, []string{"메타 지출", "Meta Spend", "Meta Amount Spent"}},
	{FieldMetaCPC, []string{"메타 CPC", "Meta CPC"}},
	{FieldMetaCPA, []string{"메타 CPA", "Meta CPA"}},
	{FieldMetaCVR, []string{"메타 전환율", "Meta CVR"}},
	{FieldSpent, []string{"지출 금액", "지출", "광고비", "Spent", "Amount Spent", "Spend"}},
	{FieldCPC, []string{"클릭당 비용", "CPC", "Cost per Click"}},
	{FieldROAS, []string{"광고 수익률", "ROAS", "Return on Ad Spend"}},
	{FieldCVR, []string{"전환율", "CVR", "Conversion Rate"}},
	{FieldCPA, []string{"전환당 비용", "CPA", "Cost per Acquisition", "Cost per Result"}},
	{FieldImpressions, []string{"노출", "노출수", "Impressions"}},
	{FieldReach, []string{"도달", "도달수", "Reach"}},
	{FieldCPM, []string{"1000회 노출당 비용", "CPM"}},
	{FieldCTR, []string{"클릭률", "CTR", "Click-Through Rate"}},
	{FieldLinkClicks, []string{"링크 클릭", "Link Clicks"}},
	{FieldFrequency, []string{"빈도", "Frequency"}},
	{FieldPurchases, []string{"구매", "Purchases"}},
}

// Columns maps each logical field to its column index or NotFound.
type Columns map[Field]int

// Index returns the column for f, NotFound when unresolved.
func (c Columns) Index(f Field) int {
	if i, ok := c[f]; ok {
		return i
	}
	return NotFound
}

type matcher func(header, candidate string) bool

var matchers = []matcher{
	func(h, c string) bool { return h == c },
	func(h, c string) bool { return strings.EqualFold(h, c) },
}

// ResolveColumn finds the header for a field. Passes run in priority order
// over all candidates: exact, case-insensitive, then substring containment
// for ASCII-only candidates.
func ResolveColumn(headers []string, candidates []string) int {
	trimmed := make([]string, len(headers))
	for i, h := range headers {
		trimmed[i] = strings.TrimSpace(h)
	}
	for _, match := range matchers {
		for _, c := range candidates {
			for i, h := range trimmed {
				if match(h, c) {
					return i
				}
			}
		}
	}
	for _, c := range candidates {
		if !isASCII(c) {
			continue
		}
		lc := strings.ToLower(c)
		for i, h := range trimmed {
			if strings.Contains(strings.ToLower(h), lc) {
				return i
			}
		}
	}
	return NotFound
}

// ResolveColumns resolves every field in FieldLabels. A column claimed by an
// earlier field is hidden from the later ones.
func ResolveColumns(headers []string) Columns {
	cols := make(Columns, len(FieldLabels))
	taken := make(map[int]bool, len(FieldLabels))
	for _, fl := range FieldLabels {
		idx := ResolveColumn(maskTaken(headers, taken), fl.Labels)
		cols[fl.Field] = idx
		if idx != NotFound {
			taken[idx] = true
		}
	}
	return cols
}

func maskTaken(headers []string, taken map[int]bool) []string {
	if len(taken) == 0 {
		return headers
	}
	out := make([]string, len(headers))
	for i, h := range headers {
		if !taken[i] {
			out[i] = h
		}
	}
	return out
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
