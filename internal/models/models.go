package models

// CanonicalRecord is one (date, campaign) observation after normalization.
// Clicks, Conversions and Revenue are never ground truth: Derive rebuilds them
// from Spent and the stored ratios.
type CanonicalRecord struct {
	ID           string  `json:"id"`
	Date         string  `json:"date"`
	CampaignName string  `json:"campaign_name"`
	Spent        float64 `json:"spent"`
	CPC          float64 `json:"cpc"`
	ROAS         float64 `json:"roas"`
	CVR          float64 `json:"cvr"`
	CPA          float64 `json:"cpa"`
	Clicks       float64 `json:"clicks"`
	Conversions  float64 `json:"conversions"`
	Revenue      float64 `json:"revenue"`

	// insights platform enrichment; nil means the source never reported it
	CampaignID  *string  `json:"campaign_id,omitempty"`
	Impressions *int64   `json:"impressions,omitempty"`
	Reach       *int64   `json:"reach,omitempty"`
	CPM         *float64 `json:"cpm,omitempty"`
	CTR         *float64 `json:"ctr,omitempty"`
	LinkClicks  *int64   `json:"link_clicks,omitempty"`
	Frequency   *float64 `json:"frequency,omitempty"`
	Purchases   *int64   `json:"purchases,omitempty"`
	MetaSpend   *float64 `json:"meta_spend,omitempty"`
	MetaCPC     *float64 `json:"meta_cpc,omitempty"`
	MetaCPA     *float64 `json:"meta_cpa,omitempty"`
	MetaCVR     *float64 `json:"meta_cvr,omitempty"`
}

// Derive recomputes the back-computed counts from Spent and the ratios.
func (r *CanonicalRecord) Derive() {
	r.Clicks = 0
	if r.CPC > 0 {
		r.Clicks = r.Spent / r.CPC
	}
	r.Conversions = 0
	if r.CPA > 0 {
		r.Conversions = r.Spent / r.CPA
	}
	r.Revenue = r.Spent * r.ROAS
}

// DeriveInsights recomputes the insights ratios from MetaSpend, Impressions,
// LinkClicks, Purchases and Reach. Ratios whose inputs are missing are left
// alone; a zero denominator gives 0.
func (r *CanonicalRecord) DeriveInsights() {
	if r.MetaSpend == nil || r.Impressions == nil {
		return
	}
	spend := *r.MetaSpend
	impressions := float64(*r.Impressions)
	var clicks, purchases float64
	if r.LinkClicks != nil {
		clicks = float64(*r.LinkClicks)
	}
	if r.Purchases != nil {
		purchases = float64(*r.Purchases)
	}
	r.MetaCPC = Float(SafeDiv(spend, clicks))
	r.CTR = Float(SafeDiv(clicks, impressions))
	r.MetaCPA = Float(SafeDiv(spend, purchases))
	r.MetaCVR = Float(SafeDiv(purchases, clicks))
	r.CPM = Float(SafeDiv(spend, impressions/1000))
	if r.Reach != nil {
		r.Frequency = Float(SafeDiv(impressions, float64(*r.Reach)))
	}
}

// SafeDiv returns a/b, or 0 when b is 0.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// HasInsights reports whether any enrichment field is set.
func (r CanonicalRecord) HasInsights() bool {
	return r.Impressions != nil || r.Reach != nil || r.CPM != nil || r.CTR != nil ||
		r.LinkClicks != nil || r.Frequency != nil || r.Purchases != nil ||
		r.MetaSpend != nil || r.MetaCPC != nil || r.MetaCPA != nil || r.MetaCVR != nil
}

// DateRange is an inclusive YYYY-MM-DD interval.
type DateRange struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// Summary is an aggregated group (one campaign or one date) with every ratio
// recomputed from summed base quantities.
type Summary struct {
	Key          string  `json:"key"`
	CampaignName string  `json:"campaign_name,omitempty"`
	Date         string  `json:"date,omitempty"`
	Records      int     `json:"records"`
	Spent        float64 `json:"spent"`
	Revenue      float64 `json:"revenue"`
	Clicks       float64 `json:"clicks"`
	Conversions  float64 `json:"conversions"`
	Impressions  int64   `json:"impressions"`
	LinkClicks   int64   `json:"link_clicks"`
	Purchases    int64   `json:"purchases"`
	Reach        int64   `json:"reach"`
	MetaSpend    float64 `json:"meta_spend"`
	ROAS         float64 `json:"roas"`
	CPC          float64 `json:"cpc"`
	CVR          float64 `json:"cvr"`
	CPA          float64 `json:"cpa"`
	CPM          float64 `json:"cpm"`
	CTR          float64 `json:"ctr"`
	Frequency    float64 `json:"frequency"`
	MetaCPC      float64 `json:"meta_cpc"`
	MetaCPA      float64 `json:"meta_cpa"`
	MetaCVR      float64 `json:"meta_cvr"`
}

func Float(v float64) *float64 { return &v }
func Int(v int64) *int64       { return &v }
func String(v string) *string  { return &v }
