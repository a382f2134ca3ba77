package merge

import "github.com/AngelCh415/campaign-dash/internal/models"

// combine folds external rows sharing a key into one row and recomputes the
// ratios. Spend, impressions, clicks and purchases are summed. Reach counts
// unique people and is not additive, so the largest value is kept.
// order lists keys by first appearance.
func combine(external []models.CanonicalRecord) (map[string]models.CanonicalRecord, []string) {
	byKey := make(map[string]models.CanonicalRecord, len(external))
	counts := make(map[string]int, len(external))
	var order []string

	for _, r := range external {
		k := keyOf(r)
		cur, ok := byKey[k]
		if !ok {
			byKey[k] = r
			counts[k] = 1
			order = append(order, k)
			continue
		}
		cur.MetaSpend = addFloat(cur.MetaSpend, r.MetaSpend)
		cur.Impressions = addInt(cur.Impressions, r.Impressions)
		cur.LinkClicks = addInt(cur.LinkClicks, r.LinkClicks)
		cur.Purchases = addInt(cur.Purchases, r.Purchases)
		cur.Reach = maxInt(cur.Reach, r.Reach)
		byKey[k] = cur
		counts[k]++
	}
	for k, n := range counts {
		if n > 1 {
			r := byKey[k]
			r.DeriveInsights()
			byKey[k] = r
		}
	}
	return byKey, order
}

func addFloat(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return models.Float(*b)
	case b == nil:
		return models.Float(*a)
	}
	return models.Float(*a + *b)
}

func addInt(a, b *int64) *int64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return models.Int(*b)
	case b == nil:
		return models.Int(*a)
	}
	return models.Int(*a + *b)
}

func maxInt(a, b *int64) *int64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return models.Int(*b)
	case b == nil, *a >= *b:
		return models.Int(*a)
	}
	return models.Int(*b)
}
