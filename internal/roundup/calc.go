package roundup

import (
	"github.com/theirongolddev/roundup/internal/amount"
	"github.com/theirongolddev/roundup/internal/model"
)

// ItemRoundUp is the spare change of a single item: the gap between its
// amount and the next whole currency unit.
func ItemRoundUp(it model.FeedItem) float64 {
	m := it.Amount.MinorUnits
	if m < 0 {
		m = -m
	}
	return amount.Delta(amount.MinorToFloat(m))
}

// LineItems filters items down to eligible ones and pairs each with its
// round-up.
func LineItems(items []model.FeedItem) []LineItem {
	eligible := model.FilterEligible(items)
	out := make([]LineItem, len(eligible))
	for i, it := range eligible {
		out[i] = LineItem{Item: it, RoundUp: ItemRoundUp(it)}
	}
	return out
}

// Total sums the round-ups of lines.
func Total(lines []LineItem) float64 {
	var total float64
	for _, l := range lines {
		total += l.RoundUp
	}
	return total
}

// TotalMinor is the exact total in minor units.
func TotalMinor(lines []LineItem) int64 {
	var total int64
	for _, l := range lines {
		total += amount.DeltaMinor(l.Item.Amount.MinorUnits)
	}
	return total
}
