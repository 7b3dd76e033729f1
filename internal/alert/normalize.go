package alert

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var magnitudes = map[string]decimal.Decimal{
	"k": decimal.NewFromInt(1_000),
	"m": decimal.NewFromInt(1_000_000),
	"b": decimal.NewFromInt(1_000_000_000),
}

// ParseAmount scales a dollar figure such as "12.5" with suffix "K" to USD.
func ParseAmount(value, suffix string) (float64, error) {
	multiplier, ok := magnitudes[strings.ToLower(strings.TrimSpace(suffix))]
	if !ok {
		return 0, fmt.Errorf("unknown magnitude suffix %q", suffix)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(value), ",", ""))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	usd, _ := amount.Mul(multiplier).Float64()
	return usd, nil
}

// Extract pulls a WhaleActivity out of alert text. The id, reporter and
// timestamp are left for the caller.
func Extract(text string) (WhaleActivity, bool) {
	whale := whaleNameRe.FindStringSubmatch(text)
	buy := buyAmountRe.FindStringSubmatch(text)
	token := tokenSymbolRe.FindStringSubmatch(text)
	mc := marketCapRe.FindStringSubmatch(text)
	if whale == nil || buy == nil || token == nil || mc == nil || !hasSourceEvidence(text) {
		return WhaleActivity{}, false
	}

	buyUSD, err := ParseAmount(buy[1], buy[2])
	if err != nil {
		return WhaleActivity{}, false
	}
	mcUSD, err := ParseAmount(mc[1], mc[2])
	if err != nil {
		return WhaleActivity{}, false
	}

	label := strings.TrimSpace(whale[1])
	symbol := strings.TrimSpace(token[1])
	if label == "" || symbol == "" {
		return WhaleActivity{}, false
	}

	return WhaleActivity{
		WhaleLabel:   label,
		BuyAmountUSD: buyUSD,
		TokenSymbol:  symbol,
		MarketCapUSD: mcUSD,
		SourceURL:    urlRe.FindString(text),
	}, true
}

// Normalize converts one raw record. It returns false when any field cannot
// be extracted; partially populated activity is never returned.
func Normalize(rec RawRecord) (WhaleActivity, bool) {
	id := rec.ID()
	if id == "" {
		return WhaleActivity{}, false
	}
	observedAt, ok := rec.Timestamp()
	if !ok {
		return WhaleActivity{}, false
	}
	activity, ok := Extract(rec.Content())
	if !ok {
		return WhaleActivity{}, false
	}

	activity.ID = id
	activity.Reporter = rec.Author()
	activity.ObservedAt = observedAt
	if activity.SourceURL == "" {
		for _, embed := range rec.Embeds {
			if embed.URL != "" {
				activity.SourceURL = embed.URL
				break
			}
		}
	}
	return activity, true
}

// NormalizeAll normalizes records in order and drops the ones that fail.
func NormalizeAll(recs []RawRecord) []WhaleActivity {
	out := make([]WhaleActivity, 0, len(recs))
	for _, rec := range recs {
		if activity, ok := Normalize(rec); ok {
			out = append(out, activity)
		}
	}
	return out
}
