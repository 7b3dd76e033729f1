package alert

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate names one rule of the whale alert grammar.
type Predicate string

const (
	PredicateWhaleName      Predicate = "whaleName"
	PredicateBuyAmount      Predicate = "buyAmount"
	PredicateTokenSymbol    Predicate = "tokenSymbol"
	PredicateMarketCap      Predicate = "marketCap"
	PredicateSourceEvidence Predicate = "sourceUrl"
)

// Predicates lists the grammar rules in evaluation order.
var Predicates = []Predicate{
	PredicateWhaleName,
	PredicateBuyAmount,
	PredicateTokenSymbol,
	PredicateMarketCap,
	PredicateSourceEvidence,
}

var (
	whaleNameRe   = regexp.MustCompile(`(?i)\$([a-z0-9][a-z0-9 ]*?)\s*whale`)
	buyAmountRe   = regexp.MustCompile(`(?i)\bbought\s+\$([0-9][0-9,]*(?:\.[0-9]+)?)\s*([kmb])\s+of\b`)
	tokenSymbolRe = regexp.MustCompile(`(?i)\bof\s+\$([a-z0-9]+)(?:at\b|\s|$)`)
	marketCapRe   = regexp.MustCompile(`(?i)\bat\s+\$([0-9][0-9,]*(?:\.[0-9]+)?)\s*([kmb])\s*mc\b`)
	urlRe         = regexp.MustCompile(`(?i)https?://[^\s<>()"']+`)
)

// KnownScreenerDomains satisfy the evidence rule even without a full link.
var KnownScreenerDomains = []string{"dexscreener.com", "birdeye.so"}

// Diagnostics reports which grammar rules matched a message.
type Diagnostics struct {
	HasWhaleName   bool `json:"hasWhaleName"`
	HasBuyAmount   bool `json:"hasBuyAmount"`
	HasTokenSymbol bool `json:"hasTokenSymbol"`
	HasMarketCap   bool `json:"hasMarketCap"`
	HasSourceURL   bool `json:"hasSourceUrl"`
}

// Validate evaluates every grammar rule against text.
func Validate(text string) Diagnostics {
	return Diagnostics{
		HasWhaleName:   whaleNameRe.MatchString(text),
		HasBuyAmount:   buyAmountRe.MatchString(text),
		HasTokenSymbol: tokenSymbolRe.MatchString(text),
		HasMarketCap:   marketCapRe.MatchString(text),
		HasSourceURL:   hasSourceEvidence(text),
	}
}

// Accepted reports whether all five rules matched.
func (d Diagnostics) Accepted() bool {
	return len(d.Missing()) == 0
}

// Missing returns the rules that did not match, in evaluation order.
func (d Diagnostics) Missing() []Predicate {
	missing := make([]Predicate, 0, len(Predicates))
	for _, p := range Predicates {
		if !d.matched(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// Reason renders a human readable rejection message.
func (d Diagnostics) Reason() string {
	missing := d.Missing()
	if len(missing) == 0 {
		return ""
	}
	names := make([]string, len(missing))
	for i, p := range missing {
		names[i] = string(p)
	}
	return fmt.Sprintf("message does not match whale alert format: missing %s", strings.Join(names, ", "))
}

func (d Diagnostics) matched(p Predicate) bool {
	switch p {
	case PredicateWhaleName:
		return d.HasWhaleName
	case PredicateBuyAmount:
		return d.HasBuyAmount
	case PredicateTokenSymbol:
		return d.HasTokenSymbol
	case PredicateMarketCap:
		return d.HasMarketCap
	case PredicateSourceEvidence:
		return d.HasSourceURL
	default:
		return false
	}
}

// A bare mention of a screener domain counts as evidence, link or not.
func hasSourceEvidence(text string) bool {
	if urlRe.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, domain := range KnownScreenerDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}
