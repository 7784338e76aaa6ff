// Package filter classifies free-form text as a qualifying new-listing
// announcement for one of the watched exchanges.
package filter

import (
	"strings"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/textutil"
)

// tokenPair is a high-recall positive match: both tokens must appear in the
// whitespace-stripped text. New sources are added here, not as new branches.
type tokenPair struct {
	exchange     domain.Exchange
	nameToken    string
	listingToken string
}

var tokenPairs = []tokenPair{
	{domain.ExchangeUpbit, "업비트", "신규거래지원"},
	{domain.ExchangeBithumb, "빗썸", "원화마켓추가"},
}

// excludedKeywords veto a positive match. Exchanges reuse listing-adjacent
// vocabulary for notice edits, trading holds, airdrops, events, rebrandings,
// market renames, caution designations, suspensions, and maintenance.
var excludedKeywords = []string{
	"공지변경",
	"거래대기",
	"에어드랍",
	"이벤트",
	"리브랜딩",
	"마켓명 변경",
	"유의종목",
	"투자유의",
	"입출금 일시 중단",
	"점검",
}

// Result reports whether a message qualifies and, when it matched positive
// tokens, for which exchange.
type Result struct {
	Qualifies bool
	Exchange  domain.Exchange
	Reason    domain.SkipReason
}

// DetectExchange returns the exchange whose token pair matches the text.
func DetectExchange(text string) (domain.Exchange, bool) {
	stripped := textutil.StripWhitespace(text)
	for _, pair := range tokenPairs {
		if strings.Contains(stripped, pair.nameToken) && strings.Contains(stripped, pair.listingToken) {
			return pair.exchange, true
		}
	}
	return "", false
}

// ContainsExcludedKeyword reports whether any soft-signal keyword appears in
// the text after whitespace-stripped, case-insensitive normalization.
func ContainsExcludedKeyword(text string) bool {
	normalized := strings.ToLower(textutil.StripWhitespace(text))
	for _, keyword := range excludedKeywords {
		if strings.Contains(normalized, strings.ToLower(textutil.StripWhitespace(keyword))) {
			return true
		}
	}
	return false
}

// Classify runs the positive token match, then the exclusion veto.
func Classify(text string) Result {
	exchange, ok := DetectExchange(text)
	if !ok {
		return Result{Reason: domain.ReasonNotListing}
	}

	if ContainsExcludedKeyword(text) {
		return Result{Exchange: exchange, Reason: domain.ReasonExcludedKeyword}
	}

	return Result{Qualifies: true, Exchange: exchange}
}
