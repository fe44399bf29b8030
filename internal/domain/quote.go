package domain

import "strings"

// CoinQuote is the per-symbol payload of a CoinMarketCap quotes/latest response.
type CoinQuote struct {
	ID          int64                 `json:"id"`
	Name        string                `json:"name"`
	Symbol      string                `json:"symbol"`
	Slug        string                `json:"slug"`
	LastUpdated string                `json:"last_updated"`
	Quote       map[string]PriceQuote `json:"quote"`
}

// PriceQuote holds market figures for a coin in one convert currency.
type PriceQuote struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	PercentChange1h  float64 `json:"percent_change_1h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	PercentChange7d  float64 `json:"percent_change_7d"`
	MarketCap        float64 `json:"market_cap"`
	LastUpdated      string  `json:"last_updated"`
}

// USD returns the USD quote, if the provider included one.
func (q *CoinQuote) USD() (PriceQuote, bool) {
	if q == nil || q.Quote == nil {
		return PriceQuote{}, false
	}
	p, ok := q.Quote["USD"]
	return p, ok
}

// NormalizeSymbol trims surrounding whitespace. Case is kept as supplied.
func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(symbol)
}
