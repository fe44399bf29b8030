package domain

import "time"

// DateLayout is ISO-8601 UTC with fixed millisecond width, so lexical
// ordering of stored dates matches chronological ordering.
const DateLayout = "2006-01-02T15:04:05.000Z"

// HistoryLimit caps how many records the history command returns.
const HistoryLimit = 10

// SentimentRecord is one persisted sentiment judgment for a coin.
type SentimentRecord struct {
	ID        int64   `db:"id" json:"id"`
	Coin      string  `db:"coin" json:"coin"`
	Date      string  `db:"date" json:"date"`
	Sentiment string  `db:"sentiment" json:"sentiment"`
	Price     float64 `db:"price" json:"price"`
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate is the inverse of FormatDate.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
