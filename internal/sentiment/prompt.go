package sentiment

import (
	"strings"

	"crypto-sentiment/internal/domain"

	"github.com/shopspring/decimal"
)

const promptHeader = "Analyze the following cryptocurrency data and provide a brief sentiment analysis (positive, neutral, or negative) with a short explanation:"

// BuildPrompt renders the fixed analysis prompt for a coin's USD quote.
func BuildPrompt(name string, usd domain.PriceQuote) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	sb.WriteString("\n\n")
	sb.WriteString("Coin: " + strings.ToUpper(name) + "\n")
	sb.WriteString("Price: $" + fixed2(usd.Price) + "\n")
	sb.WriteString("24h Change: " + fixed2(usd.PercentChange24h) + "%\n")
	sb.WriteString("7d Change: " + fixed2(usd.PercentChange7d) + "%\n")
	sb.WriteString("Market Cap: $" + fixed2(usd.MarketCap) + "\n")
	sb.WriteString("Volume 24h: $" + fixed2(usd.Volume24h))
	return sb.String()
}

func fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
