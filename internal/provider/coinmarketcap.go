package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto-sentiment/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	coinMarketCapBaseURL    = "https://pro-api.coinmarketcap.com"
	coinMarketCapQuotesPath = "/v1/cryptocurrency/quotes/latest"
	coinMarketCapKeyHeader  = "X-CMC_PRO_API_KEY"
)

// ErrSymbolNotFound is returned when the response envelope has no entry
// for the requested symbol.
var ErrSymbolNotFound = errors.New("symbol not found in quote response")

// CoinMarketCapProvider fetches latest quotes from the CoinMarketCap Pro API.
type CoinMarketCapProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewCoinMarketCapProvider creates a provider that spaces calls at least
// minInterval apart. An empty baseURL selects the public Pro API.
func NewCoinMarketCapProvider(tracer trace.Tracer, baseURL, apiKey string, minInterval, timeout time.Duration) *CoinMarketCapProvider {
	if baseURL == "" {
		baseURL = coinMarketCapBaseURL
	}
	return &CoinMarketCapProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tracer:  tracer,
		limiter: NewRateLimiter(minInterval),
	}
}

// FetchCoinData returns the quote payload for symbol.
func (p *CoinMarketCapProvider) FetchCoinData(ctx context.Context, symbol string) (*domain.CoinQuote, error) {
	ctx, span := p.tracer.Start(ctx, "coinmarketcap.fetch-coin-data")
	defer span.End()
	span.SetAttributes(attribute.String("coin", symbol))

	quote, err := p.fetchCoinData(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, context.Canceled) {
			log.Error("error fetching coin data", "coin", symbol, "err", err)
		}
		return nil, err
	}
	return quote, nil
}

func (p *CoinMarketCapProvider) fetchCoinData(ctx context.Context, symbol string) (*domain.CoinQuote, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	endpoint := p.baseURL + coinMarketCapQuotesPath + "?" + q.Encode()

	body, err := p.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch quote for %s: %w", symbol, err)
	}

	quote, err := extractQuote(body, symbol)
	if err != nil {
		return nil, fmt.Errorf("parse quote for %s: %w", symbol, err)
	}
	return quote, nil
}

func (p *CoinMarketCapProvider) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(coinMarketCapKeyHeader, p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "status.error_message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("coinmarketcap API error %d: %s", resp.StatusCode, msg)
	}

	return body, nil
}

// extractQuote pulls data.<symbol> out of the response envelope.
// Response shape: {"status": {...}, "data": {"BTC": {"name": "Bitcoin", "quote": {"USD": {...}}}}}
func extractQuote(body []byte, symbol string) (*domain.CoinQuote, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON response")
	}

	entry, ok := gjson.GetBytes(body, "data").Map()[symbol]
	if !ok || !entry.Exists() || entry.Type == gjson.Null {
		return nil, ErrSymbolNotFound
	}
	// The v2 endpoint returns a list of matches per symbol.
	if entry.IsArray() {
		items := entry.Array()
		if len(items) == 0 {
			return nil, ErrSymbolNotFound
		}
		entry = items[0]
	}

	var quote domain.CoinQuote
	if err := json.Unmarshal([]byte(entry.Raw), &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
