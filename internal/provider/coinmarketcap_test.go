package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

const btcEnvelope = `{
  "status": {"error_code": 0, "error_message": null},
  "data": {
    "BTC": {
      "id": 1,
      "name": "Bitcoin",
      "symbol": "BTC",
      "slug": "bitcoin",
      "last_updated": "2025-01-01T00:00:00.000Z",
      "quote": {
        "USD": {
          "price": 97123.456,
          "volume_24h": 45000000000.5,
          "percent_change_1h": 0.1,
          "percent_change_24h": 2.345,
          "percent_change_7d": -1.5,
          "market_cap": 1900000000000.25,
          "last_updated": "2025-01-01T00:00:00.000Z"
        }
      }
    }
  }
}`

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func newTestProvider(rt roundTripFunc) *CoinMarketCapProvider {
	p := NewCoinMarketCapProvider(trace.NewNoopTracerProvider().Tracer("test"), "http://example", "secret", time.Millisecond, time.Second)
	p.client = &http.Client{Transport: rt}
	return p
}

func TestFetchCoinData(t *testing.T) {
	t.Parallel()

	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/cryptocurrency/quotes/latest" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.URL.Query().Get("symbol"); got != "BTC" {
			t.Fatalf("unexpected symbol param: %s", got)
		}
		if got := req.Header.Get("X-CMC_PRO_API_KEY"); got != "secret" {
			t.Fatalf("missing api key header, got %q", got)
		}
		return jsonResponse(http.StatusOK, btcEnvelope), nil
	})

	quote, err := p.FetchCoinData(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Name != "Bitcoin" || quote.Symbol != "BTC" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	usd, ok := quote.USD()
	if !ok {
		t.Fatal("expected USD quote")
	}
	if usd.Price != 97123.456 || usd.PercentChange24h != 2.345 || usd.MarketCap != 1900000000000.25 {
		t.Fatalf("unexpected USD quote: %+v", usd)
	}
}

func TestFetchCoinDataSymbolMissing(t *testing.T) {
	t.Parallel()

	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status": {"error_code": 0}, "data": {}}`), nil
	})

	_, err := p.FetchCoinData(context.Background(), "BTC")
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestFetchCoinDataArrayEntry(t *testing.T) {
	t.Parallel()

	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data": {"ETH": [{"name": "Ethereum", "symbol": "ETH", "quote": {"USD": {"price": 3000}}}]}}`), nil
	})

	quote, err := p.FetchCoinData(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usd, _ := quote.USD(); quote.Name != "Ethereum" || usd.Price != 3000 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestFetchCoinDataAPIError(t *testing.T) {
	t.Parallel()

	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"status": {"error_code": 1002, "error_message": "API key missing."}}`), nil
	})

	_, err := p.FetchCoinData(context.Background(), "BTC")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "API key missing.") {
		t.Fatalf("expected status and provider message in error, got %v", err)
	}
}

func TestFetchCoinDataTransportError(t *testing.T) {
	t.Parallel()

	netErr := errors.New("connection refused")
	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		return nil, netErr
	})

	_, err := p.FetchCoinData(context.Background(), "BTC")
	if !errors.Is(err, netErr) {
		t.Fatalf("expected transport error to be wrapped, got %v", err)
	}
}

func TestFetchCoinDataInvalidJSON(t *testing.T) {
	t.Parallel()

	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `not json`), nil
	})

	if _, err := p.FetchCoinData(context.Background(), "BTC"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFetchCoinDataSpacesOutboundCalls(t *testing.T) {
	var calls []time.Time
	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		calls = append(calls, time.Now())
		return jsonResponse(http.StatusOK, btcEnvelope), nil
	})
	p.limiter = NewRateLimiter(time.Second)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := p.FetchCoinData(ctx, "BTC"); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 outbound calls, got %d", len(calls))
	}
	if gap := calls[1].Sub(start); gap < time.Second {
		t.Fatalf("expected at least one second between outbound calls, got %v", gap)
	}
}

func TestFetchCoinDataCancellationIsNotLoggedAsFailure(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	p := newTestProvider(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.FetchCoinData(ctx, "BTC"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no error log for a cancelled fetch, got %q", buf.String())
	}

	if _, err := p.FetchCoinData(context.Background(), "BTC"); err == nil {
		t.Fatal("expected transport error")
	}
	if !strings.Contains(buf.String(), "error fetching coin data") {
		t.Fatalf("expected real failures to be logged, got %q", buf.String())
	}
}
