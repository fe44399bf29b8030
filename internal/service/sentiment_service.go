package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crypto-sentiment/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrEmptyCoin is returned when an operation is given a blank coin symbol.
var ErrEmptyCoin = errors.New("coin symbol is required")

type QuoteFetcher interface {
	FetchCoinData(ctx context.Context, symbol string) (*domain.CoinQuote, error)
}

type SentimentGenerator interface {
	GenerateSentiment(ctx context.Context, quote *domain.CoinQuote) (string, error)
}

type SentimentStore interface {
	Insert(ctx context.Context, rec *domain.SentimentRecord) (int64, error)
	History(ctx context.Context, coin string, limit int) ([]domain.SentimentRecord, error)
	Last(ctx context.Context, coin string) (*domain.SentimentRecord, error)
	Coins(ctx context.Context) ([]string, error)
	DeleteCoin(ctx context.Context, coin string) (int64, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SentimentService runs the fetch, generate and persist pipeline and the
// read-side queries over stored sentiment history.
type SentimentService struct {
	tracer    trace.Tracer
	fetcher   QuoteFetcher
	generator SentimentGenerator
	repo      SentimentStore
	redis     RedisClient
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewSentimentService wires the pipeline. redisClient may be nil, which
// disables the quote cache.
func NewSentimentService(
	tracer trace.Tracer,
	fetcher QuoteFetcher,
	generator SentimentGenerator,
	repo SentimentStore,
	redisClient RedisClient,
	cacheTTL time.Duration,
) *SentimentService {
	return &SentimentService{
		tracer:    tracer,
		fetcher:   fetcher,
		generator: generator,
		repo:      repo,
		redis:     redisClient,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// AnalyzeSentiment fetches a quote, asks the model for a sentiment and
// stores the result. Nothing is stored if any step fails.
func (s *SentimentService) AnalyzeSentiment(ctx context.Context, coin string) (*domain.SentimentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.analyze")
	defer span.End()

	coin = domain.NormalizeSymbol(coin)
	if coin == "" {
		return nil, ErrEmptyCoin
	}
	span.SetAttributes(attribute.String("coin", coin))

	quote, err := s.quote(ctx, coin)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	usd, ok := quote.USD()
	if !ok {
		return nil, fmt.Errorf("quote for %s has no USD price", coin)
	}

	text, err := s.generator.GenerateSentiment(ctx, quote)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rec := &domain.SentimentRecord{
		Coin:      coin,
		Date:      domain.FormatDate(s.now()),
		Sentiment: text,
		Price:     usd.Price,
	}
	id, err := s.repo.Insert(ctx, rec)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store sentiment for %s: %w", coin, err)
	}
	rec.ID = id

	log.Debug("sentiment stored", "coin", coin, "id", id)
	return rec, nil
}

// GetSentimentHistory returns up to domain.HistoryLimit records, newest first.
func (s *SentimentService) GetSentimentHistory(ctx context.Context, coin string) ([]domain.SentimentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.history")
	defer span.End()

	coin = domain.NormalizeSymbol(coin)
	if coin == "" {
		return nil, ErrEmptyCoin
	}
	return s.repo.History(ctx, coin, domain.HistoryLimit)
}

// GetLastSentiment returns the newest record for coin, or nil if none exist.
func (s *SentimentService) GetLastSentiment(ctx context.Context, coin string) (*domain.SentimentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.last")
	defer span.End()

	coin = domain.NormalizeSymbol(coin)
	if coin == "" {
		return nil, ErrEmptyCoin
	}
	return s.repo.Last(ctx, coin)
}

// ListAllSentiments returns every coin with stored history, ascending.
func (s *SentimentService) ListAllSentiments(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.list")
	defer span.End()

	return s.repo.Coins(ctx)
}

// DeleteSentimentHistory removes every record for coin. Deleting a coin
// with no history is not an error.
func (s *SentimentService) DeleteSentimentHistory(ctx context.Context, coin string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.delete")
	defer span.End()

	coin = domain.NormalizeSymbol(coin)
	if coin == "" {
		return 0, ErrEmptyCoin
	}
	n, err := s.repo.DeleteCoin(ctx, coin)
	if err != nil {
		return 0, err
	}
	log.Debug("sentiment history deleted", "coin", coin, "rows", n)
	return n, nil
}

// quote serves from the Redis cache when possible and falls back to the
// rate-limited provider.
func (s *SentimentService) quote(ctx context.Context, coin string) (*domain.CoinQuote, error) {
	if s.redis != nil {
		cached, err := s.getQuoteCache(ctx, coin)
		if err != nil {
			log.Warn("quote cache read error", "coin", coin, "err", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	quote, err := s.fetcher.FetchCoinData(ctx, coin)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.setQuoteCache(ctx, coin, quote); err != nil {
			log.Warn("quote cache write error", "coin", coin, "err", err)
		}
	}
	return quote, nil
}

func quoteCacheKey(coin string) string {
	return "quote:" + coin
}

func (s *SentimentService) setQuoteCache(ctx context.Context, coin string, quote *domain.CoinQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, quoteCacheKey(coin), data, s.cacheTTL).Err()
}

func (s *SentimentService) getQuoteCache(ctx context.Context, coin string) (*domain.CoinQuote, error) {
	ctx, span := s.tracer.Start(ctx, "quote-cache.get")
	defer span.End()

	data, err := s.redis.Get(ctx, quoteCacheKey(coin)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var quote domain.CoinQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
