package repository

import (
	"context"
	"database/sql"

	"crypto-sentiment/internal/domain"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store is the subset of *db.Store the repository needs.
type Store interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectMany(ctx context.Context, dest any, query string, args ...any) error
	SelectOne(ctx context.Context, dest any, query string, args ...any) (bool, error)
}

type SentimentRepository struct {
	store  Store
	tracer trace.Tracer
}

func NewSentimentRepository(store Store, tracer trace.Tracer) *SentimentRepository {
	return &SentimentRepository{store: store, tracer: tracer}
}

// Insert stores rec and returns the id the database assigned to it.
func (r *SentimentRepository) Insert(ctx context.Context, rec *domain.SentimentRecord) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "sentiment-repo.insert")
	defer span.End()
	span.SetAttributes(attribute.String("coin", rec.Coin))

	var id int64
	_, err := r.store.SelectOne(ctx, &id,
		`INSERT INTO sentiment_history (coin, date, sentiment, price)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`,
		rec.Coin, rec.Date, rec.Sentiment, rec.Price,
	)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return id, nil
}

// History returns up to limit records for coin, newest first.
func (r *SentimentRepository) History(ctx context.Context, coin string, limit int) ([]domain.SentimentRecord, error) {
	ctx, span := r.tracer.Start(ctx, "sentiment-repo.history")
	defer span.End()
	span.SetAttributes(attribute.String("coin", coin), attribute.Int("limit", limit))

	var records []domain.SentimentRecord
	err := r.store.SelectMany(ctx, &records,
		`SELECT id, coin, date, sentiment, price
		 FROM sentiment_history
		 WHERE coin = ?
		 ORDER BY date DESC, id DESC
		 LIMIT ?`,
		coin, limit,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records, nil
}

// Last returns the newest record for coin, or nil if there is none.
func (r *SentimentRepository) Last(ctx context.Context, coin string) (*domain.SentimentRecord, error) {
	ctx, span := r.tracer.Start(ctx, "sentiment-repo.last")
	defer span.End()
	span.SetAttributes(attribute.String("coin", coin))

	var rec domain.SentimentRecord
	found, err := r.store.SelectOne(ctx, &rec,
		`SELECT id, coin, date, sentiment, price
		 FROM sentiment_history
		 WHERE coin = ?
		 ORDER BY date DESC, id DESC
		 LIMIT 1`,
		coin,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// Coins lists every distinct coin with history, alphabetically.
func (r *SentimentRepository) Coins(ctx context.Context) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "sentiment-repo.coins")
	defer span.End()

	var coins []string
	if err := r.store.SelectMany(ctx, &coins,
		`SELECT DISTINCT coin FROM sentiment_history ORDER BY coin`,
	); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return coins, nil
}

// DeleteCoin removes all history for coin and reports how many rows went.
func (r *SentimentRepository) DeleteCoin(ctx context.Context, coin string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "sentiment-repo.delete-coin")
	defer span.End()
	span.SetAttributes(attribute.String("coin", coin))

	res, err := r.store.Exec(ctx, `DELETE FROM sentiment_history WHERE coin = ?`, coin)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report a count; the delete itself succeeded.
		log.Debug("rows affected unavailable after delete", "coin", coin, "err", err)
		return 0, nil
	}
	return n, nil
}
