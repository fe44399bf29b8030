package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"crypto-sentiment/internal/cache"
	"crypto-sentiment/internal/cli"
	"crypto-sentiment/internal/config"
	"crypto-sentiment/internal/db"
	"crypto-sentiment/internal/provider"
	"crypto-sentiment/internal/repository"
	"crypto-sentiment/internal/sentiment"
	"crypto-sentiment/internal/service"
	"crypto-sentiment/pkg/tracing"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc    = godotenv.Load
	loadConfigFunc = config.Load
	initTracerFunc = tracing.InitTracer
	openStoreFunc  = openStore
	newRedisFunc   = cache.NewRedis
	newFetcherFunc = func(tracer trace.Tracer, cfg *config.Config) service.QuoteFetcher {
		return provider.NewCoinMarketCapProvider(
			tracer,
			cfg.CoinMarketCapBaseURL,
			cfg.CoinMarketCapAPIKey,
			time.Duration(cfg.FetchMinIntervalMs)*time.Millisecond,
			time.Duration(cfg.RequestTimeoutSecs)*time.Second,
		)
	}
	newLLMClientFunc            = sentiment.NewOpenAIClient
	setupSignalNotify           = signal.Notify
	exitFunc                    = os.Exit
	stdout            io.Writer = os.Stdout
	stderr            io.Writer = os.Stderr
)

func main() {
	exitFunc(run(os.Args[1:]))
}

func run(args []string) int {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	setLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cli.NeedsStore(args) {
		return cli.NewRunner(nil, stdout, stderr).Run(ctx, args)
	}

	tp, tracer, err := initTracerFunc(ctx, tracing.Options{
		Enabled:        cfg.TracingEnabled,
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cli.Version,
	})
	if err != nil {
		log.Error("failed to initialize tracer", "err", err)
		return cli.ExitError
	}

	store, err := openStoreFunc(ctx, cfg)
	if err != nil {
		log.Error("failed to open database", "err", err)
		_ = tp.Shutdown(context.Background())
		return cli.ExitError
	}

	// Left nil when Redis is not configured or unreachable so the service
	// sees a nil interface and skips the cache.
	var quoteCache service.RedisClient
	var closeRedis func() error
	if cfg.RedisURL != "" {
		client, err := newRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, continuing without quote cache", "err", err)
		} else {
			quoteCache = client
			closeRedis = client.Close
		}
	}

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			if closeRedis != nil {
				if err := closeRedis(); err != nil {
					log.Warn("error closing redis", "err", err)
				}
			}
			if err := store.Close(); err != nil {
				log.Warn("error closing database", "err", err)
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn("error shutting down tracer provider", "err", err)
			}
		})
	}
	defer shutdown()

	repo := repository.NewSentimentRepository(store, tracer)
	generator := sentiment.NewGenerator(tracer, newLLMClientFunc(cfg.SentimentBaseURL, cfg.SentimentAPIKey), cfg.SentimentModel)
	svc := service.NewSentimentService(
		tracer,
		newFetcherFunc(tracer, cfg),
		generator,
		repo,
		quoteCache,
		time.Duration(cfg.QuoteCacheTTLSecs)*time.Second,
	)
	runner := cli.NewRunner(svc, stdout, stderr)

	// Once signaled, the in-flight command is abandoned: its output is
	// muted and run reports success, so the only exit status is 0.
	var signaled atomic.Bool
	quit := make(chan os.Signal, 1)
	done := make(chan struct{})
	defer close(done)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-quit:
			runner.Mute()
			signaled.Store(true)
			log.Info("received signal, shutting down", "signal", sig.String())
			cancel()
			shutdown()
			exitFunc(cli.ExitOK)
		case <-done:
		}
	}()

	code := runner.Run(ctx, args)
	if signaled.Load() {
		return cli.ExitOK
	}
	return code
}

func openStore(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	var (
		store *db.Store
		err   error
	)
	if cfg.UsePostgres() {
		store, err = db.OpenPostgres(cfg.DatabaseURL)
	} else {
		store, err = db.OpenSQLite(cfg.DatabasePath)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func setLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warn("invalid LOG_LEVEL, using info", "value", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
