// Command worker consumes assessment tasks from the queue, aggregates
// interview results and persists the final assessment.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/ai-interviewer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/repo/redisstore"
	"github.com/fairyhunter13/ai-interviewer/internal/config"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
	"github.com/fairyhunter13/ai-interviewer/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	// Dedicated /metrics endpoint so queue metrics are scrapable.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: ":9090", Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis url invalid", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	sessionRepo := postgres.NewSessionRepo(pool)
	answerRepo := postgres.NewAnswerRepo(pool)
	assessmentRepo := postgres.NewAssessmentRepo(pool)
	store := redisstore.New(rdb, cfg.SessionTTL, cfg.SessionLockTTL)

	aicl := openrouter.New(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.ChatModel, cfg.ChatTimeout)
	recoverer := ai.NewRecoverer(aicl)
	aggregator := usecase.NewAggregator(aicl, recoverer)
	assessments := usecase.NewAssessmentService(aggregator, store, sessionRepo, answerRepo, assessmentRepo)

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, assessments, cfg.ConsumerMaxConcurrency, cfg.ConsumerBackoffMax)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Start(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("consumer error", slog.Any("error", err))
		}
	}()

	<-runCtx.Done()
	slog.Info("worker stopped")
}
