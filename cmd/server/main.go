// Command server starts the interview HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/ai-interviewer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/repo/redisstore"
	"github.com/fairyhunter13/ai-interviewer/internal/adapter/speech/groq"
	tikaext "github.com/fairyhunter13/ai-interviewer/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/ai-interviewer/internal/app"
	"github.com/fairyhunter13/ai-interviewer/internal/config"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
	"github.com/fairyhunter13/ai-interviewer/internal/usecase"
)

// redisPinger adapts *redis.Client to the readiness check interface.
type redisPinger struct{ *redis.Client }

func (r redisPinger) Ping(ctx context.Context) app.RedisPingResult { return r.Client.Ping(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
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

	producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = producer.Close() }()

	aicl := openrouter.New(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.ChatModel, cfg.ChatTimeout)
	recoverer := ai.NewRecoverer(aicl)
	counter := tokencount.NewCounter()

	gen := usecase.NewQuestionGenerator(aicl, recoverer, counter, cfg.ChatModel, cfg.PromptTokenCap)
	eval := usecase.NewEvaluator(aicl, recoverer)
	profiles := usecase.NewProfileExtractor(aicl, recoverer, counter, cfg.ChatModel, cfg.PromptTokenCap)
	transcriber := groq.NewTranscriber(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.TranscribeModel, cfg.ChatTimeout)
	synthesizer := groq.NewSynthesizer(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.TTSModel, cfg.TTSVoice, cfg.ChatTimeout)

	interviews := usecase.NewInterviewService(store, sessionRepo, answerRepo, producer, gen, eval, profiles, transcriber, synthesizer)
	results := usecase.NewResultService(sessionRepo, answerRepo, assessmentRepo)

	ext := tikaext.New(cfg.TikaURL)
	dbCheck, redisCheck, tikaCheck := app.BuildReadinessChecks(cfg, pool, redisPinger{rdb})

	srv := httpserver.NewServer(cfg, interviews, results, ext, dbCheck, redisCheck, tikaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
