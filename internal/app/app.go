package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepstack/quizgen/internal/auth/jwt"
	"github.com/prepstack/quizgen/internal/config"
	"github.com/prepstack/quizgen/internal/db/repository"
	"github.com/prepstack/quizgen/internal/genai"
	"github.com/prepstack/quizgen/internal/logging"
	"github.com/prepstack/quizgen/internal/metrics"
	"github.com/prepstack/quizgen/internal/quiz"
	"github.com/prepstack/quizgen/internal/server"
)

// Application aggregates shared infrastructure (DB, cooldown store, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps config, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Name,
	})

	model, err := buildModelClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	quizRepo := repository.NewQuizRepository(pool)
	cooldowns := quiz.NewRedisCooldownStore(redisClient, 0)
	limiter := quiz.NewRateLimiter(cooldowns, cfg.Generation.Cooldown)
	m := metrics.New(prometheus.DefaultRegisterer)

	quizSvc := quiz.NewService(quizRepo, limiter, model, m, logger)
	quizHandler := quiz.NewHandler(quizSvc, logger, cfg.Generation.DevErrorDetails)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, tokens, quizHandler)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

func buildModelClient(cfg *config.App, logger zerolog.Logger) (genai.TextGenerator, error) {
	if cfg.Model.APIKey == "" {
		logger.Warn().Msg("MODEL_API_KEY not configured; AI generation tier disabled")
		return nil, nil
	}

	switch strings.ToLower(cfg.Model.Provider) {
	case "gemini", "":
		return genai.NewGeminiClient(genai.Config{
			BaseURL:         cfg.Model.BaseURL,
			APIKey:          cfg.Model.APIKey,
			Model:           cfg.Model.Name,
			Timeout:         cfg.Model.HTTPTimeout,
			MaxOutputTokens: cfg.Model.MaxOutputTokens,
		}, logger), nil
	case "openai":
		return genai.NewOpenAIClient(cfg.Model.APIKey, cfg.Model.BaseURL, cfg.Model.Name, cfg.Model.MaxOutputTokens, logger), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
