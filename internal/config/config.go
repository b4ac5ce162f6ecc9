package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quizgen-service"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres   Postgres
	Redis      Redis
	Security   Security
	Model      Model
	Generation Generation
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cooldown-store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for bearer-token validation.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
}

// Model configures the generative-AI backend.
type Model struct {
	Provider        string        `env:"MODEL_PROVIDER" envDefault:"gemini"`
	BaseURL         string        `env:"MODEL_BASE_URL"`
	APIKey          string        `env:"MODEL_API_KEY"`
	Name            string        `env:"MODEL_NAME" envDefault:"gemini-2.0-flash"`
	HTTPTimeout     time.Duration `env:"MODEL_HTTP_TIMEOUT" envDefault:"45s"`
	MaxOutputTokens int           `env:"MODEL_MAX_OUTPUT_TOKENS" envDefault:"8192"`
}

// Generation groups quiz-generation runtime defaults.
type Generation struct {
	Cooldown        time.Duration `env:"GENERATION_COOLDOWN" envDefault:"60s"`
	DevErrorDetails bool          `env:"DEV_ERROR_DETAILS" envDefault:"false"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
