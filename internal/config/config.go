package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath           string
	ServerPort       string
	LogLevel         string
	SportsConfigPath string

	// Provider adapters. An empty API key disables that adapter.
	OddsAPIKey       string
	OddsAPIBaseURL   string
	OddsAPIRegions   string
	ScoresAPIKey     string
	ScoresAPIBaseURL string

	// Cadences. The sweep interval must stay short relative to the live
	// ceilings in the sports catalog, otherwise a silently abandoned match
	// can sit in the live view for a whole extra ceiling window.
	OddsPollInterval   time.Duration
	ScoresPollInterval time.Duration
	SweepInterval      time.Duration
	PredictionInterval time.Duration
	VerifyInterval     time.Duration
	BackfillInterval   time.Duration

	// Pipeline tuning.
	FreshnessWindow time.Duration // how long a live match may go without updates before the sweeper acts
	VerifyWindow    time.Duration // recently-completed scan window for the verification pass
	BackfillWindow  time.Duration // wide window for the low-frequency backfill pass
	MinBookmakers   int           // minimum distinct bookmakers before a prediction is made
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "funbet.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		SportsConfigPath: getEnv("SPORTS_CONFIG_PATH", ""),

		OddsAPIKey:       getEnv("ODDS_API_KEY", ""),
		OddsAPIBaseURL:   getEnv("ODDS_API_BASE_URL", "https://api.the-odds-api.com"),
		OddsAPIRegions:   getEnv("ODDS_API_REGIONS", "us,uk,eu"),
		ScoresAPIKey:     getEnv("SCORES_API_KEY", ""),
		ScoresAPIBaseURL: getEnv("SCORES_API_BASE_URL", "https://v3.football.api-sports.io"),

		OddsPollInterval:   getDuration("ODDS_POLL_INTERVAL", 60*time.Second),
		ScoresPollInterval: getDuration("SCORES_POLL_INTERVAL", 30*time.Second),
		SweepInterval:      getDuration("SWEEP_INTERVAL", 10*time.Minute),
		PredictionInterval: getDuration("PREDICTION_INTERVAL", 5*time.Minute),
		VerifyInterval:     getDuration("VERIFY_INTERVAL", 5*time.Minute),
		BackfillInterval:   getDuration("BACKFILL_INTERVAL", 6*time.Hour),

		FreshnessWindow: getDuration("FRESHNESS_WINDOW", 30*time.Minute),
		VerifyWindow:    getDuration("VERIFY_WINDOW", 24*time.Hour),
		BackfillWindow:  getDuration("BACKFILL_WINDOW", 14*24*time.Hour),
		MinBookmakers:   getInt("MIN_BOOKMAKERS", 3),
	}

	if cfg.MinBookmakers < 1 {
		return nil, fmt.Errorf("MIN_BOOKMAKERS must be at least 1, got %d", cfg.MinBookmakers)
	}
	if cfg.OddsAPIKey == "" && cfg.ScoresAPIKey == "" {
		logger.Warn().Msg("no provider API keys configured, only manually submitted fragments will be ingested")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("sweep_interval", cfg.SweepInterval).
		Dur("verify_interval", cfg.VerifyInterval).
		Int("min_bookmakers", cfg.MinBookmakers).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
