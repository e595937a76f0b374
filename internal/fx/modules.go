package fx

import (
	"database/sql"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/config"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/database"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/identity"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/logger"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/metrics"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/prediction"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/providers"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/reconcile"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/repository"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/scheduler"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/server"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/service"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sports"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sweeper"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/verification"
)

func ProvideCatalog(cfg *config.Config, log zerolog.Logger) (*sports.Catalog, error) {
	return sports.Load(cfg.SportsConfigPath, log)
}

func ProvideMatchStore(db *sql.DB, log zerolog.Logger) repository.MatchStore {
	return repository.NewMatchRepository(db, log)
}

func ProvidePredictionStore(db *sql.DB, log zerolog.Logger) repository.PredictionStore {
	return repository.NewPredictionRepository(db, log)
}

func ProvideSweeper(matches repository.MatchStore, catalog *sports.Catalog, cfg *config.Config, pm *metrics.PipelineMetrics, log zerolog.Logger) *sweeper.Sweeper {
	return sweeper.New(matches, catalog, cfg.FreshnessWindow, pm, log)
}

func ProvidePredictionService(matches repository.MatchStore, predictions repository.PredictionStore, catalog *sports.Catalog, cfg *config.Config, pm *metrics.PipelineMetrics, log zerolog.Logger) *prediction.Service {
	return prediction.NewService(matches, predictions, catalog, cfg.MinBookmakers, pm, log)
}

func ProvideVerifier(matches repository.MatchStore, predictions repository.PredictionStore, catalog *sports.Catalog, cfg *config.Config, pm *metrics.PipelineMetrics, log zerolog.Logger) *verification.Verifier {
	return verification.New(matches, predictions, catalog, cfg.VerifyWindow, cfg.BackfillWindow, pm, log)
}

// ProvideProviders wires only the adapters that have credentials; an adapter
// without a key would spend its whole cadence collecting auth errors.
func ProvideProviders(cfg *config.Config, catalog *sports.Catalog, log zerolog.Logger) []providers.Provider {
	var provs []providers.Provider
	if cfg.OddsAPIKey != "" {
		provs = append(provs, providers.NewOddsAPIProvider(cfg.OddsAPIKey, cfg.OddsAPIBaseURL, cfg.OddsAPIRegions, cfg.OddsPollInterval, catalog, log))
	}
	if cfg.ScoresAPIKey != "" {
		provs = append(provs, providers.NewLiveScoreProvider(cfg.ScoresAPIKey, cfg.ScoresAPIBaseURL, cfg.ScoresPollInterval, log))
	}
	return provs
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(metrics.New),
	fx.Provide(ProvideCatalog),
	// stores
	fx.Provide(ProvideMatchStore),
	fx.Provide(ProvidePredictionStore),
	// pipeline core
	fx.Provide(identity.NewNormalizer),
	fx.Provide(identity.NewResolver),
	fx.Provide(reconcile.NewEngine),
	fx.Provide(service.NewIngestService),
	fx.Provide(service.NewQueryService),
	// periodic tasks
	fx.Provide(ProvideSweeper),
	fx.Provide(ProvidePredictionService),
	fx.Provide(ProvideVerifier),
	fx.Provide(ProvideProviders),
	fx.Provide(scheduler.New),
	// server
	fx.Provide(server.New),
)
