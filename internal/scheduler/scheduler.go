package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/config"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/constants"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/metrics"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/prediction"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/providers"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/service"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sweeper"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/verification"
)

// Scheduler drives every periodic task on its own cadence: provider polls,
// the staleness sweep, the prediction pass, the verification pass and the
// wide backfill. None of them blocks another. Each task is also exposed as a
// manual trigger for the admin endpoints.
type Scheduler struct {
	providers   []providers.Provider
	ingest      *service.IngestService
	sweeper     *sweeper.Sweeper
	predictions *prediction.Service
	verifier    *verification.Verifier
	metrics     *metrics.PipelineMetrics
	cfg         *config.Config
	logger      zerolog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(
	provs []providers.Provider,
	ingest *service.IngestService,
	sw *sweeper.Sweeper,
	preds *prediction.Service,
	verifier *verification.Verifier,
	pm *metrics.PipelineMetrics,
	cfg *config.Config,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		providers:   provs,
		ingest:      ingest,
		sweeper:     sw,
		predictions: preds,
		verifier:    verifier,
		metrics:     pm,
		cfg:         cfg,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start launches all periodic loops. Each loop runs its task once
// immediately, then on its ticker.
func (s *Scheduler) Start(ctx context.Context) {
	for _, p := range s.providers {
		s.wg.Add(1)
		go func(p providers.Provider) {
			defer s.wg.Done()
			s.pollProvider(ctx, p)
		}(p)
	}

	s.loop(ctx, "staleness_sweep", s.cfg.SweepInterval, s.RunSweep)
	s.loop(ctx, "prediction_pass", s.cfg.PredictionInterval, s.RunPredictions)
	s.loop(ctx, "verification_pass", s.cfg.VerifyInterval, s.RunVerification)
	s.loop(ctx, "verification_backfill", s.cfg.BackfillInterval, s.RunBackfill)

	s.logger.Info().
		Int("providers", len(s.providers)).
		Msg("scheduler started")
}

// Stop shuts all loops down and waits for in-flight passes to reach a
// record boundary.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// RunSweep triggers one staleness sweep outside the regular cadence.
func (s *Scheduler) RunSweep(ctx context.Context) error { return s.sweeper.Run(ctx) }

// RunPredictions triggers one prediction pass.
func (s *Scheduler) RunPredictions(ctx context.Context) error { return s.predictions.Run(ctx) }

// RunVerification triggers one verification pass over the recency window.
func (s *Scheduler) RunVerification(ctx context.Context) error { return s.verifier.Run(ctx) }

// RunBackfill triggers the wide verification backfill.
func (s *Scheduler) RunBackfill(ctx context.Context) error { return s.verifier.Backfill(ctx) }

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.runTask(ctx, name, run)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runTask(ctx, name, run)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) runTask(ctx context.Context, name string, run func(context.Context) error) {
	taskCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	start := time.Now()
	if err := run(taskCtx); err != nil {
		s.logger.Error().Err(err).Str("task", name).Msg("periodic task failed, retrying next cycle")
		return
	}
	s.logger.Debug().Str("task", name).Dur("duration", time.Since(start)).Msg("periodic task complete")
}

func (s *Scheduler) pollProvider(ctx context.Context, p providers.Provider) {
	s.pollOnce(ctx, p)

	ticker := time.NewTicker(p.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.pollOnce(ctx, p)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) pollOnce(ctx context.Context, p providers.Provider) {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	fragments, err := p.FetchFragments(fetchCtx)
	cancel()
	if err != nil {
		// No fragments this cycle; the pipeline stays live.
		s.metrics.ProviderPollErrors.WithLabelValues(p.Name()).Inc()
		s.logger.Warn().Err(err).Str("provider", p.Name()).Msg("provider poll yielded no fragments")
		return
	}
	if len(fragments) == 0 {
		return
	}

	ingestCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	if err := s.ingest.SubmitAll(ingestCtx, fragments); err != nil {
		s.logger.Warn().Err(err).Str("provider", p.Name()).Msg("fragment batch interrupted")
		return
	}
	s.logger.Debug().
		Str("provider", p.Name()).
		Int("fragments", len(fragments)).
		Msg("provider poll complete")
}
