package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/exhibitly/backend/asset"
	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
	"github.com/exhibitly/backend/usecase"
)

// PendingChecker reports whether a workflow run is still journaled for an
// entity.
type PendingChecker interface {
	PendingForEntity(entityID string) (bool, error)
}

// Config controls the sweep cadence and what counts as stale.
type Config struct {
	Interval  time.Duration
	Threshold time.Duration
}

// Sweeper repairs the accepted inconsistency window of fire-and-forget
// dispatch: a resource whose store mutation succeeded but whose workflow
// dispatch was lost stays PROCESSING forever. The sweep finds PROCESSING
// resources older than the threshold with no journaled run and re-dispatches
// their full asset add-set.
type Sweeper struct {
	resources  repository.ResourceRepository
	dispatcher usecase.Dispatcher
	pending    PendingChecker
	logger     *zap.Logger
	cron       *cron.Cron
	cfg        Config
}

func New(
	resources repository.ResourceRepository,
	dispatcher usecase.Dispatcher,
	pending PendingChecker,
	logger *zap.Logger,
	cfg Config,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		resources:  resources,
		dispatcher: dispatcher,
		pending:    pending,
		logger:     logger,
		cfg:        cfg,
		cron:       cron.New(),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("reconciliation sweep failed", zap.Error(err))
		}
	})

	return s
}

func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("reconciliation sweeper started")
}

func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("reconciliation sweeper stopped")
}

// Sweep runs one reconciliation pass across all resource kinds.
func (s *Sweeper) Sweep(ctx context.Context) error {
	olderThan := time.Now().Add(-s.cfg.Threshold)
	for _, kind := range []domain.Kind{domain.KindInstitution, domain.KindExhibition, domain.KindExhibit} {
		stale, err := s.resources.ListStale(ctx, kind, olderThan)
		if err != nil {
			return err
		}
		for i := range stale {
			s.redispatch(ctx, &stale[i])
		}
	}
	return nil
}

func (s *Sweeper) redispatch(ctx context.Context, res *domain.Resource) {
	pending, err := s.pending.PendingForEntity(res.ID)
	if err != nil {
		s.logger.Warn("pending check failed", zap.String("entity_id", res.ID), zap.Error(err))
		return
	}
	if pending {
		// Slow, not lost. The journaled run will finish or exhaust retries.
		return
	}

	env := domain.MutationEnvelope{
		EntityID: res.ID,
		Entity:   *res,
		Action:   domain.ActionUpdate,
		Actor:    domain.Actor{CustomerID: res.CustomerID},
		Assets:   asset.Diff(nil, res),
	}
	handle, err := s.dispatcher.Dispatch(ctx, env)
	if err != nil {
		s.logger.Error("re-dispatch failed", zap.String("entity_id", res.ID), zap.Error(err))
		return
	}
	s.logger.Warn("re-dispatched stale resource",
		zap.String("entity_id", res.ID),
		zap.String("kind", string(res.Kind)),
		zap.String("execution_handle", handle))
}
