package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/internal/infrastructure/journal"
	"github.com/exhibitly/backend/repository"
	"github.com/exhibitly/backend/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Config controls how the journal is drained.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Backoff     time.Duration
	// Retention reaps journal entries older than this before each drain,
	// whatever their state. Zero disables reaping. Requeue refreshes an
	// entry's timestamp, so an actively retried run is never reaped.
	Retention time.Duration
}

// Engine executes journaled mutation envelopes step by step. Each entry runs
// its steps in declared order; completed steps are checkpointed so a retry or
// a restart resumes with only the remaining work. Step failures requeue the
// entry with exponential backoff until attempts are exhausted, at which point
// the resource is marked ERROR.
type Engine struct {
	journal   *journal.Store
	resources repository.ResourceRepository
	monitor   ConnectionHealth
	steps     []Step
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       Config

	kick     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
	draining sync.Mutex
}

// Step is one idempotent unit of asset processing. Run must be safe to invoke
// again after a partial failure of a sibling step.
type Step interface {
	Name() string
	Run(ctx context.Context, env *domain.MutationEnvelope) error
}

func NewEngine(
	store *journal.Store,
	resources repository.ResourceRepository,
	monitor ConnectionHealth,
	steps []Step,
	logger *zap.Logger,
	cfg Config,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		journal:   store,
		resources: resources,
		monitor:   monitor,
		steps:     steps,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
		kick:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = e.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := e.Drain(ctx); err != nil {
			e.logger.Error("workflow drain failed", zap.Error(err))
		}
	})

	return e
}

// Start launches the scheduler and the immediate-drain listener.
func (e *Engine) Start() {
	if e == nil || e.cron == nil {
		return
	}
	e.cron.Start()
	go e.listen()
	e.logger.Info("workflow engine started")
}

// Stop gracefully stops the scheduler.
func (e *Engine) Stop(ctx context.Context) {
	if e == nil || e.cron == nil {
		return
	}
	e.stopOnce.Do(func() { close(e.stopped) })
	stopCtx := e.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	e.logger.Info("workflow engine stopped")
}

// Dispatch journals the envelope and returns its execution handle. The entry
// is durable before Dispatch returns; actual processing happens on the drain
// path, kicked immediately when possible.
func (e *Engine) Dispatch(ctx context.Context, env domain.MutationEnvelope) (string, error) {
	if e == nil || e.journal == nil {
		return "", fmt.Errorf("workflow engine not configured")
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	entry := &journal.Entry{
		EntityID:   env.EntityID,
		CustomerID: env.Actor.CustomerID,
		Kind:       string(env.Entity.Kind),
		Action:     string(env.Action),
		Envelope:   payload,
	}
	if err := e.journal.Enqueue(entry); err != nil {
		return "", err
	}

	select {
	case e.kick <- struct{}{}:
	default:
	}
	return entry.ID, nil
}

// Drain processes one batch of ready entries synchronously.
func (e *Engine) Drain(ctx context.Context) error {
	if e == nil || e.journal == nil {
		return nil
	}
	if e.monitor != nil && !e.monitor.IsOnline() {
		e.logger.Debug("skipping workflow drain (offline)")
		return nil
	}

	// One drain at a time; the kick listener and the cron schedule may race.
	e.draining.Lock()
	defer e.draining.Unlock()

	if e.cfg.Retention > 0 {
		if err := e.journal.Cleanup(time.Now().Add(-e.cfg.Retention)); err != nil {
			e.logger.Warn("journal cleanup failed", zap.Error(err))
		}
	}

	entries, err := e.journal.GetBatch(e.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range entries {
		e.processEntry(ctx, &entries[i])
	}
	return nil
}

// PendingForEntity reports whether a journaled run still references the entity.
func (e *Engine) PendingForEntity(entityID string) (bool, error) {
	return e.journal.PendingForEntity(entityID)
}

// Size returns the number of journaled entries.
func (e *Engine) Size() int {
	if e == nil || e.journal == nil {
		return 0
	}
	size, err := e.journal.Size()
	if err != nil {
		return 0
	}
	return size
}

func (e *Engine) listen() {
	for {
		select {
		case <-e.kick:
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Interval)
			if err := e.Drain(ctx); err != nil {
				e.logger.Error("workflow drain failed", zap.Error(err))
			}
			cancel()
		case <-e.stopped:
			return
		}
	}
}

func (e *Engine) processEntry(ctx context.Context, entry *journal.Entry) {
	var env domain.MutationEnvelope
	if err := json.Unmarshal(entry.Envelope, &env); err != nil {
		e.logger.Error("dropping undecodable journal entry",
			zap.String("execution_id", entry.ID), zap.Error(err))
		_ = e.journal.Remove(entry)
		return
	}

	log := e.logger.With(
		zap.String("execution_id", entry.ID),
		zap.String("entity_id", entry.EntityID),
		zap.String("action", entry.Action))

	for _, step := range e.steps {
		if entry.Done(step.Name()) {
			continue
		}
		if err := step.Run(ctx, &env); err != nil {
			e.handleStepFailure(ctx, entry, &env, step.Name(), err, log)
			return
		}
		entry.Checkpoint(step.Name())
		if err := e.journal.Save(entry); err != nil {
			log.Warn("failed to persist step checkpoint",
				zap.String("step", step.Name()), zap.Error(err))
		}
	}

	e.finalize(ctx, entry, &env, log)
}

func (e *Engine) handleStepFailure(ctx context.Context, entry *journal.Entry, env *domain.MutationEnvelope, step string, err error, log *zap.Logger) {
	log = log.With(zap.String("step", step), zap.Error(err))

	// Input errors never heal on retry.
	if domain.IsDomainError(err, domain.ErrCodeInvalid) {
		log.Error("workflow step failed fatally")
		e.markError(ctx, env)
		_ = e.journal.Remove(entry)
		return
	}

	entry.Attempts++
	if entry.Attempts >= e.cfg.MaxAttempts {
		log.Error("workflow step failed, attempts exhausted", zap.Int("attempts", entry.Attempts))
		e.markError(ctx, env)
		_ = e.journal.Remove(entry)
		return
	}

	backoff := e.cfg.Backoff * time.Duration(1<<uint(entry.Attempts-1))
	log.Warn("workflow step failed, requeued",
		zap.Int("attempts", entry.Attempts),
		zap.Duration("backoff", backoff))
	if err := e.journal.Requeue(entry, backoff); err != nil {
		log.Error("failed to requeue journal entry", zap.Error(err))
	}
}

func (e *Engine) finalize(ctx context.Context, entry *journal.Entry, env *domain.MutationEnvelope, log *zap.Logger) {
	if env.Action != domain.ActionDelete {
		status := domain.StatusActive
		if _, err := e.resources.Patch(ctx, env.Entity.Kind, env.EntityID, repository.ResourcePatch{Status: &status}); err != nil {
			// The record may have been deleted while the run was in flight;
			// that race resolves itself through the delete envelope.
			if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
				log.Error("failed to activate resource", zap.Error(err))
				if err := e.journal.Requeue(entry, e.cfg.Backoff); err != nil {
					log.Error("failed to requeue journal entry", zap.Error(err))
				}
				return
			}
		}
	}

	if err := e.journal.Remove(entry); err != nil {
		log.Warn("failed to purge completed journal entry", zap.Error(err))
	}
	log.Info("workflow run completed", zap.Int("attempts", entry.Attempts))
}

func (e *Engine) markError(ctx context.Context, env *domain.MutationEnvelope) {
	if env.Action == domain.ActionDelete {
		// The record is already gone; there is no status to transition.
		return
	}
	status := domain.StatusError
	if _, err := e.resources.Patch(ctx, env.Entity.Kind, env.EntityID, repository.ResourcePatch{Status: &status}); err != nil {
		if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
			e.logger.Error("failed to mark resource errored",
				zap.String("entity_id", env.EntityID), zap.Error(err))
		}
	}
}

var _ usecase.Dispatcher = (*Engine)(nil)
