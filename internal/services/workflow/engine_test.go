package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibitly/backend/asset"
	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/internal/infrastructure/journal"
	"github.com/exhibitly/backend/repository"
	"github.com/exhibitly/backend/usecase"
)

type health bool

func (h health) IsOnline() bool { return bool(h) }

type fakeRepo struct {
	mu       sync.Mutex
	statuses map[string]domain.Status
	patchErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{statuses: make(map[string]domain.Status)}
}

func (r *fakeRepo) statusOf(id string) domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[id]
}

func (r *fakeRepo) Get(ctx context.Context, kind domain.Kind, id, customerID string) (*domain.Resource, error) {
	return nil, domain.ErrResourceNotFound
}

func (r *fakeRepo) Create(ctx context.Context, res *domain.Resource) error { return nil }

func (r *fakeRepo) Patch(ctx context.Context, kind domain.Kind, id string, patch repository.ResourcePatch) (*domain.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.patchErr != nil {
		return nil, r.patchErr
	}
	if patch.Status != nil {
		r.statuses[id] = *patch.Status
	}
	return &domain.Resource{ID: id, Kind: kind, Status: r.statuses[id]}, nil
}

func (r *fakeRepo) Update(ctx context.Context, res *domain.Resource) error { return nil }

func (r *fakeRepo) Remove(ctx context.Context, kind domain.Kind, id string) error { return nil }

func (r *fakeRepo) QueryByOwner(ctx context.Context, kind domain.Kind, customerID string, q repository.OwnerQuery) (repository.Page, error) {
	return repository.Page{}, nil
}

func (r *fakeRepo) ListStale(ctx context.Context, kind domain.Kind, olderThan time.Time) ([]domain.Resource, error) {
	return nil, nil
}

type scriptedStep struct {
	name string
	errs []error // consumed per invocation; nil past the end

	mu   sync.Mutex
	runs int
}

func (s *scriptedStep) Name() string { return s.name }

func (s *scriptedStep) Run(ctx context.Context, env *domain.MutationEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.runs
	s.runs++
	if idx < len(s.errs) {
		return s.errs[idx]
	}
	return nil
}

func (s *scriptedStep) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func testEngine(t *testing.T, repo *fakeRepo, steps []Step, cfg Config) *Engine {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, repo, health(true), steps, nil, cfg)
}

func testEnvelope(action domain.Action) domain.MutationEnvelope {
	return domain.MutationEnvelope{
		EntityID: "res-1",
		Entity:   domain.Resource{ID: "res-1", Kind: domain.KindExhibit, CustomerID: "c1"},
		Action:   action,
		Actor:    domain.Actor{CustomerID: "c1"},
	}
}

func TestEngine_DispatchIsDurable(t *testing.T) {
	repo := newFakeRepo()
	engine := testEngine(t, repo, nil, Config{})

	handle, err := engine.Dispatch(context.Background(), testEnvelope(domain.ActionCreate))
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	pending, err := engine.PendingForEntity("res-1")
	require.NoError(t, err)
	assert.True(t, pending)
	assert.Equal(t, 1, engine.Size())
}

func TestEngine_DrainRunsStepsInOrder(t *testing.T) {
	repo := newFakeRepo()
	var order []string
	var mu sync.Mutex
	mk := func(name string) Step {
		return stepFunc{name: name, fn: func(context.Context, *domain.MutationEnvelope) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}}
	}
	engine := testEngine(t, repo, []Step{mk("images"), mk("audios"), mk("qr"), mk("delete"), mk("cdn")}, Config{})

	_, err := engine.Dispatch(context.Background(), testEnvelope(domain.ActionCreate))
	require.NoError(t, err)
	require.NoError(t, engine.Drain(context.Background()))

	assert.Equal(t, []string{"images", "audios", "qr", "delete", "cdn"}, order)
	assert.Equal(t, domain.StatusActive, repo.statusOf("res-1"))
	assert.Equal(t, 0, engine.Size(), "completed entry purged")
}

type stepFunc struct {
	name string
	fn   func(context.Context, *domain.MutationEnvelope) error
}

func (s stepFunc) Name() string                                           { return s.name }
func (s stepFunc) Run(ctx context.Context, env *domain.MutationEnvelope) error { return s.fn(ctx, env) }

func TestEngine_ResumeSkipsCheckpointedSteps(t *testing.T) {
	repo := newFakeRepo()
	first := &scriptedStep{name: "images"}
	second := &scriptedStep{name: "audios", errs: []error{errors.New("transient")}}
	engine := testEngine(t, repo, []Step{first, second}, Config{Backoff: time.Nanosecond})

	_, err := engine.Dispatch(context.Background(), testEnvelope(domain.ActionCreate))
	require.NoError(t, err)

	require.NoError(t, engine.Drain(context.Background()))
	assert.Equal(t, 1, first.runCount())
	assert.Equal(t, 1, second.runCount())
	assert.Equal(t, 1, engine.Size(), "failed entry requeued")

	// The backoff window is a nanosecond; the retry resumes past the
	// checkpointed first step.
	time.Sleep(time.Millisecond)
	require.NoError(t, engine.Drain(context.Background()))
	assert.Equal(t, 1, first.runCount(), "completed step not re-run")
	assert.Equal(t, 2, second.runCount())
	assert.Equal(t, domain.StatusActive, repo.statusOf("res-1"))
	assert.Equal(t, 0, engine.Size())
}

func TestEngine_FatalInputErrorMarksError(t *testing.T) {
	repo := newFakeRepo()
	bad := &scriptedStep{name: "audios", errs: []error{domain.NewError(domain.ErrCodeInvalid, "unknown voice")}}
	engine := testEngine(t, repo, []Step{bad}, Config{})

	_, err := engine.Dispatch(context.Background(), testEnvelope(domain.ActionUpdate))
	require.NoError(t, err)
	require.NoError(t, engine.Drain(context.Background()))

	assert.Equal(t, 1, bad.runCount(), "fatal errors never retry")
	assert.Equal(t, domain.StatusError, repo.statusOf("res-1"))
	assert.Equal(t, 0, engine.Size())
}

func TestEngine_ExhaustedAttemptsMarkError(t *testing.T) {
	repo := newFakeRepo()
	flaky := &scriptedStep{name: "images", errs: []error{
		errors.New("boom"), errors.New("boom"),
	}}
	engine := testEngine(t, repo, []Step{flaky}, Config{MaxAttempts: 2, Backoff: time.Nanosecond})

	_, err := engine.Dispatch(context.Background(), testEnvelope(domain.ActionCreate))
	require.NoError(t, err)

	require.NoError(t, engine.Drain(context.Background()))
	time.Sleep(time.Millisecond)
	require.NoError(t, engine.Drain(context.Background()))

	assert.Equal(t, 2, flaky.runCount())
	assert.Equal(t, domain.StatusError, repo.statusOf("res-1"))
	assert.Equal(t, 0, engine.Size())
}

func TestEngine_DeleteRunSkipsActivation(t *testing.T) {
	repo := newFakeRepo()
	engine := testEngine(t, repo, []Step{&scriptedStep{name: "delete"}}, Config{})

	_, err := engine.Dispatch(context.Background(), testEnvelope(domain.ActionDelete))
	require.NoError(t, err)
	require.NoError(t, engine.Drain(context.Background()))

	assert.Empty(t, repo.statusOf("res-1"), "delete runs never touch resource status")
	assert.Equal(t, 0, engine.Size())
}

func TestEngine_UpdatedNarrationSurvivesItsOwnRun(t *testing.T) {
	repo := newFakeRepo()
	store := newMemObjectStore()
	voices := usecase.NewVoiceRegistry()
	voices.Register("emma", fakeSynth{})

	old := &domain.Resource{
		ID: "res-1", CustomerID: "c1", Kind: domain.KindExhibit, ExhibitionID: "exh-1",
		LangOptions: []domain.LangOption{{Lang: "en", Audio: &domain.AudioSpec{Markup: "v1", Voice: "emma"}}},
	}
	fresh := *old
	fresh.LangOptions = []domain.LangOption{{Lang: "en", Audio: &domain.AudioSpec{Markup: "v2", Voice: "emma"}}}

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "customers/c1/audio/res-1_en", []byte("mp3:en:v1"), "audio/mpeg"))
	require.NoError(t, store.Put(ctx, "public/res-1/audio/res-1_en", []byte("mp3:en:v1"), "audio/mpeg"))

	steps := []Step{
		NewAudioStep(store, voices),
		NewDeleteStep(store),
	}
	engine := testEngine(t, repo, steps, Config{})

	env := domain.MutationEnvelope{
		EntityID: "res-1",
		Entity:   fresh,
		Action:   domain.ActionUpdate,
		Actor:    domain.Actor{CustomerID: "c1"},
		Assets:   asset.Diff(old, &fresh),
	}
	_, err := engine.Dispatch(ctx, env)
	require.NoError(t, err)
	require.NoError(t, engine.Drain(ctx))

	assert.Equal(t, domain.StatusActive, repo.statusOf("res-1"))
	for _, key := range []string{"customers/c1/audio/res-1_en", "public/res-1/audio/res-1_en"} {
		data, _, err := store.Get(ctx, key)
		require.NoError(t, err, "updated narration must outlive the run that produced it")
		assert.Equal(t, []byte("mp3:en:v2"), data, key)
	}
}

func TestEngine_RetentionReapsAncientEntries(t *testing.T) {
	repo := newFakeRepo()
	step := &scriptedStep{name: "images"}
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	engine := NewEngine(store, repo, health(true), []Step{step}, nil, Config{Retention: 72 * time.Hour})

	payload, err := json.Marshal(testEnvelope(domain.ActionCreate))
	require.NoError(t, err)
	ancient := &journal.Entry{
		EntityID:  "res-1",
		Envelope:  payload,
		Timestamp: time.Now().Add(-100 * time.Hour),
	}
	require.NoError(t, store.Enqueue(ancient))

	_, err = engine.Dispatch(context.Background(), testEnvelope(domain.ActionCreate))
	require.NoError(t, err)
	require.NoError(t, engine.Drain(context.Background()))

	assert.Equal(t, 1, step.runCount(), "only the fresh entry ran")
	assert.Equal(t, 0, engine.Size())
}

func TestEngine_OfflineSkipsDrain(t *testing.T) {
	repo := newFakeRepo()
	step := &scriptedStep{name: "images"}
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	engine := NewEngine(store, repo, health(false), []Step{step}, nil, Config{})

	_, err = engine.Dispatch(context.Background(), testEnvelope(domain.ActionCreate))
	require.NoError(t, err)
	require.NoError(t, engine.Drain(context.Background()))

	assert.Equal(t, 0, step.runCount())
	assert.Equal(t, 1, engine.Size(), "entry retained while offline")
}
