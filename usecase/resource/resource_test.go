package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
)

type memRepo struct {
	byID    map[string]*domain.Resource
	creates int
	removes int
	// staleGet, when set, is served by Get instead of the stored record,
	// simulating a reader whose snapshot predates a concurrent commit.
	staleGet *domain.Resource
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[string]*domain.Resource)}
}

func (r *memRepo) Get(ctx context.Context, kind domain.Kind, id, customerID string) (*domain.Resource, error) {
	if r.staleGet != nil && r.staleGet.ID == id {
		cp := *r.staleGet
		return &cp, nil
	}
	res, ok := r.byID[id]
	if !ok || (customerID != "" && res.CustomerID != customerID) {
		return nil, domain.ErrResourceNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *memRepo) Create(ctx context.Context, res *domain.Resource) error {
	r.creates++
	cp := *res
	r.byID[res.ID] = &cp
	return nil
}

func (r *memRepo) Patch(ctx context.Context, kind domain.Kind, id string, patch repository.ResourcePatch) (*domain.Resource, error) {
	res, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	if patch.Status != nil {
		res.Status = *patch.Status
	}
	cp := *res
	return &cp, nil
}

// Update mirrors the store's conditional write: the stored version must equal
// the caller's snapshot version, and success bumps it monotonically.
func (r *memRepo) Update(ctx context.Context, res *domain.Resource) error {
	stored, ok := r.byID[res.ID]
	if !ok {
		return domain.ErrResourceNotFound
	}
	if stored.Version != res.Version {
		return domain.ErrConcurrentUpdate
	}
	res.Version = res.NextVersion(time.Now())
	cp := *res
	r.byID[res.ID] = &cp
	return nil
}

func (r *memRepo) Remove(ctx context.Context, kind domain.Kind, id string) error {
	r.removes++
	delete(r.byID, id)
	return nil
}

func (r *memRepo) QueryByOwner(ctx context.Context, kind domain.Kind, customerID string, q repository.OwnerQuery) (repository.Page, error) {
	return repository.Page{}, nil
}

func (r *memRepo) ListStale(ctx context.Context, kind domain.Kind, olderThan time.Time) ([]domain.Resource, error) {
	return nil, nil
}

type recordingDispatcher struct {
	envelopes []domain.MutationEnvelope
	err       error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, env domain.MutationEnvelope) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.envelopes = append(d.envelopes, env)
	return "exec-1", nil
}

func validInput() *domain.Resource {
	return &domain.Resource{
		CustomerID:   "cust-1",
		Kind:         domain.KindExhibit,
		ExhibitionID: "exh-1",
		Images:       []domain.ImageRef{{ID: "img-1", Name: "hero"}},
		LangOptions: []domain.LangOption{
			{Lang: "en", Title: "Hall", Audio: &domain.AudioSpec{Markup: "hi", Voice: "emma"}},
		},
	}
}

func TestSubmitCreate(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := New(repo, dispatcher, nil)

	result, err := uc.SubmitCreate(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "exec-1", result.ExecutionHandle)

	stored := repo.byID[result.ID]
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusProcessing, stored.Status)

	require.Len(t, dispatcher.envelopes, 1)
	env := dispatcher.envelopes[0]
	assert.Equal(t, domain.ActionCreate, env.Action)
	assert.Equal(t, "cust-1", env.Actor.CustomerID)
	assert.Len(t, env.Assets.Images, 1)
	assert.Len(t, env.Assets.Audios, 1)
	assert.NotNil(t, env.Assets.QRCode)
}

func TestSubmitCreate_InvalidPayloadNeverWrites(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := New(repo, dispatcher, nil)

	bad := validInput()
	bad.ExhibitionID = ""
	_, err := uc.SubmitCreate(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Zero(t, repo.creates)
	assert.Empty(t, dispatcher.envelopes)
}

func TestSubmitUpdate_DispatchesMinimalDiff(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := New(repo, dispatcher, nil)

	created, err := uc.SubmitCreate(context.Background(), validInput())
	require.NoError(t, err)
	dispatcher.envelopes = nil

	images := []domain.ImageRef{{ID: "img-1", Name: "hero"}, {ID: "img-2", Name: "detail"}}
	_, err = uc.SubmitUpdate(context.Background(), domain.KindExhibit, created.ID, "cust-1", UpdateInput{Images: &images})
	require.NoError(t, err)

	require.Len(t, dispatcher.envelopes, 1)
	env := dispatcher.envelopes[0]
	assert.Equal(t, domain.ActionUpdate, env.Action)
	assert.Nil(t, env.Assets.QRCode, "qr only materializes on create")
	require.Len(t, env.Assets.Images, 1, "unchanged image not re-dispatched")
	assert.Equal(t, "img-2", env.Assets.Images[0].ID)
	assert.Empty(t, env.Assets.Audios)
	assert.True(t, env.Assets.Delete.Empty())
}

func TestSubmitUpdate_ConcurrentWritersExactlyOneWins(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := New(repo, dispatcher, nil)

	created, err := uc.SubmitCreate(context.Background(), validInput())
	require.NoError(t, err)
	dispatcher.envelopes = nil

	// Both writers read the same snapshot before either commits.
	snap, err := uc.Get(context.Background(), domain.KindExhibit, created.ID, "cust-1")
	require.NoError(t, err)

	nameA := "writer a"
	_, err = uc.SubmitUpdate(context.Background(), domain.KindExhibit, created.ID, "cust-1", UpdateInput{ReferenceName: &nameA})
	require.NoError(t, err)
	require.Len(t, dispatcher.envelopes, 1)

	// Writer B still holds the pre-commit snapshot; its conditional write
	// must lose to A's version bump.
	repo.staleGet = snap
	nameB := "writer b"
	_, err = uc.SubmitUpdate(context.Background(), domain.KindExhibit, created.ID, "cust-1", UpdateInput{ReferenceName: &nameB})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	assert.Len(t, dispatcher.envelopes, 1, "no dispatch on a lost write race")
	repo.staleGet = nil

	current, err := uc.Get(context.Background(), domain.KindExhibit, created.ID, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "writer a", current.ReferenceName)
	assert.Greater(t, current.Version, snap.Version)
}

func TestSubmitUpdate_WrongOwner(t *testing.T) {
	repo := newMemRepo()
	uc := New(repo, &recordingDispatcher{}, nil)

	created, err := uc.SubmitCreate(context.Background(), validInput())
	require.NoError(t, err)

	name := "theirs now"
	_, err = uc.SubmitUpdate(context.Background(), domain.KindExhibit, created.ID, "other-customer", UpdateInput{ReferenceName: &name})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestSubmitDelete(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{}
	uc := New(repo, dispatcher, nil)

	created, err := uc.SubmitCreate(context.Background(), validInput())
	require.NoError(t, err)
	dispatcher.envelopes = nil

	result, err := uc.SubmitDelete(context.Background(), domain.KindExhibit, created.ID, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, result.ID)

	// The record is gone synchronously; asset teardown is async.
	_, err = uc.Get(context.Background(), domain.KindExhibit, created.ID, "cust-1")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	require.Len(t, dispatcher.envelopes, 1)
	env := dispatcher.envelopes[0]
	assert.Equal(t, domain.ActionDelete, env.Action)
	assert.Empty(t, env.Assets.Images)
	require.NotNil(t, env.Assets.Delete)
	assert.NotEmpty(t, env.Assets.Delete.Private)
}

func TestDispatchFailureSurfacedNotRolledBack(t *testing.T) {
	repo := newMemRepo()
	dispatcher := &recordingDispatcher{err: errors.New("journal full")}
	uc := New(repo, dispatcher, nil)

	_, err := uc.SubmitCreate(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInternal))
	assert.Equal(t, 1, repo.creates, "store write stands; the sweeper re-dispatches")
}
